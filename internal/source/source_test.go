package source

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/listing-cli/internal/browser"
	"github.com/sells-group/listing-cli/internal/config"
	"github.com/sells-group/listing-cli/internal/model"
	"github.com/sells-group/listing-cli/internal/navigate"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func testNavigator() *navigate.Navigator {
	return navigate.New(config.NavigationConfig{TimeoutSecs: 1, MaxRetries: 1})
}

type stubAdapter struct {
	src model.Source
}

func (s stubAdapter) Source() model.Source { return s.src }

func (s stubAdapter) Extract(context.Context, browser.Session, model.Query) ([]model.BusinessRecord, error) {
	return nil, nil
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register(stubAdapter{src: model.SourceMapDirectory})
	r.Register(stubAdapter{src: model.SourceSearchEngine})

	a, err := r.Get(model.SourceSearchEngine)
	require.NoError(t, err)
	assert.Equal(t, model.SourceSearchEngine, a.Source())

	_, err = r.Get(model.SourceListingDirectory)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown source")
}

func TestRegistry_SelectKeepsRequestedOrder(t *testing.T) {
	r := NewRegistry()
	for _, src := range model.AllSources() {
		r.Register(stubAdapter{src: src})
	}

	got, err := r.Select([]string{"search_engine", "map_directory"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, model.SourceSearchEngine, got[0].Source())
	assert.Equal(t, model.SourceMapDirectory, got[1].Source())

	all, err := r.Select(nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, model.SourceMapDirectory, all[0].Source())
	assert.Equal(t, model.SourceSearchEngine, all[2].Source())

	_, err = r.Select([]string{"map_directory", "carrier_pigeon"})
	assert.Error(t, err)
}

func TestRegistry_ReRegisterKeepsPosition(t *testing.T) {
	r := NewRegistry()
	r.Register(stubAdapter{src: model.SourceMapDirectory})
	r.Register(stubAdapter{src: model.SourceListingDirectory})
	r.Register(stubAdapter{src: model.SourceMapDirectory})

	all := r.All()
	require.Len(t, all, 2)
	assert.Equal(t, model.SourceMapDirectory, all[0].Source())
}

func TestIndustryFromDescription(t *testing.T) {
	assert.Equal(t, "Restaurant", industryFromDescription("Family RESTAURANT · $$"))
	assert.Equal(t, "Coffee shop", industryFromDescription("  Coffee shop "))
	assert.Equal(t, model.DefaultIndustry, industryFromDescription(" "))
}

func TestLimitReached(t *testing.T) {
	assert.False(t, limitReached(100, 0))
	assert.False(t, limitReached(1, 2))
	assert.True(t, limitReached(2, 2))
}

func TestUnwrapRedirect(t *testing.T) {
	assert.Equal(t, "https://cafex.ca/",
		unwrapRedirect("https://yp.test/gourl/1?redirect=https%3A%2F%2Fcafex.ca%2F", "redirect"))
	assert.Equal(t, "https://yp.test/bus/2.html", unwrapRedirect("https://yp.test/bus/2.html", "redirect"))
	assert.Equal(t, "https://yp.test/go?redirect=javascript:x",
		unwrapRedirect("https://yp.test/go?redirect=javascript:x", "redirect"))
}
