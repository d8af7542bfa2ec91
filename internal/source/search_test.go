package source

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/listing-cli/internal/browser/browsertest"
	"github.com/sells-group/listing-cli/internal/config"
	"github.com/sells-group/listing-cli/internal/model"
)

const engineURL = "https://ddg.test/html/?q=restaurants+in+Vernon"

const engineResults = `<html><body>
<div class="result result--ad">
  <a class="result__a" href="https://ads.test/click">Sponsored Diner</a>
</div>
<div class="result">
  <a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fcafex.ca%2F&amp;rut=abc">Cafe X - Coffee in Vernon</a>
  <a class="result__snippet">Open daily. Call (250) 555-0142 for takeout.</a>
</div>
<div class="result">
  <a class="result__a" href="https://bistronord.ca/">Bistro Nord</a>
  <div class="result__snippet">French bistro since 1998.</div>
</div>
<div class="result">
  <a class="result__a" href="https://empty.test/"></a>
</div>
</body></html>`

func newSearchEngine() *SearchEngine {
	e := NewSearchEngine(config.SearchEngineConfig{BaseURL: "https://ddg.test/"}, testNavigator())
	e.now = func() time.Time { return fixedNow }
	return e
}

func TestSearchEngine_Extract(t *testing.T) {
	s := browsertest.NewSession().Handle(engineURL, engineResults)

	recs, err := newSearchEngine().Extract(context.Background(), s, mapsQuery(0))
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "Cafe X - Coffee in Vernon", recs[0].Title)
	assert.Equal(t, 1, recs[0].Rank)
	assert.Equal(t, "https://cafex.ca/", recs[0].URL)
	assert.Equal(t, "(250) 555-0142", recs[0].Phone)
	assert.Equal(t, model.SourceSearchEngine, recs[0].Source)
	assert.Equal(t, "Vernon", recs[0].City)

	assert.Equal(t, "Bistro Nord", recs[1].Title)
	assert.Equal(t, 2, recs[1].Rank)
	assert.Equal(t, "https://bistronord.ca/", recs[1].URL)
	assert.True(t, model.IsAbsent(recs[1].Phone))
	assert.Equal(t, 0, s.OpenPages())
}

func TestSearchEngine_MaxResults(t *testing.T) {
	s := browsertest.NewSession().Handle(engineURL, engineResults)

	recs, err := newSearchEngine().Extract(context.Background(), s, mapsQuery(1))
	require.NoError(t, err)
	require.Len(t, recs, 1)
}

func TestSearchEngine_Mismatch(t *testing.T) {
	s := browsertest.NewSession().Handle(engineURL, `<html><body><div class="results--empty"></div></body></html>`)

	recs, err := newSearchEngine().Extract(context.Background(), s, mapsQuery(0))
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestSearchEngine_NavigationFailure(t *testing.T) {
	s := browsertest.NewSession()

	recs, err := newSearchEngine().Extract(context.Background(), s, mapsQuery(0))
	require.NoError(t, err)
	assert.Empty(t, recs)
}
