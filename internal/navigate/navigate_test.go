package navigate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/listing-cli/internal/browser/browsertest"
	"github.com/sells-group/listing-cli/internal/config"
)

func testConfig() config.NavigationConfig {
	return config.NavigationConfig{
		TimeoutSecs:      1,
		MaxRetries:       3,
		BackoffMs:        1,
		BreakerThreshold: 5,
		BreakerResetSecs: 60,
	}
}

const okHTML = `<html><body><h1>Cafe X</h1></body></html>`

func TestNavigate_FailsTwiceThenSucceeds(t *testing.T) {
	ctx := context.Background()
	s := browsertest.NewSession().HandleRoute("https://cafex.ca/", &browsertest.Route{HTML: okHTML, FailTimes: 2})
	n := New(testConfig())

	res, err := n.Fetch(ctx, s, "https://cafex.ca/", Options{MaxRetries: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Attempts)
	assert.True(t, res.Document.Has("h1"))
	assert.Len(t, s.Visits(), 3)
	assert.Equal(t, 0, s.OpenPages())
}

func TestNavigate_ExhaustsRetries(t *testing.T) {
	ctx := context.Background()
	s := browsertest.NewSession().HandleRoute("https://down.test/", &browsertest.Route{FailTimes: 100})
	n := New(testConfig())

	_, err := n.Fetch(ctx, s, "https://down.test/", Options{})
	require.Error(t, err)

	var navErr *NavigationError
	require.True(t, errors.As(err, &navErr))
	assert.Equal(t, 3, navErr.Attempts)
	assert.Equal(t, "https://down.test/", navErr.URL)
	assert.False(t, errors.Is(err, ErrNavigationTimeout))
	assert.Equal(t, 0, s.OpenPages())
}

func TestNavigate_TimeoutPerAttempt(t *testing.T) {
	ctx := context.Background()
	s := browsertest.NewSession().HandleRoute("https://slow.test/", &browsertest.Route{HTML: okHTML, Delay: 500 * time.Millisecond})
	n := New(testConfig())

	start := time.Now()
	_, err := n.Fetch(ctx, s, "https://slow.test/", Options{Timeout: 20 * time.Millisecond, MaxRetries: 2})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNavigationTimeout))
	assert.Less(t, time.Since(start), 400*time.Millisecond)
	assert.Len(t, s.Visits(), 2)
}

func TestNavigate_BlockedPageCountsAsFailure(t *testing.T) {
	ctx := context.Background()
	s := browsertest.NewSession().Handle("https://www.google.com/search?q=x",
		`<html><body>Our systems have detected unusual traffic from your computer network.</body></html>`)
	n := New(testConfig())

	_, err := n.Fetch(ctx, s, "https://www.google.com/search?q=x", Options{MaxRetries: 2})
	require.Error(t, err)

	var navErr *NavigationError
	require.True(t, errors.As(err, &navErr))
	assert.Equal(t, 2, navErr.Attempts)
	assert.Equal(t, "unusual_traffic", navErr.Blocked)
}

func TestNavigate_MissingReadySelectorRetries(t *testing.T) {
	ctx := context.Background()
	s := browsertest.NewSession().Handle("https://cafex.ca/", okHTML)
	n := New(testConfig())

	_, err := n.Fetch(ctx, s, "https://cafex.ca/", Options{MaxRetries: 2, ReadySelector: ".never"})
	require.Error(t, err)
	assert.Len(t, s.Visits(), 2)
}

func TestNavigate_LinearBackoff(t *testing.T) {
	ctx := context.Background()
	s := browsertest.NewSession().HandleRoute("https://down.test/", &browsertest.Route{FailTimes: 100})
	cfg := testConfig()
	cfg.BackoffMs = 20
	n := New(cfg)

	start := time.Now()
	_, err := n.Fetch(ctx, s, "https://down.test/", Options{MaxRetries: 3})
	require.Error(t, err)
	// 20ms after the first failure, 40ms after the second, none after the last.
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestNavigate_HostBreakerFailsFast(t *testing.T) {
	ctx := context.Background()
	s := browsertest.NewSession().HandlePrefixRoute("https://down.test/", &browsertest.Route{FailTimes: 100})
	cfg := testConfig()
	cfg.BreakerThreshold = 1
	n := New(cfg)

	_, err := n.Fetch(ctx, s, "https://down.test/a", Options{MaxRetries: 2})
	require.Error(t, err)
	assert.Len(t, s.Visits(), 2)

	_, err = n.Fetch(ctx, s, "https://down.test/b", Options{MaxRetries: 2})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrHostUnavailable))
	assert.Len(t, s.Visits(), 2, "open breaker must not navigate")
	assert.Equal(t, "open", n.HostStates()["down.test"])

	// other hosts are unaffected
	s.Handle("https://up.test/", okHTML)
	_, err = n.Fetch(ctx, s, "https://up.test/", Options{})
	assert.NoError(t, err)
}

func TestNavigate_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := browsertest.NewSession().Handle("https://cafex.ca/", okHTML)
	n := New(testConfig())

	_, err := n.Fetch(ctx, s, "https://cafex.ca/", Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestFetch_ClosedSession(t *testing.T) {
	s := browsertest.NewSession()
	require.NoError(t, s.Close())

	_, err := New(testConfig()).Fetch(context.Background(), s, "https://cafex.ca/", Options{})
	assert.Error(t, err)
}

func TestWithDefaults(t *testing.T) {
	n := New(config.NavigationConfig{})
	opts := n.withDefaults(Options{})
	assert.Equal(t, 60*time.Second, opts.Timeout)
	assert.Equal(t, 3, opts.MaxRetries)
	assert.Equal(t, "body", opts.ReadySelector)
}
