// Package navigate loads pages with a per-attempt timeout, linear backoff
// between attempts, a global rate limit and a per-host circuit breaker.
package navigate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/listing-cli/internal/browser"
	"github.com/sells-group/listing-cli/internal/config"
	"github.com/sells-group/listing-cli/internal/resilience"
)

var (
	// ErrNavigationTimeout matches a NavigationError whose last attempt hit
	// the per-attempt timeout.
	ErrNavigationTimeout = eris.New("navigate: navigation timeout")
	// ErrHostUnavailable is returned without navigating while a host's
	// breaker is open.
	ErrHostUnavailable = eris.New("navigate: host unavailable")
)

// NavigationError reports a navigation that failed on every attempt. Blocked
// names the interstitial served on the last attempt, if any.
type NavigationError struct {
	URL      string
	Attempts int
	Timeout  bool
	Blocked  string
	Err      error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigate: %s failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrNavigationTimeout) match timed-out navigations.
func (e *NavigationError) Is(target error) bool {
	return target == ErrNavigationTimeout && e.Timeout
}

// Options tunes one navigation. Zero fields take the Navigator defaults.
type Options struct {
	Timeout    time.Duration
	MaxRetries int
	// ReadySelector is awaited after the load. Defaults to "body".
	ReadySelector string
}

// Result is a successful navigation.
type Result struct {
	Document *browser.Document
	Attempts int
}

// Navigator is safe for concurrent use; state is shared across pages.
type Navigator struct {
	defaults Options
	backoff  time.Duration
	limiter  *rate.Limiter
	breakers *resilience.HostBreakers
}

// New creates a Navigator from navigation config.
func New(cfg config.NavigationConfig) *Navigator {
	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}

	breakers := resilience.NewHostBreakers(
		resilience.FromCircuitConfig(cfg.BreakerThreshold, cfg.BreakerResetSecs),
		func(host string, from, to resilience.CircuitState) {
			zap.L().Warn("navigate: host breaker state change",
				zap.String("host", host),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	)

	return &Navigator{
		defaults: Options{
			Timeout:       time.Duration(cfg.TimeoutSecs) * time.Second,
			MaxRetries:    cfg.MaxRetries,
			ReadySelector: "body",
		},
		backoff:  time.Duration(cfg.BackoffMs) * time.Millisecond,
		limiter:  rate.NewLimiter(limit, 1),
		breakers: breakers,
	}
}

// Defaults returns the options applied to zero fields.
func (n *Navigator) Defaults() Options { return n.defaults }

// HostStates returns breaker states keyed by host.
func (n *Navigator) HostStates() map[string]string {
	states := n.breakers.States()
	out := make(map[string]string, len(states))
	for host, s := range states {
		out[host] = s.String()
	}
	return out
}

func (n *Navigator) withDefaults(opts Options) Options {
	if opts.Timeout <= 0 {
		opts.Timeout = n.defaults.Timeout
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = n.defaults.MaxRetries
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.ReadySelector == "" {
		opts.ReadySelector = n.defaults.ReadySelector
	}
	return opts
}

// Navigate loads url in page. It fails only after MaxRetries consecutive
// failed attempts, waiting attempt*backoff between them.
func (n *Navigator) Navigate(ctx context.Context, page browser.Page, url string, opts Options) (*Result, error) {
	opts = n.withDefaults(opts)
	log := zap.L().With(zap.String("component", "navigate"), zap.String("url", url))

	var (
		attempts int
		timedOut bool
	)
	retryCfg := resilience.RetryConfig{
		MaxAttempts: opts.MaxRetries,
		Backoff:     resilience.LinearBackoff(n.backoff),
		ShouldRetry: resilience.RetryAll,
		OnRetry:     resilience.RetryLogger("navigate", url),
	}

	doc, err := resilience.ExecuteVal(ctx, n.breakers.For(url), func(ctx context.Context) (*browser.Document, error) {
		return resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*browser.Document, error) {
			attempts++
			doc, err := n.attempt(ctx, page, url, opts)
			timedOut = err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded)
			return doc, err
		})
	})
	if err == nil {
		log.Debug("navigated", zap.Int("attempts", attempts))
		return &Result{Document: doc, Attempts: attempts}, nil
	}

	if errors.Is(err, resilience.ErrCircuitOpen) {
		log.Debug("navigate: host breaker open, skipping")
		return nil, eris.Wrapf(ErrHostUnavailable, "navigate: %s", resilience.HostOf(url))
	}
	if ctx.Err() != nil {
		return nil, eris.Wrap(ctx.Err(), "navigate: canceled")
	}

	blocked := resilience.TransientReason(err)
	log.Warn("navigate: giving up",
		zap.Int("attempts", attempts),
		zap.String("blocked", blocked),
		zap.Error(err),
	)
	return nil, &NavigationError{URL: url, Attempts: attempts, Timeout: timedOut, Blocked: blocked, Err: err}
}

// attempt performs one bounded load. A block interstitial counts as a failure.
func (n *Navigator) attempt(ctx context.Context, page browser.Page, url string, opts Options) (*browser.Document, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "navigate: rate limiter")
	}

	actx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	if err := page.Navigate(actx, url); err != nil {
		return nil, err
	}
	if err := page.WaitReady(actx, opts.ReadySelector); err != nil {
		return nil, err
	}
	doc, err := page.Document(actx)
	if err != nil {
		return nil, err
	}
	if blocked, kind := browser.DetectBlock(doc); blocked {
		return nil, resilience.NewTransientError(eris.Errorf("navigate: blocked (%s)", kind), string(kind))
	}
	return doc, nil
}

// Fetch opens a page, navigates it and closes it on every path. The
// returned document stays usable after the page is closed.
func (n *Navigator) Fetch(ctx context.Context, s browser.Session, url string, opts Options) (*Result, error) {
	page, err := s.NewPage(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "navigate: open page")
	}
	defer func() { _ = page.Close() }()

	return n.Navigate(ctx, page, url, opts)
}
