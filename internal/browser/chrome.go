package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultUserAgent is sent when ChromeOptions.UserAgent is empty.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

// ChromeOptions configures the headless Chrome launcher.
type ChromeOptions struct {
	// ExecPath overrides the Chrome binary lookup.
	ExecPath      string
	Headless      bool
	UserAgent     string
	LaunchTimeout time.Duration
}

// ChromeLauncher starts Chrome through chromedp.
type ChromeLauncher struct {
	opts ChromeOptions
}

// NewChromeLauncher creates a ChromeLauncher.
func NewChromeLauncher(opts ChromeOptions) *ChromeLauncher {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.LaunchTimeout <= 0 {
		opts.LaunchTimeout = 30 * time.Second
	}
	return &ChromeLauncher{opts: opts}
}

// Launch starts the browser process and waits for its first target.
func (l *ChromeLauncher) Launch(ctx context.Context) (Session, error) {
	log := zap.L().With(zap.String("component", "browser"))

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(l.opts.UserAgent),
	)
	if l.opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(l.opts.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			log.Debug(fmt.Sprintf(format, args...))
		}),
	)

	// The first Run allocates the browser; a deadline on that context would
	// bound the browser's lifetime, so the launch timeout is enforced here.
	started := make(chan error, 1)
	go func() { started <- chromedp.Run(browserCtx) }()

	timer := time.NewTimer(l.opts.LaunchTimeout)
	defer timer.Stop()

	var err error
	select {
	case err = <-started:
	case <-timer.C:
		err = eris.Errorf("browser: launch timed out after %s", l.opts.LaunchTimeout)
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		browserCancel()
		allocCancel()
		return nil, eris.Wrap(err, "browser: launch chrome")
	}

	log.Info("chrome started",
		zap.Bool("headless", l.opts.Headless),
		zap.String("exec_path", l.opts.ExecPath),
	)

	return &chromeSession{
		browserCtx: browserCtx,
		cancel: func() {
			browserCancel()
			allocCancel()
		},
	}, nil
}

type chromeSession struct {
	browserCtx context.Context
	cancel     func()

	mu     sync.Mutex
	closed bool
	once   sync.Once
}

func (s *chromeSession) NewPage(_ context.Context) (Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	tabCtx, cancel := chromedp.NewContext(s.browserCtx)
	return &chromePage{tabCtx: tabCtx, cancel: cancel}, nil
}

func (s *chromeSession) Close() error {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.cancel()
		zap.L().Debug("chrome session closed", zap.String("component", "browser"))
	})
	return nil
}

type chromePage struct {
	tabCtx context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// run executes actions on the tab bounded by ctx. The tab context itself is
// never given a deadline so one slow call cannot close the tab.
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.tabCtx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	return eris.Wrapf(p.run(ctx, chromedp.Navigate(url)), "browser: navigate %s", url)
}

func (p *chromePage) WaitReady(ctx context.Context, selector string) error {
	if selector == "" {
		selector = "body"
	}
	return eris.Wrapf(p.run(ctx, chromedp.WaitReady(selector, chromedp.ByQuery)), "browser: waiting for selector %q", selector)
}

func (p *chromePage) Document(ctx context.Context) (*Document, error) {
	var location, outer string
	if err := p.run(ctx,
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &outer, chromedp.ByQuery),
	); err != nil {
		return nil, eris.Wrap(err, "browser: capture document")
	}
	return NewDocument(outer, location)
}

func (p *chromePage) Back(ctx context.Context) error {
	return eris.Wrap(p.run(ctx, chromedp.NavigateBack()), "browser: back")
}

func (p *chromePage) Scroll(ctx context.Context, selector string, times int, pause time.Duration) error {
	script := fmt.Sprintf(`(function () {
  const el = document.querySelector(%q);
  if (el) {
    el.scrollBy(0, el.offsetHeight);
  } else {
    window.scrollBy(0, window.innerHeight);
  }
})();`, selector)

	for i := 0; i < times; i++ {
		if err := p.run(ctx, chromedp.Evaluate(script, nil), chromedp.Sleep(pause)); err != nil {
			return eris.Wrapf(err, "browser: scroll %q", selector)
		}
	}
	return nil
}

func (p *chromePage) Evaluate(ctx context.Context, script string) error {
	return eris.Wrap(p.run(ctx, chromedp.Evaluate(script, nil)), "browser: evaluate")
}

func (p *chromePage) Close() error {
	p.once.Do(p.cancel)
	return nil
}
