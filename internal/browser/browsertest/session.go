// Package browsertest provides a scripted in-memory browser session for tests.
package browsertest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/listing-cli/internal/browser"
)

// Route scripts how the fake browser answers navigations to a URL.
type Route struct {
	HTML string
	// FailTimes makes the first FailTimes navigations fail with Err.
	FailTimes int
	// Err is returned by failing navigations. Defaults to a connection reset.
	Err error
	// Delay blocks each navigation, honoring context cancellation.
	Delay time.Duration
	// FinalURL overrides the document URL, e.g. to simulate redirects.
	FinalURL string

	hits int
}

// Session is a scripted browser.Session. Routes are matched by exact URL
// first, then by longest registered prefix.
type Session struct {
	mu       sync.Mutex
	routes   map[string]*Route
	prefixes []string
	visits   []string
	scripts  []string
	scrolls  int
	open     int
	opened   int
	closes   int
	closed   bool
}

var _ browser.Session = (*Session)(nil)

// NewSession returns an empty scripted session.
func NewSession() *Session {
	return &Session{routes: make(map[string]*Route)}
}

// Handle serves html for exactly rawURL.
func (s *Session) Handle(rawURL, html string) *Session {
	return s.HandleRoute(rawURL, &Route{HTML: html})
}

// HandlePrefix serves html for every URL starting with prefix.
func (s *Session) HandlePrefix(prefix, html string) *Session {
	return s.HandlePrefixRoute(prefix, &Route{HTML: html})
}

// HandleRoute registers r for exactly rawURL.
func (s *Session) HandleRoute(rawURL string, r *Route) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[rawURL] = r
	return s
}

// HandlePrefixRoute registers r for every URL starting with prefix.
func (s *Session) HandlePrefixRoute(prefix string, r *Route) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes["prefix:"+prefix] = r
	s.prefixes = append(s.prefixes, prefix)
	sort.Slice(s.prefixes, func(i, j int) bool { return len(s.prefixes[i]) > len(s.prefixes[j]) })
	return s
}

func (s *Session) route(rawURL string) *Route {
	if r, ok := s.routes[rawURL]; ok {
		return r
	}
	for _, p := range s.prefixes {
		if strings.HasPrefix(rawURL, p) {
			return s.routes["prefix:"+p]
		}
	}
	return nil
}

// NewPage opens a scripted tab.
func (s *Session) NewPage(_ context.Context) (browser.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, browser.ErrSessionClosed
	}
	s.open++
	s.opened++
	return &Page{session: s}, nil
}

// Close marks the session closed and counts the call.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	s.closed = true
	return nil
}

// Visits returns every URL navigated to, in order.
func (s *Session) Visits() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.visits...)
}

// VisitCount returns how many navigations hit URLs starting with prefix.
func (s *Session) VisitCount(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, v := range s.visits {
		if strings.HasPrefix(v, prefix) {
			n++
		}
	}
	return n
}

// Scripts returns every evaluated script.
func (s *Session) Scripts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.scripts...)
}

// Scrolls returns the total number of scroll steps performed.
func (s *Session) Scrolls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scrolls
}

// OpenPages returns the number of pages not yet closed.
func (s *Session) OpenPages() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// PagesOpened returns the number of pages ever opened.
func (s *Session) PagesOpened() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened
}

// Closes returns how many times Close was called.
func (s *Session) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// Launcher returns a browser.Launcher that hands out s, or fails with err
// when err is non-nil.
func Launcher(s *Session, err error) browser.Launcher {
	return browser.LauncherFunc(func(_ context.Context) (browser.Session, error) {
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}

// Page is a scripted tab.
type Page struct {
	session *Session
	history []*browser.Document
	current *browser.Document
	closed  bool
}

var _ browser.Page = (*Page)(nil)

// Navigate looks up the route for rawURL and loads its HTML.
func (p *Page) Navigate(ctx context.Context, rawURL string) error {
	s := p.session
	s.mu.Lock()
	s.visits = append(s.visits, rawURL)
	r := s.route(rawURL)
	var (
		fail  bool
		err   error
		delay time.Duration
	)
	if r != nil {
		r.hits++
		fail = r.hits <= r.FailTimes
		err = r.Err
		delay = r.Delay
	}
	s.mu.Unlock()

	if delay > 0 {
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return eris.Wrapf(ctx.Err(), "browsertest: navigate %s", rawURL)
		case <-t.C:
		}
	}
	if ctx.Err() != nil {
		return eris.Wrapf(ctx.Err(), "browsertest: navigate %s", rawURL)
	}

	if r == nil {
		return eris.Errorf("browsertest: page load error net::ERR_NAME_NOT_RESOLVED at %s", rawURL)
	}
	if fail {
		if err == nil {
			err = eris.Errorf("page load error net::ERR_CONNECTION_RESET at %s", rawURL)
		}
		return err
	}

	final := rawURL
	if r.FinalURL != "" {
		final = r.FinalURL
	}
	doc, perr := browser.NewDocument(r.HTML, final)
	if perr != nil {
		return perr
	}
	if p.current != nil {
		p.history = append(p.history, p.current)
	}
	p.current = doc
	return nil
}

// WaitReady succeeds when selector matches the loaded document; otherwise it
// fails the way a timed-out wait would.
func (p *Page) WaitReady(_ context.Context, selector string) error {
	if p.current == nil {
		return eris.Wrap(context.DeadlineExceeded, "browsertest: no document loaded")
	}
	if selector == "" || p.current.Has(selector) {
		return nil
	}
	return eris.Wrapf(context.DeadlineExceeded, "browsertest: waiting for selector %q", selector)
}

// Document returns the current snapshot.
func (p *Page) Document(_ context.Context) (*browser.Document, error) {
	if p.current == nil {
		return nil, eris.New("browsertest: no document loaded")
	}
	return p.current, nil
}

// Back restores the previous document.
func (p *Page) Back(_ context.Context) error {
	if len(p.history) == 0 {
		return eris.New("browsertest: no history")
	}
	p.current = p.history[len(p.history)-1]
	p.history = p.history[:len(p.history)-1]
	return nil
}

// Scroll records the scroll steps.
func (p *Page) Scroll(ctx context.Context, _ string, times int, _ time.Duration) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	p.session.mu.Lock()
	p.session.scrolls += times
	p.session.mu.Unlock()
	return nil
}

// Evaluate records the script.
func (p *Page) Evaluate(_ context.Context, script string) error {
	p.session.mu.Lock()
	p.session.scripts = append(p.session.scripts, script)
	p.session.mu.Unlock()
	return nil
}

// Close releases the tab once.
func (p *Page) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.session.mu.Lock()
	p.session.open--
	p.session.mu.Unlock()
	return nil
}
