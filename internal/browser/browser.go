// Package browser defines the rendering session used by every scraper: a
// headless browser that opens pages, executes their scripts and exposes the
// rendered DOM as a goquery document.
package browser

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
)

// ErrSessionClosed is returned by NewPage after Close.
var ErrSessionClosed = eris.New("browser: session closed")

// Launcher starts a rendering session. One session is launched per run.
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}

// Session is a running browser. Pages opened from it are independent tabs and
// may be used from separate goroutines.
type Session interface {
	NewPage(ctx context.Context) (Page, error)
	// Close releases the browser. It is safe to call more than once.
	Close() error
}

// Page is a single tab. A Page is not safe for concurrent use.
type Page interface {
	Navigate(ctx context.Context, url string) error
	// WaitReady blocks until selector matches an element or ctx expires.
	WaitReady(ctx context.Context, selector string) error
	Document(ctx context.Context) (*Document, error)
	Back(ctx context.Context) error
	// Scroll scrolls the element matching selector by its own height, times
	// times, pausing between steps so lazy content can load.
	Scroll(ctx context.Context, selector string, times int, pause time.Duration) error
	Evaluate(ctx context.Context, script string) error
	Close() error
}

// LauncherFunc adapts a function to the Launcher interface.
type LauncherFunc func(ctx context.Context) (Session, error)

// Launch calls f.
func (f LauncherFunc) Launch(ctx context.Context) (Session, error) { return f(ctx) }
