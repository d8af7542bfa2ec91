// Package source extracts business listings from public directories rendered
// in a browser session.
package source

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/listing-cli/internal/browser"
	"github.com/sells-group/listing-cli/internal/model"
)

// ErrMarkerNotFound means the expected result container never appeared,
// usually because the site layout changed. Adapters log it and return no
// records.
var ErrMarkerNotFound = eris.New("source: result marker not found")

// Adapter extracts ranked records for a query from one directory.
//
// A returned error means the adapter could not run at all (for example the
// session refused a new page). A missing marker or an exhausted navigation
// yields an empty slice and a nil error.
type Adapter interface {
	Source() model.Source
	Extract(ctx context.Context, s browser.Session, q model.Query) ([]model.BusinessRecord, error)
}

// Registry maps source names to adapters.
type Registry struct {
	adapters map[model.Source]Adapter
	order    []model.Source // insertion order for deterministic iteration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[model.Source]Adapter),
	}
}

// Register adds an adapter, replacing any previous one for the same source.
func (r *Registry) Register(a Adapter) {
	src := a.Source()
	if _, ok := r.adapters[src]; !ok {
		r.order = append(r.order, src)
	}
	r.adapters[src] = a
}

// Get returns the adapter for a source.
func (r *Registry) Get(src model.Source) (Adapter, error) {
	a, ok := r.adapters[src]
	if !ok {
		return nil, eris.Errorf("source: unknown source %q", src)
	}
	return a, nil
}

// Select returns adapters in the order names are given, which is the merge
// priority. An empty names list selects every adapter in registration order.
func (r *Registry) Select(names []string) ([]Adapter, error) {
	if len(names) == 0 {
		return r.All(), nil
	}
	result := make([]Adapter, 0, len(names))
	for _, name := range names {
		a, err := r.Get(model.Source(name))
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, nil
}

// All returns all adapters in registration order.
func (r *Registry) All() []Adapter {
	result := make([]Adapter, 0, len(r.order))
	for _, src := range r.order {
		result = append(result, r.adapters[src])
	}
	return result
}

// waitMarker waits up to timeout for selector on page.
func waitMarker(ctx context.Context, page browser.Page, selector string, timeout time.Duration) error {
	mctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := page.WaitReady(mctx, selector); err != nil {
		return eris.Wrapf(ErrMarkerNotFound, "source: %s: %v", selector, err)
	}
	return nil
}

// withStep runs one page step with a deadline of timeout on top of ctx.
func withStep(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(sctx)
}

// captureDocument snapshots page within timeout.
func captureDocument(ctx context.Context, page browser.Page, timeout time.Duration) (*browser.Document, error) {
	var doc *browser.Document
	err := withStep(ctx, timeout, func(ctx context.Context) error {
		var err error
		doc, err = page.Document(ctx)
		return err
	})
	return doc, err
}

// industryFromDescription applies the map directory rule: descriptions
// mentioning a restaurant map to "Restaurant", otherwise the description
// itself, otherwise the default.
func industryFromDescription(desc string) string {
	desc = strings.TrimSpace(desc)
	switch {
	case desc == "":
		return model.DefaultIndustry
	case strings.Contains(strings.ToLower(desc), "restaurant"):
		return "Restaurant"
	default:
		return desc
	}
}

// limitReached reports whether n records satisfy max. Zero max is unlimited.
func limitReached(n, max int) bool {
	return max > 0 && n >= max
}
