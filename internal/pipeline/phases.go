package pipeline

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/listing-cli/internal/browser"
	"github.com/sells-group/listing-cli/internal/enrich"
	"github.com/sells-group/listing-cli/internal/model"
)

// extract runs every adapter, at most cfg.SourceConcurrency at a time, and
// concatenates their records in adapter order regardless of which finished
// first. It fails only when every adapter returned an error.
func (p *Pipeline) extract(ctx context.Context, s browser.Session, q model.Query, log *zap.Logger) ([]model.BusinessRecord, []model.SourceResult, error) {
	outputs := make([][]model.BusinessRecord, len(p.adapters))
	errs := make([]error, len(p.adapters))

	limit := p.cfg.SourceConcurrency
	if limit <= 0 {
		limit = 1
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, a := range p.adapters {
		g.Go(func() error {
			recs, err := a.Extract(ctx, s, q)
			outputs[i] = validRecords(recs, q.MaxResults)
			errs[i] = err
			return nil
		})
	}
	_ = g.Wait()

	var (
		combined []model.BusinessRecord
		sources  = make([]model.SourceResult, 0, len(p.adapters))
		failed   int
	)
	for i, a := range p.adapters {
		sr := model.SourceResult{Source: a.Source(), Count: len(outputs[i])}
		if errs[i] != nil {
			failed++
			sr.Error = errs[i].Error()
			log.Warn("pipeline: source failed", zap.String("source", string(a.Source())), zap.Error(errs[i]))
		}
		sources = append(sources, sr)
		combined = append(combined, outputs[i]...)
	}

	if ctx.Err() != nil {
		return combined, sources, ctx.Err()
	}
	if len(p.adapters) > 0 && failed == len(p.adapters) {
		return nil, sources, ErrAllSourcesFailed
	}
	if len(combined) == 0 {
		log.Warn("pipeline: no source produced records")
	}
	return combined, sources, nil
}

// validRecords drops rows without a title or rank and caps the count.
func validRecords(recs []model.BusinessRecord, limit int) []model.BusinessRecord {
	out := recs[:0:0]
	for _, r := range recs {
		if model.IsAbsent(r.Title) || r.Rank < 1 {
			continue
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, r)
	}
	return out
}

// enrich runs the contact enricher over records that need it, in batches.
func (p *Pipeline) enrich(ctx context.Context, s browser.Session, records []model.BusinessRecord) (map[string]any, error) {
	var targets []int
	for i := range records {
		if ok, _ := enrich.NeedsEnrichment(records[i]); ok {
			targets = append(targets, i)
		}
	}

	var (
		mu     sync.Mutex
		counts = make(map[enrich.Status]int)
	)
	err := runBatches(ctx, targets, p.enricher.Concurrency(), p.enricher.BatchDelay(), func(ctx context.Context, i int) {
		out := p.enricher.Enrich(ctx, s, &records[i])
		mu.Lock()
		counts[out.Status]++
		mu.Unlock()
	})

	return map[string]any{
		"candidates": len(targets),
		"email":      counts[enrich.StatusEmail],
		"phone":      counts[enrich.StatusPhone],
		"exhausted":  counts[enrich.StatusExhausted],
	}, err
}

// resolveFallbacks searches the web for records still missing contact data
// and fills only their absent fields.
func (p *Pipeline) resolveFallbacks(ctx context.Context, s browser.Session, records []model.BusinessRecord) (map[string]any, error) {
	var targets []int
	for i := range records {
		if p.resolver.Needs(records[i]) {
			targets = append(targets, i)
		}
	}
	eligible := len(targets)
	if capN := p.fallback.MaxRecords; capN > 0 && len(targets) > capN {
		targets = targets[:capN]
	}

	var (
		mu       sync.Mutex
		resolved int
	)
	err := runBatches(ctx, targets, p.enricher.Concurrency(), p.enricher.BatchDelay(), func(ctx context.Context, i int) {
		rec := &records[i]
		fb := p.resolver.Resolve(ctx, s, rec.Title, rec.City)
		if applyFallback(rec, fb) > 0 {
			mu.Lock()
			resolved++
			mu.Unlock()
		}
	})

	return map[string]any{
		"eligible":  eligible,
		"attempted": len(targets),
		"resolved":  resolved,
	}, err
}

// applyFallback fills absent fields of rec and returns how many it filled.
func applyFallback(rec *model.BusinessRecord, fb enrich.Fallback) int {
	n := 0
	for _, f := range []struct {
		dst *string
		src string
	}{
		{&rec.URL, fb.URL},
		{&rec.Email, fb.Email},
		{&rec.Phone, fb.Phone},
		{&rec.Address, fb.Address},
	} {
		if model.IsAbsent(*f.dst) && !model.IsAbsent(f.src) {
			*f.dst = f.src
			n++
		}
	}
	return n
}

// runBatches calls fn for every item, size items at a time. A batch finishes
// completely before the pause and the next batch. Returns ctx.Err() when the
// context ends between batches.
func runBatches(ctx context.Context, items []int, size int, delay time.Duration, fn func(ctx context.Context, i int)) error {
	if size <= 0 {
		size = 1
	}
	for start := 0; start < len(items); start += size {
		if start > 0 && delay > 0 {
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		end := min(start+size, len(items))
		var g errgroup.Group
		for _, i := range items[start:end] {
			g.Go(func() error {
				fn(ctx, i)
				return nil
			})
		}
		_ = g.Wait()
	}
	return nil
}
