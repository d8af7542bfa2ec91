// Package pipeline runs one aggregation: extract from every source, merge,
// enrich contacts, then fall back to web search for what is still missing.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/listing-cli/internal/browser"
	"github.com/sells-group/listing-cli/internal/config"
	"github.com/sells-group/listing-cli/internal/enrich"
	"github.com/sells-group/listing-cli/internal/merge"
	"github.com/sells-group/listing-cli/internal/model"
	"github.com/sells-group/listing-cli/internal/source"
)

var (
	// ErrSessionFailure means the browser could not be started. The run is
	// aborted.
	ErrSessionFailure = eris.New("pipeline: rendering session failure")
	// ErrAllSourcesFailed means every selected adapter returned an error.
	// Adapters that merely found nothing do not count.
	ErrAllSourcesFailed = eris.New("pipeline: all sources failed")
)

// Pipeline orchestrates a run. It is safe to call Run concurrently; each run
// launches its own browser session.
type Pipeline struct {
	cfg      config.PipelineConfig
	fallback config.FallbackConfig
	launcher browser.Launcher
	adapters []source.Adapter
	enricher *enrich.Enricher
	resolver *enrich.Resolver
	now      func() time.Time
}

// New creates a Pipeline. adapters are given in merge priority order.
// resolver may be nil to disable fallback resolution.
func New(
	cfg *config.Config,
	launcher browser.Launcher,
	adapters []source.Adapter,
	enricher *enrich.Enricher,
	resolver *enrich.Resolver,
) *Pipeline {
	return &Pipeline{
		cfg:      cfg.Pipeline,
		fallback: cfg.Fallback,
		launcher: launcher,
		adapters: adapters,
		enricher: enricher,
		resolver: resolver,
		now:      time.Now,
	}
}

// run carries the per-run state shared by the phases.
type run struct {
	result *model.RunResult
	log    *zap.Logger

	mu sync.Mutex
}

func (r *run) setStatus(s model.RunStatus) {
	r.result.Status = s
	r.log.Debug("pipeline: state", zap.String("status", string(s)))
}

// trackPhase times fn and appends its outcome to the run result.
func (r *run) trackPhase(name string, fn func() (map[string]any, error)) error {
	start := time.Now()
	meta, err := fn()
	duration := time.Since(start).Milliseconds()

	pr := model.PhaseResult{
		Name:       name,
		Status:     model.PhaseStatusComplete,
		DurationMS: duration,
		Metadata:   meta,
	}
	if err != nil {
		pr.Status = model.PhaseStatusFailed
		pr.Error = err.Error()
		r.log.Error("pipeline: phase failed",
			zap.String("phase", name),
			zap.Int64("duration_ms", duration),
			zap.Error(err),
		)
	} else {
		r.log.Info("pipeline: phase complete",
			zap.String("phase", name),
			zap.Int64("duration_ms", duration),
			zap.Any("metadata", meta),
		)
	}

	r.mu.Lock()
	r.result.Phases = append(r.result.Phases, pr)
	r.mu.Unlock()
	return err
}

func (r *run) skipPhase(name, reason string) {
	r.result.Phases = append(r.result.Phases, model.PhaseResult{
		Name:     name,
		Status:   model.PhaseStatusSkipped,
		Metadata: map[string]any{"reason": reason},
	})
	r.log.Info("pipeline: phase skipped", zap.String("phase", name), zap.String("reason", reason))
}

// Run executes one aggregation for q. The returned result is never nil. The
// error is non-nil only when the session could not be started, every adapter
// failed, or ctx was canceled.
func (p *Pipeline) Run(ctx context.Context, q model.Query) (*model.RunResult, error) {
	if q.MaxResults <= 0 {
		q.MaxResults = p.cfg.MaxResults
	}
	if q.Country == "" {
		q.Country = p.cfg.Country
	}

	started := p.now()
	r := &run{
		result: &model.RunResult{
			RunID:     uuid.NewString(),
			Query:     q,
			Status:    model.RunStatusInit,
			Results:   []model.BusinessRecord{},
			StartedAt: started.UTC(),
		},
	}
	r.log = zap.L().With(
		zap.String("component", "pipeline"),
		zap.String("run_id", r.result.RunID),
		zap.String("query", q.Text),
		zap.String("city", q.City),
	)
	defer func() {
		r.result.Duration = p.now().Sub(started).Milliseconds()
	}()

	r.log.Info("pipeline: starting run", zap.Int("sources", len(p.adapters)))

	session, err := p.launcher.Launch(ctx)
	if err != nil {
		r.setStatus(model.RunStatusFailed)
		r.log.Error("pipeline: browser launch failed", zap.Error(err))
		return r.result, eris.Wrapf(ErrSessionFailure, "pipeline: launch: %v", err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			r.log.Warn("pipeline: session close failed", zap.Error(cerr))
		}
	}()

	// Extracting
	r.setStatus(model.RunStatusExtracting)
	var combined []model.BusinessRecord
	extractErr := r.trackPhase("extract", func() (map[string]any, error) {
		recs, sources, err := p.extract(ctx, session, q, r.log)
		r.result.Sources = sources
		combined = recs
		return map[string]any{"candidates": len(recs), "sources": len(sources)}, err
	})
	if extractErr != nil {
		if ctx.Err() != nil {
			return r.result, eris.Wrap(ctx.Err(), "pipeline: run canceled")
		}
		r.setStatus(model.RunStatusFailed)
		return r.result, extractErr
	}

	// Merging
	r.setStatus(model.RunStatusMerging)
	var records []model.BusinessRecord
	_ = r.trackPhase("merge", func() (map[string]any, error) {
		var stats merge.Stats
		records, stats = merge.MergeWithStats(combined)
		return map[string]any{
			"input":         stats.Input,
			"output":        stats.Output,
			"collisions":    stats.Collisions,
			"fields_filled": stats.FieldsFilled,
		}, nil
	})

	// Enriching
	r.setStatus(model.RunStatusEnriching)
	if err := r.trackPhase("enrich", func() (map[string]any, error) {
		return p.enrich(ctx, session, records)
	}); err != nil {
		return r.finish(records), eris.Wrap(err, "pipeline: run canceled")
	}

	// FallbackResolving
	r.setStatus(model.RunStatusFallbackResolving)
	switch {
	case p.resolver == nil || !p.fallback.Enabled:
		r.skipPhase("fallback", "disabled")
	default:
		if err := r.trackPhase("fallback", func() (map[string]any, error) {
			return p.resolveFallbacks(ctx, session, records)
		}); err != nil {
			return r.finish(records), eris.Wrap(err, "pipeline: run canceled")
		}
	}

	r.setStatus(model.RunStatusDone)
	res := r.finish(records)
	r.log.Info("pipeline: run complete", zap.Int("count", res.Count))
	return res, nil
}

// finish stores the final record set on the result.
func (r *run) finish(records []model.BusinessRecord) *model.RunResult {
	if records == nil {
		records = []model.BusinessRecord{}
	}
	r.result.Results = records
	r.result.Count = len(records)
	return r.result
}
