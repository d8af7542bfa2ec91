package model

import "time"

// RunStatus is a state of the aggregation state machine.
type RunStatus string

const (
	RunStatusInit              RunStatus = "init"
	RunStatusExtracting        RunStatus = "extracting"
	RunStatusMerging           RunStatus = "merging"
	RunStatusEnriching         RunStatus = "enriching"
	RunStatusFallbackResolving RunStatus = "fallback_resolving"
	RunStatusDone              RunStatus = "done"
	RunStatusFailed            RunStatus = "failed"
)

// Terminal reports whether no further transition is possible.
func (s RunStatus) Terminal() bool {
	return s == RunStatusDone || s == RunStatusFailed
}

// PhaseStatus represents the outcome of a pipeline phase.
type PhaseStatus string

const (
	PhaseStatusComplete PhaseStatus = "complete"
	PhaseStatusFailed   PhaseStatus = "failed"
	PhaseStatusSkipped  PhaseStatus = "skipped"
)

// PhaseResult holds the outcome of a pipeline phase.
type PhaseResult struct {
	Name       string         `json:"name"`
	Status     PhaseStatus    `json:"status"`
	DurationMS int64          `json:"duration_ms"`
	Error      string         `json:"error,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// SourceResult summarizes one adapter's contribution.
type SourceResult struct {
	Source Source `json:"source"`
	Count  int    `json:"count"`
	Error  string `json:"error,omitempty"`
}

// RunResult is the final output of one pipeline run.
type RunResult struct {
	RunID     string           `json:"run_id"`
	Query     Query            `json:"query"`
	Status    RunStatus        `json:"status"`
	Count     int              `json:"count"`
	Results   []BusinessRecord `json:"results"`
	Sources   []SourceResult   `json:"sources"`
	Phases    []PhaseResult    `json:"phases"`
	StartedAt time.Time        `json:"started_at"`
	Duration  int64            `json:"duration_ms"`
}
