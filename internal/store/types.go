package store

import "time"

// InputRecord is one unit of work. Records are immutable after ingest.
type InputRecord struct {
	SourceName     string  `db:"source_name" json:"source_name"`
	RecordID       string  `db:"record_id" json:"record_id"`
	Text           string  `db:"text" json:"text"`
	GroundTruth    *string `db:"ground_truth" json:"ground_truth,omitempty"`
	SourceChecksum string  `db:"source_checksum" json:"source_checksum"`
}

// Source is the durable record of a source's first ingest.
type Source struct {
	SourceName  string    `db:"source_name" json:"source_name"`
	Checksum    string    `db:"checksum" json:"checksum"`
	Path        string    `db:"path" json:"path"`
	RecordCount int       `db:"record_count" json:"record_count"`
	IngestedAt  time.Time `db:"ingested_at" json:"ingested_at"`
}

// Status is a run lifecycle state.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether a run in this status can never be resumed.
func (s Status) Terminal() bool {
	return s == StatusCompleted
}

// Mode selects which records RemainingWork yields.
type Mode string

const (
	// ModeMissing yields records with no result row for the run.
	ModeMissing Mode = "missing"
	// ModeRetryErrors yields records whose result row has error_occurred set.
	ModeRetryErrors Mode = "retry_errors"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeMissing || m == ModeRetryErrors
}

// Run is one execution attempt over a source, spanning any number of resumes.
type Run struct {
	RunID                 string     `db:"run_id" json:"run_id"`
	Name                  string     `db:"name" json:"name"`
	SourceName            string     `db:"source_name" json:"source_name"`
	Status                Status     `db:"status" json:"status"`
	ConfigJSON            string     `db:"config_json" json:"config"`
	TotalItems            int        `db:"total_items" json:"total_items"`
	CompletedItems        int        `db:"completed_items" json:"completed_items"`
	LastProgressAt        *time.Time `db:"last_progress_at" json:"last_progress_at,omitempty"`
	EstimatedCompletionAt *time.Time `db:"estimated_completion_at" json:"estimated_completion_at,omitempty"`
	MetricsJSON           *string    `db:"metrics_json" json:"metrics,omitempty"`
	FailureReason         *string    `db:"failure_reason" json:"failure_reason,omitempty"`
	StartedAt             time.Time  `db:"started_at" json:"started_at"`
	EndedAt               *time.Time `db:"ended_at" json:"ended_at,omitempty"`
}

// Result is the outcome of classifying one record under one run.
// VerdictJSON is nil for error rows.
type Result struct {
	RunID             string    `db:"run_id" json:"run_id"`
	RecordID          string    `db:"record_id" json:"record_id"`
	Label             string    `db:"label" json:"label"`
	VerdictJSON       *string   `db:"verdict_json" json:"verdict,omitempty"`
	UsageJSON         *string   `db:"usage_json" json:"usage,omitempty"`
	AttemptCount      int       `db:"attempt_count" json:"attempt_count"`
	ErrorOccurred     bool      `db:"error_occurred" json:"error_occurred"`
	FirstErrorMessage *string   `db:"first_error_message" json:"first_error_message,omitempty"`
	LastErrorMessage  *string   `db:"last_error_message" json:"last_error_message,omitempty"`
	ErrorCategory     *string   `db:"error_category" json:"error_category,omitempty"`
	ProcessedAt       time.Time `db:"processed_at" json:"processed_at"`
}

// Outcome pairs a result with its record's ground truth for aggregation.
type Outcome struct {
	RecordID      string  `db:"record_id"`
	GroundTruth   *string `db:"ground_truth"`
	Label         string  `db:"label"`
	VerdictJSON   *string `db:"verdict_json"`
	UsageJSON     *string `db:"usage_json"`
	ErrorOccurred bool    `db:"error_occurred"`
	AttemptCount  int     `db:"attempt_count"`
}

// ResultStats summarizes the result rows of a run.
type ResultStats struct {
	Total   int `db:"total"`
	Errored int `db:"errored"`
}
