package store

import "github.com/JaimeStill/verdict/pkg/query"

var runProjection = query.
	NewProjectionMap("", "runs", "r").
	Project("run_id", "RunID").
	Project("name", "Name").
	Project("source_name", "SourceName").
	Project("status", "Status").
	Project("config_json", "Config").
	Project("total_items", "TotalItems").
	Project("completed_items", "CompletedItems").
	Project("last_progress_at", "LastProgressAt").
	Project("estimated_completion_at", "EstimatedCompletionAt").
	Project("metrics_json", "Metrics").
	Project("failure_reason", "FailureReason").
	Project("started_at", "StartedAt").
	Project("ended_at", "EndedAt")

var defaultRunSort = query.SortField{
	Field:      "StartedAt",
	Descending: true,
}

// RunFilters contains optional filtering criteria for ListRuns.
// Nil fields are ignored. All fields use exact matching.
type RunFilters struct {
	Status     *Status
	SourceName *string
}

// Apply adds filter conditions to a query builder.
func (f RunFilters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("Status", f.Status).
		WhereEquals("SourceName", f.SourceName)
}
