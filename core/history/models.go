// Package history is the read side of workflow execution: a repository of
// execution records produced by an external executor, a per-workflow column
// schema, and a query engine that filters, sorts, and paginates the log.
// Nothing in this package advances a run; records are only observed.
package history

import "time"

// RunStatus captures the lifecycle of an execution record. Running is the
// initial state; review_needed pauses a run until it resolves to success
// or cancelled, which are terminal.
type RunStatus string

const (
	StatusRunning      RunStatus = "running"
	StatusReviewNeeded RunStatus = "review_needed"
	StatusCancelled    RunStatus = "cancelled"
	StatusSuccess      RunStatus = "success"
)

// StatusAny is the filter value that matches every status.
const StatusAny = "any"

// Source identifies what triggered a run.
type Source string

const (
	SourceWeb   Source = "web"
	SourceAgent Source = "agent"
	SourceAPI   Source = "api"
)

// ExecutionRecord is one historical run of a workflow against a specific
// version. Inputs keys are a subset of the workflow's declared input
// fields; their order carries no meaning.
type ExecutionRecord struct {
	ID         string         `json:"id"`
	WorkflowID string         `json:"workflow_id"`
	VersionID  int            `json:"version_id"`
	Status     RunStatus      `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
	RuntimeSec *float64       `json:"runtime_sec,omitempty"`
	TaskCount  int            `json:"task_count"`
	Source     Source         `json:"source"`
	Inputs     map[string]any `json:"inputs,omitempty"`
}

// ValidStatus reports whether s names a known run status.
func ValidStatus(s RunStatus) bool {
	switch s {
	case StatusRunning, StatusReviewNeeded, StatusCancelled, StatusSuccess:
		return true
	}
	return false
}
