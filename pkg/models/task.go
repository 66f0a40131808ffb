package models

import "time"

// TodoStatus represents the current state of a planned TODO.
type TodoStatus string

const (
	// TodoStatusPending indicates the TODO has not started.
	TodoStatusPending TodoStatus = "pending"
	// TodoStatusInProgress indicates the TODO is being worked on.
	TodoStatusInProgress TodoStatus = "in_progress"
	// TodoStatusCompleted indicates the TODO finished successfully.
	TodoStatusCompleted TodoStatus = "completed"
	// TodoStatusFailed indicates the TODO exhausted its retries.
	TodoStatusFailed TodoStatus = "failed"
	// TodoStatusSkipped indicates a dependency failed so the TODO never ran.
	TodoStatusSkipped TodoStatus = "skipped"
)

// Valid returns true if the status is a known value.
func (s TodoStatus) Valid() bool {
	switch s {
	case TodoStatusPending, TodoStatusInProgress, TodoStatusCompleted, TodoStatusFailed, TodoStatusSkipped:
		return true
	default:
		return false
	}
}

// Terminal returns true for states that are never revisited within a run.
func (s TodoStatus) Terminal() bool {
	return s == TodoStatusCompleted || s == TodoStatusFailed || s == TodoStatusSkipped
}

// TodoItem is one unit of decomposed work produced by the planner and owned
// by the execution controller for the lifetime of a run.
type TodoItem struct {
	// ID is the unique identifier for this TODO within its plan.
	ID string `json:"id"`
	// Title is the short description of the work.
	Title string `json:"title"`
	// Description provides detailed instructions for the work.
	Description string `json:"description,omitempty"`
	// Status is the current lifecycle state.
	Status TodoStatus `json:"status"`
	// Dependencies lists sibling TODO IDs that must complete first.
	Dependencies []string `json:"dependencies,omitempty"`
	// NeedsDocs marks a TODO that should run a documentation lookup
	// before its main action step.
	NeedsDocs bool `json:"needs_docs,omitempty"`
	// Result holds the final output when the TODO completed.
	Result string `json:"result,omitempty"`
	// Error holds the last verification feedback when the TODO failed.
	Error string `json:"error,omitempty"`
	// StartedAt is when the TODO entered in_progress.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// CompletedAt is when the TODO reached a terminal state.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Plan is the planner's decomposition of one user request.
type Plan struct {
	// Todos is the flat TODO list in the order the planner produced it.
	Todos []*TodoItem `json:"todos"`
	// EstimatedTime is the planner's free-form duration estimate.
	EstimatedTime string `json:"estimatedTime,omitempty"`
	// Complexity is the planner's difficulty classification.
	Complexity string `json:"complexity,omitempty"`
}

// Complexity values returned by the planner.
const (
	ComplexitySimple   = "simple"
	ComplexityModerate = "moderate"
	ComplexityComplex  = "complex"
)
