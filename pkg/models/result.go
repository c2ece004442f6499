package models

import "time"

// Severity classifies how serious an alignment issue is.
type Severity string

const (
	// SeverityInfo is advisory only.
	SeverityInfo Severity = "info"
	// SeverityWarning indicates drift that should be reviewed.
	SeverityWarning Severity = "warning"
	// SeverityCritical indicates a goal violation that fails its category.
	SeverityCritical Severity = "critical"
)

// Valid returns true if the severity is a known value.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return true
	default:
		return false
	}
}

// Issue describes a single alignment finding.
type Issue struct {
	// Category is the goal metric the issue belongs to.
	Category string `json:"category"`
	// Message is the human-readable description.
	Message string `json:"message"`
	// Severity is one of info, warning, critical.
	Severity Severity `json:"severity"`
	// Location optionally points at the offending file or symbol.
	Location string `json:"location,omitempty"`
}

// CheckStatus is the outcome of one category check.
type CheckStatus string

const (
	// CheckPassed means the category had no critical issue.
	CheckPassed CheckStatus = "passed"
	// CheckFailed means the category reported at least one critical issue.
	CheckFailed CheckStatus = "failed"
	// CheckNotRun means the goal tag was absent or a sentinel value.
	CheckNotRun CheckStatus = "not_run"
	// CheckErrored means the analysis collaborator itself failed.
	// Errored categories are excluded from the alignment-rate denominator.
	CheckErrored CheckStatus = "error"
)

// CheckResult is the result of a single category check.
type CheckResult struct {
	// Category is the goal metric that was checked.
	Category string `json:"category"`
	// Status is the check outcome.
	Status CheckStatus `json:"status"`
	// Passed indicates the category had no critical issue.
	Passed bool `json:"passed"`
	// Critical indicates the category reported a critical issue.
	Critical bool `json:"critical"`
	// Issues lists the findings for this category.
	Issues []Issue `json:"issues,omitempty"`
	// Err holds the collaborator error message when Status is error.
	Err string `json:"error,omitempty"`
}

// AlignmentResult aggregates category checks for one completed task.
// It is produced once per completion and never mutated afterwards.
type AlignmentResult struct {
	// TaskID is the task this result belongs to.
	TaskID string `json:"task_id"`
	// Passed is true when no invoked category reported a critical issue.
	Passed bool `json:"passed"`
	// Critical is the OR over all invoked categories.
	Critical bool `json:"critical"`
	// Checked is false when every category errored or was skipped, in which
	// case the task counts as not-checked rather than misaligned.
	Checked bool `json:"checked"`
	// Issues is the flattened list of findings across categories.
	Issues []Issue `json:"issues,omitempty"`
	// Details maps category name to its individual result.
	Details map[string]CheckResult `json:"details,omitempty"`
}

// WorkerResult is what a dispatch collaborator eventually returns for a task.
type WorkerResult struct {
	// TaskID is the task the worker executed.
	TaskID string `json:"task_id"`
	// WorkerID identifies the worker slot that produced the result.
	WorkerID string `json:"worker_id"`
	// Success indicates the underlying execution itself succeeded.
	// Misalignment is reported separately and does not clear this flag.
	Success bool `json:"success"`
	// Output is the produced artifact (code, diff, report), opaque here.
	Output string `json:"output,omitempty"`
	// TestOutput is the raw test-run output, if any.
	TestOutput string `json:"test_output,omitempty"`
	// Err is the execution error message when Success is false.
	Err string `json:"error,omitempty"`
	// StartedAt is when execution began.
	StartedAt time.Time `json:"started_at"`
	// FinishedAt is when the result was produced.
	FinishedAt time.Time `json:"finished_at"`
	// Alignment is filled in by the scheduler after the alignment check.
	Alignment *AlignmentResult `json:"alignment,omitempty"`
}

// Duration returns the wall-clock execution time.
func (r *WorkerResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
