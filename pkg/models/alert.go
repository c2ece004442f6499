package models

import "time"

// Alert is a single alignment notification. Alerts are appended to an
// immutable history owned by the reporter and are never edited.
type Alert struct {
	// ID is unique per alert: a time-based prefix plus a random suffix.
	ID string `json:"id"`
	// TaskID is the task that triggered the alert.
	TaskID string `json:"task_id"`
	// Severity is the highest severity among the carried issues.
	Severity Severity `json:"severity"`
	// Issues are the findings that triggered the alert.
	Issues []Issue `json:"issues"`
	// Timestamp is when the alert was created.
	Timestamp time.Time `json:"timestamp"`
}

// Critical returns true if the alert must be delivered through the
// immediate path before the scheduler proceeds.
func (a *Alert) Critical() bool {
	return a.Severity == SeverityCritical
}
