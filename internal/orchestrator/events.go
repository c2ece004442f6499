// Package orchestrator coordinates one scheduler run: it dispatches ready
// tasks to a bounded worker pool, propagates failures to dependents, and
// drives the decision and alignment collaborators.
package orchestrator

import (
	"time"

	"github.com/kestrelworks/steward/pkg/models"
)

// EventType represents the type of scheduler event.
type EventType string

const (
	// EventTaskQueued indicates a task became ready and entered the queue.
	EventTaskQueued EventType = "task_queued"
	// EventTaskStarted indicates a task was handed to a worker.
	EventTaskStarted EventType = "task_started"
	// EventTaskCompleted indicates a task completed successfully.
	EventTaskCompleted EventType = "task_completed"
	// EventTaskFailed indicates a task's execution failed.
	EventTaskFailed EventType = "task_failed"
	// EventTaskBlocked indicates a task was blocked by an ancestor failure.
	EventTaskBlocked EventType = "task_blocked"
	// EventTaskSkipped indicates a failed task was skipped by decision.
	EventTaskSkipped EventType = "task_skipped"
	// EventTaskUnblocked indicates a blocked task was released by decision.
	EventTaskUnblocked EventType = "task_unblocked"
	// EventDecisionRequested indicates the decision collaborator was asked
	// about a failure.
	EventDecisionRequested EventType = "decision_requested"
	// EventDecisionReceived indicates the decision collaborator answered.
	EventDecisionReceived EventType = "decision_received"
	// EventAlertRaised indicates an alignment alert was recorded.
	EventAlertRaised EventType = "alert_raised"
	// EventRunDone indicates the entire run is complete.
	EventRunDone EventType = "run_done"
)

// Event represents an event emitted by the scheduler.
// These events feed the watch TUI and progress output.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// TaskID is the ID of the related task, if applicable.
	TaskID string
	// TaskTitle is the title of the related task, if applicable.
	TaskTitle string
	// WorkerID is the ID of the worker slot handling the task, if applicable.
	WorkerID string
	// Message provides additional context about the event.
	Message string
	// Severity is set for alert events.
	Severity models.Severity
	// Error contains error details for failure events.
	Error error
	// Timestamp is when the event occurred.
	Timestamp time.Time
}
