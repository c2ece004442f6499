package models

import "time"

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task is waiting on dependencies.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusReady indicates all dependencies completed and the task is queued.
	TaskStatusReady TaskStatus = "ready"
	// TaskStatusRunning indicates a worker is executing the task.
	TaskStatusRunning TaskStatus = "running"
	// TaskStatusCompleted indicates the task finished successfully.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates the task's execution failed.
	TaskStatusFailed TaskStatus = "failed"
	// TaskStatusSkipped indicates the task was skipped by decision after a failure.
	TaskStatusSkipped TaskStatus = "skipped"
	// TaskStatusBlocked indicates an ancestor failed or was skipped, so the task cannot run.
	TaskStatusBlocked TaskStatus = "blocked"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusReady, TaskStatusRunning,
		TaskStatusCompleted, TaskStatusFailed, TaskStatusSkipped, TaskStatusBlocked:
		return true
	default:
		return false
	}
}

// Terminal returns true if no further transitions may leave this status,
// except the explicit decision unblock (Blocked -> Pending).
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusSkipped, TaskStatusBlocked:
		return true
	default:
		return false
	}
}

// CanTransition reports whether moving from one status to another is legal.
// Transitions are monotonic: each task reaches at most one terminal state.
// Blocked is reachable only from Pending or Ready (never from Running or
// Completed). The single non-monotonic edge is Blocked -> Pending, which
// requires an explicit decision unblock. Failed -> Ready is the decision
// retry path, Failed -> Skipped the decision skip path.
func CanTransition(from, to TaskStatus) bool {
	switch from {
	case TaskStatusPending:
		return to == TaskStatusReady || to == TaskStatusBlocked
	case TaskStatusReady:
		return to == TaskStatusRunning || to == TaskStatusBlocked
	case TaskStatusRunning:
		return to == TaskStatusCompleted || to == TaskStatusFailed
	case TaskStatusFailed:
		return to == TaskStatusReady || to == TaskStatusSkipped
	case TaskStatusBlocked:
		return to == TaskStatusPending
	default:
		return false
	}
}

// Goal tag metric names understood by the alignment checker.
const (
	GoalArchitecture = "architecture"
	GoalStyle        = "style"
	GoalTesting      = "testing"
	GoalPerformance  = "performance"
	GoalSecurity     = "security"
)

// SentinelGoalValue returns true for goal tag values that disable checking
// of that metric ("none" and "standard").
func SentinelGoalValue(v string) bool {
	return v == "" || v == "none" || v == "standard"
}

// Task represents a unit of work in the system.
// Tasks are immutable once scheduling begins; only the scheduler mutates
// Status, BlockedReason, Error and RetryCount during a run.
type Task struct {
	// ID is the unique identifier for this task.
	ID string `json:"id" yaml:"id"`
	// Title is the short description of the task.
	Title string `json:"title" yaml:"title"`
	// Dependencies lists task IDs that must complete before this task.
	Dependencies []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	// GoalTags maps a quality metric (architecture, style, testing,
	// performance, security) to its declared target value.
	GoalTags map[string]string `json:"goal_tags,omitempty" yaml:"goal_tags,omitempty"`
	// Status is the current state of the task.
	Status TaskStatus `json:"status" yaml:"-"`
	// BlockedReason explains why the task is blocked, if it is.
	BlockedReason string `json:"blocked_reason,omitempty" yaml:"-"`
	// Error contains the error message if the task failed.
	Error string `json:"error,omitempty" yaml:"-"`
	// RetryCount is the number of times this task has been requeued after failure.
	RetryCount int `json:"retry_count,omitempty" yaml:"-"`
	// CreatedAt is when the task was registered with the scheduler.
	CreatedAt time.Time `json:"created_at" yaml:"-"`
	// CompletedAt is when the task reached a terminal state, if applicable.
	CompletedAt *time.Time `json:"completed_at,omitempty" yaml:"-"`
}

// Independent returns true if the task has no declared dependencies.
func (t *Task) Independent() bool {
	return len(t.Dependencies) == 0
}

// Clone returns a copy of the task with its own dependency slice and goal
// tag map, so callers cannot alias scheduler-owned state.
func (t *Task) Clone() *Task {
	c := *t
	if t.Dependencies != nil {
		c.Dependencies = append([]string(nil), t.Dependencies...)
	}
	if t.GoalTags != nil {
		c.GoalTags = make(map[string]string, len(t.GoalTags))
		for k, v := range t.GoalTags {
			c.GoalTags[k] = v
		}
	}
	return &c
}
