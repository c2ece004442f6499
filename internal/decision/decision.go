// Package decision models the human-in-the-loop collaborator consulted when
// a task fails. The scheduler calls it synchronously for the failing subtree
// while independent branches keep dispatching.
package decision

import (
	"context"
	"errors"
	"time"

	"github.com/kestrelworks/steward/pkg/models"
)

// Action is the controller's choice for a failed task.
type Action string

const (
	// ActionRetry requeues the failed task.
	ActionRetry Action = "retry"
	// ActionSkip marks the task skipped and unblocks its direct dependents.
	ActionSkip Action = "skip"
	// ActionAbort stops all future dispatch and cancels in-flight work.
	ActionAbort Action = "abort"
	// ActionModify replaces the task spec and requeues it.
	ActionModify Action = "modify"
)

// Valid returns true if the action is a known value.
func (a Action) Valid() bool {
	switch a {
	case ActionRetry, ActionSkip, ActionAbort, ActionModify:
		return true
	default:
		return false
	}
}

// ErrTimeout indicates the collaborator did not answer in time.
// The scheduler's safe default is to leave the affected subtree blocked
// and continue independent branches.
var ErrTimeout = errors.New("decision timed out")

// Request carries the failure context presented to the controller.
type Request struct {
	// TaskID is the failed task.
	TaskID string
	// Title is the failed task's title.
	Title string
	// FailureReason summarizes why the task failed.
	FailureReason string
	// Issues are the alignment findings recorded for the failure, if any.
	Issues []models.Issue
	// BlockedIDs lists the transitive dependents blocked by this failure.
	BlockedIDs []string
	// Attempts is how many times the task has been tried.
	Attempts int
}

// Result is the controller's answer.
type Result struct {
	// Action is the chosen action.
	Action Action
	// NewTask is the replacement spec when Action is modify.
	NewTask *models.Task
	// UnblockIDs optionally names blocked dependents to release beyond the
	// default skip policy (which unblocks direct dependents only).
	UnblockIDs []string
	// Message is an optional note from the controller.
	Message string
	// Timestamp is when the controller responded.
	Timestamp time.Time
}

// Collaborator answers decision requests. Implementations may block until a
// human responds; they must honor context cancellation.
type Collaborator interface {
	Decide(ctx context.Context, req Request) (Result, error)
}

// Func adapts a function to the Collaborator interface.
type Func func(ctx context.Context, req Request) (Result, error)

// Decide implements Collaborator.
func (f Func) Decide(ctx context.Context, req Request) (Result, error) { return f(ctx, req) }

// Fixed returns a Collaborator that always answers with the same action.
// Useful for unattended runs and tests.
func Fixed(action Action) Collaborator {
	return Func(func(ctx context.Context, req Request) (Result, error) {
		return Result{Action: action, Timestamp: time.Now()}, nil
	})
}

// WithTimeout wraps a Collaborator so that a slow answer degrades to
// ErrTimeout instead of suspending the failing subtree forever.
func WithTimeout(inner Collaborator, timeout time.Duration) Collaborator {
	return Func(func(ctx context.Context, req Request) (Result, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		type answer struct {
			res Result
			err error
		}
		ch := make(chan answer, 1)
		go func() {
			res, err := inner.Decide(ctx, req)
			ch <- answer{res, err}
		}()

		select {
		case a := <-ch:
			return a.res, a.err
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return Result{}, ErrTimeout
			}
			return Result{}, ctx.Err()
		}
	})
}
