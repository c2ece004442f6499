// Package worker provides dispatch backends for the scheduler.
//
// The backend is an explicit tagged variant chosen once at scheduler
// construction: an agent pool backed by the Anthropic API, or a simulated
// pool for dry runs and tests. It is never re-detected mid-run.
package worker

import (
	"context"
	"fmt"

	"github.com/kestrelworks/steward/pkg/models"
)

// Kind tags the backend variant.
type Kind string

const (
	// KindAgentPool executes tasks via Anthropic API agents.
	KindAgentPool Kind = "agent"
	// KindSimulatedPool executes tasks via scripted outcomes.
	KindSimulatedPool Kind = "simulated"
)

// Valid returns true if the kind is a known value.
func (k Kind) Valid() bool {
	return k == KindAgentPool || k == KindSimulatedPool
}

// Backend dispatches tasks to execution workers. The scheduler treats it as
// opaque and asynchronous: Dispatch returns immediately and the result
// arrives on the returned channel exactly once. Implementations must honor
// context cancellation cooperatively; the scheduler discards late results
// after an abort.
type Backend interface {
	// Kind identifies the backend variant.
	Kind() Kind
	// Dispatch starts executing the task on the worker slot identified by
	// workerID and returns a channel carrying the eventual result.
	Dispatch(ctx context.Context, task *models.Task, workerID string) <-chan *models.WorkerResult
}

// New constructs a backend for the given kind.
func New(kind Kind, cfg AgentConfig) (Backend, error) {
	switch kind {
	case KindSimulatedPool:
		return NewSimulatedPool(), nil
	case KindAgentPool:
		return NewAgentPool(cfg)
	default:
		return nil, fmt.Errorf("unknown worker backend %q", kind)
	}
}
