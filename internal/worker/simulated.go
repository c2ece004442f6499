package worker

import (
	"context"
	"sync"
	"time"

	"github.com/kestrelworks/steward/pkg/models"
)

// Outcome scripts the result a SimulatedPool returns for one task.
type Outcome struct {
	// Fail makes the task's execution fail.
	Fail bool
	// Err is the failure message when Fail is set.
	Err string
	// Output is the simulated artifact.
	Output string
	// TestOutput is the simulated test-run output.
	TestOutput string
	// Delay postpones the result, for exercising concurrency.
	Delay time.Duration
}

// SimulatedPool is a Backend with scripted per-task outcomes.
// Unscripted tasks succeed immediately. Used by dry runs and tests.
type SimulatedPool struct {
	mu       sync.RWMutex
	outcomes map[string]Outcome
}

// NewSimulatedPool creates an empty SimulatedPool.
func NewSimulatedPool() *SimulatedPool {
	return &SimulatedPool{outcomes: make(map[string]Outcome)}
}

// Script sets the outcome for one task id. Later calls override earlier
// ones, so a scripted failure can be followed by a scripted success to
// exercise the retry path.
func (p *SimulatedPool) Script(taskID string, outcome Outcome) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outcomes[taskID] = outcome
}

// Kind implements Backend.
func (p *SimulatedPool) Kind() Kind { return KindSimulatedPool }

// Dispatch implements Backend.
func (p *SimulatedPool) Dispatch(ctx context.Context, task *models.Task, workerID string) <-chan *models.WorkerResult {
	ch := make(chan *models.WorkerResult, 1)

	p.mu.RLock()
	outcome := p.outcomes[task.ID]
	p.mu.RUnlock()

	go func() {
		started := time.Now()
		if outcome.Delay > 0 {
			select {
			case <-time.After(outcome.Delay):
			case <-ctx.Done():
				ch <- &models.WorkerResult{
					TaskID:     task.ID,
					WorkerID:   workerID,
					Success:    false,
					Err:        ctx.Err().Error(),
					StartedAt:  started,
					FinishedAt: time.Now(),
				}
				return
			}
		}

		res := &models.WorkerResult{
			TaskID:     task.ID,
			WorkerID:   workerID,
			Success:    !outcome.Fail,
			Output:     outcome.Output,
			TestOutput: outcome.TestOutput,
			Err:        outcome.Err,
			StartedAt:  started,
			FinishedAt: time.Now(),
		}
		if outcome.Fail && res.Err == "" {
			res.Err = "simulated failure"
		}
		ch <- res
	}()

	return ch
}
