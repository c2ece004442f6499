package orchestrator

import (
	"time"

	"github.com/kestrelworks/steward/internal/align"
	"github.com/kestrelworks/steward/internal/decision"
	"github.com/kestrelworks/steward/internal/report"
	"github.com/kestrelworks/steward/internal/worker"
)

// Option configures an Orchestrator. Use With* functions to create Options.
type Option func(*orchestratorOptions)

// orchestratorOptions holds all optional configuration.
type orchestratorOptions struct {
	workers         int
	cap             int
	backend         worker.Backend
	checker         *align.Checker
	reporter        *report.Reporter
	decider         decision.Collaborator
	decisionTimeout time.Duration
	logger          *DebugLogger
	eventBuffer     int
}

// WithWorkers sets the number of concurrent workers.
// The value is clamped to [1, cap] at construction.
func WithWorkers(n int) Option {
	return func(o *orchestratorOptions) { o.workers = n }
}

// WithCap sets the hard ceiling on concurrent workers.
func WithCap(n int) Option {
	return func(o *orchestratorOptions) { o.cap = n }
}

// WithBackend sets the worker backend that executes tasks.
func WithBackend(b worker.Backend) Option {
	return func(o *orchestratorOptions) { o.backend = b }
}

// WithChecker sets the alignment checker invoked per completion.
func WithChecker(c *align.Checker) Option {
	return func(o *orchestratorOptions) { o.checker = c }
}

// WithReporter sets the alert and milestone reporter.
func WithReporter(r *report.Reporter) Option {
	return func(o *orchestratorOptions) { o.reporter = r }
}

// WithDecider sets the decision collaborator consulted on failures.
func WithDecider(d decision.Collaborator) Option {
	return func(o *orchestratorOptions) { o.decider = d }
}

// WithDecisionTimeout bounds how long a single decision may take.
// Zero means no timeout.
func WithDecisionTimeout(d time.Duration) Option {
	return func(o *orchestratorOptions) { o.decisionTimeout = d }
}

// WithLogger sets the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(o *orchestratorOptions) { o.logger = l }
}

// WithEventBuffer sets the event channel buffer size.
func WithEventBuffer(n int) Option {
	return func(o *orchestratorOptions) { o.eventBuffer = n }
}
