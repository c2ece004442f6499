package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kestrelworks/steward/internal/align"
	"github.com/kestrelworks/steward/internal/classify"
	"github.com/kestrelworks/steward/internal/decision"
	"github.com/kestrelworks/steward/internal/graph"
	"github.com/kestrelworks/steward/internal/report"
	"github.com/kestrelworks/steward/internal/worker"
	"github.com/kestrelworks/steward/pkg/models"
)

// Orchestrator drives one scheduler run over a validated dependency graph.
// The control loop in Run is the only writer of task state; worker
// completions and decision answers arrive as messages, never as concurrent
// writers. One Orchestrator instance serves exactly one run.
type Orchestrator struct {
	graph   *graph.DependencyGraph
	class   classify.Classification
	tasks   []*models.Task
	workers int
	runID   string

	backend  worker.Backend
	checker  *align.Checker
	reporter *report.Reporter
	decider  decision.Collaborator
	logger   *DebugLogger
	emitter  *EventEmitter

	// Run-loop state. Mutated only by the control loop; mu guards the
	// parts read by pull-style queries (Milestone).
	mu             sync.RWMutex
	queue          *readyQueue
	slots          *slotPool
	running        map[string]int
	waived         map[string]map[string]bool
	blockedBy      map[string][]string
	pendingDecide  map[string]bool
	results        map[string]*models.WorkerResult
	completedOrder []string
	aborted        bool

	cancelWorkers context.CancelFunc

	completionCh chan completionMsg
	decisionCh   chan decisionMsg
}

// completionMsg is a worker slot reporting its result to the control loop.
type completionMsg struct {
	slot   int
	taskID string
	result *models.WorkerResult
}

// decisionMsg is the decision collaborator's answer for one failure.
type decisionMsg struct {
	taskID string
	result decision.Result
	err    error
}

// New validates the task list, builds the dependency graph, and constructs
// an Orchestrator ready to Run. Graph validation failures (cycles, unknown
// dependencies) are fatal and returned before any dispatch can begin.
func New(tasks []*models.Task, opts ...Option) (*Orchestrator, error) {
	options := &orchestratorOptions{
		cap:         classify.DefaultCap,
		eventBuffer: 64,
	}
	for _, opt := range opts {
		opt(options)
	}

	owned := make([]*models.Task, len(tasks))
	now := time.Now()
	for i, t := range tasks {
		c := t.Clone()
		c.Status = models.TaskStatusPending
		c.CreatedAt = now
		owned[i] = c
	}

	g, err := graph.Build(owned)
	if err != nil {
		return nil, err
	}

	class := classify.Classify(owned, options.cap)

	workers := options.workers
	if workers <= 0 {
		workers = class.SuggestWorkerCount().Count
	}
	workers = classify.ClampWorkers(workers, options.cap)

	backend := options.backend
	if backend == nil {
		backend = worker.NewSimulatedPool()
	}
	checker := options.checker
	if checker == nil {
		checker = align.New(align.Collaborators{})
	}
	reporter := options.reporter
	if reporter == nil {
		reporter = report.NewReporter(report.SinkFunc(func(models.Alert) error { return nil }))
	}
	logger := options.logger
	if logger == nil {
		logger = NopLogger()
	}

	decider := options.decider
	if decider != nil && options.decisionTimeout > 0 {
		decider = decision.WithTimeout(decider, options.decisionTimeout)
	}

	o := &Orchestrator{
		graph:         g,
		class:         class,
		tasks:         owned,
		workers:       workers,
		runID:         uuid.New().String(),
		backend:       backend,
		checker:       checker,
		reporter:      reporter,
		decider:       decider,
		logger:        logger,
		emitter:       NewEventEmitter(options.eventBuffer),
		running:       make(map[string]int),
		waived:        make(map[string]map[string]bool),
		blockedBy:     make(map[string][]string),
		pendingDecide: make(map[string]bool),
		results:       make(map[string]*models.WorkerResult),
		completionCh:  make(chan completionMsg, workers),
		decisionCh:    make(chan decisionMsg, len(owned)+1),
	}
	o.queue = newReadyQueue(g.Position)
	o.slots = newSlotPool(workers)
	return o, nil
}

// RunID returns the unique identifier for this run.
func (o *Orchestrator) RunID() string { return o.runID }

// Workers returns the effective worker count for this run.
func (o *Orchestrator) Workers() int { return o.workers }

// Classification returns the independent/dependent partition for this run.
func (o *Orchestrator) Classification() classify.Classification { return o.class }

// Events returns the event stream for subscribers.
// The channel is closed when Run returns.
func (o *Orchestrator) Events() <-chan Event { return o.emitter.Events() }

// Reporter returns the alert reporter for this run.
func (o *Orchestrator) Reporter() *report.Reporter { return o.reporter }

// Run executes the full scheduling loop and returns the execution report.
// It blocks until the run terminates: the ready queue is empty, no task is
// running, and no decision is outstanding. On context cancellation the run
// stops and the error is returned alongside a partial report.
func (o *Orchestrator) Run(ctx context.Context) (*models.ExecutionReport, error) {
	startedAt := time.Now()
	defer o.emitter.Close()

	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	o.cancelWorkers = cancel

	o.logger.Log("[run %s] starting: %d tasks, %d workers, backend=%s",
		o.runID, len(o.tasks), o.workers, o.backend.Kind())

	// Seed readiness: independent tasks go straight to the queue.
	for _, t := range o.tasks {
		if t.Independent() {
			o.setStatus(t, models.TaskStatusReady)
			o.queue.Push(t.ID)
			o.emit(Event{Type: EventTaskQueued, TaskID: t.ID, TaskTitle: t.Title})
		}
	}

	var runErr error
loop:
	for {
		if !o.aborted {
			o.fillSlots(workerCtx)
		}

		if o.done() {
			break
		}

		select {
		case <-ctx.Done():
			runErr = ctx.Err()
			break loop
		case msg := <-o.completionCh:
			o.handleCompletion(workerCtx, msg)
		case msg := <-o.decisionCh:
			o.handleDecision(msg)
		}
	}

	o.finalSweep()
	rep := o.buildReport(startedAt)
	o.emit(Event{Type: EventRunDone, Message: fmt.Sprintf("run %s finished", o.runID)})
	o.logger.Log("[run %s] done: %d completed, %d blocked, %d skipped, %d failed",
		o.runID, len(rep.Completed), len(rep.Blocked), len(rep.Skipped), len(rep.Failed))
	if n := o.emitter.DroppedCount(); n > 0 {
		o.logger.Log("[run %s] %d event(s) dropped on a slow subscriber", o.runID, n)
	}
	return rep, runErr
}

// done reports whether the run has terminated: nothing queued, nothing
// running, and no decision outstanding. After an abort only in-flight
// workers are awaited.
func (o *Orchestrator) done() bool {
	if len(o.running) > 0 {
		return false
	}
	if o.aborted {
		return true
	}
	return o.queue.Len() == 0 && len(o.pendingDecide) == 0
}

// fillSlots dispatches queue heads to free worker slots, FIFO by canonical
// topological position.
func (o *Orchestrator) fillSlots(ctx context.Context) {
	for o.queue.Len() > 0 {
		slot, ok := o.slots.Acquire()
		if !ok {
			return
		}
		id, _ := o.queue.Pop()
		o.dispatch(ctx, id, slot)
	}
}

// dispatch hands one ready task to the backend on the given slot.
func (o *Orchestrator) dispatch(ctx context.Context, id string, slot int) {
	task := o.graph.Task(id)
	workerID := fmt.Sprintf("worker-%d", slot)

	o.setStatus(task, models.TaskStatusRunning)
	o.running[id] = slot
	o.logger.Log("[dispatch] task %s -> %s", id, workerID)
	o.emit(Event{Type: EventTaskStarted, TaskID: id, TaskTitle: task.Title, WorkerID: workerID})

	resultCh := o.backend.Dispatch(ctx, task, workerID)
	go func() {
		res := <-resultCh
		o.completionCh <- completionMsg{slot: slot, taskID: id, result: res}
	}()
}

// handleCompletion processes one worker result inside the control loop.
// Alignment runs synchronously here, and any critical alert is delivered
// before the task becomes visible as Completed.
func (o *Orchestrator) handleCompletion(ctx context.Context, msg completionMsg) {
	o.slots.Release(msg.slot)
	delete(o.running, msg.taskID)

	if o.aborted {
		// Late result after abort: discard it and fail the task so it
		// still reaches a terminal state.
		o.logger.Log("[completion] discarding late result for task %s (run aborted)", msg.taskID)
		t := o.graph.Task(msg.taskID)
		t.Error = "cancelled by abort"
		o.setStatus(t, models.TaskStatusFailed)
		return
	}

	task := o.graph.Task(msg.taskID)
	res := msg.result

	if !res.Success {
		o.recordResult(msg.taskID, res)
		task.Error = res.Err
		o.setStatus(task, models.TaskStatusFailed)
		o.logger.Log("[completion] task %s FAILED: %s", msg.taskID, res.Err)
		o.emit(Event{Type: EventTaskFailed, TaskID: msg.taskID, TaskTitle: task.Title,
			Message: res.Err})

		blocked := o.propagateBlocking(msg.taskID)
		o.blockedBy[msg.taskID] = blocked
		o.askDecision(ctx, task, blocked)
		return
	}

	// Alignment is part of "did this task succeed", not a side observation.
	alignment := o.checker.Check(ctx, task, res)
	res.Alignment = alignment
	o.recordResult(msg.taskID, res)

	if len(alignment.Issues) > 0 {
		// Critical alerts are delivered synchronously by the reporter, so
		// any subscriber observes the alert before the completion below.
		alert, err := o.reporter.SendAlert(msg.taskID, alignment.Issues)
		if err != nil {
			o.logger.Log("[completion] alert delivery for task %s failed: %v", msg.taskID, err)
		}
		o.emit(Event{Type: EventAlertRaised, TaskID: msg.taskID, TaskTitle: task.Title,
			Severity: alert.Severity,
			Message:  fmt.Sprintf("%d alignment issue(s)", len(alignment.Issues))})
	}

	now := time.Now()
	task.CompletedAt = &now
	o.setStatus(task, models.TaskStatusCompleted)
	o.completedOrder = append(o.completedOrder, msg.taskID)
	o.logger.Log("[completion] task %s completed (aligned=%v)", msg.taskID, alignment.Passed)
	o.emit(Event{Type: EventTaskCompleted, TaskID: msg.taskID, TaskTitle: task.Title})

	o.wakeDependents(msg.taskID)
}

// wakeDependents moves direct dependents of a completed task to Ready when
// all their dependencies are satisfied. Only the dependents of this
// completion are examined; there is no full rescan.
func (o *Orchestrator) wakeDependents(completedID string) {
	for _, depID := range o.graph.Dependents(completedID) {
		t := o.graph.Task(depID)
		if t.Status != models.TaskStatusPending {
			continue
		}
		if !o.depsSatisfied(depID) {
			continue
		}
		o.setStatus(t, models.TaskStatusReady)
		o.queue.Push(depID)
		o.emit(Event{Type: EventTaskQueued, TaskID: depID, TaskTitle: t.Title})
	}
}

// depsSatisfied reports whether every dependency of the task is Completed
// or explicitly waived by a skip decision. A Skipped dependency never
// satisfies readiness on its own.
func (o *Orchestrator) depsSatisfied(id string) bool {
	for _, depID := range o.graph.Dependencies(id) {
		if o.graph.Task(depID).Status == models.TaskStatusCompleted {
			continue
		}
		if o.waived[id][depID] {
			continue
		}
		return false
	}
	return true
}

// propagateBlocking marks every transitive dependent of a failed task as
// Blocked, breadth-first over reverse edges, each task at most once.
// Already-blocked tasks are left untouched so no task is blocked twice.
// Returns the ids actually transitioned by this failure.
func (o *Orchestrator) propagateBlocking(failedID string) []string {
	var blocked []string
	for _, depID := range o.graph.TransitiveDependents(failedID) {
		t := o.graph.Task(depID)
		switch t.Status {
		case models.TaskStatusPending:
			// fall through to block
		case models.TaskStatusReady:
			o.queue.Remove(depID)
		default:
			continue
		}
		t.BlockedReason = "dependency_failed:" + failedID
		o.setStatus(t, models.TaskStatusBlocked)
		blocked = append(blocked, depID)
		o.logger.Log("[blocking] task %s blocked (depends on failed task %s)", depID, failedID)
		o.emit(Event{Type: EventTaskBlocked, TaskID: depID, TaskTitle: t.Title,
			Message: t.BlockedReason})
	}
	return blocked
}

// askDecision consults the decision collaborator about a failure. The call
// runs in its own goroutine so only the failing subtree is suspended;
// independent branches keep dispatching. With no collaborator configured
// the subtree simply stays blocked.
func (o *Orchestrator) askDecision(ctx context.Context, task *models.Task, blockedIDs []string) {
	if o.decider == nil {
		return
	}

	var issues []models.Issue
	if res := o.results[task.ID]; res != nil && res.Alignment != nil {
		issues = res.Alignment.Issues
	}
	req := decision.Request{
		TaskID:        task.ID,
		Title:         task.Title,
		FailureReason: task.Error,
		Issues:        issues,
		BlockedIDs:    append([]string(nil), blockedIDs...),
		Attempts:      task.RetryCount + 1,
	}

	o.pendingDecide[task.ID] = true
	o.emit(Event{Type: EventDecisionRequested, TaskID: task.ID, TaskTitle: task.Title,
		Message: fmt.Sprintf("%d dependent(s) blocked", len(blockedIDs))})

	go func() {
		result, err := o.decider.Decide(ctx, req)
		o.decisionCh <- decisionMsg{taskID: task.ID, result: result, err: err}
	}()
}

// handleDecision applies one decision answer inside the control loop.
func (o *Orchestrator) handleDecision(msg decisionMsg) {
	delete(o.pendingDecide, msg.taskID)
	task := o.graph.Task(msg.taskID)

	if msg.err != nil {
		// Safe default: the affected subtree stays blocked and the run
		// continues on independent branches.
		o.logger.Log("[decision] task %s: collaborator error: %v (subtree stays blocked)", msg.taskID, msg.err)
		o.emit(Event{Type: EventDecisionReceived, TaskID: msg.taskID, Error: msg.err,
			Message: "decision unavailable, subtree stays blocked"})
		return
	}

	o.logger.Log("[decision] task %s: %s", msg.taskID, msg.result.Action)
	o.emit(Event{Type: EventDecisionReceived, TaskID: msg.taskID, TaskTitle: task.Title,
		Message: string(msg.result.Action)})

	switch msg.result.Action {
	case decision.ActionRetry:
		o.applyRetry(task)
	case decision.ActionModify:
		o.applyModify(task, msg.result.NewTask)
	case decision.ActionSkip:
		o.applySkip(task, msg.result.UnblockIDs)
	case decision.ActionAbort:
		o.applyAbort()
	default:
		o.logger.Log("[decision] task %s: unknown action %q ignored", msg.taskID, msg.result.Action)
	}
}

// applyRetry requeues a failed task. The blocking applied by its failure is
// reverted: those dependents return to Pending and will be blocked again if
// the retry fails too.
func (o *Orchestrator) applyRetry(task *models.Task) {
	o.unblockSet(o.blockedBy[task.ID], "")
	delete(o.blockedBy, task.ID)

	task.Error = ""
	task.RetryCount++
	o.setStatus(task, models.TaskStatusReady)
	o.queue.Push(task.ID)
	o.emit(Event{Type: EventTaskQueued, TaskID: task.ID, TaskTitle: task.Title,
		Message: fmt.Sprintf("retry %d", task.RetryCount)})
}

// applyModify replaces the failed task's spec and requeues it. The id and
// dependency set are fixed for the run; only title and goal tags change.
func (o *Orchestrator) applyModify(task *models.Task, newTask *models.Task) {
	if newTask == nil {
		o.logger.Log("[decision] task %s: modify without replacement spec, subtree stays blocked", task.ID)
		return
	}
	// Milestone reads goal tags under mu; the swap must not race with it.
	o.mu.Lock()
	if newTask.Title != "" {
		task.Title = newTask.Title
	}
	if newTask.GoalTags != nil {
		task.GoalTags = newTask.GoalTags
	}
	o.mu.Unlock()
	o.applyRetry(task)
}

// applySkip marks a failed task Skipped and releases its direct dependents,
// waiving the skipped dependency for them. Transitive descendants stay
// blocked unless the decision names them in unblockIDs.
func (o *Orchestrator) applySkip(task *models.Task, unblockIDs []string) {
	now := time.Now()
	task.CompletedAt = &now
	o.setStatus(task, models.TaskStatusSkipped)
	o.emit(Event{Type: EventTaskSkipped, TaskID: task.ID, TaskTitle: task.Title})

	release := make(map[string]bool)
	for _, id := range o.graph.Dependents(task.ID) {
		release[id] = true
	}
	for _, id := range unblockIDs {
		release[id] = true
	}

	var toUnblock []string
	for _, id := range o.blockedBy[task.ID] {
		if release[id] {
			toUnblock = append(toUnblock, id)
		}
	}
	delete(o.blockedBy, task.ID)

	o.unblockSet(toUnblock, task.ID)

	// Released dependents whose remaining dependencies are already met go
	// straight back to the queue.
	for _, id := range toUnblock {
		t := o.graph.Task(id)
		if t.Status == models.TaskStatusPending && o.depsSatisfied(id) {
			o.setStatus(t, models.TaskStatusReady)
			o.queue.Push(id)
			o.emit(Event{Type: EventTaskQueued, TaskID: id, TaskTitle: t.Title})
		}
	}
}

// unblockSet reverts Blocked tasks to Pending. When waiveDep is non-empty
// it is recorded as satisfied for each released task, so a skipped
// dependency stops withholding readiness for exactly those tasks.
func (o *Orchestrator) unblockSet(ids []string, waiveDep string) {
	for _, id := range ids {
		t := o.graph.Task(id)
		if t.Status != models.TaskStatusBlocked {
			continue
		}
		if waiveDep != "" {
			if o.waived[id] == nil {
				o.waived[id] = make(map[string]bool)
			}
			o.waived[id][waiveDep] = true
		}
		t.BlockedReason = ""
		o.setStatus(t, models.TaskStatusPending)
		o.emit(Event{Type: EventTaskUnblocked, TaskID: id, TaskTitle: t.Title})
	}
}

// applyAbort stops all future dispatch. Queued tasks become Blocked and
// in-flight workers receive a cooperative cancellation; their late results
// are discarded.
func (o *Orchestrator) applyAbort() {
	o.aborted = true
	o.logger.Log("[decision] run aborted, %d in-flight worker(s) cancelled", len(o.running))

	for {
		id, ok := o.queue.Pop()
		if !ok {
			break
		}
		t := o.graph.Task(id)
		t.BlockedReason = "aborted"
		o.setStatus(t, models.TaskStatusBlocked)
		o.emit(Event{Type: EventTaskBlocked, TaskID: id, TaskTitle: t.Title, Message: "aborted"})
	}

	if o.cancelWorkers != nil {
		o.cancelWorkers()
	}
}

// finalSweep blocks any task still Pending or Ready once the loop exits.
// Such tasks are unreachable: an ancestor ended Blocked, Skipped, or Failed,
// or the run was aborted or cancelled.
func (o *Orchestrator) finalSweep() {
	reason := "dependency_unresolved"
	if o.aborted {
		reason = "aborted"
	}
	for _, id := range o.graph.Order() {
		t := o.graph.Task(id)
		switch t.Status {
		case models.TaskStatusPending, models.TaskStatusReady:
			t.BlockedReason = reason
			o.setStatus(t, models.TaskStatusBlocked)
			o.emit(Event{Type: EventTaskBlocked, TaskID: id, TaskTitle: t.Title, Message: reason})
		}
	}
}

// recordResult stores a worker result under the query lock.
func (o *Orchestrator) recordResult(id string, res *models.WorkerResult) {
	o.mu.Lock()
	o.results[id] = res
	o.mu.Unlock()
}

// Milestone computes the milestone report over the current result set.
// It is a pure query: calling it twice on an unchanged set yields
// identical output.
func (o *Orchestrator) Milestone() *models.MilestoneReport {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return report.GenerateMilestoneReport(o.tasks, o.results)
}

// buildReport assembles the final execution report in canonical order.
func (o *Orchestrator) buildReport(startedAt time.Time) *models.ExecutionReport {
	o.mu.RLock()
	defer o.mu.RUnlock()

	rep := &models.ExecutionReport{
		RunID:      o.runID,
		StartedAt:  startedAt,
		FinishedAt: time.Now(),
		Aborted:    o.aborted,
		Completed:  append([]string(nil), o.completedOrder...),
		Results:    make(map[string]*models.WorkerResult, len(o.results)),
	}
	for id, res := range o.results {
		rep.Results[id] = res
	}

	aligned, misaligned, checked := 0, 0, 0
	for _, id := range o.graph.Order() {
		t := o.graph.Task(id)
		switch t.Status {
		case models.TaskStatusBlocked:
			rep.Blocked = append(rep.Blocked, id)
		case models.TaskStatusSkipped:
			rep.Skipped = append(rep.Skipped, id)
		case models.TaskStatusFailed:
			rep.Failed = append(rep.Failed, id)
		case models.TaskStatusCompleted:
			res := o.results[id]
			if res == nil || res.Alignment == nil || !res.Alignment.Checked {
				continue
			}
			checked++
			if res.Alignment.Passed {
				aligned++
			} else {
				misaligned++
			}
		}
	}

	total := len(o.tasks)
	summary := models.RunSummary{
		TotalTasks:      total,
		CompletedTasks:  len(rep.Completed),
		BlockedTasks:    len(rep.Blocked),
		AlignedTasks:    aligned,
		MisalignedTasks: misaligned,
	}
	if total > 0 {
		summary.CompletionRate = float64(len(rep.Completed)) / float64(total)
	}
	if checked > 0 {
		summary.AlignmentRate = float64(aligned) / float64(checked)
	}
	rep.Summary = summary
	return rep
}

// setStatus applies a state transition, enforcing the legal transition set.
// An illegal transition indicates a scheduler bug and is logged, not applied.
func (o *Orchestrator) setStatus(t *models.Task, to models.TaskStatus) {
	if !models.CanTransition(t.Status, to) {
		o.logger.Log("[state] ILLEGAL transition for task %s: %s -> %s", t.ID, t.Status, to)
		return
	}
	o.logger.Log("[state] task %s: %s -> %s", t.ID, t.Status, to)
	t.Status = to
}

func (o *Orchestrator) emit(ev Event) {
	ev.Timestamp = time.Now()
	o.emitter.Emit(ev)
}
