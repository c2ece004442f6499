package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/anthropics/anthropic-sdk-go"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kestrelworks/steward/internal/align"
	"github.com/kestrelworks/steward/internal/config"
	"github.com/kestrelworks/steward/internal/decision"
	"github.com/kestrelworks/steward/internal/orchestrator"
	"github.com/kestrelworks/steward/internal/report"
	"github.com/kestrelworks/steward/internal/state"
	"github.com/kestrelworks/steward/internal/tui"
	"github.com/kestrelworks/steward/internal/worker"
	"github.com/kestrelworks/steward/pkg/models"
)

var (
	runWorkers   int
	runBackend   string
	runConfig    string
	runDecisions string
	runWatch     bool
	runNoHistory bool
)

var runCmd = &cobra.Command{
	Use:   "run <tasks.yaml>",
	Short: "Execute a task file with the parallel worker pool",
	Long: `Execute the tasks in a YAML file.

The dependency graph is validated first; any cycle or unknown dependency
aborts the run before anything is dispatched. Independent tasks start
immediately, dependents start as their dependencies complete.

Backends (--backend):
  - agent:     Each task runs as an Anthropic API conversation
               (requires ANTHROPIC_API_KEY)
  - simulated: Tasks succeed after a short delay, no API calls

When a task fails, its dependents are blocked and a decision is requested.
With a decisions directory configured, steward writes a request file there
and waits for an answer file ("<task-id>.decision.yaml") containing an
action: retry, skip, modify, or abort. Without one, failed subtrees stay
blocked and the rest of the run continues.

Use --watch for a live terminal view of the run.`,
	Args: cobra.ExactArgs(1),
	RunE: runTasks,
}

func init() {
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "Worker count 1-5 (0 = use the classifier suggestion)")
	runCmd.Flags().StringVar(&runBackend, "backend", "", "Worker backend: agent or simulated")
	runCmd.Flags().StringVar(&runConfig, "config", "", "Path to a config file (overrides default search)")
	runCmd.Flags().StringVar(&runDecisions, "decisions", "", "Directory watched for decision answer files")
	runCmd.Flags().BoolVar(&runWatch, "watch", false, "Show a live TUI while the run executes")
	runCmd.Flags().BoolVar(&runNoHistory, "no-history", false, "Skip recording the run in the history journal")
}

func runTasks(cmd *cobra.Command, args []string) (retErr error) {
	defer func() {
		if r := recover(); r != nil {
			retErr = fmt.Errorf("PANIC in runTasks: %v", r)
		}
	}()

	cfg, err := loadConfig(runConfig)
	if err != nil {
		return err
	}
	if runWorkers > 0 {
		cfg.Scheduler.Workers = runWorkers
	}
	if runBackend != "" {
		cfg.Scheduler.Backend = runBackend
	}
	if runDecisions != "" {
		cfg.Decision.Dir = runDecisions
	}

	tasks, err := loadTaskFile(args[0])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts, cleanup, err := buildOptions(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	orch, err := orchestrator.New(tasks, opts...)
	if err != nil {
		return fmt.Errorf("building scheduler: %w", err)
	}

	fmt.Printf("Run %s: %d tasks, %d workers, %s backend\n\n",
		orch.RunID(), len(tasks), orch.Workers(), cfg.Scheduler.Backend)

	var rep *models.ExecutionReport
	if runWatch {
		rep, err = runWithWatch(ctx, orch, tasks)
	} else {
		rep, err = runHeadless(ctx, orch)
	}
	if err != nil {
		return err
	}

	printSummary(rep)

	// The milestone boundary: drain the batched warning/info alerts. In
	// headless mode the reporter sink prints them; in watch mode the sink is
	// silent, so print the drained alerts here once the TUI has exited.
	flushed := orch.Reporter().Flush()
	if runWatch {
		for _, alert := range flushed {
			printAlert(alert)
		}
	}

	printMilestone(orch.Milestone())

	if cfg.History.Path != "" && !runNoHistory {
		if err := recordRun(cfg, rep, orch.Reporter().History()); err != nil {
			printStatus("✗", fmt.Sprintf("Failed to record run: %v", err), color.FgYellow)
		} else {
			printStatus("✓", fmt.Sprintf("Run recorded in %s", cfg.History.Path), color.FgGreen)
		}
	}
	return nil
}

// buildOptions assembles the scheduler options from config. The returned
// cleanup closes resources owned by the options (debug logger).
func buildOptions(cfg *config.Config) ([]orchestrator.Option, func(), error) {
	cleanup := func() {}

	backend, err := worker.New(worker.Kind(cfg.Scheduler.Backend), worker.AgentConfig{
		APIKey: cfg.Anthropic.APIKey,
		Model:  anthropic.Model(cfg.Anthropic.Model),
	})
	if err != nil {
		return nil, cleanup, err
	}

	sink := report.SinkFunc(printAlert)
	if runWatch {
		// Alerts surface through the TUI event log instead.
		sink = func(models.Alert) error { return nil }
	}

	opts := []orchestrator.Option{
		orchestrator.WithBackend(backend),
		orchestrator.WithChecker(align.New(align.Collaborators{})),
		orchestrator.WithReporter(report.NewReporter(sink)),
	}
	if cfg.Scheduler.Workers > 0 {
		opts = append(opts, orchestrator.WithWorkers(cfg.Scheduler.Workers))
	}
	if cfg.Scheduler.Cap > 0 {
		opts = append(opts, orchestrator.WithCap(cfg.Scheduler.Cap))
	}
	if cfg.Scheduler.LogPath != "" {
		logger, err := orchestrator.NewDebugLogger(cfg.Scheduler.LogPath)
		if err != nil {
			return nil, cleanup, fmt.Errorf("opening debug log: %w", err)
		}
		cleanup = func() { logger.Close() }
		opts = append(opts, orchestrator.WithLogger(logger))
	}
	if cfg.Decision.Dir != "" {
		watcher, err := decision.NewFileWatcher(cfg.Decision.Dir)
		if err != nil {
			return nil, cleanup, fmt.Errorf("setting up decision watcher: %w", err)
		}
		opts = append(opts, orchestrator.WithDecider(watcher))
		if cfg.Decision.Timeout > 0 {
			opts = append(opts, orchestrator.WithDecisionTimeout(cfg.Decision.Timeout))
		}
	}
	return opts, cleanup, nil
}

// runHeadless executes the run while printing events as plain status lines.
func runHeadless(ctx context.Context, orch *orchestrator.Orchestrator) (*models.ExecutionReport, error) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range orch.Events() {
			printEvent(ev)
		}
	}()

	rep, err := orch.Run(ctx)
	<-done
	fmt.Println()
	return rep, err
}

// runWithWatch executes the run behind a live TUI.
func runWithWatch(ctx context.Context, orch *orchestrator.Orchestrator, tasks []*models.Task) (*models.ExecutionReport, error) {
	program := tea.NewProgram(tui.NewWatch(tasks, orch.Events()))

	type runOutcome struct {
		rep *models.ExecutionReport
		err error
	}
	outcome := make(chan runOutcome, 1)
	go func() {
		rep, err := orch.Run(ctx)
		outcome <- runOutcome{rep, err}
	}()

	if _, err := program.Run(); err != nil {
		return nil, fmt.Errorf("running TUI: %w", err)
	}
	res := <-outcome
	return res.rep, res.err
}

func printEvent(ev orchestrator.Event) {
	switch ev.Type {
	case orchestrator.EventTaskStarted:
		printStatus("▸", fmt.Sprintf("%s started on %s", ev.TaskID, ev.WorkerID), color.FgCyan)
	case orchestrator.EventTaskCompleted:
		printStatus("✓", fmt.Sprintf("%s completed", ev.TaskID), color.FgGreen)
	case orchestrator.EventTaskFailed:
		printStatus("✗", fmt.Sprintf("%s failed: %s", ev.TaskID, ev.Message), color.FgRed)
	case orchestrator.EventTaskBlocked:
		printStatus("⊘", fmt.Sprintf("%s blocked (%s)", ev.TaskID, ev.Message), color.FgYellow)
	case orchestrator.EventTaskSkipped:
		printStatus("⤳", fmt.Sprintf("%s skipped", ev.TaskID), color.FgYellow)
	case orchestrator.EventTaskUnblocked:
		printStatus("↺", fmt.Sprintf("%s unblocked", ev.TaskID), color.FgCyan)
	case orchestrator.EventDecisionRequested:
		printStatus("?", fmt.Sprintf("decision requested for %s", ev.TaskID), color.FgMagenta)
	case orchestrator.EventDecisionReceived:
		printStatus("!", fmt.Sprintf("decision for %s: %s", ev.TaskID, ev.Message), color.FgMagenta)
	}
}

func printAlert(alert models.Alert) error {
	attr := color.FgCyan
	switch alert.Severity {
	case models.SeverityCritical:
		attr = color.FgRed
	case models.SeverityWarning:
		attr = color.FgYellow
	}
	printStatus("⚠", fmt.Sprintf("[%s] alert %s for task %s:", alert.Severity, alert.ID, alert.TaskID), attr)
	for _, issue := range alert.Issues {
		fmt.Printf("    %s: %s\n", issue.Category, issue.Message)
	}
	return nil
}

func printSummary(rep *models.ExecutionReport) {
	s := rep.Summary
	fmt.Println("Run summary:")
	fmt.Printf("  Completed: %d/%d (%.0f%%)\n", s.CompletedTasks, s.TotalTasks, s.CompletionRate*100)
	if len(rep.Failed) > 0 {
		printStatus("✗", fmt.Sprintf("Failed: %v", rep.Failed), color.FgRed)
	}
	if len(rep.Blocked) > 0 {
		printStatus("⊘", fmt.Sprintf("Blocked: %v", rep.Blocked), color.FgYellow)
	}
	if len(rep.Skipped) > 0 {
		printStatus("⤳", fmt.Sprintf("Skipped: %v", rep.Skipped), color.FgYellow)
	}
	if rep.Aborted {
		printStatus("✗", "Run aborted by decision", color.FgRed)
	}
}

func printMilestone(m *models.MilestoneReport) {
	fmt.Println()
	fmt.Printf("Alignment: %d/%d aligned, score %d (%s)\n",
		m.AlignedCount, m.AlignedCount+m.MisalignedCount, m.Score, m.Status)
	for _, rec := range m.Recommendations {
		attr := color.FgYellow
		if rec.Priority == models.PriorityHigh {
			attr = color.FgRed
		}
		printStatus("→", fmt.Sprintf("[%s] %s", rec.Priority, rec.Message), attr)
	}
}

func recordRun(cfg *config.Config, rep *models.ExecutionReport, alerts []models.Alert) error {
	journal, err := state.Open(cfg.History.Path)
	if err != nil {
		return err
	}
	defer journal.Close()
	return journal.RecordRun(rep, alerts)
}
