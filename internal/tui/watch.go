// Package tui provides the terminal user interface for watch mode.
package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kestrelworks/steward/internal/orchestrator"
	"github.com/kestrelworks/steward/pkg/models"
)

// EventMsg wraps a scheduler event for the TUI.
type EventMsg struct {
	Event orchestrator.Event
}

// RunDoneMsg signals that the scheduler run has completed and the event
// stream is closed.
type RunDoneMsg struct{}

// taskRow is one task line in the watch view.
type taskRow struct {
	id     string
	title  string
	status models.TaskStatus
	worker string
	note   string
}

// logEntry is one line of the recent-events panel.
type logEntry struct {
	timestamp time.Time
	text      string
}

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4")).
			Bold(true)

	statusStyles = map[models.TaskStatus]lipgloss.Style{
		models.TaskStatusPending:   lipgloss.NewStyle().Foreground(lipgloss.Color("243")),
		models.TaskStatusReady:     lipgloss.NewStyle().Foreground(lipgloss.Color("#FFC857")),
		models.TaskStatusRunning:   lipgloss.NewStyle().Foreground(lipgloss.Color("#45B7D1")).Bold(true),
		models.TaskStatusCompleted: lipgloss.NewStyle().Foreground(lipgloss.Color("#96E6A1")),
		models.TaskStatusFailed:    lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true),
		models.TaskStatusSkipped:   lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Strikethrough(true),
		models.TaskStatusBlocked:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FF8E53")),
	}

	alertStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
)

// Watch is the bubbletea model for watch mode. It renders the live task
// board from the scheduler's event stream.
type Watch struct {
	events  <-chan orchestrator.Event
	spinner spinner.Model
	rows    []taskRow
	index   map[string]int
	log     []logEntry
	width   int
	done    bool
	alerts  int
}

// NewWatch creates a Watch model over the given tasks and event stream.
func NewWatch(tasks []*models.Task, events <-chan orchestrator.Event) *Watch {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#45B7D1"))

	w := &Watch{
		events:  events,
		spinner: s,
		index:   make(map[string]int, len(tasks)),
		width:   80,
	}
	for i, t := range tasks {
		w.rows = append(w.rows, taskRow{id: t.ID, title: t.Title, status: models.TaskStatusPending})
		w.index[t.ID] = i
	}
	return w
}

// Init implements tea.Model.
func (w *Watch) Init() tea.Cmd {
	return tea.Batch(w.spinner.Tick, w.waitForEvent())
}

// waitForEvent reads the next scheduler event.
func (w *Watch) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-w.events
		if !ok {
			return RunDoneMsg{}
		}
		return EventMsg{Event: ev}
	}
}

// Update implements tea.Model.
func (w *Watch) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return w, tea.Quit
		}

	case tea.WindowSizeMsg:
		w.width = msg.Width

	case spinner.TickMsg:
		var cmd tea.Cmd
		w.spinner, cmd = w.spinner.Update(msg)
		return w, cmd

	case EventMsg:
		w.apply(msg.Event)
		return w, w.waitForEvent()

	case RunDoneMsg:
		w.done = true
		return w, tea.Quit
	}

	return w, nil
}

// apply folds one scheduler event into the task board.
func (w *Watch) apply(ev orchestrator.Event) {
	if i, ok := w.index[ev.TaskID]; ok {
		row := &w.rows[i]
		switch ev.Type {
		case orchestrator.EventTaskQueued:
			row.status = models.TaskStatusReady
			row.note = ev.Message
		case orchestrator.EventTaskStarted:
			row.status = models.TaskStatusRunning
			row.worker = ev.WorkerID
		case orchestrator.EventTaskCompleted:
			row.status = models.TaskStatusCompleted
			row.worker = ""
		case orchestrator.EventTaskFailed:
			row.status = models.TaskStatusFailed
			row.worker = ""
			row.note = ev.Message
		case orchestrator.EventTaskBlocked:
			row.status = models.TaskStatusBlocked
			row.note = ev.Message
		case orchestrator.EventTaskSkipped:
			row.status = models.TaskStatusSkipped
		case orchestrator.EventTaskUnblocked:
			row.status = models.TaskStatusPending
			row.note = ""
		}
	}

	if ev.Type == orchestrator.EventAlertRaised {
		w.alerts++
	}

	w.log = append(w.log, logEntry{
		timestamp: ev.Timestamp,
		text:      fmt.Sprintf("%s %s %s", ev.Type, ev.TaskID, ev.Message),
	})
	if len(w.log) > 8 {
		w.log = w.log[len(w.log)-8:]
	}
}

// Done reports whether the run has finished.
func (w *Watch) Done() bool {
	return w.done
}

// View implements tea.Model.
func (w *Watch) View() string {
	header := titleStyle.Render("steward")
	if !w.done {
		header = w.spinner.View() + " " + header
	}
	if w.alerts > 0 {
		header += "  " + alertStyle.Render(fmt.Sprintf("%d alert(s)", w.alerts))
	}

	var lines []string
	lines = append(lines, header, "")

	for _, row := range w.rows {
		style, ok := statusStyles[row.status]
		if !ok {
			style = dimStyle
		}
		line := fmt.Sprintf("  %-10s %-12s %s", row.id, style.Render(string(row.status)), row.title)
		if row.worker != "" {
			line += dimStyle.Render(" [" + row.worker + "]")
		}
		if row.note != "" {
			line += dimStyle.Render(" (" + row.note + ")")
		}
		lines = append(lines, line)
	}

	lines = append(lines, "")
	for _, entry := range w.log {
		lines = append(lines, dimStyle.Render(
			fmt.Sprintf("  %s %s", entry.timestamp.Format("15:04:05"), entry.text)))
	}

	footer := "q to quit"
	if w.done {
		footer = "run finished, q to quit"
	}
	lines = append(lines, "", dimStyle.Render("  "+footer))

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
