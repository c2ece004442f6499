// Package report turns alignment verdicts into alerts and milestone reports.
package report

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kestrelworks/steward/pkg/models"
)

// Sink receives alerts as they are delivered. Critical alerts are pushed
// through Deliver synchronously before the scheduler proceeds; batched
// warning/info alerts arrive on Flush.
type Sink interface {
	Deliver(alert models.Alert) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(alert models.Alert) error

// Deliver implements Sink.
func (f SinkFunc) Deliver(alert models.Alert) error { return f(alert) }

// Reporter owns the append-only alert history and the batch buffer.
// It reads task results but never mutates scheduler state.
type Reporter struct {
	mu      sync.Mutex
	sink    Sink
	history []models.Alert
	batch   []models.Alert
}

// NewReporter creates a Reporter delivering to the given sink.
// A nil sink records history but delivers nowhere.
func NewReporter(sink Sink) *Reporter {
	return &Reporter{sink: sink}
}

// newAlertID builds a unique alert id: time-based prefix plus random suffix.
func newAlertID(now time.Time) string {
	return fmt.Sprintf("%s-%s", now.UTC().Format("20060102T150405.000000000"), uuid.New().String()[:8])
}

// SendAlert records an alert for the given task. The alert severity is the
// highest severity among the issues. Critical alerts are delivered through
// the immediate path and must complete before SendAlert returns; warning and
// info alerts are buffered until Flush. The returned error reports a failed
// immediate delivery; the alert is kept in the history either way.
func (r *Reporter) SendAlert(taskID string, issues []models.Issue) (models.Alert, error) {
	now := time.Now()
	alert := models.Alert{
		ID:        newAlertID(now),
		TaskID:    taskID,
		Severity:  maxSeverity(issues),
		Issues:    append([]models.Issue(nil), issues...),
		Timestamp: now,
	}

	r.mu.Lock()
	r.history = append(r.history, alert)
	if !alert.Critical() {
		r.batch = append(r.batch, alert)
		r.mu.Unlock()
		return alert, nil
	}
	sink := r.sink
	r.mu.Unlock()

	if sink != nil {
		if err := sink.Deliver(alert); err != nil {
			return alert, fmt.Errorf("deliver critical alert %s: %w", alert.ID, err)
		}
	}
	return alert, nil
}

// Flush delivers and drains the batched warning/info alerts.
// Delivery failures are best effort; the drained alerts are returned.
func (r *Reporter) Flush() []models.Alert {
	r.mu.Lock()
	drained := r.batch
	r.batch = nil
	sink := r.sink
	r.mu.Unlock()

	if sink != nil {
		for _, alert := range drained {
			_ = sink.Deliver(alert)
		}
	}
	return drained
}

// Pending returns the number of batched alerts awaiting Flush.
func (r *Reporter) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batch)
}

// History returns a copy of the full alert history, oldest first.
func (r *Reporter) History() []models.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Alert(nil), r.history...)
}

// AlertsForTask returns all alerts recorded for one task.
func (r *Reporter) AlertsForTask(taskID string) []models.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Alert
	for _, a := range r.history {
		if a.TaskID == taskID {
			out = append(out, a)
		}
	}
	return out
}

// AlertsBySeverity returns all alerts of the given severity.
func (r *Reporter) AlertsBySeverity(severity models.Severity) []models.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Alert
	for _, a := range r.history {
		if a.Severity == severity {
			out = append(out, a)
		}
	}
	return out
}

// AlertsBetween returns alerts with from <= Timestamp < to.
func (r *Reporter) AlertsBetween(from, to time.Time) []models.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Alert
	for _, a := range r.history {
		if !a.Timestamp.Before(from) && a.Timestamp.Before(to) {
			out = append(out, a)
		}
	}
	return out
}

// maxSeverity returns the highest severity among the issues,
// defaulting to info for an empty list.
func maxSeverity(issues []models.Issue) models.Severity {
	severity := models.SeverityInfo
	for _, issue := range issues {
		switch issue.Severity {
		case models.SeverityCritical:
			return models.SeverityCritical
		case models.SeverityWarning:
			severity = models.SeverityWarning
		}
	}
	return severity
}
