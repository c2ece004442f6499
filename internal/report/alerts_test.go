package report

import (
	"errors"
	"testing"
	"time"

	"github.com/kestrelworks/steward/pkg/models"
)

func critical(msg string) []models.Issue {
	return []models.Issue{{Category: models.GoalSecurity, Severity: models.SeverityCritical, Message: msg}}
}

func warning(msg string) []models.Issue {
	return []models.Issue{{Category: models.GoalStyle, Severity: models.SeverityWarning, Message: msg}}
}

func TestSendAlertCriticalDeliversImmediately(t *testing.T) {
	var delivered []models.Alert
	r := NewReporter(SinkFunc(func(a models.Alert) error {
		delivered = append(delivered, a)
		return nil
	}))

	alert, err := r.SendAlert("task-1", critical("leak"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(delivered) != 1 {
		t.Fatalf("expected immediate delivery, got %d deliveries", len(delivered))
	}
	if delivered[0].ID != alert.ID {
		t.Error("delivered alert does not match returned alert")
	}
	if alert.Severity != models.SeverityCritical {
		t.Errorf("expected critical severity, got %s", alert.Severity)
	}
	if r.Pending() != 0 {
		t.Error("critical alerts must not sit in the batch buffer")
	}
}

func TestSendAlertWarningIsBatched(t *testing.T) {
	var delivered []models.Alert
	r := NewReporter(SinkFunc(func(a models.Alert) error {
		delivered = append(delivered, a)
		return nil
	}))

	if _, err := r.SendAlert("task-1", warning("naming")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(delivered) != 0 {
		t.Error("warnings must not be delivered immediately")
	}
	if r.Pending() != 1 {
		t.Errorf("expected 1 pending alert, got %d", r.Pending())
	}

	flushed := r.Flush()
	if len(flushed) != 1 || len(delivered) != 1 {
		t.Errorf("expected flush to deliver 1 alert, flushed=%d delivered=%d", len(flushed), len(delivered))
	}
	if r.Pending() != 0 {
		t.Error("flush must drain the batch buffer")
	}
}

func TestSendAlertFailedDeliveryKeepsHistory(t *testing.T) {
	r := NewReporter(SinkFunc(func(a models.Alert) error {
		return errors.New("sink down")
	}))

	_, err := r.SendAlert("task-1", critical("leak"))
	if err == nil {
		t.Fatal("expected delivery error to surface")
	}
	if len(r.History()) != 1 {
		t.Error("alert must be recorded even when delivery fails")
	}
}

func TestAlertIDsAreUnique(t *testing.T) {
	r := NewReporter(nil)
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		alert, _ := r.SendAlert("task-1", warning("w"))
		if seen[alert.ID] {
			t.Fatalf("duplicate alert id %s", alert.ID)
		}
		seen[alert.ID] = true
	}
}

func TestHistoryQueries(t *testing.T) {
	r := NewReporter(nil)
	r.SendAlert("task-1", critical("a"))
	r.SendAlert("task-2", warning("b"))
	r.SendAlert("task-1", warning("c"))

	if got := r.AlertsForTask("task-1"); len(got) != 2 {
		t.Errorf("expected 2 alerts for task-1, got %d", len(got))
	}
	if got := r.AlertsBySeverity(models.SeverityCritical); len(got) != 1 {
		t.Errorf("expected 1 critical alert, got %d", len(got))
	}
	if got := r.AlertsBySeverity(models.SeverityWarning); len(got) != 2 {
		t.Errorf("expected 2 warning alerts, got %d", len(got))
	}

	now := time.Now()
	if got := r.AlertsBetween(now.Add(-time.Minute), now.Add(time.Minute)); len(got) != 3 {
		t.Errorf("expected 3 alerts in window, got %d", len(got))
	}
	if got := r.AlertsBetween(now.Add(time.Hour), now.Add(2*time.Hour)); len(got) != 0 {
		t.Errorf("expected no alerts in future window, got %d", len(got))
	}
}

func TestHistoryIsAppendOnlyCopy(t *testing.T) {
	r := NewReporter(nil)
	r.SendAlert("task-1", warning("w"))

	history := r.History()
	history[0].TaskID = "tampered"

	if r.History()[0].TaskID != "task-1" {
		t.Error("History must return a copy, not the backing slice")
	}
}

func TestMaxSeverity(t *testing.T) {
	if s := maxSeverity(nil); s != models.SeverityInfo {
		t.Errorf("expected info for empty issues, got %s", s)
	}
	mixed := []models.Issue{
		{Severity: models.SeverityInfo},
		{Severity: models.SeverityWarning},
	}
	if s := maxSeverity(mixed); s != models.SeverityWarning {
		t.Errorf("expected warning, got %s", s)
	}
	mixed = append(mixed, models.Issue{Severity: models.SeverityCritical})
	if s := maxSeverity(mixed); s != models.SeverityCritical {
		t.Errorf("expected critical, got %s", s)
	}
}
