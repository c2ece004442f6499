package state

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/kestrelworks/steward/pkg/models"
)

func testJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func sampleReport(runID string) *models.ExecutionReport {
	started := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	return &models.ExecutionReport{
		RunID:      runID,
		StartedAt:  started,
		FinishedAt: started.Add(5 * time.Minute),
		Completed:  []string{"1", "2"},
		Blocked:    []string{"3"},
		Results: map[string]*models.WorkerResult{
			"1": {TaskID: "1", WorkerID: "worker-0", Success: true},
			"2": {TaskID: "2", WorkerID: "worker-1", Success: true},
		},
		Summary: models.RunSummary{
			TotalTasks:     3,
			CompletedTasks: 2,
			BlockedTasks:   1,
			CompletionRate: 2.0 / 3.0,
		},
	}
}

func TestJournal_RecordAndList(t *testing.T) {
	j := testJournal(t)

	if err := j.RecordRun(sampleReport("run-a"), nil); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}

	later := sampleReport("run-b")
	later.StartedAt = later.StartedAt.Add(time.Hour)
	if err := j.RecordRun(later, nil); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}

	records, err := j.ListRuns(10)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	// Newest first.
	if records[0].RunID != "run-b" || records[1].RunID != "run-a" {
		t.Errorf("order = [%s, %s], want [run-b, run-a]", records[0].RunID, records[1].RunID)
	}
	if records[1].CompletedTasks != 2 || records[1].BlockedTasks != 1 {
		t.Errorf("summary counters not persisted: %+v", records[1])
	}
}

func TestJournal_GetReportRoundTrip(t *testing.T) {
	j := testJournal(t)

	original := sampleReport("run-rt")
	if err := j.RecordRun(original, nil); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}

	loaded, err := j.GetReport("run-rt")
	if err != nil {
		t.Fatalf("GetReport failed: %v", err)
	}
	if loaded.RunID != original.RunID {
		t.Errorf("RunID = %q, want %q", loaded.RunID, original.RunID)
	}
	if len(loaded.Completed) != 2 || len(loaded.Blocked) != 1 {
		t.Errorf("task lists not round-tripped: %+v", loaded)
	}
	if loaded.Results["1"] == nil || !loaded.Results["1"].Success {
		t.Error("worker results not round-tripped")
	}
}

func TestJournal_GetReport_Missing(t *testing.T) {
	j := testJournal(t)
	if _, err := j.GetReport("no-such-run"); err == nil {
		t.Fatal("GetReport should fail for an unknown run")
	}
}

func TestJournal_AlertsForRun(t *testing.T) {
	j := testJournal(t)

	alerts := []models.Alert{
		{
			ID:        "20260801T100100.000000000-aaaaaaaa",
			TaskID:    "2",
			Severity:  models.SeverityCritical,
			Timestamp: time.Date(2026, 8, 1, 10, 1, 0, 0, time.UTC),
			Issues: []models.Issue{
				{Category: models.GoalSecurity, Message: "hardcoded credential", Severity: models.SeverityCritical},
			},
		},
		{
			ID:        "20260801T100200.000000000-bbbbbbbb",
			TaskID:    "1",
			Severity:  models.SeverityWarning,
			Timestamp: time.Date(2026, 8, 1, 10, 2, 0, 0, time.UTC),
			Issues: []models.Issue{
				{Category: models.GoalStyle, Message: "inconsistent naming", Severity: models.SeverityWarning},
			},
		},
	}

	if err := j.RecordRun(sampleReport("run-al"), alerts); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}

	loaded, err := j.AlertsForRun("run-al")
	if err != nil {
		t.Fatalf("AlertsForRun failed: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("got %d alerts, want 2", len(loaded))
	}
	// Oldest first.
	if loaded[0].TaskID != "2" {
		t.Errorf("first alert task = %q, want 2", loaded[0].TaskID)
	}
	if loaded[0].Severity != models.SeverityCritical {
		t.Errorf("severity = %q, want critical", loaded[0].Severity)
	}
	if len(loaded[0].Issues) != 1 || loaded[0].Issues[0].Message != "hardcoded credential" {
		t.Errorf("issues not round-tripped: %+v", loaded[0].Issues)
	}
}

func TestJournal_OpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	j1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	if err := j1.RecordRun(sampleReport("run-1"), nil); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}
	j1.Close()

	// Reopening runs migrations again without clobbering data.
	j2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer j2.Close()

	records, err := j2.ListRuns(10)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("got %d records after reopen, want 1", len(records))
	}
}
