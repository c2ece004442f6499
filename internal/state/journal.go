// Package state provides the SQLite-backed run-history journal.
// Finished runs and their alerts are appended here for the history command;
// the journal is never read back into a live scheduler run.
package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kestrelworks/steward/pkg/models"
)

// Journal wraps an SQLite database holding finished-run records.
type Journal struct {
	conn *sql.DB
	path string
	mu   sync.RWMutex
}

// Open opens the journal at the given path.
// It creates the parent directories if they don't exist.
// WAL mode is enabled for concurrent reads.
func Open(path string) (*Journal, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	j := &Journal{conn: conn, path: path}
	if err := j.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return j, nil
}

// Close closes the journal.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.conn.Close()
}

// Path returns the path to the journal file.
func (j *Journal) Path() string {
	return j.path
}

// migrate applies all pending schema migrations.
func (j *Journal) migrate() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var currentVersion int
	row := j.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Runs},
		{2, migrationV2Alerts},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := j.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}

	return nil
}

const migrationV1Runs = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	started_at DATETIME NOT NULL,
	finished_at DATETIME NOT NULL,
	aborted INTEGER NOT NULL DEFAULT 0,
	total_tasks INTEGER NOT NULL DEFAULT 0,
	completed_tasks INTEGER NOT NULL DEFAULT 0,
	blocked_tasks INTEGER NOT NULL DEFAULT 0,
	completion_rate REAL NOT NULL DEFAULT 0.0,
	alignment_rate REAL NOT NULL DEFAULT 0.0,
	report TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

const migrationV2Alerts = `
CREATE TABLE IF NOT EXISTS alerts (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL REFERENCES runs(run_id),
	task_id TEXT NOT NULL,
	severity TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	issues TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_alerts_run_id ON alerts(run_id);
CREATE INDEX IF NOT EXISTS idx_alerts_task_id ON alerts(task_id);
`

// RunRecord is one row of the runs table, used by the history listing.
type RunRecord struct {
	RunID          string    `json:"run_id"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	Aborted        bool      `json:"aborted"`
	TotalTasks     int       `json:"total_tasks"`
	CompletedTasks int       `json:"completed_tasks"`
	BlockedTasks   int       `json:"blocked_tasks"`
	CompletionRate float64   `json:"completion_rate"`
	AlignmentRate  float64   `json:"alignment_rate"`
}

// RecordRun appends a finished run and its alert history to the journal.
func (j *Journal) RecordRun(rep *models.ExecutionReport, alerts []models.Alert) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	raw, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	tx, err := j.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO runs (run_id, started_at, finished_at, aborted, total_tasks,
			completed_tasks, blocked_tasks, completion_rate, alignment_rate, report)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rep.RunID, rep.StartedAt, rep.FinishedAt, rep.Aborted,
		rep.Summary.TotalTasks, rep.Summary.CompletedTasks, rep.Summary.BlockedTasks,
		rep.Summary.CompletionRate, rep.Summary.AlignmentRate, string(raw))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("insert run %s: %w", rep.RunID, err)
	}

	for _, alert := range alerts {
		issues, err := json.Marshal(alert.Issues)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("marshal alert issues: %w", err)
		}
		_, err = tx.Exec(`
			INSERT INTO alerts (id, run_id, task_id, severity, created_at, issues)
			VALUES (?, ?, ?, ?, ?, ?)`,
			alert.ID, rep.RunID, alert.TaskID, string(alert.Severity), alert.Timestamp, string(issues))
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("insert alert %s: %w", alert.ID, err)
		}
	}

	return tx.Commit()
}

// ListRuns returns the most recent runs, newest first.
func (j *Journal) ListRuns(limit int) ([]RunRecord, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}

	rows, err := j.conn.Query(`
		SELECT run_id, started_at, finished_at, aborted, total_tasks,
			completed_tasks, blocked_tasks, completion_rate, alignment_rate
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.RunID, &r.StartedAt, &r.FinishedAt, &r.Aborted,
			&r.TotalTasks, &r.CompletedTasks, &r.BlockedTasks,
			&r.CompletionRate, &r.AlignmentRate); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// GetReport loads the full execution report stored for a run.
func (j *Journal) GetReport(runID string) (*models.ExecutionReport, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var raw string
	row := j.conn.QueryRow("SELECT report FROM runs WHERE run_id = ?", runID)
	if err := row.Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("run %s not found", runID)
		}
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}

	rep := &models.ExecutionReport{}
	if err := json.Unmarshal([]byte(raw), rep); err != nil {
		return nil, fmt.Errorf("unmarshal report for run %s: %w", runID, err)
	}
	return rep, nil
}

// AlertsForRun returns the alerts recorded for a run, oldest first.
func (j *Journal) AlertsForRun(runID string) ([]models.Alert, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	rows, err := j.conn.Query(`
		SELECT id, task_id, severity, created_at, issues
		FROM alerts WHERE run_id = ? ORDER BY created_at`, runID)
	if err != nil {
		return nil, fmt.Errorf("list alerts for run %s: %w", runID, err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		var a models.Alert
		var severity, issues string
		if err := rows.Scan(&a.ID, &a.TaskID, &severity, &a.Timestamp, &issues); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.Severity = models.Severity(severity)
		if err := json.Unmarshal([]byte(issues), &a.Issues); err != nil {
			return nil, fmt.Errorf("unmarshal alert issues: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}
