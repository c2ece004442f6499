package decision

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"context"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/kestrelworks/steward/pkg/models"
)

// FileWatcher is a Collaborator for headless runs: it writes the failure
// context to <dir>/<taskID>.request.yaml and waits for a human to answer by
// creating <dir>/<taskID>.decision.yaml. The watch is event driven via
// fsnotify, with no polling.
type FileWatcher struct {
	dir string
}

// decisionFile is the on-disk answer format.
type decisionFile struct {
	Action  string       `yaml:"action"`
	Message string       `yaml:"message,omitempty"`
	Unblock []string     `yaml:"unblock,omitempty"`
	Task    *models.Task `yaml:"task,omitempty"`
}

// requestFile is the on-disk failure context written for the human.
type requestFile struct {
	TaskID        string   `yaml:"task_id"`
	Title         string   `yaml:"title"`
	FailureReason string   `yaml:"failure_reason"`
	BlockedIDs    []string `yaml:"blocked_ids,omitempty"`
	Attempts      int      `yaml:"attempts"`
	Answer        string   `yaml:"answer"`
}

// NewFileWatcher creates a FileWatcher rooted at dir, creating it if needed.
func NewFileWatcher(dir string) (*FileWatcher, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create decision directory: %w", err)
	}
	return &FileWatcher{dir: dir}, nil
}

// Decide implements Collaborator. It blocks until the decision file appears
// or the context is cancelled.
func (w *FileWatcher) Decide(ctx context.Context, req Request) (Result, error) {
	answerPath := filepath.Join(w.dir, req.TaskID+".decision.yaml")

	if err := w.writeRequest(req, answerPath); err != nil {
		return Result{}, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return Result{}, fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(w.dir); err != nil {
		return Result{}, fmt.Errorf("watch decision directory: %w", err)
	}

	// The answer may already exist from a previous prompt.
	if res, ok, err := w.tryRead(answerPath, req); ok || err != nil {
		return res, err
	}

	for {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return Result{}, fmt.Errorf("watcher closed")
			}
			if event.Name != answerPath || !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
				continue
			}
			// Give the writer a moment to finish the file.
			time.Sleep(50 * time.Millisecond)
			if res, done, err := w.tryRead(answerPath, req); done || err != nil {
				return res, err
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return Result{}, fmt.Errorf("watcher closed")
			}
			return Result{}, fmt.Errorf("watch decision directory: %w", err)
		}
	}
}

func (w *FileWatcher) writeRequest(req Request, answerPath string) error {
	data, err := yaml.Marshal(requestFile{
		TaskID:        req.TaskID,
		Title:         req.Title,
		FailureReason: req.FailureReason,
		BlockedIDs:    req.BlockedIDs,
		Attempts:      req.Attempts,
		Answer:        fmt.Sprintf("write %s with action: retry|skip|abort|modify", answerPath),
	})
	if err != nil {
		return fmt.Errorf("marshal decision request: %w", err)
	}
	path := filepath.Join(w.dir, req.TaskID+".request.yaml")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write decision request: %w", err)
	}
	return nil
}

// tryRead parses the answer file if it exists. The request and answer files
// are removed once a valid answer is read so the task can be prompted again
// on a later failure.
func (w *FileWatcher) tryRead(answerPath string, req Request) (Result, bool, error) {
	data, err := os.ReadFile(answerPath)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{}, false, nil
		}
		return Result{}, false, fmt.Errorf("read decision file: %w", err)
	}

	var df decisionFile
	if err := yaml.Unmarshal(data, &df); err != nil {
		return Result{}, false, fmt.Errorf("parse decision file %s: %w", answerPath, err)
	}

	action := Action(strings.TrimSpace(strings.ToLower(df.Action)))
	if !action.Valid() {
		return Result{}, false, fmt.Errorf("decision file %s has unknown action %q", answerPath, df.Action)
	}
	if action == ActionModify && df.Task == nil {
		return Result{}, false, fmt.Errorf("decision file %s: modify requires a task spec", answerPath)
	}

	os.Remove(answerPath)
	os.Remove(filepath.Join(w.dir, req.TaskID+".request.yaml"))

	return Result{
		Action:     action,
		NewTask:    df.Task,
		UnblockIDs: df.Unblock,
		Message:    df.Message,
		Timestamp:  time.Now(),
	}, true, nil
}
