package align

import (
	"context"
	"errors"
	"testing"

	"github.com/kestrelworks/steward/pkg/models"
)

func issueChecker(issues []models.Issue, err error) IssueChecker {
	return func(ctx context.Context, in Input) ([]models.Issue, error) {
		return issues, err
	}
}

func testResult() *models.WorkerResult {
	return &models.WorkerResult{TaskID: "task-1", Success: true, Output: "code"}
}

func TestCheckSkipsCategoriesWithoutGoalTags(t *testing.T) {
	invoked := false
	checker := New(Collaborators{
		Architecture: func(ctx context.Context, in Input) ([]models.Issue, error) {
			invoked = true
			return nil, nil
		},
	})

	task := &models.Task{ID: "task-1"}
	result := checker.Check(context.Background(), task, testResult())

	if invoked {
		t.Error("architecture checker invoked without a goal tag")
	}
	if result.Checked {
		t.Error("expected result to be not-checked when no category ran")
	}
	if len(result.Details) != 0 {
		t.Errorf("expected no details, got %v", result.Details)
	}
}

func TestCheckSkipsSentinelValues(t *testing.T) {
	invoked := false
	checker := New(Collaborators{
		Style: func(ctx context.Context, in Input) ([]models.Issue, error) {
			invoked = true
			return nil, nil
		},
	})

	for _, sentinel := range []string{"none", "standard"} {
		task := &models.Task{ID: "task-1", GoalTags: map[string]string{models.GoalStyle: sentinel}}
		checker.Check(context.Background(), task, testResult())
	}
	if invoked {
		t.Error("style checker invoked for sentinel goal values")
	}
}

func TestCheckIssueCategoryWarningsPass(t *testing.T) {
	checker := New(Collaborators{
		Architecture: issueChecker([]models.Issue{
			{Category: models.GoalArchitecture, Severity: models.SeverityWarning, Message: "layering drift"},
			{Category: models.GoalArchitecture, Severity: models.SeverityInfo, Message: "note"},
		}, nil),
	})

	task := &models.Task{ID: "task-1", GoalTags: map[string]string{models.GoalArchitecture: "hexagonal"}}
	result := checker.Check(context.Background(), task, testResult())

	if !result.Passed {
		t.Error("warnings alone must not fail the category")
	}
	if result.Critical {
		t.Error("no critical issue was reported")
	}
	if !result.Checked {
		t.Error("expected result to be checked")
	}
	if len(result.Issues) != 2 {
		t.Errorf("expected 2 issues carried through, got %d", len(result.Issues))
	}
}

func TestCheckIssueCategoryCriticalFails(t *testing.T) {
	checker := New(Collaborators{
		Security: issueChecker([]models.Issue{
			{Category: models.GoalSecurity, Severity: models.SeverityCritical, Message: "sql injection"},
		}, nil),
	})

	task := &models.Task{ID: "task-1", GoalTags: map[string]string{models.GoalSecurity: "strict"}}
	result := checker.Check(context.Background(), task, testResult())

	if result.Passed {
		t.Error("critical issue must fail alignment")
	}
	if !result.Critical {
		t.Error("expected aggregate critical flag")
	}
	if detail := result.Details[models.GoalSecurity]; detail.Status != models.CheckFailed {
		t.Errorf("expected security check failed, got %s", detail.Status)
	}
}

func TestCheckTestingFailureIsCriticalRegardlessOfCoverage(t *testing.T) {
	checker := New(Collaborators{
		Testing: func(ctx context.Context, in Input) (TestReport, error) {
			return TestReport{Failures: 2, Coverage: 0.99, CoverageTarget: 0.80}, nil
		},
	})

	task := &models.Task{ID: "task-1", GoalTags: map[string]string{models.GoalTesting: "80%"}}
	result := checker.Check(context.Background(), task, testResult())

	if result.Passed {
		t.Error("test failures must be critical")
	}
	if !result.Critical {
		t.Error("expected critical flag for failed tests")
	}
}

func TestCheckTestingLowCoverageIsNotCritical(t *testing.T) {
	cases := []struct {
		coverage float64
		severity models.Severity
	}{
		{0.75, models.SeverityInfo},    // 5 points under
		{0.50, models.SeverityWarning}, // 30 points under
	}

	for _, tc := range cases {
		checker := New(Collaborators{
			Testing: func(ctx context.Context, in Input) (TestReport, error) {
				return TestReport{Failures: 0, Coverage: tc.coverage, CoverageTarget: 0.80}, nil
			},
		})

		task := &models.Task{ID: "task-1", GoalTags: map[string]string{models.GoalTesting: "80%"}}
		result := checker.Check(context.Background(), task, testResult())

		if !result.Passed {
			t.Errorf("coverage %.2f: low coverage alone must not fail alignment", tc.coverage)
		}
		if len(result.Issues) != 1 {
			t.Fatalf("coverage %.2f: expected 1 issue, got %d", tc.coverage, len(result.Issues))
		}
		if result.Issues[0].Severity != tc.severity {
			t.Errorf("coverage %.2f: expected severity %s, got %s", tc.coverage, tc.severity, result.Issues[0].Severity)
		}
	}
}

func TestCheckPerformanceThresholds(t *testing.T) {
	cases := []struct {
		measured float64
		passed   bool
		critical bool
	}{
		{90, true, false},   // under target
		{100, true, false},  // at target
		{150, true, false},  // 1.5x: warning only
		{200, true, false},  // exactly 2x: warning only
		{201, false, true},  // over 2x: critical
		{1000, false, true}, // way over
	}

	for _, tc := range cases {
		checker := New(Collaborators{
			Performance: func(ctx context.Context, in Input) (Measurement, error) {
				return Measurement{Measured: tc.measured, Target: 100, Unit: "ms"}, nil
			},
		})

		task := &models.Task{ID: "task-1", GoalTags: map[string]string{models.GoalPerformance: "100ms"}}
		result := checker.Check(context.Background(), task, testResult())

		if result.Passed != tc.passed {
			t.Errorf("measured=%.0f: expected passed=%v, got %v", tc.measured, tc.passed, result.Passed)
		}
		if result.Critical != tc.critical {
			t.Errorf("measured=%.0f: expected critical=%v, got %v", tc.measured, tc.critical, result.Critical)
		}
	}
}

func TestCheckCollaboratorErrorDegradesToNotChecked(t *testing.T) {
	checker := New(Collaborators{
		Architecture: issueChecker(nil, errors.New("analyzer crashed")),
	})

	task := &models.Task{ID: "task-1", GoalTags: map[string]string{models.GoalArchitecture: "hexagonal"}}
	result := checker.Check(context.Background(), task, testResult())

	if result.Checked {
		t.Error("a check where every category errored is not-checked")
	}
	if result.Critical {
		t.Error("collaborator errors must not be critical")
	}
	detail := result.Details[models.GoalArchitecture]
	if detail.Status != models.CheckErrored {
		t.Errorf("expected errored status, got %s", detail.Status)
	}
	if detail.Err == "" {
		t.Error("expected the collaborator error to be recorded")
	}
}

func TestCheckErrorInOneCategoryDoesNotPoisonOthers(t *testing.T) {
	checker := New(Collaborators{
		Architecture: issueChecker(nil, errors.New("analyzer crashed")),
		Style:        issueChecker(nil, nil),
	})

	task := &models.Task{ID: "task-1", GoalTags: map[string]string{
		models.GoalArchitecture: "hexagonal",
		models.GoalStyle:        "gofmt",
	}}
	result := checker.Check(context.Background(), task, testResult())

	if !result.Checked {
		t.Error("style ran, so the result is checked")
	}
	if !result.Passed {
		t.Error("the errored category must not fail the aggregate")
	}
}

func TestCheckAggregateCriticalIsOrOverCategories(t *testing.T) {
	checker := New(Collaborators{
		Style: issueChecker(nil, nil),
		Security: issueChecker([]models.Issue{
			{Category: models.GoalSecurity, Severity: models.SeverityCritical, Message: "hardcoded secret"},
		}, nil),
	})

	task := &models.Task{ID: "task-1", GoalTags: map[string]string{
		models.GoalStyle:    "gofmt",
		models.GoalSecurity: "strict",
	}}
	result := checker.Check(context.Background(), task, testResult())

	if !result.Critical || result.Passed {
		t.Error("one critical category must fail the aggregate")
	}
	if result.Details[models.GoalStyle].Status != models.CheckPassed {
		t.Error("style category should still pass individually")
	}
}
