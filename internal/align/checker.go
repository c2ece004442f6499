// Package align evaluates completed task output against declared goal tags.
//
// The package fixes only the aggregation and threshold policy. Concrete
// detection (AST inspection, lint output, benchmark numbers) is supplied by
// external analysis collaborators; a missing collaborator skips its category.
package align

import (
	"context"
	"fmt"

	"github.com/kestrelworks/steward/pkg/models"
)

// Input is what a category collaborator receives.
type Input struct {
	// TaskID is the task under evaluation.
	TaskID string
	// Target is the declared goal tag value for this category.
	Target string
	// Output is the task's produced artifact.
	Output string
	// TestOutput is the raw test-run output, if any.
	TestOutput string
}

// IssueChecker analyzes output for one of the issue-based categories
// (architecture, style, security). It returns findings with severities
// already assigned; the category passes iff no finding is critical.
type IssueChecker func(ctx context.Context, in Input) ([]models.Issue, error)

// TestReport is what a testing collaborator measures.
type TestReport struct {
	// Failures is the number of failed test runs.
	Failures int
	// Coverage is the measured coverage fraction (0..1).
	Coverage float64
	// CoverageTarget is the declared coverage goal (0..1); zero means none.
	CoverageTarget float64
}

// TestChecker runs the project's tests and reports the outcome.
type TestChecker func(ctx context.Context, in Input) (TestReport, error)

// Measurement is what a performance collaborator measures.
type Measurement struct {
	// Measured is the observed value.
	Measured float64
	// Target is the declared goal value.
	Target float64
	// Unit labels the values for messages (e.g. "ms").
	Unit string
}

// PerfChecker benchmarks the task's output against its performance target.
type PerfChecker func(ctx context.Context, in Input) (Measurement, error)

// Collaborators holds the external analysis functions per category.
// Any of them may be nil, in which case that category is never invoked.
type Collaborators struct {
	Architecture IssueChecker
	Style        IssueChecker
	Security     IssueChecker
	Testing      TestChecker
	Performance  PerfChecker
}

// Checker aggregates category results into one alignment verdict per task.
type Checker struct {
	collab Collaborators
}

// New creates a Checker with the given analysis collaborators.
func New(c Collaborators) *Checker {
	return &Checker{collab: c}
}

// Check evaluates one completed task against its goal tags. Categories are
// invoked only when the corresponding tag is present and not a sentinel
// ("none"/"standard"). A collaborator error degrades that category to an
// error status rather than failing the check; it is excluded from the
// alignment-rate denominator downstream. Check is pure with respect to its
// inputs and never mutates the task or the worker result.
func (c *Checker) Check(ctx context.Context, task *models.Task, res *models.WorkerResult) *models.AlignmentResult {
	result := &models.AlignmentResult{
		TaskID:  task.ID,
		Passed:  true,
		Details: make(map[string]models.CheckResult),
	}

	invoked := 0
	errored := 0
	record := func(cr models.CheckResult) {
		result.Details[cr.Category] = cr
		switch cr.Status {
		case models.CheckErrored:
			errored++
		case models.CheckPassed, models.CheckFailed:
			invoked++
		}
		if cr.Critical {
			result.Critical = true
			result.Passed = false
		}
		result.Issues = append(result.Issues, cr.Issues...)
	}

	for _, cat := range []struct {
		name    string
		checker IssueChecker
	}{
		{models.GoalArchitecture, c.collab.Architecture},
		{models.GoalStyle, c.collab.Style},
		{models.GoalSecurity, c.collab.Security},
	} {
		target, ok := task.GoalTags[cat.name]
		if !ok || models.SentinelGoalValue(target) || cat.checker == nil {
			continue
		}
		record(c.checkIssues(ctx, cat.name, cat.checker, Input{
			TaskID: task.ID, Target: target, Output: res.Output, TestOutput: res.TestOutput,
		}))
	}

	if target, ok := task.GoalTags[models.GoalTesting]; ok && !models.SentinelGoalValue(target) && c.collab.Testing != nil {
		record(c.checkTesting(ctx, Input{
			TaskID: task.ID, Target: target, Output: res.Output, TestOutput: res.TestOutput,
		}))
	}

	if target, ok := task.GoalTags[models.GoalPerformance]; ok && !models.SentinelGoalValue(target) && c.collab.Performance != nil {
		record(c.checkPerformance(ctx, Input{
			TaskID: task.ID, Target: target, Output: res.Output, TestOutput: res.TestOutput,
		}))
	}

	result.Checked = invoked > 0
	if invoked == 0 && errored > 0 {
		// Every invoked category errored: the task is not-checked, which is
		// distinct from misaligned.
		result.Passed = false
		result.Critical = false
	}
	return result
}

// checkIssues applies the issue-category policy: passed iff no critical
// finding. Warnings and info never fail the category.
func (c *Checker) checkIssues(ctx context.Context, category string, checker IssueChecker, in Input) models.CheckResult {
	issues, err := checker(ctx, in)
	if err != nil {
		return models.CheckResult{Category: category, Status: models.CheckErrored, Err: err.Error()}
	}

	cr := models.CheckResult{Category: category, Status: models.CheckPassed, Passed: true, Issues: issues}
	for _, issue := range issues {
		if issue.Severity == models.SeverityCritical {
			cr.Status = models.CheckFailed
			cr.Passed = false
			cr.Critical = true
			break
		}
	}
	return cr
}

// checkTesting applies the testing policy: any test-run failure is critical
// regardless of coverage; coverage below target is only info or warning.
func (c *Checker) checkTesting(ctx context.Context, in Input) models.CheckResult {
	report, err := c.collab.Testing(ctx, in)
	if err != nil {
		return models.CheckResult{Category: models.GoalTesting, Status: models.CheckErrored, Err: err.Error()}
	}

	cr := models.CheckResult{Category: models.GoalTesting, Status: models.CheckPassed, Passed: true}
	if report.Failures > 0 {
		cr.Status = models.CheckFailed
		cr.Passed = false
		cr.Critical = true
		cr.Issues = append(cr.Issues, models.Issue{
			Category: models.GoalTesting,
			Severity: models.SeverityCritical,
			Message:  fmt.Sprintf("%d test(s) failed", report.Failures),
		})
	}
	if report.CoverageTarget > 0 && report.Coverage < report.CoverageTarget {
		severity := models.SeverityInfo
		// More than ten points under target is worth a warning.
		if report.CoverageTarget-report.Coverage > 0.10 {
			severity = models.SeverityWarning
		}
		cr.Issues = append(cr.Issues, models.Issue{
			Category: models.GoalTesting,
			Severity: severity,
			Message: fmt.Sprintf("coverage %.0f%% below target %.0f%%",
				report.Coverage*100, report.CoverageTarget*100),
		})
	}
	return cr
}

// checkPerformance applies the performance policy: measured more than 2x the
// target is critical, between 1x and 2x is a warning, at or under passes.
func (c *Checker) checkPerformance(ctx context.Context, in Input) models.CheckResult {
	m, err := c.collab.Performance(ctx, in)
	if err != nil {
		return models.CheckResult{Category: models.GoalPerformance, Status: models.CheckErrored, Err: err.Error()}
	}

	cr := models.CheckResult{Category: models.GoalPerformance, Status: models.CheckPassed, Passed: true}
	if m.Target <= 0 || m.Measured <= m.Target {
		return cr
	}

	severity := models.SeverityWarning
	if m.Measured > 2*m.Target {
		severity = models.SeverityCritical
		cr.Status = models.CheckFailed
		cr.Passed = false
		cr.Critical = true
	}
	cr.Issues = append(cr.Issues, models.Issue{
		Category: models.GoalPerformance,
		Severity: severity,
		Message: fmt.Sprintf("measured %.2f%s exceeds target %.2f%s",
			m.Measured, m.Unit, m.Target, m.Unit),
	})
	return cr
}
