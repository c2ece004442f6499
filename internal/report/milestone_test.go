package report

import (
	"reflect"
	"testing"

	"github.com/kestrelworks/steward/pkg/models"
)

func alignedResult(taskID string, passed, checked bool) *models.WorkerResult {
	return &models.WorkerResult{
		TaskID:  taskID,
		Success: true,
		Alignment: &models.AlignmentResult{
			TaskID:  taskID,
			Passed:  passed,
			Checked: checked,
		},
	}
}

func TestMilestoneReportAllAligned(t *testing.T) {
	tasks := []*models.Task{{ID: "1"}, {ID: "2"}}
	results := map[string]*models.WorkerResult{
		"1": alignedResult("1", true, true),
		"2": alignedResult("2", true, true),
	}

	r := GenerateMilestoneReport(tasks, results)
	if r.Score != 100 {
		t.Errorf("expected score 100, got %d", r.Score)
	}
	if r.Status != models.MilestoneAligned {
		t.Errorf("expected aligned status, got %s", r.Status)
	}
	if len(r.Recommendations) != 0 {
		t.Errorf("expected no recommendations, got %v", r.Recommendations)
	}
}

func TestMilestoneReportThresholds(t *testing.T) {
	cases := []struct {
		aligned, misaligned int
		score               int
		status              models.MilestoneStatus
	}{
		{9, 1, 90, models.MilestoneAligned},
		{8, 2, 80, models.MilestonePartial},
		{7, 3, 70, models.MilestonePartial},
		{6, 4, 60, models.MilestoneMisaligned},
	}

	for _, tc := range cases {
		var tasks []*models.Task
		results := make(map[string]*models.WorkerResult)
		id := 0
		add := func(passed bool) {
			taskID := string(rune('a' + id))
			id++
			tasks = append(tasks, &models.Task{ID: taskID})
			results[taskID] = alignedResult(taskID, passed, true)
		}
		for i := 0; i < tc.aligned; i++ {
			add(true)
		}
		for i := 0; i < tc.misaligned; i++ {
			add(false)
		}

		r := GenerateMilestoneReport(tasks, results)
		if r.Score != tc.score {
			t.Errorf("%d/%d: expected score %d, got %d", tc.aligned, tc.misaligned, tc.score, r.Score)
		}
		if r.Status != tc.status {
			t.Errorf("%d/%d: expected status %s, got %s", tc.aligned, tc.misaligned, tc.status, r.Status)
		}
	}
}

func TestMilestoneReportExcludesNotChecked(t *testing.T) {
	tasks := []*models.Task{{ID: "1"}, {ID: "2"}, {ID: "3"}}
	results := map[string]*models.WorkerResult{
		"1": alignedResult("1", true, true),
		"2": alignedResult("2", false, false), // checker errored
		"3": alignedResult("3", true, true),
	}

	r := GenerateMilestoneReport(tasks, results)
	if r.NotCheckedCount != 1 {
		t.Errorf("expected 1 not-checked, got %d", r.NotCheckedCount)
	}
	if r.Score != 100 {
		t.Errorf("not-checked tasks must not drag the score; got %d", r.Score)
	}
}

func TestMilestoneReportRecommendations(t *testing.T) {
	tasks := []*models.Task{{ID: "1"}, {ID: "2"}, {ID: "3"}, {ID: "4"}}
	results := map[string]*models.WorkerResult{
		"1": alignedResult("1", true, true),
		"2": alignedResult("2", false, true),
		"3": alignedResult("3", false, true),
		"4": alignedResult("4", true, true),
	}

	r := GenerateMilestoneReport(tasks, results)
	if r.Score != 50 {
		t.Fatalf("expected score 50, got %d", r.Score)
	}
	if len(r.Recommendations) != 2 {
		t.Fatalf("expected high + medium recommendations, got %v", r.Recommendations)
	}

	high := r.Recommendations[0]
	if high.Priority != models.PriorityHigh {
		t.Errorf("expected first recommendation high priority, got %s", high.Priority)
	}
	if !reflect.DeepEqual(high.TaskIDs, []string{"2", "3"}) {
		t.Errorf("expected misaligned ids [2 3], got %v", high.TaskIDs)
	}
	if r.Recommendations[1].Priority != models.PriorityMedium {
		t.Errorf("expected second recommendation medium priority, got %s", r.Recommendations[1].Priority)
	}
}

func TestMilestoneReportPerGoalAchievement(t *testing.T) {
	tasks := []*models.Task{
		{ID: "1", GoalTags: map[string]string{models.GoalTesting: "90%"}},
		{ID: "2", GoalTags: map[string]string{models.GoalTesting: "90%", models.GoalStyle: "gofmt"}},
		{ID: "3"}, // declares nothing, must not appear in per-goal numbers
	}

	res1 := alignedResult("1", true, true)
	res1.Alignment.Details = map[string]models.CheckResult{
		models.GoalTesting: {Category: models.GoalTesting, Status: models.CheckPassed, Passed: true},
	}
	res2 := alignedResult("2", false, true)
	res2.Alignment.Details = map[string]models.CheckResult{
		models.GoalTesting: {Category: models.GoalTesting, Status: models.CheckFailed},
		models.GoalStyle:   {Category: models.GoalStyle, Status: models.CheckPassed, Passed: true},
	}
	res3 := alignedResult("3", true, true)

	r := GenerateMilestoneReport(tasks, map[string]*models.WorkerResult{
		"1": res1, "2": res2, "3": res3,
	})

	testing_ := r.PerGoal[models.GoalTesting]
	if testing_.Declared != 2 || testing_.Achieved != 1 {
		t.Errorf("testing goal: expected 1/2, got %d/%d", testing_.Achieved, testing_.Declared)
	}
	style := r.PerGoal[models.GoalStyle]
	if style.Declared != 1 || style.Achieved != 1 {
		t.Errorf("style goal: expected 1/1, got %d/%d", style.Achieved, style.Declared)
	}
}

func TestMilestoneReportIdempotent(t *testing.T) {
	tasks := []*models.Task{{ID: "1"}, {ID: "2"}, {ID: "3"}}
	results := map[string]*models.WorkerResult{
		"1": alignedResult("1", true, true),
		"2": alignedResult("2", false, true),
		"3": alignedResult("3", true, true),
	}

	first := GenerateMilestoneReport(tasks, results)
	second := GenerateMilestoneReport(tasks, results)

	if first.Score != second.Score {
		t.Errorf("score not idempotent: %d vs %d", first.Score, second.Score)
	}
	if first.Status != second.Status {
		t.Errorf("status not idempotent: %s vs %s", first.Status, second.Status)
	}
	if !reflect.DeepEqual(first.Recommendations, second.Recommendations) {
		t.Errorf("recommendations not idempotent: %v vs %v", first.Recommendations, second.Recommendations)
	}
	if !reflect.DeepEqual(first.PerGoal, second.PerGoal) {
		t.Errorf("per-goal not idempotent: %v vs %v", first.PerGoal, second.PerGoal)
	}
}

func TestMilestoneReportEmptyResultSet(t *testing.T) {
	r := GenerateMilestoneReport(nil, nil)
	if r.Score != 100 || r.Status != models.MilestoneAligned {
		t.Errorf("empty result set should be vacuously aligned, got score=%d status=%s", r.Score, r.Status)
	}
}
