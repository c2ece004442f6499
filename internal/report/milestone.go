package report

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/kestrelworks/steward/pkg/models"
)

// GenerateMilestoneReport computes an aggregate alignment report over the
// current result set. It is a pure query: no side effects, and identical
// input yields identical score, status, per-goal numbers and recommendations.
// Tasks are walked in input order so every derived list is deterministic.
//
// The score denominator is the set of checked tasks; tasks whose alignment
// could not be checked are counted separately and excluded, consistent with
// how the alignment rate treats checker errors.
func GenerateMilestoneReport(tasks []*models.Task, results map[string]*models.WorkerResult) *models.MilestoneReport {
	r := &models.MilestoneReport{
		Timestamp: time.Now(),
		PerGoal:   make(map[string]models.GoalAchievement),
	}

	var misaligned []string
	for _, task := range tasks {
		res, ok := results[task.ID]
		if !ok || res.Alignment == nil {
			continue
		}
		r.TotalTasks++

		alignment := res.Alignment
		if !alignment.Checked {
			r.NotCheckedCount++
			continue
		}
		if alignment.Passed {
			r.AlignedCount++
		} else {
			r.MisalignedCount++
			misaligned = append(misaligned, task.ID)
		}

		// Per-goal achievement counts only tasks that declared the goal.
		for goal, target := range task.GoalTags {
			if models.SentinelGoalValue(target) {
				continue
			}
			detail, ran := alignment.Details[goal]
			if !ran || detail.Status == models.CheckErrored || detail.Status == models.CheckNotRun {
				continue
			}
			ach := r.PerGoal[goal]
			ach.Declared++
			if detail.Passed {
				ach.Achieved++
			}
			ach.Rate = float64(ach.Achieved) / float64(ach.Declared)
			r.PerGoal[goal] = ach
		}
	}

	checked := r.AlignedCount + r.MisalignedCount
	if checked == 0 {
		// Nothing produced a verdict; vacuously aligned.
		r.Score = 100
	} else {
		r.Score = int(math.Round(float64(r.AlignedCount) / float64(checked) * 100))
	}

	switch {
	case r.Score >= 90:
		r.Status = models.MilestoneAligned
	case r.Score >= 70:
		r.Status = models.MilestonePartial
	default:
		r.Status = models.MilestoneMisaligned
	}

	if len(misaligned) > 0 {
		r.Recommendations = append(r.Recommendations, models.Recommendation{
			Priority: models.PriorityHigh,
			Message:  fmt.Sprintf("review misaligned tasks: %s", strings.Join(misaligned, ", ")),
			TaskIDs:  misaligned,
		})
	}
	if r.Score < 80 {
		r.Recommendations = append(r.Recommendations, models.Recommendation{
			Priority: models.PriorityMedium,
			Message:  fmt.Sprintf("overall alignment score %d is below 80; tighten goal adherence before the next milestone", r.Score),
		})
	}
	return r
}
