package models

import "time"

// MilestoneStatus summarizes overall alignment at a milestone.
type MilestoneStatus string

const (
	// MilestoneAligned means score >= 90.
	MilestoneAligned MilestoneStatus = "aligned"
	// MilestonePartial means 70 <= score < 90.
	MilestonePartial MilestoneStatus = "partial"
	// MilestoneMisaligned means score < 70.
	MilestoneMisaligned MilestoneStatus = "misaligned"
)

// RecommendationPriority ranks milestone recommendations.
type RecommendationPriority string

const (
	// PriorityHigh flags misaligned tasks needing attention now.
	PriorityHigh RecommendationPriority = "high"
	// PriorityMedium flags an overall score below target.
	PriorityMedium RecommendationPriority = "medium"
)

// Recommendation is a suggested follow-up in a milestone report.
type Recommendation struct {
	// Priority is high or medium.
	Priority RecommendationPriority `json:"priority"`
	// Message describes the recommended action.
	Message string `json:"message"`
	// TaskIDs lists the tasks the recommendation refers to, if any.
	TaskIDs []string `json:"task_ids,omitempty"`
}

// GoalAchievement reports per-goal alignment over the tasks that declared
// that goal tag.
type GoalAchievement struct {
	// Declared is how many checked tasks declared this goal.
	Declared int `json:"declared"`
	// Achieved is how many of those passed the goal's category check.
	Achieved int `json:"achieved"`
	// Rate is Achieved / Declared, 0 when nothing declared the goal.
	Rate float64 `json:"rate"`
}

// MilestoneReport is a pure aggregate over the current result set.
// Generating it twice on identical input yields identical output.
type MilestoneReport struct {
	// Timestamp is when the report was generated.
	Timestamp time.Time `json:"timestamp"`
	// TotalTasks is the number of tasks with recorded results.
	TotalTasks int `json:"total_tasks"`
	// AlignedCount is how many checked tasks passed alignment.
	AlignedCount int `json:"aligned_count"`
	// MisalignedCount is how many checked tasks failed alignment.
	MisalignedCount int `json:"misaligned_count"`
	// NotCheckedCount is how many tasks could not be checked.
	NotCheckedCount int `json:"not_checked_count"`
	// Score is round(aligned / total * 100) over checked tasks.
	Score int `json:"score"`
	// Status is derived from Score: >=90 aligned, 70-89 partial, <70 misaligned.
	Status MilestoneStatus `json:"status"`
	// PerGoal maps goal name to its achievement numbers.
	PerGoal map[string]GoalAchievement `json:"per_goal,omitempty"`
	// Recommendations lists suggested follow-ups.
	Recommendations []Recommendation `json:"recommendations,omitempty"`
}

// RunSummary aggregates counters for a finished run.
type RunSummary struct {
	// TotalTasks is the number of tasks in the run.
	TotalTasks int `json:"total_tasks"`
	// CompletedTasks is how many reached Completed.
	CompletedTasks int `json:"completed_tasks"`
	// BlockedTasks is how many ended Blocked.
	BlockedTasks int `json:"blocked_tasks"`
	// AlignedTasks is how many completed tasks passed alignment.
	AlignedTasks int `json:"aligned_tasks"`
	// MisalignedTasks is how many completed tasks failed alignment.
	MisalignedTasks int `json:"misaligned_tasks"`
	// CompletionRate is CompletedTasks / TotalTasks.
	CompletionRate float64 `json:"completion_rate"`
	// AlignmentRate is AlignedTasks over completed tasks whose alignment
	// could be checked; not-checked tasks are excluded from the denominator.
	AlignmentRate float64 `json:"alignment_rate"`
}

// ExecutionReport is the final output of one scheduler run.
type ExecutionReport struct {
	// RunID identifies the run the report belongs to.
	RunID string `json:"run_id"`
	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`
	// FinishedAt is when the run terminated.
	FinishedAt time.Time `json:"finished_at"`
	// Aborted is true when the run ended via an abort decision.
	Aborted bool `json:"aborted,omitempty"`
	// Completed lists task IDs that reached Completed, in completion order.
	Completed []string `json:"completed"`
	// Blocked lists task IDs that ended Blocked.
	Blocked []string `json:"blocked"`
	// Skipped lists task IDs that were skipped by decision.
	Skipped []string `json:"skipped"`
	// Failed lists task IDs whose execution failed without recovery.
	Failed []string `json:"failed"`
	// Results maps task ID to its recorded worker result.
	Results map[string]*WorkerResult `json:"results"`
	// Summary aggregates the run counters.
	Summary RunSummary `json:"summary"`
}
