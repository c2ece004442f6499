// Package classify partitions tasks by dependency shape and estimates how
// many workers a run can usefully employ.
package classify

import "github.com/kestrelworks/steward/pkg/models"

// DefaultCap is the hard ceiling on concurrent workers.
const DefaultCap = 5

// Classification partitions a task list into independent and dependent sets.
type Classification struct {
	// Independent lists IDs of tasks with no declared dependencies, in input order.
	Independent []string
	// Dependent lists IDs of tasks with at least one dependency, in input order.
	Dependent []string
	// MaxParallel is min(len(Independent), cap).
	MaxParallel int
}

// Suggestion is an advisory worker count. It never constrains the scheduler,
// which always honors the caller-supplied worker count capped at the ceiling.
type Suggestion struct {
	// Count is the suggested number of workers.
	Count int
	// Rationale explains the suggestion.
	Rationale string
}

// Classify partitions tasks and computes the parallelism ceiling.
// A cap of zero or less falls back to DefaultCap.
func Classify(tasks []*models.Task, cap int) Classification {
	if cap <= 0 {
		cap = DefaultCap
	}

	var c Classification
	for _, task := range tasks {
		if task.Independent() {
			c.Independent = append(c.Independent, task.ID)
		} else {
			c.Dependent = append(c.Dependent, task.ID)
		}
	}

	c.MaxParallel = len(c.Independent)
	if c.MaxParallel > cap {
		c.MaxParallel = cap
	}
	return c
}

// SuggestWorkerCount proposes a worker count from the independent-task count:
//
//	0 independent  -> 1 (everything is sequential anyway)
//	1 independent  -> 1
//	2-3            -> the count itself
//	4 or more      -> MaxParallel (adaptive, capped)
func (c Classification) SuggestWorkerCount() Suggestion {
	n := len(c.Independent)
	switch {
	case n == 0:
		return Suggestion{Count: 1, Rationale: "all tasks have dependencies, sequential execution needed"}
	case n == 1:
		return Suggestion{Count: 1, Rationale: "only one independent task"}
	case n <= 3:
		return Suggestion{Count: n, Rationale: "small number of independent tasks"}
	default:
		return Suggestion{Count: c.MaxParallel, Rationale: "adaptive, capped at ceiling"}
	}
}

// ClampWorkers bounds a caller-supplied worker count to [1, cap].
// A cap of zero or less falls back to DefaultCap.
func ClampWorkers(requested, cap int) int {
	if cap <= 0 {
		cap = DefaultCap
	}
	if requested < 1 {
		return 1
	}
	if requested > cap {
		return cap
	}
	return requested
}
