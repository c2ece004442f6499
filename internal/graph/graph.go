// Package graph builds and validates the task dependency graph.
package graph

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/kestrelworks/steward/pkg/models"
)

// ErrCycleDetected indicates a circular dependency was found in the task graph.
var ErrCycleDetected = errors.New("circular dependency detected")

// ErrUnknownDependency indicates a task depends on an id with no matching task.
var ErrUnknownDependency = errors.New("unknown dependency")

// ErrDuplicateTask indicates two tasks share the same id.
var ErrDuplicateTask = errors.New("duplicate task id")

// ValidationError describes why a task list failed graph validation.
// It wraps one of the sentinel errors above so callers can use errors.Is.
type ValidationError struct {
	// Err is the underlying sentinel (ErrCycleDetected, ErrUnknownDependency, ErrDuplicateTask).
	Err error
	// TaskIDs names the offending tasks: the unresolved members of a cycle,
	// or the task declaring an unknown dependency.
	TaskIDs []string
	// Detail carries extra context, e.g. the missing dependency id.
	Detail string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	msg := e.Err.Error()
	if len(e.TaskIDs) > 0 {
		msg = fmt.Sprintf("%s: tasks [%s]", msg, strings.Join(e.TaskIDs, ", "))
	}
	if e.Detail != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Detail)
	}
	return msg
}

// Unwrap returns the sentinel error for errors.Is checks.
func (e *ValidationError) Unwrap() error { return e.Err }

// DependencyGraph is a validated directed acyclic graph of tasks.
// It is built once by Build and read-only afterwards; one scheduler run owns
// one graph instance and nothing is shared across runs.
type DependencyGraph struct {
	// nodes maps task ID to the task itself.
	nodes map[string]*models.Task
	// deps maps task ID to the IDs of tasks it depends on (forward edges).
	deps map[string][]string
	// dependents maps task ID to the IDs of tasks that depend on it (reverse edges).
	dependents map[string][]string
	// order is the canonical topological order, ties broken by input order.
	order []string
	// pos maps task ID to its position in the canonical order.
	pos map[string]int
}

// Build constructs and validates a dependency graph from an ordered task list.
// Forward and reverse edges are built in one pass; validation runs Kahn's
// algorithm with the zero-in-degree queue seeded and drained in original input
// order, so the returned topological order is deterministic.
func Build(tasks []*models.Task) (*DependencyGraph, error) {
	g := &DependencyGraph{
		nodes:      make(map[string]*models.Task, len(tasks)),
		deps:       make(map[string][]string, len(tasks)),
		dependents: make(map[string][]string, len(tasks)),
		pos:        make(map[string]int, len(tasks)),
	}

	// Register nodes, preserving input order for tie-breaking.
	inputOrder := make([]string, 0, len(tasks))
	for _, task := range tasks {
		if _, exists := g.nodes[task.ID]; exists {
			return nil, &ValidationError{Err: ErrDuplicateTask, TaskIDs: []string{task.ID}}
		}
		g.nodes[task.ID] = task
		inputOrder = append(inputOrder, task.ID)
	}

	// Build forward and reverse edges in one pass.
	for _, task := range tasks {
		for _, depID := range task.Dependencies {
			if _, exists := g.nodes[depID]; !exists {
				return nil, &ValidationError{
					Err:     ErrUnknownDependency,
					TaskIDs: []string{task.ID},
					Detail:  fmt.Sprintf("depends on %q", depID),
				}
			}
			g.deps[task.ID] = append(g.deps[task.ID], depID)
			g.dependents[depID] = append(g.dependents[depID], task.ID)
		}
	}

	// Kahn's algorithm: repeatedly remove zero-in-degree tasks.
	inDegree := make(map[string]int, len(tasks))
	for _, id := range inputOrder {
		inDegree[id] = len(g.deps[id])
	}

	queue := make([]string, 0, len(tasks))
	for _, id := range inputOrder {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	order := make([]string, 0, len(tasks))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)

		// Newly-freed dependents are collected in input order so that ties
		// among simultaneously-ready tasks stay deterministic.
		var freed []string
		for _, depID := range g.dependents[id] {
			inDegree[depID]--
			if inDegree[depID] == 0 {
				freed = append(freed, depID)
			}
		}
		sort.Slice(freed, func(i, j int) bool {
			return inputIndex(inputOrder, freed[i]) < inputIndex(inputOrder, freed[j])
		})
		queue = append(queue, freed...)
	}

	if len(order) < len(tasks) {
		// Tasks never reaching in-degree zero form or depend on a cycle.
		var unresolved []string
		for _, id := range inputOrder {
			if inDegree[id] > 0 {
				unresolved = append(unresolved, id)
			}
		}
		return nil, &ValidationError{Err: ErrCycleDetected, TaskIDs: unresolved}
	}

	g.order = order
	for i, id := range order {
		g.pos[id] = i
	}
	return g, nil
}

func inputIndex(inputOrder []string, id string) int {
	for i, v := range inputOrder {
		if v == id {
			return i
		}
	}
	return len(inputOrder)
}

// Task returns the task for a given ID, or nil if not found.
func (g *DependencyGraph) Task(id string) *models.Task {
	return g.nodes[id]
}

// Size returns the number of tasks in the graph.
func (g *DependencyGraph) Size() int {
	return len(g.nodes)
}

// Dependencies returns the IDs the given task depends on.
func (g *DependencyGraph) Dependencies(id string) []string {
	return g.deps[id]
}

// Dependents returns the IDs of tasks that directly depend on the given task.
func (g *DependencyGraph) Dependents(id string) []string {
	return g.dependents[id]
}

// TransitiveDependents returns every task reachable from the given task over
// reverse edges, breadth-first, each id at most once.
func (g *DependencyGraph) TransitiveDependents(id string) []string {
	seen := map[string]bool{id: true}
	var result []string
	queue := append([]string(nil), g.dependents[id]...)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if seen[next] {
			continue
		}
		seen[next] = true
		result = append(result, next)
		queue = append(queue, g.dependents[next]...)
	}
	return result
}

// Order returns the canonical topological order of all task IDs.
func (g *DependencyGraph) Order() []string {
	return g.order
}

// Position returns the canonical topological position of a task.
// Unknown IDs sort last.
func (g *DependencyGraph) Position(id string) int {
	if p, ok := g.pos[id]; ok {
		return p
	}
	return len(g.order)
}
