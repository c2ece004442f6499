package graph

import (
	"errors"
	"testing"

	"github.com/kestrelworks/steward/pkg/models"
)

func task(id string, deps ...string) *models.Task {
	return &models.Task{ID: id, Title: "Task " + id, Dependencies: deps, Status: models.TaskStatusPending}
}

func TestBuildSimple(t *testing.T) {
	g, err := Build([]*models.Task{task("1"), task("2"), task("3")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Size() != 3 {
		t.Errorf("expected size 3, got %d", g.Size())
	}
	if len(g.Order()) != 3 {
		t.Errorf("expected order length 3, got %d", len(g.Order()))
	}
}

func TestBuildEdges(t *testing.T) {
	g, err := Build([]*models.Task{
		task("1"),
		task("2", "1"),
		task("3", "1", "2"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if deps := g.Dependencies("3"); len(deps) != 2 {
		t.Errorf("expected 2 dependencies for task 3, got %v", deps)
	}
	if dependents := g.Dependents("1"); len(dependents) != 2 {
		t.Errorf("expected 2 dependents of task 1, got %v", dependents)
	}
}

func TestBuildUnknownDependency(t *testing.T) {
	_, err := Build([]*models.Task{task("1", "missing")})
	if err == nil {
		t.Fatal("expected error for unknown dependency")
	}
	if !errors.Is(err, ErrUnknownDependency) {
		t.Errorf("expected ErrUnknownDependency, got %v", err)
	}

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatal("expected a *ValidationError")
	}
	if len(verr.TaskIDs) != 1 || verr.TaskIDs[0] != "1" {
		t.Errorf("expected offending task 1, got %v", verr.TaskIDs)
	}
}

func TestBuildDuplicateID(t *testing.T) {
	_, err := Build([]*models.Task{task("1"), task("1")})
	if !errors.Is(err, ErrDuplicateTask) {
		t.Errorf("expected ErrDuplicateTask, got %v", err)
	}
}

func TestBuildCycleDirect(t *testing.T) {
	// 1 -> 2 -> 1
	_, err := Build([]*models.Task{task("1", "2"), task("2", "1")})
	if err == nil {
		t.Fatal("expected cycle error")
	}
	if !errors.Is(err, ErrCycleDetected) {
		t.Errorf("expected ErrCycleDetected, got %v", err)
	}

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatal("expected a *ValidationError")
	}
	if len(verr.TaskIDs) == 0 {
		t.Error("expected the cycle members to be named")
	}
}

func TestBuildCycleIndirect(t *testing.T) {
	// 1 -> 2 -> 3 -> 1, with 4 off to the side
	_, err := Build([]*models.Task{
		task("1", "3"),
		task("2", "1"),
		task("3", "2"),
		task("4"),
	})
	if !errors.Is(err, ErrCycleDetected) {
		t.Errorf("expected ErrCycleDetected, got %v", err)
	}

	var verr *ValidationError
	errors.As(err, &verr)
	for _, id := range verr.TaskIDs {
		if id == "4" {
			t.Error("task 4 is not part of the cycle")
		}
	}
}

func TestTopologicalOrderRespectsDependencies(t *testing.T) {
	g, err := Build([]*models.Task{
		task("4", "2", "3"),
		task("2", "1"),
		task("3", "1"),
		task("1"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	order := g.Order()
	if len(order) != 4 {
		t.Fatalf("expected order length 4, got %d", len(order))
	}
	for _, id := range order {
		for _, dep := range g.Dependencies(id) {
			if g.Position(dep) >= g.Position(id) {
				t.Errorf("dependency %s should precede %s in order %v", dep, id, order)
			}
		}
	}
}

func TestTopologicalOrderDeterministicTieBreak(t *testing.T) {
	// b and a are both independent; input order is b first, so the canonical
	// order must list b before a every time.
	build := func() []string {
		g, err := Build([]*models.Task{task("b"), task("a"), task("c", "b", "a")})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return g.Order()
	}

	first := build()
	if first[0] != "b" || first[1] != "a" || first[2] != "c" {
		t.Fatalf("expected input-order tie break [b a c], got %v", first)
	}
	for i := 0; i < 10; i++ {
		again := build()
		for j := range first {
			if again[j] != first[j] {
				t.Fatalf("order not deterministic: %v vs %v", first, again)
			}
		}
	}
}

func TestTransitiveDependentsDiamond(t *testing.T) {
	// 1 <- 2, 1 <- 3, {2,3} <- 4: diamond shape, 4 must appear exactly once.
	g, err := Build([]*models.Task{
		task("1"),
		task("2", "1"),
		task("3", "1"),
		task("4", "2", "3"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deps := g.TransitiveDependents("1")
	if len(deps) != 3 {
		t.Fatalf("expected 3 transitive dependents, got %v", deps)
	}
	seen := make(map[string]int)
	for _, id := range deps {
		seen[id]++
	}
	for _, id := range []string{"2", "3", "4"} {
		if seen[id] != 1 {
			t.Errorf("expected %s exactly once, got %d", id, seen[id])
		}
	}
}

func TestPositionUnknownSortsLast(t *testing.T) {
	g, err := Build([]*models.Task{task("1")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Position("nope") != 1 {
		t.Errorf("expected unknown position to sort last, got %d", g.Position("nope"))
	}
}
