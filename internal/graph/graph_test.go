package graph

import (
	"testing"

	"github.com/orbitalflow/engine/internal/node"
	"github.com/orbitalflow/engine/internal/orcherr"
)

func spec(id string, deps ...string) *node.Spec {
	return &node.Spec{ID: id, Kind: node.KindTool, DependsOn: deps, Tool: &node.ToolConfig{ToolName: "noop"}}
}

func TestNewDetectsCycle(t *testing.T) {
	_, err := New([]*node.Spec{
		spec("a", "b"),
		spec("b", "a"),
	})
	if err == nil {
		t.Fatal("expected cycle detection error, got nil")
	}
	if !orcherr.Is(err, orcherr.KindCircularDependency) {
		t.Errorf("expected KindCircularDependency, got %v", err)
	}
}

func TestNewRejectsUnknownDependency(t *testing.T) {
	_, err := New([]*node.Spec{spec("a", "missing")})
	if !orcherr.Is(err, orcherr.KindValidation) {
		t.Fatalf("expected validation error for unknown dependency, got %v", err)
	}
}

func TestLevels(t *testing.T) {
	g, err := New([]*node.Spec{
		spec("c", "a", "b"),
		spec("a"),
		spec("b"),
		spec("d", "c"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	levels := g.Levels()
	if len(levels) != 3 {
		t.Fatalf("expected 3 levels, got %d: %v", len(levels), levels)
	}
	if len(levels[0]) != 2 || levels[0][0] != "a" || levels[0][1] != "b" {
		t.Errorf("level 0 = %v, want [a b]", levels[0])
	}
	if len(levels[1]) != 1 || levels[1][0] != "c" {
		t.Errorf("level 1 = %v, want [c]", levels[1])
	}
	if len(levels[2]) != 1 || levels[2][0] != "d" {
		t.Errorf("level 2 = %v, want [d]", levels[2])
	}
}

func TestTopologicalOrderRespectsLevels(t *testing.T) {
	g, err := New([]*node.Spec{spec("b", "a"), spec("a")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	order := g.TopologicalOrder()
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Errorf("order = %v, want [a b]", order)
	}
}

func TestCriticalPath(t *testing.T) {
	g, err := New([]*node.Spec{
		spec("a"),
		spec("b", "a"),
		spec("c", "b"),
		spec("d", "a"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	path := g.CriticalPath()
	want := []string{"a", "b", "c"}
	if len(path) != len(want) {
		t.Fatalf("path = %v, want %v", path, want)
	}
	for i := range want {
		if path[i] != want[i] {
			t.Fatalf("path = %v, want %v", path, want)
		}
	}
}

func TestParallelizableSetsMatchesLevels(t *testing.T) {
	g, err := New([]*node.Spec{spec("a"), spec("b")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(g.ParallelizableSets()) != len(g.Levels()) {
		t.Errorf("ParallelizableSets diverged from Levels")
	}
}
