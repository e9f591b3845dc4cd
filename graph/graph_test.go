package graph_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/warp/statement-engine/graph"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func indexOf(order []string, id string) int {
	for i, v := range order {
		if v == id {
			return i
		}
	}
	return -1
}

// assertBefore fails unless a appears before b in order.
func assertBefore(t *testing.T, order []string, a, b string) {
	t.Helper()
	ia, ib := indexOf(order, a), indexOf(order, b)
	if ia < 0 || ib < 0 {
		t.Fatalf("order %v missing %q or %q", order, a, b)
	}
	if ia >= ib {
		t.Errorf("expected %q before %q, got %v", a, b, order)
	}
}

// =============================================================================
// BASIC STRUCTURE
// =============================================================================

func TestGraph_AddNode_Idempotent(t *testing.T) {
	g := graph.New()
	g.AddNode("REVENUE")
	g.AddNode("REVENUE")

	if g.Size() != 1 {
		t.Errorf("expected 1 node, got %d", g.Size())
	}
}

func TestGraph_AddEdge_ImplicitlyAddsNodes(t *testing.T) {
	g := graph.New()
	g.AddEdge("GROSS_PROFIT", "REVENUE")

	if g.Size() != 2 {
		t.Errorf("expected 2 nodes, got %d", g.Size())
	}
	deps := g.Dependencies("GROSS_PROFIT")
	if len(deps) != 1 || deps[0] != "REVENUE" {
		t.Errorf("expected [REVENUE], got %v", deps)
	}
}

func TestGraph_AddEdge_DuplicateIsNoOp(t *testing.T) {
	g := graph.New()
	g.AddEdge("A", "B")
	g.AddEdge("A", "B")

	if deps := g.Dependencies("A"); len(deps) != 1 {
		t.Errorf("expected single edge, got %v", deps)
	}
}

func TestGraph_Dependencies_InsertionOrder(t *testing.T) {
	g := graph.New()
	g.AddEdge("NET_INCOME", "EBT")
	g.AddEdge("NET_INCOME", "TAX_EXPENSE")

	deps := g.Dependencies("NET_INCOME")
	if len(deps) != 2 || deps[0] != "EBT" || deps[1] != "TAX_EXPENSE" {
		t.Errorf("expected [EBT TAX_EXPENSE], got %v", deps)
	}
}

func TestGraph_Dependencies_UnknownNodeIsEmpty(t *testing.T) {
	g := graph.New()
	if deps := g.Dependencies("MISSING"); len(deps) != 0 {
		t.Errorf("expected empty, got %v", deps)
	}
}

func TestGraph_Clear(t *testing.T) {
	g := graph.New()
	g.AddEdge("A", "B")
	g.Clear()

	if !g.Empty() {
		t.Error("expected empty graph after Clear")
	}
}

// =============================================================================
// CYCLE DETECTION
// =============================================================================

func TestGraph_HasCycles_Acyclic(t *testing.T) {
	g := graph.New()
	g.AddEdge("C", "B")
	g.AddEdge("B", "A")

	if g.HasCycles() {
		t.Error("acyclic graph reported as cyclic")
	}
}

func TestGraph_HasCycles_TwoNodeCycle(t *testing.T) {
	g := graph.New()
	g.AddEdge("A", "B")
	g.AddEdge("B", "A")

	if !g.HasCycles() {
		t.Error("expected cycle to be detected")
	}
}

func TestGraph_HasCycles_SelfEdge(t *testing.T) {
	// A self-edge is legal to add but always constitutes a cycle.
	g := graph.New()
	g.AddEdge("A", "A")

	if !g.HasCycles() {
		t.Error("self-edge must count as a cycle")
	}
	if _, err := g.TopologicalSort(); !errors.Is(err, graph.ErrCircularDependency) {
		t.Errorf("expected ErrCircularDependency, got %v", err)
	}
}

func TestGraph_FindCycle_ClosesLoop(t *testing.T) {
	g := graph.New()
	g.AddEdge("A", "B")
	g.AddEdge("B", "A")

	cycle := g.FindCycle()
	if len(cycle) < 3 {
		t.Fatalf("expected a closed path, got %v", cycle)
	}
	if cycle[0] != cycle[len(cycle)-1] {
		t.Errorf("first and last entries must match, got %v", cycle)
	}
	if indexOf(cycle, "A") < 0 || indexOf(cycle, "B") < 0 {
		t.Errorf("cycle must contain both A and B, got %v", cycle)
	}
}

func TestGraph_FindCycle_AcyclicReturnsEmpty(t *testing.T) {
	g := graph.New()
	g.AddEdge("B", "A")

	if cycle := g.FindCycle(); len(cycle) != 0 {
		t.Errorf("expected no cycle, got %v", cycle)
	}
}

// =============================================================================
// TOPOLOGICAL SORT
// =============================================================================

func TestGraph_TopologicalSort_DependenciesFirst(t *testing.T) {
	g := graph.New()
	g.AddEdge("GROSS_PROFIT", "REVENUE")
	g.AddEdge("GROSS_PROFIT", "COGS")
	g.AddEdge("NET_INCOME", "GROSS_PROFIT")

	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	assertBefore(t, order, "REVENUE", "GROSS_PROFIT")
	assertBefore(t, order, "COGS", "GROSS_PROFIT")
	assertBefore(t, order, "GROSS_PROFIT", "NET_INCOME")
}

func TestGraph_TopologicalSort_Diamond(t *testing.T) {
	// B→A, C→A, D→B, D→C: A first, D last, B and C strictly between.
	g := graph.New()
	g.AddEdge("B", "A")
	g.AddEdge("C", "A")
	g.AddEdge("D", "B")
	g.AddEdge("D", "C")

	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if order[0] != "A" {
		t.Errorf("expected A first, got %v", order)
	}
	if order[len(order)-1] != "D" {
		t.Errorf("expected D last, got %v", order)
	}
	assertBefore(t, order, "A", "B")
	assertBefore(t, order, "A", "C")
	assertBefore(t, order, "B", "D")
	assertBefore(t, order, "C", "D")
}

func TestGraph_TopologicalSort_FullyConnectedChain(t *testing.T) {
	// NODE_i depends on every NODE_j with j<i; only one valid order exists.
	g := graph.New()
	for i := 0; i < 10; i++ {
		g.AddNode(fmt.Sprintf("NODE_%d", i))
		for j := 0; j < i; j++ {
			g.AddEdge(fmt.Sprintf("NODE_%d", i), fmt.Sprintf("NODE_%d", j))
		}
	}

	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < 10; i++ {
		want := fmt.Sprintf("NODE_%d", i)
		if order[i] != want {
			t.Fatalf("position %d: expected %s, got %v", i, want, order)
		}
	}
}

func TestGraph_TopologicalSort_LexicographicTieBreak(t *testing.T) {
	// Three independent roots: ties resolve in ascending id order
	// regardless of insertion order.
	g := graph.New()
	g.AddNode("GAMMA")
	g.AddNode("ALPHA")
	g.AddNode("BETA")

	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"ALPHA", "BETA", "GAMMA"}
	for i, id := range want {
		if order[i] != id {
			t.Fatalf("expected %v, got %v", want, order)
		}
	}
}

func TestGraph_TopologicalSort_Idempotent(t *testing.T) {
	g := graph.New()
	g.AddEdge("D", "B")
	g.AddEdge("D", "C")
	g.AddEdge("B", "A")
	g.AddEdge("C", "A")

	first, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("lengths differ: %v vs %v", first, second)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("repeated sort differs: %v vs %v", first, second)
		}
	}
}

func TestGraph_TopologicalSort_CycleFails(t *testing.T) {
	g := graph.New()
	g.AddEdge("A", "B")
	g.AddEdge("B", "C")
	g.AddEdge("C", "A")

	_, err := g.TopologicalSort()
	if !errors.Is(err, graph.ErrCircularDependency) {
		t.Fatalf("expected ErrCircularDependency, got %v", err)
	}

	var cycleErr *graph.CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatal("expected *CycleError")
	}
	if len(cycleErr.Cycle) == 0 {
		t.Error("CycleError must carry the offending cycle")
	}
}
