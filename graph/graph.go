/*
Package graph provides the dependency graph used to order calculations.

PURPOSE:
  Tracks which line items depend on which other line items so that a
  statement can be calculated in a single pass. The graph answers three
  questions:
  1. In what order must items be calculated? (topological sort)
  2. Is the formula set even calculable? (cycle detection)
  3. What does a given item depend on? (direct dependencies)

EDGE DIRECTION:
  AddEdge(dependent, dependency) means "dependent needs dependency".
  GROSS_PROFIT depends on REVENUE:

    g.AddEdge("GROSS_PROFIT", "REVENUE")

  TopologicalSort returns dependencies first, so REVENUE comes before
  GROSS_PROFIT in the result.

DETERMINISM:
  Kahn's algorithm has a free choice whenever several nodes become ready
  at the same time. We always pick the lexicographically smallest id, so
  the same graph always yields the same order. Templates compiled on two
  machines produce identical calculation orders.

MUTABILITY:
  A graph is mutable while a template is being compiled and is treated as
  read-only afterwards. Read-only graphs are safe to share across periods
  and across concurrent scenario runs.

SEE ALSO:
  - template/template.go: Builds a graph from line item dependencies
  - engine/orchestrator.go: Uses a graph to order statement types
*/
package graph

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrCircularDependency is returned when a cycle makes ordering impossible.
// A self-edge counts as a cycle.
var ErrCircularDependency = errors.New("circular dependency detected")

// CycleError carries one concrete cycle as an id path whose first and last
// entries are equal, e.g. [A B A].
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("circular dependency detected: %s", strings.Join(e.Cycle, " -> "))
}

func (e *CycleError) Unwrap() error {
	return ErrCircularDependency
}

// =============================================================================
// GRAPH
// =============================================================================

// Graph is a directed dependency graph over opaque string ids.
type Graph struct {
	// deps[id] lists the ids that id depends on, in insertion order.
	deps map[string][]string

	// depSet mirrors deps for O(1) duplicate-edge checks.
	depSet map[string]map[string]bool

	// order records node insertion order for stable iteration.
	order []string
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		deps:   make(map[string][]string),
		depSet: make(map[string]map[string]bool),
	}
}

// AddNode registers an id. Adding an existing id is a no-op.
func (g *Graph) AddNode(id string) {
	if _, ok := g.depSet[id]; ok {
		return
	}
	g.deps[id] = nil
	g.depSet[id] = make(map[string]bool)
	g.order = append(g.order, id)
}

// AddEdge records "dependent needs dependency". Both endpoints are added
// implicitly. Duplicate edges are a no-op; there is never a multi-edge.
// A self-edge is accepted here and reported later as a cycle.
func (g *Graph) AddEdge(dependent, dependency string) {
	g.AddNode(dependent)
	g.AddNode(dependency)

	if g.depSet[dependent][dependency] {
		return
	}
	g.depSet[dependent][dependency] = true
	g.deps[dependent] = append(g.deps[dependent], dependency)
}

// Dependencies returns the direct dependencies of id in insertion order.
// Unknown ids and leaf nodes both yield an empty slice.
func (g *Graph) Dependencies(id string) []string {
	ds := g.deps[id]
	out := make([]string, len(ds))
	copy(out, ds)
	return out
}

// Nodes returns every id in insertion order.
func (g *Graph) Nodes() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Size returns the number of nodes.
func (g *Graph) Size() int { return len(g.order) }

// Empty reports whether the graph has no nodes.
func (g *Graph) Empty() bool { return len(g.order) == 0 }

// Clear removes all nodes and edges.
func (g *Graph) Clear() {
	g.deps = make(map[string][]string)
	g.depSet = make(map[string]map[string]bool)
	g.order = nil
}

// =============================================================================
// TOPOLOGICAL SORT (Kahn's algorithm)
// =============================================================================

// TopologicalSort returns a total order over all nodes with every
// dependency placed before its dependents. When several nodes are ready
// at once, the lexicographically smallest id is taken, making the result
// deterministic. Returns a *CycleError if the graph is cyclic.
func (g *Graph) TopologicalSort() ([]string, error) {
	if g.HasCycles() {
		return nil, &CycleError{Cycle: g.FindCycle()}
	}

	// in-degree here = number of unsatisfied dependencies.
	inDegree := make(map[string]int, len(g.order))
	for _, id := range g.order {
		inDegree[id] = len(g.deps[id])
	}

	// dependents[d] = nodes that depend on d, so satisfying d is O(fan-out).
	dependents := make(map[string][]string, len(g.order))
	for _, id := range g.order {
		for _, dep := range g.deps[id] {
			dependents[dep] = append(dependents[dep], id)
		}
	}

	var ready []string
	for _, id := range g.order {
		if inDegree[id] == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	result := make([]string, 0, len(g.order))
	for len(ready) > 0 {
		// ready is kept sorted; take the smallest id.
		id := ready[0]
		ready = ready[1:]
		result = append(result, id)

		for _, dependent := range dependents[id] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				// Insert keeping ready sorted.
				i := sort.SearchStrings(ready, dependent)
				ready = append(ready, "")
				copy(ready[i+1:], ready[i:])
				ready[i] = dependent
			}
		}
	}

	if len(result) != len(g.order) {
		// Unreachable after the cycle check above.
		return nil, &CycleError{Cycle: g.FindCycle()}
	}
	return result, nil
}

// =============================================================================
// CYCLE DETECTION (DFS with recursion-stack marker)
// =============================================================================

// HasCycles reports whether the graph contains any directed cycle.
func (g *Graph) HasCycles() bool {
	return len(g.FindCycle()) > 0
}

// FindCycle returns one concrete cycle as an id path whose first and last
// entries are equal (e.g. [A B A]), or nil if the graph is acyclic. Which
// cycle is returned is unspecified when several exist.
func (g *Graph) FindCycle() []string {
	visiting := make(map[string]bool) // on the current DFS stack
	visited := make(map[string]bool)  // fully explored

	for _, id := range g.order {
		if visited[id] {
			continue
		}
		if path := g.dfsCycle(id, visiting, visited, nil); path != nil {
			return path
		}
	}
	return nil
}

func (g *Graph) dfsCycle(id string, visiting, visited map[string]bool, path []string) []string {
	if visited[id] {
		return nil
	}
	if visiting[id] {
		// Close the loop: trim the path down to where the cycle starts.
		start := 0
		for i, p := range path {
			if p == id {
				start = i
				break
			}
		}
		cycle := append([]string{}, path[start:]...)
		return append(cycle, id)
	}

	visiting[id] = true
	path = append(path, id)

	for _, dep := range g.deps[id] {
		if found := g.dfsCycle(dep, visiting, visited, path); found != nil {
			return found
		}
	}

	visiting[id] = false
	visited[id] = true
	return nil
}
