// Package graph resolves TODO dependency order.
package graph

import (
	"errors"
	"fmt"

	"github.com/mkrall/clerk/pkg/models"
)

// ErrCycleDetected indicates a circular dependency was found in the plan.
var ErrCycleDetected = errors.New("circular dependency detected")

// DependencyGraph is a directed graph of TODO dependencies. Nodes are
// TODOs; an edge A -> B means A is blocked by B.
type DependencyGraph struct {
	// nodes maps TODO ID to the item itself.
	nodes map[string]*models.TodoItem
	// edges maps TODO ID to the IDs it depends on.
	edges map[string][]string
	// order preserves the plan's original ordering so traversals are
	// deterministic. Map iteration order must never leak into results.
	order []string
	// completed tracks which TODOs have finished successfully.
	completed map[string]bool
}

// New creates an empty dependency graph.
func New() *DependencyGraph {
	return &DependencyGraph{
		nodes:     make(map[string]*models.TodoItem),
		edges:     make(map[string][]string),
		completed: make(map[string]bool),
	}
}

// Build constructs the graph from the plan's TODOs. It fails on unknown
// dependency references and on cycles.
func (g *DependencyGraph) Build(todos []*models.TodoItem) error {
	for _, todo := range todos {
		if _, exists := g.nodes[todo.ID]; exists {
			return fmt.Errorf("duplicate todo id %s", todo.ID)
		}
		g.nodes[todo.ID] = todo
		g.edges[todo.ID] = nil
		g.order = append(g.order, todo.ID)
	}

	for _, todo := range todos {
		for _, depID := range todo.Dependencies {
			if _, exists := g.nodes[depID]; !exists {
				return fmt.Errorf("todo %s depends on unknown todo %s", todo.ID, depID)
			}
			g.edges[todo.ID] = append(g.edges[todo.ID], depID)
		}
	}

	if g.HasCycle() {
		return ErrCycleDetected
	}
	return nil
}

// HasCycle reports whether the graph contains a circular dependency.
// Depth-first search with coloring; a gray node reached again is a back
// edge.
func (g *DependencyGraph) HasCycle() bool {
	// 0 = unvisited, 1 = in progress, 2 = done.
	colors := make(map[string]int, len(g.nodes))

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = 1

		for _, depID := range g.edges[id] {
			switch colors[depID] {
			case 1:
				return true
			case 0:
				if visit(depID) {
					return true
				}
			}
		}

		colors[id] = 2
		return false
	}

	for _, id := range g.order {
		if colors[id] == 0 {
			if visit(id) {
				return true
			}
		}
	}
	return false
}

// TopologicalSort returns TODO IDs with every dependency before its
// dependents. Ties are broken by the plan's original order, so the result
// is stable across runs. Fails with ErrCycleDetected on a cyclic graph.
func (g *DependencyGraph) TopologicalSort() ([]string, error) {
	if g.HasCycle() {
		return nil, ErrCycleDetected
	}

	visited := make(map[string]bool, len(g.nodes))
	result := make([]string, 0, len(g.nodes))

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true

		for _, depID := range g.edges[id] {
			visit(depID)
		}
		result = append(result, id)
	}

	for _, id := range g.order {
		visit(id)
	}
	return result, nil
}

// Ready returns the IDs of TODOs whose dependencies are all complete and
// that have not themselves finished, in plan order.
func (g *DependencyGraph) Ready() []string {
	var ready []string

	for _, id := range g.order {
		if g.completed[id] {
			continue
		}
		if g.nodes[id].Status.Terminal() {
			continue
		}

		blocked := false
		for _, depID := range g.edges[id] {
			if !g.completed[depID] {
				blocked = true
				break
			}
		}
		if !blocked {
			ready = append(ready, id)
		}
	}
	return ready
}

// MarkComplete records a TODO as finished, unblocking its dependents.
func (g *DependencyGraph) MarkComplete(id string) {
	g.completed[id] = true
}

// Get returns the TODO for an ID, or nil.
func (g *DependencyGraph) Get(id string) *models.TodoItem {
	return g.nodes[id]
}

// Size returns the number of TODOs in the graph.
func (g *DependencyGraph) Size() int {
	return len(g.nodes)
}

// Dependencies returns the IDs a TODO depends on.
func (g *DependencyGraph) Dependencies(id string) []string {
	return g.edges[id]
}

// Dependents returns the IDs of TODOs that depend on id, in plan order.
func (g *DependencyGraph) Dependents(id string) []string {
	var dependents []string
	for _, candidate := range g.order {
		for _, depID := range g.edges[candidate] {
			if depID == id {
				dependents = append(dependents, candidate)
				break
			}
		}
	}
	return dependents
}
