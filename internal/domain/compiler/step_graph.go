package compiler

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Errors for StepGraph operations.
var (
	ErrDuplicateStep    = errors.New("step with this ID already exists")
	ErrCyclicDependency = errors.New("cyclic dependency detected")
	ErrMissingDep       = errors.New("step depends on nonexistent step")
)

// StepGraph is a directed graph of steps keyed by ID. It remembers insertion
// order so sorting and iteration are deterministic.
type StepGraph struct {
	order      []string
	index      map[string]int
	steps      map[string]Step
	dependsOn  map[string][]string // step ID -> list of dependency IDs
	dependedBy map[string][]string // step ID -> list of steps that depend on it
}

// NewStepGraph creates an empty StepGraph.
func NewStepGraph() *StepGraph {
	return &StepGraph{
		index:      make(map[string]int),
		steps:      make(map[string]Step),
		dependsOn:  make(map[string][]string),
		dependedBy: make(map[string][]string),
	}
}

// Len returns the number of steps in the graph.
func (g *StepGraph) Len() int {
	return len(g.steps)
}

// Add adds a step to the graph.
// Returns ErrDuplicateStep if a step with the same ID already exists.
func (g *StepGraph) Add(step Step) error {
	id := step.ID().String()

	if _, exists := g.steps[id]; exists {
		return ErrDuplicateStep
	}

	g.index[id] = len(g.order)
	g.order = append(g.order, id)
	g.steps[id] = step

	deps := step.DependsOn()
	depIDs := make([]string, len(deps))
	for i, dep := range deps {
		depID := dep.String()
		depIDs[i] = depID
		g.dependedBy[depID] = append(g.dependedBy[depID], id)
	}
	g.dependsOn[id] = depIDs

	return nil
}

// Get retrieves a step by ID.
func (g *StepGraph) Get(id StepID) (Step, bool) {
	step, ok := g.steps[id.String()]
	return step, ok
}

// Steps returns all steps in insertion order.
func (g *StepGraph) Steps() []Step {
	steps := make([]Step, 0, len(g.order))
	for _, id := range g.order {
		steps = append(steps, g.steps[id])
	}
	return steps
}

// Validate checks that all dependencies exist.
func (g *StepGraph) Validate() error {
	for _, id := range g.order {
		for _, depID := range g.dependsOn[id] {
			if _, exists := g.steps[depID]; !exists {
				return &MissingDependencyError{StepID: id, DependsOn: depID}
			}
		}
	}
	return nil
}

// TopologicalSort returns steps in dependency order. Among steps that are
// ready at the same time, the one added first comes first.
// Returns an error wrapping ErrCyclicDependency if the graph has a cycle.
func (g *StepGraph) TopologicalSort() ([]Step, error) {
	inDegree := make(map[string]int, len(g.steps))
	for _, id := range g.order {
		for _, depID := range g.dependsOn[id] {
			if _, exists := g.steps[depID]; exists {
				inDegree[id]++
			}
		}
	}

	ready := make([]string, 0)
	for _, id := range g.order {
		if inDegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	sorted := make([]Step, 0, len(g.steps))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		sorted = append(sorted, g.steps[id])

		released := false
		for _, dependentID := range g.dependedBy[id] {
			if _, exists := g.steps[dependentID]; !exists {
				continue
			}
			inDegree[dependentID]--
			if inDegree[dependentID] == 0 {
				ready = append(ready, dependentID)
				released = true
			}
		}
		if released {
			sort.SliceStable(ready, func(i, j int) bool {
				return g.index[ready[i]] < g.index[ready[j]]
			})
		}
	}

	if len(sorted) != len(g.steps) {
		return nil, &CycleError{Path: g.FindCycle()}
	}

	return sorted, nil
}

// FindCycle returns one dependency cycle as a path that starts and ends with
// the same step ID, or nil if the graph is acyclic.
func (g *StepGraph) FindCycle() []string {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(g.steps))
	var path []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		state[id] = visiting
		path = append(path, id)
		for _, dep := range g.dependsOn[id] {
			if _, exists := g.steps[dep]; !exists {
				continue
			}
			switch state[dep] {
			case visiting:
				start := 0
				for i, p := range path {
					if p == dep {
						start = i
						break
					}
				}
				cycle = append(append([]string(nil), path[start:]...), dep)
				return true
			case unvisited:
				if visit(dep) {
					return true
				}
			}
		}
		path = path[:len(path)-1]
		state[id] = done
		return false
	}

	for _, id := range g.order {
		if state[id] == unvisited && visit(id) {
			return cycle
		}
	}
	return nil
}

// CycleError reports a dependency cycle.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCyclicDependency, strings.Join(e.Path, " -> "))
}

// Unwrap returns ErrCyclicDependency.
func (e *CycleError) Unwrap() error {
	return ErrCyclicDependency
}

// MissingDependencyError reports a dependency on a step that is not in the graph.
type MissingDependencyError struct {
	StepID    string
	DependsOn string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("%s: step %q depends on %q", ErrMissingDep, e.StepID, e.DependsOn)
}

// Unwrap returns ErrMissingDep.
func (e *MissingDependencyError) Unwrap() error {
	return ErrMissingDep
}
