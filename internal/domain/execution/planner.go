package execution

import (
	"fmt"

	"github.com/felixgeelhaar/edgeprov/internal/domain/compiler"
)

// Planner orders a StepGraph into a Plan. It never runs a step.
type Planner struct{}

// NewPlanner creates a new Planner.
func NewPlanner() *Planner {
	return &Planner{}
}

// Plan returns the steps of graph in topological order.
func (p *Planner) Plan(graph *compiler.StepGraph) (*Plan, error) {
	plan := NewExecutionPlan()

	steps, err := graph.TopologicalSort()
	if err != nil {
		return nil, fmt.Errorf("failed to sort steps: %w", err)
	}

	for _, step := range steps {
		plan.Add(step)
	}

	return plan, nil
}
