package execution

import (
	"github.com/felixgeelhaar/edgeprov/internal/domain/compiler"
)

// PlanEntry is a step at its position in the run order.
type PlanEntry struct {
	step     compiler.Step
	position int
}

// NewPlanEntry creates a new PlanEntry.
func NewPlanEntry(step compiler.Step, position int) PlanEntry {
	return PlanEntry{
		step:     step,
		position: position,
	}
}

// Step returns the step to be executed.
func (e PlanEntry) Step() compiler.Step {
	return e.step
}

// Position returns the 1-based run order of the step.
func (e PlanEntry) Position() int {
	return e.position
}

// PlanSummary counts planned steps per provider.
type PlanSummary struct {
	Total      int
	ByProvider map[string]int
}

// Plan is the ordered list of steps a run will visit.
type Plan struct {
	entries []PlanEntry
}

// NewExecutionPlan creates an empty Plan.
func NewExecutionPlan() *Plan {
	return &Plan{
		entries: make([]PlanEntry, 0),
	}
}

// Add appends a step at the next position.
func (p *Plan) Add(step compiler.Step) {
	p.entries = append(p.entries, NewPlanEntry(step, len(p.entries)+1))
}

// Len returns the number of entries.
func (p *Plan) Len() int {
	return len(p.entries)
}

// IsEmpty returns true if there are no entries.
func (p *Plan) IsEmpty() bool {
	return len(p.entries) == 0
}

// Entries returns all plan entries.
func (p *Plan) Entries() []PlanEntry {
	return p.entries
}

// StepIDs returns the step IDs in run order.
func (p *Plan) StepIDs() []string {
	ids := make([]string, len(p.entries))
	for i, e := range p.entries {
		ids[i] = e.step.ID().String()
	}
	return ids
}

// Summary returns aggregate statistics.
func (p *Plan) Summary() PlanSummary {
	summary := PlanSummary{Total: len(p.entries), ByProvider: map[string]int{}}
	for _, e := range p.entries {
		summary.ByProvider[e.step.ID().Provider()]++
	}
	return summary
}
