package compiler

// Step is an idempotent unit of provisioning work. Check is a read-only
// probe; Apply changes the node and Verify confirms the change is observable.
type Step interface {
	// ID returns the unique identifier for this step.
	ID() StepID

	// DependsOn returns the IDs of steps that must succeed before this one.
	DependsOn() []StepID

	// Check reports whether the step's desired state already holds.
	// An error means the probe itself could not run.
	Check(ctx RunContext) (Precondition, error)

	// Plan describes what Apply would change.
	Plan(ctx RunContext) (Diff, error)

	// Apply performs the change. Running it twice must be harmless.
	Apply(ctx RunContext) error

	// Verify confirms the effect of Apply, polling where the effect is
	// eventually consistent.
	Verify(ctx RunContext) error

	// Explain returns human-readable context for this step.
	Explain() Explanation
}

// ConfirmableStep is a step whose forced re-apply is destructive enough that
// the operator is asked first.
type ConfirmableStep interface {
	Step

	// ConfirmPrompt is the question put to the operator.
	ConfirmPrompt() string
}

// AsConfirmable returns the step as a ConfirmableStep when it implements one.
func AsConfirmable(step Step) (ConfirmableStep, bool) {
	c, ok := step.(ConfirmableStep)
	return c, ok
}
