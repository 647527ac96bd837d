package compiler

// Precondition is the outcome of a step's idempotency probe.
type Precondition string

const (
	// Satisfied means the desired state already holds and Apply can be skipped.
	Satisfied Precondition = "satisfied"
	// NotSatisfied means Apply is needed.
	NotSatisfied Precondition = "not-satisfied"
	// Unknown means the probe could not tell; Apply is attempted.
	Unknown Precondition = "unknown"
)

// String returns the string representation of the precondition.
func (p Precondition) String() string {
	return string(p)
}

// NeedsApply reports whether Apply should run for this outcome.
func (p Precondition) NeedsApply() bool {
	return p != Satisfied
}
