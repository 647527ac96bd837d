package execution

import "github.com/felixgeelhaar/edgeprov/internal/domain/state"

// StepStatus is the outcome of a step within one run.
type StepStatus string

// Step statuses reported by the pipeline.
const (
	// StatusPending means the step was never attempted: a dependency did not
	// succeed, the run aborted, or the run was interrupted first.
	StatusPending StepStatus = "pending"
	// StatusSkipped means the desired state already held.
	StatusSkipped StepStatus = "skipped"
	// StatusSkippedDryRun means the step would have been applied.
	StatusSkippedDryRun StepStatus = "skipped (dry-run)"
	// StatusApplied means apply succeeded and verify passed or was skipped.
	StatusApplied StepStatus = "applied"
	// StatusFailed means apply or verify failed.
	StatusFailed StepStatus = "failed"
)

// String returns the status label.
func (s StepStatus) String() string {
	return string(s)
}

// Succeeded reports whether dependents of a step with this status may run.
func (s StepStatus) Succeeded() bool {
	switch s {
	case StatusApplied, StatusSkipped, StatusSkippedDryRun:
		return true
	default:
		return false
	}
}

// Persisted reports whether the status is written to the state file.
func (s StepStatus) Persisted() bool {
	switch s {
	case StatusApplied, StatusSkipped, StatusFailed:
		return true
	default:
		return false
	}
}

// recordStatus maps a persisted status to its state file value.
func (s StepStatus) recordStatus() state.Status {
	switch s {
	case StatusApplied:
		return state.StatusApplied
	case StatusFailed:
		return state.StatusFailed
	default:
		return state.StatusSkipped
	}
}
