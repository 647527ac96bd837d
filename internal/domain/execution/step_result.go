// Package execution runs a compiled step graph against the node.
package execution

import (
	"time"

	"github.com/felixgeelhaar/edgeprov/internal/domain/compiler"
)

// StepResult captures the outcome of executing a single step.
type StepResult struct {
	stepID       compiler.StepID
	status       StepStatus
	precondition compiler.Precondition
	reason       string
	err          error
	checkErr     error
	tail         string
	startedAt    time.Time
	finishedAt   time.Time
	diff         compiler.Diff
	verified     bool
	artifactKeys []string
}

// NewStepResult creates a new StepResult.
func NewStepResult(stepID compiler.StepID, status StepStatus) StepResult {
	return StepResult{
		stepID: stepID,
		status: status,
	}
}

// StepID returns the ID of the step that was executed.
func (r StepResult) StepID() compiler.StepID {
	return r.stepID
}

// Status returns the final status of the step.
func (r StepResult) Status() StepStatus {
	return r.status
}

// Precondition returns the precondition observed before apply, if checked.
func (r StepResult) Precondition() compiler.Precondition {
	return r.precondition
}

// Reason returns a short explanation of the status.
func (r StepResult) Reason() string {
	return r.reason
}

// Error returns the apply or verify failure.
func (r StepResult) Error() error {
	return r.err
}

// CheckError returns the precondition probe failure, if the probe could not
// run. The step was still attempted.
func (r StepResult) CheckError() error {
	return r.checkErr
}

// OutputTail returns the captured output of the failing command.
func (r StepResult) OutputTail() string {
	return r.tail
}

// StartedAt returns when the step started.
func (r StepResult) StartedAt() time.Time {
	return r.startedAt
}

// FinishedAt returns when the step reached its status.
func (r StepResult) FinishedAt() time.Time {
	return r.finishedAt
}

// Duration returns how long the step took to execute.
func (r StepResult) Duration() time.Duration {
	if r.startedAt.IsZero() || r.finishedAt.IsZero() {
		return 0
	}
	return r.finishedAt.Sub(r.startedAt)
}

// Diff returns the planned change.
func (r StepResult) Diff() compiler.Diff {
	return r.diff
}

// Verified reports whether verify ran and passed.
func (r StepResult) Verified() bool {
	return r.verified
}

// ArtifactKeys returns the artifacts the step committed, sorted.
func (r StepResult) ArtifactKeys() []string {
	return r.artifactKeys
}

// Success returns true if the step completed successfully.
func (r StepResult) Success() bool {
	return r.status.Succeeded()
}

// Skipped returns true if the step was skipped, including dry-run skips.
func (r StepResult) Skipped() bool {
	return r.status == StatusSkipped || r.status == StatusSkippedDryRun
}

// WithPrecondition returns a new StepResult with the precondition set.
func (r StepResult) WithPrecondition(p compiler.Precondition) StepResult {
	r.precondition = p
	return r
}

// WithReason returns a new StepResult with reason set.
func (r StepResult) WithReason(reason string) StepResult {
	r.reason = reason
	return r
}

// WithError returns a new StepResult with error set. The output tail of a
// failed command is carried over.
func (r StepResult) WithError(err error) StepResult {
	r.err = err
	r.tail = compiler.TailOf(err)
	return r
}

// WithCheckError returns a new StepResult with the probe failure set.
func (r StepResult) WithCheckError(err error) StepResult {
	r.checkErr = err
	return r
}

// WithTiming returns a new StepResult with start and finish times set.
func (r StepResult) WithTiming(started, finished time.Time) StepResult {
	r.startedAt = started
	r.finishedAt = finished
	return r
}

// WithDiff returns a new StepResult with diff set.
func (r StepResult) WithDiff(d compiler.Diff) StepResult {
	r.diff = d
	return r
}

// WithVerified returns a new StepResult with the verified flag set.
func (r StepResult) WithVerified(verified bool) StepResult {
	r.verified = verified
	return r
}

// WithArtifactKeys returns a new StepResult listing committed artifacts.
func (r StepResult) WithArtifactKeys(keys []string) StepResult {
	r.artifactKeys = append([]string(nil), keys...)
	return r
}
