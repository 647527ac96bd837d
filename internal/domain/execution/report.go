package execution

import "time"

// Run outcomes.
const (
	OutcomeSucceeded   = "succeeded"
	OutcomeFailed      = "failed"
	OutcomeInterrupted = "interrupted"
	OutcomeDryRun      = "dry-run"
)

// Report is the ordered log of one pipeline run.
type Report struct {
	runID       string
	dryRun      bool
	startedAt   time.Time
	finishedAt  time.Time
	results     []StepResult
	interrupted bool
}

func newReport(runID string, dryRun bool, startedAt time.Time) *Report {
	return &Report{runID: runID, dryRun: dryRun, startedAt: startedAt}
}

func (r *Report) add(result StepResult) {
	r.results = append(r.results, result)
}

// RunID returns the identifier of the run.
func (r *Report) RunID() string {
	return r.runID
}

// DryRun reports whether the run was a dry run.
func (r *Report) DryRun() bool {
	return r.dryRun
}

// StartedAt returns when the run started.
func (r *Report) StartedAt() time.Time {
	return r.startedAt
}

// FinishedAt returns when the run finished.
func (r *Report) FinishedAt() time.Time {
	return r.finishedAt
}

// Duration returns the wall time of the run.
func (r *Report) Duration() time.Duration {
	return r.finishedAt.Sub(r.startedAt)
}

// Results returns the step results in execution order.
func (r *Report) Results() []StepResult {
	return append([]StepResult(nil), r.results...)
}

// Result returns the result for a step.
func (r *Report) Result(stepID string) (StepResult, bool) {
	for _, res := range r.results {
		if res.StepID().String() == stepID {
			return res, true
		}
	}
	return StepResult{}, false
}

// Counts returns the number of results per status.
func (r *Report) Counts() map[StepStatus]int {
	counts := make(map[StepStatus]int)
	for _, res := range r.results {
		counts[res.Status()]++
	}
	return counts
}

// Count returns the number of results with status.
func (r *Report) Count(status StepStatus) int {
	return r.Counts()[status]
}

// Failed reports whether any step failed.
func (r *Report) Failed() bool {
	_, ok := r.FirstFailure()
	return ok
}

// Interrupted reports whether the run was cancelled before it finished.
func (r *Report) Interrupted() bool {
	return r.interrupted
}

// FirstFailure returns the first failed step result.
func (r *Report) FirstFailure() (StepResult, bool) {
	for _, res := range r.results {
		if res.Status() == StatusFailed {
			return res, true
		}
	}
	return StepResult{}, false
}

// Outcome summarizes the run as one word.
func (r *Report) Outcome() string {
	switch {
	case r.interrupted:
		return OutcomeInterrupted
	case r.Failed():
		return OutcomeFailed
	case r.dryRun:
		return OutcomeDryRun
	default:
		return OutcomeSucceeded
	}
}
