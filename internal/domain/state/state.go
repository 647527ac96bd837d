// Package state holds the provisioning state persisted between runs.
package state

import (
	"sort"
	"time"
)

// CurrentVersion is the state document version written by this build.
const CurrentVersion = 1

// Status is the last terminal status recorded for a step.
type Status string

// Recorded step statuses.
const (
	StatusApplied Status = "applied"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// StepRecord is the persisted outcome of a step's most recent run.
type StepRecord struct {
	Status    Status    `json:"status"`
	Converged bool      `json:"converged"`
	RunID     string    `json:"runId,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
	AppliedAt time.Time `json:"appliedAt,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// ProvisioningState records which steps have completed and what they produced.
type ProvisioningState struct {
	Version            int                   `json:"version"`
	RunID              string                `json:"runId,omitempty"`
	UpdatedAt          time.Time             `json:"updatedAt,omitempty"`
	CompletedSteps     map[string]StepRecord `json:"completedSteps"`
	GeneratedArtifacts map[string]string     `json:"generatedArtifacts"`
}

// NewProvisioningState returns an empty state at the current version.
func NewProvisioningState() *ProvisioningState {
	return &ProvisioningState{
		Version:            CurrentVersion,
		CompletedSteps:     map[string]StepRecord{},
		GeneratedArtifacts: map[string]string{},
	}
}

// Clone returns a deep copy.
func (s *ProvisioningState) Clone() *ProvisioningState {
	out := *s
	out.CompletedSteps = make(map[string]StepRecord, len(s.CompletedSteps))
	for k, v := range s.CompletedSteps {
		out.CompletedSteps[k] = v
	}
	out.GeneratedArtifacts = make(map[string]string, len(s.GeneratedArtifacts))
	for k, v := range s.GeneratedArtifacts {
		out.GeneratedArtifacts[k] = v
	}
	return &out
}

// Record returns the record for step, if any.
func (s *ProvisioningState) Record(step string) (StepRecord, bool) {
	rec, ok := s.CompletedSteps[step]
	return rec, ok
}

// StepNames returns the recorded step names, sorted.
func (s *ProvisioningState) StepNames() []string {
	names := make([]string, 0, len(s.CompletedSteps))
	for name := range s.CompletedSteps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsEmpty reports whether nothing has been recorded yet.
func (s *ProvisioningState) IsEmpty() bool {
	return len(s.CompletedSteps) == 0 && len(s.GeneratedArtifacts) == 0
}

// normalize fills nil maps left by a decoded document.
func (s *ProvisioningState) normalize() {
	if s.CompletedSteps == nil {
		s.CompletedSteps = map[string]StepRecord{}
	}
	if s.GeneratedArtifacts == nil {
		s.GeneratedArtifacts = map[string]string{}
	}
	if s.Version == 0 {
		s.Version = CurrentVersion
	}
}
