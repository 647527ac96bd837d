package compiler

import (
	"errors"
	"regexp"
	"strings"
)

// StepID uniquely identifies a step within a run.
// Format: provider:action[:resource] (e.g., "k3s:install", "host:package:curl").
type StepID struct {
	value string
}

// Errors for StepID validation.
var (
	ErrEmptyStepID   = errors.New("step ID cannot be empty")
	ErrInvalidStepID = errors.New("step ID format invalid: segments of letters, digits, '.', '_' or '-' separated by colons")
)

var stepIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*(?::[a-zA-Z0-9][a-zA-Z0-9_.-]*)*$`)

// NewStepID creates a new StepID from a string.
func NewStepID(value string) (StepID, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return StepID{}, ErrEmptyStepID
	}

	if !stepIDPattern.MatchString(trimmed) {
		return StepID{}, ErrInvalidStepID
	}

	return StepID{value: trimmed}, nil
}

// MustNewStepID creates a new StepID from a string, panicking on error.
// Use this for IDs fixed at compile time.
func MustNewStepID(value string) StepID {
	id, err := NewStepID(value)
	if err != nil {
		panic("invalid step ID: " + value + ": " + err.Error())
	}
	return id
}

// String returns the string representation.
func (id StepID) String() string {
	return id.value
}

// Equals checks equality with another StepID.
func (id StepID) Equals(other StepID) bool {
	return id.value == other.value
}

// Provider extracts the provider name (first segment).
func (id StepID) Provider() string {
	provider, _, _ := strings.Cut(id.value, ":")
	return provider
}

// IsZero returns true if this is a zero-value StepID.
func (id StepID) IsZero() bool {
	return id.value == ""
}

// IDs converts strings to StepIDs, stopping at the first invalid one.
func IDs(values ...string) ([]StepID, error) {
	ids := make([]StepID, 0, len(values))
	for _, v := range values {
		id, err := NewStepID(v)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
