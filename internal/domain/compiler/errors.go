package compiler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/edgeprov/internal/ports"
)

// Error codes for compiler and step operations.
const (
	ErrCodeProviderFailed    = "PROVIDER_FAILED"
	ErrCodeStepDuplicate     = "STEP_DUPLICATE"
	ErrCodeDependencyMissing = "DEPENDENCY_MISSING"
	ErrCodeCyclicDependency  = "CYCLIC_DEPENDENCY"
	ErrCodePreconditionCheck = "PRECONDITION_CHECK_FAILED"
	ErrCodeApplyFailed       = "APPLY_FAILED"
	ErrCodeVerifyFailed      = "VERIFY_FAILED"
)

// resumeSuggestion is shown for every step failure.
const resumeSuggestion = "Fix the underlying condition and re-run; steps that already completed are skipped. Pass --force to re-apply every step regardless of its precondition."

// StepError represents a user-friendly error with actionable suggestions.
type StepError struct {
	Code       string // Error code for categorization
	Message    string // User-friendly error message
	Provider   string // Provider that caused the error
	StepID     string // Step ID if applicable
	Suggestion string // Actionable suggestion to fix the error
	Tail       string // Captured output tail of the failing command
	Underlying error  // Wrapped error for error chain
}

// Error returns the formatted error message.
func (e *StepError) Error() string {
	var parts []string

	if e.Provider != "" {
		parts = append(parts, fmt.Sprintf("provider %q", e.Provider))
	}
	if e.StepID != "" {
		parts = append(parts, fmt.Sprintf("step %q", e.StepID))
	}

	msg := e.Message
	if e.Underlying != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Underlying.Error())
	}
	if len(parts) > 0 {
		return fmt.Sprintf("%s: %s", strings.Join(parts, ", "), msg)
	}
	return msg
}

// Unwrap returns the underlying error for error chain support.
func (e *StepError) Unwrap() error {
	return e.Underlying
}

// Is supports errors.Is() for comparing error codes.
func (e *StepError) Is(target error) bool {
	if t, ok := target.(*StepError); ok {
		return e.Code == t.Code
	}
	return false
}

// Format returns a fully formatted error with all details.
func (e *StepError) Format() string {
	var b strings.Builder

	fmt.Fprintf(&b, "[%s] %s", e.Code, e.Message)
	if e.Provider != "" {
		fmt.Fprintf(&b, "\n  Provider: %s", e.Provider)
	}
	if e.StepID != "" {
		fmt.Fprintf(&b, "\n  Step: %s", e.StepID)
	}
	if e.Underlying != nil {
		fmt.Fprintf(&b, "\n  Cause: %s", e.Underlying.Error())
	}
	if e.Suggestion != "" {
		fmt.Fprintf(&b, "\n  Suggestion: %s", e.Suggestion)
	}

	return b.String()
}

// NewStepError creates a new StepError with the given code and message.
func NewStepError(code, message string) *StepError {
	return &StepError{
		Code:    code,
		Message: message,
	}
}

// WithProvider returns a copy with provider set.
func (e *StepError) WithProvider(provider string) *StepError {
	out := *e
	out.Provider = provider
	return &out
}

// WithStepID returns a copy with step ID set.
func (e *StepError) WithStepID(stepID string) *StepError {
	out := *e
	out.StepID = stepID
	return &out
}

// WithSuggestion returns a copy with suggestion set.
func (e *StepError) WithSuggestion(suggestion string) *StepError {
	out := *e
	out.Suggestion = suggestion
	return &out
}

// WithUnderlying returns a copy wrapping err; the output tail of a wrapped
// command failure is carried over.
func (e *StepError) WithUnderlying(err error) *StepError {
	out := *e
	out.Underlying = err
	if tail := TailOf(err); tail != "" {
		out.Tail = tail
	}
	return &out
}

// TailOf extracts captured command output from an error chain.
func TailOf(err error) string {
	var stepErr *StepError
	if errors.As(err, &stepErr) && stepErr.Tail != "" {
		return stepErr.Tail
	}
	var cmdErr *ports.CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Tail()
	}
	return ""
}

// NewProviderFailedError creates an error for provider compilation failure.
func NewProviderFailedError(provider string, err error) *StepError {
	return (&StepError{
		Code:       ErrCodeProviderFailed,
		Message:    "provider failed to build its steps",
		Provider:   provider,
		Suggestion: fmt.Sprintf("Check the %s section of the configuration.", provider),
	}).WithUnderlying(err)
}

// NewStepDuplicateError creates an error for duplicate step ID.
func NewStepDuplicateError(provider, stepID string) *StepError {
	return &StepError{
		Code:       ErrCodeStepDuplicate,
		Message:    "step with this ID already exists",
		Provider:   provider,
		StepID:     stepID,
		Suggestion: "Each step must have a unique ID. Check for a custom step that shadows a built-in one.",
	}
}

// NewDependencyMissingError creates an error for a missing step dependency.
func NewDependencyMissingError(stepID, dependsOn string) *StepError {
	return &StepError{
		Code:       ErrCodeDependencyMissing,
		Message:    fmt.Sprintf("step depends on %q which is not part of this run", dependsOn),
		StepID:     stepID,
		Suggestion: "Enable the component that provides the dependency, or remove it from depends_on.",
	}
}

// NewCyclicDependencyError creates an error for cyclic dependencies.
func NewCyclicDependencyError(cycle []string) *StepError {
	return &StepError{
		Code:       ErrCodeCyclicDependency,
		Message:    fmt.Sprintf("cyclic dependency detected: %s", strings.Join(cycle, " -> ")),
		Suggestion: "Review depends_on of your custom steps to break the circular chain.",
		Underlying: ErrCyclicDependency,
	}
}

// NewPreconditionCheckError creates an error for a probe that could not run.
// The step is still attempted.
func NewPreconditionCheckError(stepID string, err error) *StepError {
	return (&StepError{
		Code:       ErrCodePreconditionCheck,
		Message:    "precondition check could not run",
		StepID:     stepID,
		Suggestion: "The step was applied anyway. Check that the probing tool is installed and on PATH.",
	}).WithUnderlying(err)
}

// NewApplyFailedError creates an error for step apply failure.
func NewApplyFailedError(stepID string, err error) *StepError {
	return (&StepError{
		Code:       ErrCodeApplyFailed,
		Message:    "step failed to apply",
		StepID:     stepID,
		Suggestion: resumeSuggestion,
	}).WithUnderlying(err)
}

// NewVerifyFailedError creates an error for an apply whose effect never
// became observable.
func NewVerifyFailedError(stepID string, err error) *StepError {
	return (&StepError{
		Code:       ErrCodeVerifyFailed,
		Message:    "step applied but verification failed",
		StepID:     stepID,
		Suggestion: resumeSuggestion,
	}).WithUnderlying(err)
}
