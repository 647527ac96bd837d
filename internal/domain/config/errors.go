package config

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes for categorization.
const (
	ErrCodeConfigNotFound   = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid    = "CONFIG_INVALID"
	ErrCodeConfigParse      = "CONFIG_PARSE"
	ErrCodeValidationFailed = "VALIDATION_FAILED"
)

// UserError represents a user-friendly error with actionable suggestions.
type UserError struct {
	Code       string // Error code for categorization (e.g., "CONFIG_PARSE")
	Message    string // User-friendly error message
	Context    string // File path, field or step the error refers to
	Suggestion string // Actionable suggestion to fix the error
	Underlying error  // Wrapped error for error chain
}

// Error returns the formatted error message.
func (e *UserError) Error() string {
	var b strings.Builder

	b.WriteString(e.Message)
	if e.Context != "" {
		fmt.Fprintf(&b, " (at %s)", e.Context)
	}
	if e.Underlying != nil {
		fmt.Fprintf(&b, ": %s", e.Underlying.Error())
	}

	return b.String()
}

// Unwrap returns the underlying error for error chain support.
func (e *UserError) Unwrap() error {
	return e.Underlying
}

// Is supports errors.Is() for comparing error codes.
func (e *UserError) Is(target error) bool {
	if t, ok := target.(*UserError); ok {
		return e.Code == t.Code
	}
	return false
}

// Format returns a fully formatted error with all details.
func (e *UserError) Format() string {
	var b strings.Builder

	fmt.Fprintf(&b, "[%s] %s", e.Code, e.Message)
	if e.Context != "" {
		fmt.Fprintf(&b, "\n  Location: %s", e.Context)
	}
	if e.Underlying != nil {
		var list *ErrorList
		if errors.As(e.Underlying, &list) {
			for _, item := range list.Errors() {
				fmt.Fprintf(&b, "\n  - %s", item.Message)
			}
		} else {
			fmt.Fprintf(&b, "\n  Cause: %s", e.Underlying.Error())
		}
	}
	if e.Suggestion != "" {
		fmt.Fprintf(&b, "\n  Suggestion: %s", e.Suggestion)
	}

	return b.String()
}

// NewUserError creates a new UserError with the given code and message.
func NewUserError(code, message string) *UserError {
	return &UserError{
		Code:    code,
		Message: message,
	}
}

// WithContext returns a new UserError with context set.
func (e *UserError) WithContext(ctx string) *UserError {
	out := *e
	out.Context = ctx
	return &out
}

// WithSuggestion returns a new UserError with suggestion set.
func (e *UserError) WithSuggestion(suggestion string) *UserError {
	out := *e
	out.Suggestion = suggestion
	return &out
}

// WithUnderlying returns a new UserError wrapping another error.
func (e *UserError) WithUnderlying(err error) *UserError {
	out := *e
	out.Underlying = err
	return &out
}

// ErrorList accumulates multiple errors for comprehensive reporting.
type ErrorList struct {
	errors []*UserError
}

// NewErrorList creates an empty ErrorList.
func NewErrorList() *ErrorList {
	return &ErrorList{
		errors: make([]*UserError, 0),
	}
}

// Add adds an error to the list.
func (l *ErrorList) Add(err *UserError) {
	if err != nil {
		l.errors = append(l.errors, err)
	}
}

// AddValidation adds a validation error for field.
func (l *ErrorList) AddValidation(field, message string) {
	l.Add(&UserError{
		Code:    ErrCodeValidationFailed,
		Message: fmt.Sprintf("%s: %s", field, message),
		Context: field,
	})
}

// HasErrors returns true if there are any errors.
func (l *ErrorList) HasErrors() bool {
	return len(l.errors) > 0
}

// Len returns the number of errors.
func (l *ErrorList) Len() int {
	return len(l.errors)
}

// Errors returns the list of errors.
func (l *ErrorList) Errors() []*UserError {
	result := make([]*UserError, len(l.errors))
	copy(result, l.errors)
	return result
}

// Error implements the error interface for ErrorList.
func (l *ErrorList) Error() string {
	switch len(l.errors) {
	case 0:
		return ""
	case 1:
		return l.errors[0].Error()
	}

	msgs := make([]string, len(l.errors))
	for i, err := range l.errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%d errors occurred: %s", len(l.errors), strings.Join(msgs, "; "))
}

// AsError returns the ErrorList as an error, or nil if empty.
func (l *ErrorList) AsError() error {
	if !l.HasErrors() {
		return nil
	}
	return l
}

// NewConfigNotFoundError creates an error for a missing config file.
func NewConfigNotFoundError(path string) *UserError {
	return &UserError{
		Code:       ErrCodeConfigNotFound,
		Message:    "configuration file not found",
		Context:    path,
		Suggestion: "Pass the configuration with --config, or create edgeprov.json in the working directory.",
	}
}

// NewConfigParseError creates an error for a configuration document that
// cannot be decoded or resolved into a step graph.
func NewConfigParseError(path string, err error) *UserError {
	return &UserError{
		Code:       ErrCodeConfigParse,
		Message:    "failed to parse configuration",
		Context:    path,
		Suggestion: "Check the document syntax and that every value has the expected type (booleans for toggles, strings for names, durations such as \"90s\").",
		Underlying: err,
	}
}

// NewConfigInvalidError creates an error for a well-formed configuration
// that fails validation.
func NewConfigInvalidError(path string, errs *ErrorList) *UserError {
	return &UserError{
		Code:       ErrCodeConfigInvalid,
		Message:    "configuration is invalid",
		Context:    path,
		Suggestion: "Fix the fields listed above and re-run.",
		Underlying: errs,
	}
}

// IsUserError checks if an error is a UserError with a specific code.
func IsUserError(err error, code string) bool {
	var ue *UserError
	if errors.As(err, &ue) {
		return ue.Code == code
	}
	return false
}

// GetUserError extracts a UserError from an error chain, if present.
func GetUserError(err error) *UserError {
	var ue *UserError
	if errors.As(err, &ue) {
		return ue
	}
	return nil
}
