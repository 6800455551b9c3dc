package errors

import (
	stderrors "errors"
	"fmt"
)

// SnipError is the structured error type for snipsearch. Category, Severity
// and Retryable are derived from Code by New.
type SnipError struct {
	Code     string
	Message  string
	Category Category
	Severity Severity

	// Details carries context such as the index name or snippet id.
	Details map[string]string

	Cause      error
	Retryable  bool
	Suggestion string
}

func (e *SnipError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *SnipError) Unwrap() error {
	return e.Cause
}

// Is matches another SnipError by code, so a bare New(code, "", nil) works
// as an errors.Is target.
func (e *SnipError) Is(target error) bool {
	t, ok := target.(*SnipError)
	return ok && e.Code == t.Code
}

// WithDetail adds a key-value detail to the error.
func (e *SnipError) WithDetail(key, value string) *SnipError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *SnipError) WithSuggestion(suggestion string) *SnipError {
	e.Suggestion = suggestion
	return e
}

// New creates a SnipError classified by its code.
func New(code string, message string, cause error) *SnipError {
	c := classify(code)
	return &SnipError{
		Code:      code,
		Message:   message,
		Category:  c.category,
		Severity:  c.severity,
		Cause:     cause,
		Retryable: c.retryable,
	}
}

// Wrap creates a SnipError from an existing error.
// The error's message becomes the SnipError message.
func Wrap(code string, err error) *SnipError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *SnipError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// TransportError creates an error for a failed call to the index service.
func TransportError(message string, cause error) *SnipError {
	return New(ErrCodeIndexUnavailable, message, cause)
}

// RejectedError carries the message of a structured error payload returned by the index service.
func RejectedError(message string) *SnipError {
	return New(ErrCodeIndexRejected, message, nil)
}

// MalformedError reports a response that could not be interpreted.
func MalformedError(message string, cause error) *SnipError {
	return New(ErrCodeMalformedResponse, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *SnipError {
	return New(ErrCodeInvalidInput, message, cause)
}

// LookupError wraps a failed system-of-record lookup.
func LookupError(message string, cause error) *SnipError {
	return New(ErrCodeLookupFailed, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *SnipError {
	return New(ErrCodeInternal, message, cause)
}

func find(err error) *SnipError {
	var se *SnipError
	if stderrors.As(err, &se) {
		return se
	}
	return nil
}

// IsRetryable reports whether the first SnipError in the chain is retryable.
func IsRetryable(err error) bool {
	se := find(err)
	return se != nil && se.Retryable
}

// IsFatal reports whether the first SnipError in the chain is fatal.
func IsFatal(err error) bool {
	se := find(err)
	return se != nil && se.Severity == SeverityFatal
}

// GetCode returns the code of the first SnipError in the chain, or "".
func GetCode(err error) string {
	if se := find(err); se != nil {
		return se.Code
	}
	return ""
}

// GetCategory returns the category of the first SnipError in the chain, or "".
func GetCategory(err error) Category {
	if se := find(err); se != nil {
		return se.Category
	}
	return ""
}
