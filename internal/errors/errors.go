package errors

import (
	stderrors "errors"
	"fmt"
)

// DocError is the structured error type for SmartDoc.
// It carries a stable code plus derived category, severity and retryability,
// so callers can decide between aborting, degrading, or retrying without
// string matching.
type DocError struct {
	// Code is the unique error code (e.g., "ERR_201_INDEX_UNAVAILABLE").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Index, Collaborator, ...).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]any

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *DocError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *DocError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
func (e *DocError) Is(target error) bool {
	if t, ok := target.(*DocError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *DocError) WithDetail(key string, value any) *DocError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new DocError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string) *DocError {
	return &DocError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a DocError around an existing error. A nil err yields nil.
func Wrap(err error, code string, message string) *DocError {
	if err == nil {
		return nil
	}
	e := New(code, message)
	e.Cause = err
	return e
}

// IndexUnavailable creates a fatal index-store error.
func IndexUnavailable(message string, cause error) *DocError {
	e := New(ErrCodeIndexUnavailable, message)
	e.Cause = cause
	return e
}

// CollaboratorUnavailable creates a retryable collaborator error.
func CollaboratorUnavailable(collaborator string, cause error) *DocError {
	e := New(ErrCodeCollaboratorUnavailable,
		fmt.Sprintf("collaborator %s unavailable", collaborator))
	e.Cause = cause
	return e.WithDetail("collaborator", collaborator)
}

// QueryConstruction creates a query construction error, recovered locally
// by substituting a match-none query.
func QueryConstruction(message string, cause error) *DocError {
	e := New(ErrCodeQueryConstruction, message)
	e.Cause = cause
	return e
}

// UnsupportedType creates a typed extraction error for files whose
// extension has no registered parser.
func UnsupportedType(filename, ext string) *DocError {
	e := New(ErrCodeUnsupportedType, fmt.Sprintf("unsupported file type %q", ext))
	return e.WithDetail("filename", filename).WithDetail("extension", ext)
}

// CorruptDocument creates a typed extraction error for unreadable input.
func CorruptDocument(filename string, cause error) *DocError {
	e := New(ErrCodeCorruptDocument, fmt.Sprintf("cannot extract text from %q", filename))
	e.Cause = cause
	return e.WithDetail("filename", filename)
}

// DuplicateContent signals that a content hash is already stored.
// Ingestion skips these silently; the code exists so tests and metrics can
// observe the skip.
func DuplicateContent(hash string) *DocError {
	return New(ErrCodeDuplicateContent, "content hash already stored").
		WithDetail("hash", hash)
}

// IsRetryable checks if an error is retryable anywhere in its chain.
func IsRetryable(err error) bool {
	var de *DocError
	if stderrors.As(err, &de) {
		return de.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity anywhere in its chain.
func IsFatal(err error) bool {
	var de *DocError
	if stderrors.As(err, &de) {
		return de.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from an error chain.
// Returns empty string when no DocError is present.
func GetCode(err error) string {
	var de *DocError
	if stderrors.As(err, &de) {
		return de.Code
	}
	return ""
}
