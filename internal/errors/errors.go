package errors

import (
	"fmt"
)

// MosaicError is the structured error type for Mosaic.
// It provides rich context for error handling, logging, and user presentation.
type MosaicError struct {
	// Code is the unique error code (e.g., "ERR_501_INDEX_UNAVAILABLE").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Store, Network, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *MosaicError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *MosaicError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with MosaicError.
func (e *MosaicError) Is(target error) bool {
	if t, ok := target.(*MosaicError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *MosaicError) WithDetail(key, value string) *MosaicError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *MosaicError) WithSuggestion(suggestion string) *MosaicError {
	e.Suggestion = suggestion
	return e
}

// New creates a new MosaicError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *MosaicError {
	return &MosaicError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a MosaicError from an existing error.
// The error's message becomes the MosaicError message.
func Wrap(code string, err error) *MosaicError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *MosaicError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// ValidationError creates a query validation error.
// Validation errors are rejected before any external call and never retried.
func ValidationError(message string, cause error) *MosaicError {
	return New(ErrCodeInvalidQuery, message, cause)
}

// EmbeddingUnavailable creates the fatal error for a failed embedding step.
// Without a query vector no retrieval is possible, so no partial bundle is
// produced.
func EmbeddingUnavailable(message string, cause error) *MosaicError {
	return New(ErrCodeEmbeddingUnavailable, message, cause).
		WithSuggestion("check that the embedding endpoint is reachable and the model is loaded")
}

// IndexUnavailable creates the per-modality error for a failed vector
// search. The dispatcher recovers it locally as an empty candidate list.
func IndexUnavailable(modality string, cause error) *MosaicError {
	return New(ErrCodeIndexUnavailable,
		fmt.Sprintf("%s index unavailable", modality), cause).
		WithDetail("modality", modality)
}

// RetrievalUnavailable creates the fatal error for the all-modalities-failed
// case.
func RetrievalUnavailable(cause error) *MosaicError {
	return New(ErrCodeRetrievalUnavailable, "all requested modality indexes failed", cause).
		WithSuggestion("run 'mosaic status' to inspect index health")
}

// ContentNotFound creates the error for an unresolvable candidate id.
// The enricher recovers it locally by dropping the candidate.
func ContentNotFound(id string) *MosaicError {
	return New(ErrCodeContentNotFound,
		fmt.Sprintf("content record %q not found", id), nil).
		WithDetail("content_id", id)
}

// CacheError creates a cache-facade error. Cache failures never fail a
// request; the pipeline treats them as misses.
func CacheError(message string, cause error) *MosaicError {
	return New(ErrCodeCacheUnavailable, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *MosaicError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is a MosaicError with Retryable flag set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if me, ok := err.(*MosaicError); ok {
		return me.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors abort the current request.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if me, ok := err.(*MosaicError); ok {
		return me.Severity == SeverityFatal
	}
	return false
}

// IsNotFound reports whether err is a content-not-found error.
func IsNotFound(err error) bool {
	return GetCode(err) == ErrCodeContentNotFound
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	if me, ok := err.(*MosaicError); ok {
		return me.Category == CategoryValidation
	}
	return false
}

// GetCode extracts the error code from a MosaicError.
// Returns empty string if not a MosaicError.
func GetCode(err error) string {
	if me, ok := err.(*MosaicError); ok {
		return me.Code
	}
	return ""
}

// GetCategory extracts the category from a MosaicError.
// Returns empty string if not a MosaicError.
func GetCategory(err error) Category {
	if me, ok := err.(*MosaicError); ok {
		return me.Category
	}
	return ""
}
