package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a failure. Every stage of the pipeline returns errors of
// this type so the boundary can map them to a stable code.
type Kind string

const (
	KindInvalidInput      Kind = "invalid_input"
	KindFileTooLarge      Kind = "file_too_large"
	KindEmptyDocument     Kind = "empty_document"
	KindMissingDependency Kind = "missing_dependency"
	KindConversionFailed  Kind = "conversion_failed"
	KindPayloadTooLarge   Kind = "payload_too_large"
	KindConfiguration     Kind = "configuration_error"
	KindRateLimited       Kind = "rate_limited"
	KindContentFiltered   Kind = "content_filtered"
	KindTimeout           Kind = "timeout"
	KindGenerationFailed  Kind = "generation_failed"
	KindValidationFailed  Kind = "validation_failed"

	KindNotFound          Kind = "not_found"
	KindUnauthorized      Kind = "unauthorized"
	KindPersistenceFailed Kind = "persistence_failed"
	KindInternal          Kind = "internal"
)

// Error is the single error type crossing package boundaries.
type Error struct {
	Kind    Kind
	Message string
	Err     error

	// RetryAfter is set for KindRateLimited, in whole seconds.
	RetryAfter int
	// Details is opaque structured context safe to show to callers.
	Details map[string]any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithDetails attaches caller-visible details and returns the same error.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// NewError creates a new domain error
func NewError(kind Kind, message string, err error) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

func InvalidInput(message string, err error) *Error {
	return NewError(KindInvalidInput, message, err)
}

func FileTooLarge(message string) *Error {
	return NewError(KindFileTooLarge, message, nil)
}

func EmptyDocument(message string) *Error {
	return NewError(KindEmptyDocument, message, nil)
}

func MissingDependency(message string, err error) *Error {
	return NewError(KindMissingDependency, message, err)
}

func ConversionFailed(message string, err error) *Error {
	return NewError(KindConversionFailed, message, err)
}

func PayloadTooLarge(message string) *Error {
	return NewError(KindPayloadTooLarge, message, nil)
}

func ConfigurationError(message string) *Error {
	return NewError(KindConfiguration, message, nil)
}

// RateLimited builds a rate limit error carrying the delay before a retry
// can succeed.
func RateLimited(message string, retryAfter int) *Error {
	e := NewError(KindRateLimited, message, nil)
	e.RetryAfter = retryAfter
	return e
}

func ContentFiltered(message string, err error) *Error {
	return NewError(KindContentFiltered, message, err)
}

func Timeout(message string, err error) *Error {
	return NewError(KindTimeout, message, err)
}

func GenerationFailed(message string, err error) *Error {
	return NewError(KindGenerationFailed, message, err)
}

func ValidationFailed(message string, issues []string) *Error {
	e := NewError(KindValidationFailed, message, nil)
	if len(issues) > 0 {
		e.Details = map[string]any{"issues": issues}
	}
	return e
}

func NotFound(message string) *Error {
	return NewError(KindNotFound, message, nil)
}

func Unauthorized(message string) *Error {
	return NewError(KindUnauthorized, message, nil)
}

func PersistenceFailed(message string, err error) *Error {
	return NewError(KindPersistenceFailed, message, err)
}

func Internal(message string, err error) *Error {
	return NewError(KindInternal, message, err)
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// AsError extracts the *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var de *Error
	ok := errors.As(err, &de)
	return de, ok
}

// IsRetryable reports whether retrying the same request can succeed.
func IsRetryable(kind Kind) bool {
	switch kind {
	case KindConversionFailed, KindRateLimited, KindTimeout,
		KindGenerationFailed, KindValidationFailed, KindPersistenceFailed, KindInternal:
		return true
	default:
		return false
	}
}
