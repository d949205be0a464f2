package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an engine error
type Kind uint

const (
	// KindUnknown represents an unclassified error
	KindUnknown Kind = iota
	// KindInvalidInput represents a non-positive or non-finite numeric input
	KindInvalidInput
	// KindInsufficientData represents a price series too short to estimate from
	KindInsufficientData
	// KindDuplicateStrike represents repeated strikes in smile construction
	KindDuplicateStrike
	// KindNumericalInstability represents non-finite intermediate results
	KindNumericalInstability
	// KindNotFound represents a missing resource
	KindNotFound
	// KindInternal represents an internal error
	KindInternal
)

// AppError represents an application error with a classification
type AppError struct {
	Kind    Kind
	Message string
	Err     error
}

// Error returns the error message
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new unclassified error
func New(message string) error {
	return &AppError{
		Kind:    KindUnknown,
		Message: message,
	}
}

// Wrap wraps an error with a message, preserving its kind
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return &AppError{
		Kind:    KindOf(err),
		Message: message,
		Err:     err,
	}
}

// Wrapf wraps an error with a formatted message
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// KindOf returns the kind of an error, or KindUnknown for foreign errors
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

// IsKind reports whether the first AppError in err's chain carries the given kind
func IsKind(err error, kind Kind) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}

// InvalidInput creates a new InvalidInput error
func InvalidInput(message string) error {
	return &AppError{
		Kind:    KindInvalidInput,
		Message: message,
	}
}

// InvalidInputf creates a new InvalidInput error with a formatted message
func InvalidInputf(format string, args ...interface{}) error {
	return InvalidInput(fmt.Sprintf(format, args...))
}

// InsufficientData creates a new InsufficientData error
func InsufficientData(message string) error {
	return &AppError{
		Kind:    KindInsufficientData,
		Message: message,
	}
}

// DuplicateStrike creates a new DuplicateStrike error
func DuplicateStrike(message string) error {
	return &AppError{
		Kind:    KindDuplicateStrike,
		Message: message,
	}
}

// NumericalInstability creates a new NumericalInstability error
func NumericalInstability(message string) error {
	return &AppError{
		Kind:    KindNumericalInstability,
		Message: message,
	}
}

// NotFound creates a new NotFound error
func NotFound(message string) error {
	return &AppError{
		Kind:    KindNotFound,
		Message: message,
	}
}

// Internal creates a new Internal error
func Internal(message string) error {
	return &AppError{
		Kind:    KindInternal,
		Message: message,
	}
}
