package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError carries the per-field messages of a rejected input.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// integrityError reports state the process cannot trust anymore (e.g. a sync run ledger written twice).
// Servers stop gracefully when one reaches them.
type integrityError struct {
	reason string
}

func NewShutdownError(reason string) error {
	return &integrityError{reason: reason}
}

func (e integrityError) Error() string {
	return "integrity failure: " + e.reason
}

// IsShutdown reports whether err, or its cause, asks for a shutdown.
func IsShutdown(err error) bool {
	var ie *integrityError
	return errors.As(err, &ie)
}
