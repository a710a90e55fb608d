package roster

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorClass tells how far an error propagates in a sync run.
type ErrorClass string

const (
	// run-level
	ClassAuthorization ErrorClass = "authorization"

	// kind-level
	ClassEndpointNotFound  ErrorClass = "endpoint_not_found"
	ClassTransient         ErrorClass = "transient" // retryable, kind-level once retries are exhausted
	ClassMalformedResponse ErrorClass = "malformed_response"

	// record-level
	ClassMissingRequiredField ErrorClass = "missing_required_field"
	ClassProfileWrite         ErrorClass = "profile_write"
)

// APIError is a failure of the remote roster API.
type APIError struct {
	Class      ErrorClass
	Kind       Kind
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("roster api: %s: %s", e.Kind, e.Class)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *APIError) Unwrap() error { return e.Err }

// RecordError is a failure scoped to a single record: the batch goes on.
type RecordError struct {
	Class      ErrorClass
	Kind       Kind
	ExternalID string
	Err        error
}

func (e *RecordError) Error() string {
	if e.Err == nil {
		return string(e.Class)
	}
	return e.Err.Error()
}

func (e *RecordError) Unwrap() error { return e.Err }

func NewAPIError(class ErrorClass, kind Kind, status int, err error) error {
	return &APIError{Class: class, Kind: kind, StatusCode: status, Err: err}
}

func NewRecordError(class ErrorClass, rec Record, err error) error {
	return &RecordError{Class: class, Kind: rec.Kind(), ExternalID: rec.Key(), Err: err}
}

// ClassOf returns the class of a (possibly wrapped) roster error, "" for any other error.
func ClassOf(err error) ErrorClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Class
	}
	var recErr *RecordError
	if errors.As(err, &recErr) {
		return recErr.Class
	}
	return ""
}

// IsRetryable reports whether `err` may succeed on a later attempt.
func IsRetryable(err error) bool {
	return ClassOf(err) == ClassTransient
}
