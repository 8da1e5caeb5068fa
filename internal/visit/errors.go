package visit

import (
	"errors"
	"fmt"
)

// ValidationError reports a missing or invalid field. It is shown to the
// user as-is and never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// AuthorizationError is a policy or identity denial. Guard names the check
// that failed. For the identity guard Reason is a machine code
// (not_found, wrong_position, malformed_input) and Message the text to show.
type AuthorizationError struct {
	Guard   string
	Reason  string
	Message string
}

func (e *AuthorizationError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("not authorized (%s): %s", e.Guard, e.Message)
	}
	return fmt.Sprintf("not authorized (%s): %s", e.Guard, e.Reason)
}

// NotFoundError is returned for an unknown visit id.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	kind := e.Kind
	if kind == "" {
		kind = "visit"
	}
	return fmt.Sprintf("%s %q not found", kind, e.ID)
}

// TransientError wraps a timeout, connection failure or in-flight conflict.
// The action that produced it can be re-issued unchanged.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: temporary failure: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// ErrInFlight is returned when another mutation on the same visit has not
// finished yet.
var ErrInFlight = errors.New("another request for this visit is in progress")

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func deny(guard, format string, args ...interface{}) error {
	return &AuthorizationError{Guard: guard, Reason: fmt.Sprintf(format, args...)}
}

// IsRetryable reports whether err may be retried without changing the request.
func IsRetryable(err error) bool {
	var te *TransientError
	return errors.As(err, &te) || errors.Is(err, ErrInFlight)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
