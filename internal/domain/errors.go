package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can branch on it instead of
// matching error strings.
type Kind int

const (
	// KindTransient covers storage I/O failures that are safe to retry.
	KindTransient Kind = iota
	// KindNotFound means the referenced entity does not exist.
	KindNotFound
	// KindForbidden means the actor is not authorized for the operation.
	KindForbidden
	// KindInvalid means the operation is not legal in the current state,
	// e.g. requesting your own book or re-deciding a resolved request.
	KindInvalid
	// KindConflict means a concurrent or duplicate action won, e.g. a
	// duplicate pending request or a lost availability race.
	KindConflict
	// KindValidation means the input itself is malformed.
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindInvalid:
		return "invalid_operation"
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "validation"
	default:
		return "transient"
	}
}

// Error is a kind-tagged error. Message is safe to show to API callers;
// the wrapped cause is not.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// E builds a kind-tagged error
func E(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds a kind-tagged error around a cause
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

func NotFound(message string) *Error  { return E(KindNotFound, message) }
func Forbidden(message string) *Error { return E(KindForbidden, message) }
func Invalid(message string) *Error   { return E(KindInvalid, message) }
func Conflict(message string) *Error  { return E(KindConflict, message) }
func Validation(message string) *Error {
	return E(KindValidation, message)
}

// Transient wraps a storage failure that the caller may retry
func Transient(message string, cause error) *Error {
	return Wrap(KindTransient, message, cause)
}

// KindOf extracts the kind from err, defaulting to KindTransient for
// untagged errors so infrastructure failures are never mistaken for
// caller mistakes.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindTransient
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// PublicMessage returns the caller-safe message for err
func PublicMessage(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}
