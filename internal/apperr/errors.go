// Package apperr defines the failure taxonomy shared by the feed, social and
// playlist services. Operations return plain Go errors; callers classify them
// with KindOf instead of inspecting messages.
package apperr

import (
	"errors"
	"fmt"
)

// Kind tags an error with one of the failure categories the services surface.
type Kind int

const (
	// KindNetwork covers transport and backend failures. Unclassified errors
	// fall into this bucket.
	KindNetwork Kind = iota
	KindNotFound
	KindPermissionDenied
	KindUnauthenticated
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindPermissionDenied:
		return "permission_denied"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindValidation:
		return "validation"
	default:
		return "network"
	}
}

var (
	// ErrNotFound indicates the referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrPermissionDenied indicates an ownership or visibility violation.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrUnauthenticated indicates the action requires a signed-in identity.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrNetwork indicates a transport or backend failure.
	ErrNetwork = errors.New("network failure")
)

// Error attaches a kind and a human readable message to an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is match an *Error against the sentinel of its kind.
func (e *Error) Is(target error) bool {
	return target == sentinel(e.Kind)
}

// New returns an error of the given kind.
func New(kind Kind, message string) error {
	return &Error{Kind: kind, Message: message}
}

// Wrap returns an error of the given kind that unwraps to cause.
func Wrap(err error, kind Kind, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Cause: err}
}

// Validation is shorthand for New(KindValidation, message).
func Validation(message string) error {
	return New(KindValidation, message)
}

// Network wraps a backend failure, keeping already classified errors intact.
func Network(err error, message string) error {
	if err == nil {
		return nil
	}
	if Classified(err) {
		return fmt.Errorf("%s: %w", message, err)
	}
	return Wrap(err, KindNetwork, message)
}

// Classified reports whether err already carries one of the non-network kinds.
func Classified(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrPermissionDenied) ||
		errors.Is(err, ErrUnauthenticated) ||
		errors.Is(err, ErrValidation)
}

// KindOf classifies err. It must not be called with a nil error.
func KindOf(err error) Kind {
	var appErr *Error
	switch {
	case errors.As(err, &appErr):
		return appErr.Kind
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrPermissionDenied):
		return KindPermissionDenied
	case errors.Is(err, ErrUnauthenticated):
		return KindUnauthenticated
	case errors.Is(err, ErrValidation):
		return KindValidation
	default:
		return KindNetwork
	}
}

func sentinel(kind Kind) error {
	switch kind {
	case KindNotFound:
		return ErrNotFound
	case KindPermissionDenied:
		return ErrPermissionDenied
	case KindUnauthenticated:
		return ErrUnauthenticated
	case KindValidation:
		return ErrValidation
	default:
		return ErrNetwork
	}
}
