package service

import (
	"errors"
	"fmt"
)

// ErrorKind classifies service failures. Transports map kinds to status
// codes; the message is safe to show to clients.
type ErrorKind int

const (
	// KindInternal is a failure the client cannot fix (store down, I/O).
	KindInternal ErrorKind = iota

	// KindUnauthorized means missing, malformed or expired credentials.
	KindUnauthorized

	// KindValidation means the request itself is wrong.
	KindValidation

	// KindNotFound means the resource does not exist or is not visible to
	// the requester.
	KindNotFound

	// KindConflict means the resource already exists.
	KindConflict
)

func (k ErrorKind) String() string {
	switch k {
	case KindInternal:
		return "Internal"
	case KindUnauthorized:
		return "Unauthorized"
	case KindValidation:
		return "Validation"
	case KindNotFound:
		return "NotFound"
	case KindConflict:
		return "Conflict"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error is the error type returned by every service operation.
type Error struct {
	Kind    ErrorKind
	Message string

	// Err is the underlying cause, never shown to clients.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on kind and message, so a wrapped instance with a cause still
// matches its sentinel:
//
//	errors.Is(err, service.ErrParentNotFound)
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

var (
	ErrUnauthorized     = &Error{Kind: KindUnauthorized, Message: "Unauthorized"}
	ErrMissingEmail     = &Error{Kind: KindValidation, Message: "Missing email"}
	ErrMissingPassword  = &Error{Kind: KindValidation, Message: "Missing password"}
	ErrAlreadyExist     = &Error{Kind: KindConflict, Message: "Already exist"}
	ErrMissingName      = &Error{Kind: KindValidation, Message: "Missing name"}
	ErrMissingType      = &Error{Kind: KindValidation, Message: "Missing type"}
	ErrMissingData      = &Error{Kind: KindValidation, Message: "Missing data"}
	ErrInvalidData      = &Error{Kind: KindValidation, Message: "Invalid data"}
	ErrParentNotFound   = &Error{Kind: KindValidation, Message: "Parent not found"}
	ErrParentNotAFolder = &Error{Kind: KindValidation, Message: "Parent is not a folder"}
	ErrNotAFile         = &Error{Kind: KindValidation, Message: "A folder doesn't have content"}
	ErrInvalidSize      = &Error{Kind: KindValidation, Message: "Invalid size"}
	ErrInvalidPassword  = &Error{Kind: KindValidation, Message: "Invalid password"}
	ErrNotFound         = &Error{Kind: KindNotFound, Message: "Not found"}
)

// internal wraps an unexpected failure. The cause is kept for logging.
func internal(op string, err error) error {
	return &Error{Kind: KindInternal, Message: "Internal error", Err: fmt.Errorf("%s: %w", op, err)}
}

// KindOf returns the kind of a service error, or KindInternal for anything
// else.
func KindOf(err error) ErrorKind {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Kind
	}
	return KindInternal
}

// MessageOf returns the client-safe message of err.
func MessageOf(err error) string {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Message
	}
	return "Internal error"
}
