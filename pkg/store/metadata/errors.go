package metadata

import "errors"

// StoreError represents a domain error from metadata store operations.
//
// These are business logic errors (record not found, duplicate email, etc.)
// as opposed to infrastructure errors (disk failure, closed database), which
// are returned as plain wrapped errors.
type StoreError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// ID is the record identifier related to the error (if applicable)
	ID string
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.ID != "" {
		return e.Message + ": " + e.ID
	}
	return e.Message
}

// ErrorCode represents the category of a store error.
type ErrorCode int

const (
	// ErrNotFound indicates the requested user or file doesn't exist
	ErrNotFound ErrorCode = iota

	// ErrAlreadyExists indicates a record with the same unique key exists
	ErrAlreadyExists

	// ErrInvalidArgument indicates invalid parameters were provided
	ErrInvalidArgument

	// ErrIOError indicates the underlying storage failed
	ErrIOError
)

func (c ErrorCode) String() string {
	switch c {
	case ErrNotFound:
		return "NotFound"
	case ErrAlreadyExists:
		return "AlreadyExists"
	case ErrInvalidArgument:
		return "InvalidArgument"
	case ErrIOError:
		return "IOError"
	default:
		return "Unknown"
	}
}

// NewNotFoundError creates a StoreError with ErrNotFound.
func NewNotFoundError(kind, id string) *StoreError {
	return &StoreError{Code: ErrNotFound, Message: kind + " not found", ID: id}
}

// NewAlreadyExistsError creates a StoreError with ErrAlreadyExists.
func NewAlreadyExistsError(kind, id string) *StoreError {
	return &StoreError{Code: ErrAlreadyExists, Message: kind + " already exists", ID: id}
}

// NewInvalidArgumentError creates a StoreError with ErrInvalidArgument.
func NewInvalidArgumentError(message string) *StoreError {
	return &StoreError{Code: ErrInvalidArgument, Message: message}
}

// HasCode reports whether err is a StoreError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return storeErr.Code == code
	}
	return false
}

// IsNotFound reports whether err is a not-found StoreError.
func IsNotFound(err error) bool {
	return HasCode(err, ErrNotFound)
}

// IsAlreadyExists reports whether err is an already-exists StoreError.
func IsAlreadyExists(err error) bool {
	return HasCode(err, ErrAlreadyExists)
}
