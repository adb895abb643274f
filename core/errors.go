package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

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

// PermissionError denies an operation the caller's role or ownership does not allow.
type PermissionError struct {
	msg string
}

func NewPermissionError(msg string) error {
	if msg == "" {
		msg = "permission denied"
	}
	return &PermissionError{msg: msg}
}

func (err PermissionError) Error() string { return err.msg }

func IsPermissionDenied(err error) bool {
	_, ok := errors.Cause(err).(*PermissionError)
	return ok
}

// ConflictError rejects a write that would violate a uniqueness invariant.
type ConflictError struct {
	msg string
}

func NewConflictError(msg string) error {
	return &ConflictError{msg: msg}
}

func (err ConflictError) Error() string { return err.msg }

func IsConflict(err error) bool {
	_, ok := errors.Cause(err).(*ConflictError)
	return ok
}

// NotFoundError marks a missing resource.
type NotFoundError struct {
	msg string
}

func NewNotFoundError(msg string) error {
	if msg == "" {
		msg = "not found"
	}
	return &NotFoundError{msg: msg}
}

func (err NotFoundError) Error() string { return err.msg }

func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
