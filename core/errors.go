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

// FieldConflict reports a unique-field collision with the record it collides with.
type FieldConflict struct {
	Field     string `json:"field"`
	AccountID string `json:"account_id"`
}

// ConflictError is returned when a create/update would duplicate a unique
// field. It carries per-field detail so callers can tell which of the
// submitted values collided, and with which existing record.
type ConflictError struct {
	Err    error
	Fields []FieldConflict
}

func NewConflictError(err error, flds ...FieldConflict) error {
	return &ConflictError{err, flds}
}

func (err ConflictError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
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
