// Package apperrors provides code-tagged errors so callers at the HTTP
// edge can map failures to responses without string matching.
package apperrors

import (
	"errors"
	"fmt"
)

// ErrCode classifies an error for edge mapping.
type ErrCode string

const (
	ErrCodeInvalidInput  ErrCode = "invalid_input"
	ErrCodeNotFound      ErrCode = "not_found"
	ErrCodeConflict      ErrCode = "conflict"
	ErrCodeUnauthorized  ErrCode = "unauthorized"
	ErrCodeAlreadyExists ErrCode = "already_exists"
	ErrCodeInternal      ErrCode = "internal"
	ErrCodeUnavailable   ErrCode = "unavailable"
)

// Error is an error carrying a classification code and optional cause.
type Error struct {
	ErrCode ErrCode
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.ErrCode, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.ErrCode, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New creates an error with the given code and message.
func New(code ErrCode, message string) error {
	return &Error{ErrCode: code, Message: message}
}

// Newf creates an error with the given code and formatted message.
func Newf(code ErrCode, format string, args ...interface{}) error {
	return &Error{ErrCode: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates err with a code and message, keeping err as the cause.
func Wrap(err error, code ErrCode, message string) error {
	if err == nil {
		return nil
	}
	return &Error{ErrCode: code, Message: message, Cause: err}
}

// NotFound reports a missing resource.
func NotFound(resource, id string) error {
	return &Error{ErrCode: ErrCodeNotFound, Message: fmt.Sprintf("%s %q not found", resource, id)}
}

// InvalidInput reports a rejected input field.
func InvalidInput(field, message string) error {
	return &Error{ErrCode: ErrCodeInvalidInput, Message: fmt.Sprintf("%s: %s", field, message)}
}

// Code extracts the classification code from err, or ErrCodeInternal
// for errors that did not originate in this package.
func Code(err error) ErrCode {
	var e *Error
	if errors.As(err, &e) {
		return e.ErrCode
	}
	return ErrCodeInternal
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrCode) bool {
	return err != nil && Code(err) == code
}
