// Package apperror defines the classified errors returned by the store.
//
// Every recoverable failure is an *AppError whose Err field is one of the
// sentinels below, so callers branch with errors.Is:
//
//	if errors.Is(err, apperror.ErrDuplicateUsername) { ... }
//
// Some sentinels wrap broader ones. ErrDuplicateUsername matches ErrConflict
// and ErrUserNotFound matches ErrNotFound, which lets generic callers treat
// them as their family while the credential flow can still tell them apart.
//
// Anything that is NOT an *AppError (a wrapped driver error, a closed pool)
// is an infrastructure failure and should be treated as fatal by the caller.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")

	ErrDuplicateUsername  = fmt.Errorf("duplicate username: %w", ErrConflict)
	ErrUserNotFound       = fmt.Errorf("user %w", ErrNotFound)
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrMalformedRecord    = errors.New("malformed record")
	ErrSchema             = errors.New("schema error")
)

type AppError struct {
	Err     error  // sentinel used for errors.Is
	Message string // human-readable message
	Field   string // optional: field or column that caused the error
	Source  string // optional: file the record came from
	Line    int    // optional: 1-based line in Source
	Cause   error  // optional: underlying error kept for diagnostics
}

func (e *AppError) Error() string {
	return e.Message
}

// Unwrap exposes both the sentinel and the underlying cause to errors.Is/As.
func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// DuplicateUsername declines a registration whose username is taken.
func DuplicateUsername(username string) *AppError {
	return &AppError{
		Err:     ErrDuplicateUsername,
		Message: fmt.Sprintf("username %q already exists", username),
		Field:   "username",
	}
}

// UserNotFound is the login failure for an unknown username. It is kept
// distinct from InvalidCredentials on purpose; callers that want to hide the
// difference must do so at the presentation layer.
func UserNotFound(username string) *AppError {
	return &AppError{
		Err:     ErrUserNotFound,
		Message: fmt.Sprintf("user %q not found", username),
		Field:   "username",
	}
}

func InvalidCredentials(username string) *AppError {
	return &AppError{
		Err:     ErrInvalidCredentials,
		Message: fmt.Sprintf("invalid credentials for user %q", username),
		Field:   "password",
	}
}

// MalformedRecord reports an input record that could not be ingested.
// line is 1-based; pass 0 when the position is unknown.
func MalformedRecord(source string, line int, message string) *AppError {
	msg := message
	if source != "" && line > 0 {
		msg = fmt.Sprintf("%s:%d: %s", source, line, message)
	} else if source != "" {
		msg = fmt.Sprintf("%s: %s", source, message)
	}
	return &AppError{
		Err:     ErrMalformedRecord,
		Message: msg,
		Source:  source,
		Line:    line,
	}
}

// Schema wraps a structural failure raised while creating tables.
func Schema(object string, cause error) *AppError {
	return &AppError{
		Err:     ErrSchema,
		Message: fmt.Sprintf("creating %s: %v", object, cause),
		Field:   object,
		Cause:   cause,
	}
}
