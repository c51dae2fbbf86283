// Run with: go test ./internal/apperror/ -v
package apperror

import (
	"errors"
	"fmt"
	"testing"
)

// TABLE-DRIVEN TESTS:
// Each case states which sentinel an error must (or must not) match.
// The credential errors are the interesting ones: they belong to a broader
// family but must never be confused with each other.

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("incident", "42"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("username", "username is required"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "DuplicateUsername matches ErrDuplicateUsername",
			err:       DuplicateUsername("alice"),
			target:    ErrDuplicateUsername,
			wantMatch: true,
		},
		{
			name:      "DuplicateUsername is a Conflict",
			err:       DuplicateUsername("alice"),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "UserNotFound is a NotFound",
			err:       UserNotFound("ghost"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "UserNotFound is NOT InvalidCredentials",
			err:       UserNotFound("ghost"),
			target:    ErrInvalidCredentials,
			wantMatch: false,
		},
		{
			name:      "InvalidCredentials is NOT UserNotFound",
			err:       InvalidCredentials("alice"),
			target:    ErrUserNotFound,
			wantMatch: false,
		},
		{
			name:      "incident NotFound is NOT UserNotFound",
			err:       NotFound("incident", "7"),
			target:    ErrUserNotFound,
			wantMatch: false,
		},
		{
			name:      "MalformedRecord wraps ErrMalformedRecord",
			err:       MalformedRecord("users.txt", 3, "missing password hash"),
			target:    ErrMalformedRecord,
			wantMatch: true,
		},
		{
			name:      "wrapped with fmt.Errorf still matches",
			err:       fmt.Errorf("service: %w", NotFound("incident", "1")),
			target:    ErrNotFound,
			wantMatch: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{
			name:        "NotFound message includes resource and id",
			err:         NotFound("incident", "42"),
			wantMessage: "incident not found with id 42",
		},
		{
			name:        "ValidationFailed uses custom message",
			err:         ValidationFailed("status", "status is required"),
			wantMessage: "status is required",
		},
		{
			name:        "DuplicateUsername quotes the username",
			err:         DuplicateUsername("alice"),
			wantMessage: `username "alice" already exists`,
		},
		{
			name:        "MalformedRecord with source and line",
			err:         MalformedRecord("users.txt", 3, "expected at least 2 fields"),
			wantMessage: "users.txt:3: expected at least 2 fields",
		},
		{
			name:        "MalformedRecord with source only",
			err:         MalformedRecord("tickets.csv", 0, "empty header"),
			wantMessage: "tickets.csv: empty header",
		},
		{
			name:        "MalformedRecord without source",
			err:         MalformedRecord("", 0, "bad row"),
			wantMessage: "bad row",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestSchemaKeepsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Schema("users table", cause)

	if !errors.Is(err, ErrSchema) {
		t.Errorf("errors.Is(err, ErrSchema) = false, want true")
	}
	if !errors.Is(err, cause) {
		t.Errorf("errors.Is(err, cause) = false, want true")
	}
	if err.Field != "users table" {
		t.Errorf("Field = %q, want %q", err.Field, "users table")
	}
}

func TestErrorsAs(t *testing.T) {
	var wrapped error = fmt.Errorf("migrate: %w", MalformedRecord("users.txt", 9, "bad"))

	var appErr *AppError
	if !errors.As(wrapped, &appErr) {
		t.Fatal("errors.As() = false, want true")
	}
	if appErr.Line != 9 {
		t.Errorf("Line = %d, want 9", appErr.Line)
	}
	if appErr.Source != "users.txt" {
		t.Errorf("Source = %q, want %q", appErr.Source, "users.txt")
	}
}
