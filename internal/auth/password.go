// Package auth hashes and verifies passwords for the credential store.
//
// WHY BCRYPT?
// bcrypt is deliberately slow and salts every hash with fresh random bytes,
// so registering the same password twice yields two different strings and a
// stolen users table cannot be attacked with precomputed tables.
//
// The salt and cost live inside the hash itself:
//
//	$2a$12$<22-char salt><31-char hash>
//
// so the users table needs only one column (password_hash) and verification
// needs nothing but the stored string.
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/intelligence-platform/internal/apperror"
)

// DefaultCost is the bcrypt work factor used when config does not override it.
// Roughly 250ms per hash on current server hardware.
const DefaultCost = 12

// MaxPasswordBytes is bcrypt's input limit. Longer passwords are rejected
// instead of being silently truncated.
const MaxPasswordBytes = 72

// PasswordService hashes and verifies passwords.
//
// It's a struct (not free functions) so the cost can be injected: production
// reads it from config, tests use bcrypt.MinCost to stay fast.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService with DefaultCost.
func NewPasswordService() *PasswordService {
	return &PasswordService{cost: DefaultCost}
}

// NewPasswordServiceWithCost creates a PasswordService with a custom cost.
// Costs outside bcrypt's [MinCost, MaxCost] range are rejected.
func NewPasswordServiceWithCost(cost int) (*PasswordService, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("auth: bcrypt cost %d out of range [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &PasswordService{cost: cost}, nil
}

// Cost returns the configured work factor.
func (p *PasswordService) Cost() int {
	return p.cost
}

// Hash returns a salted bcrypt hash of plaintext.
//
// Empty and over-long passwords are validation errors, not infrastructure
// errors, so they come back as apperror.ErrValidation.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", apperror.ValidationFailed("password", "password is required")
	}
	if len(plaintext) > MaxPasswordBytes {
		return "", apperror.ValidationFailed("password",
			fmt.Sprintf("password must be %d bytes or fewer", MaxPasswordBytes))
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify checks plaintext against a stored hash for username.
//
// Only bcrypt.CompareHashAndPassword is used; it re-derives the hash with the
// embedded salt and compares in constant time. A mismatch, and a stored value
// that is not a bcrypt hash at all (possible for rows copied verbatim from a
// legacy file), both surface as apperror.ErrInvalidCredentials: in either case
// the password cannot be accepted.
func (p *PasswordService) Verify(username, hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err == nil {
		return nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return apperror.InvalidCredentials(username)
	}

	invalid := apperror.InvalidCredentials(username)
	invalid.Cause = err
	return invalid
}
