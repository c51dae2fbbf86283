// Package model defines the data structures shared by the store, the services
// and the CLI.
package model

import "time"

// DefaultRole is stored when registration or migration supplies no role.
const DefaultRole = "user"

// User is a row of the users table.
//
// ID is the store-assigned surrogate key. Username is unique and
// case-sensitive ("Alice" and "alice" are different users). PasswordHash is
// the bcrypt output, or for migrated users whatever hash the legacy file
// carried; it is never the plaintext and never serialized.
type User struct {
	ID           int64     `json:"id"        yaml:"id"`
	Username     string    `json:"username"  yaml:"username"`
	PasswordHash string    `json:"-"         yaml:"-"`
	Role         string    `json:"role"      yaml:"role"`
	CreatedAt    time.Time `json:"createdAt" yaml:"createdAt"`
}
