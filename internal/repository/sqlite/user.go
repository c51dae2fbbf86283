package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sakif/intelligence-platform/internal/apperror"
	"github.com/sakif/intelligence-platform/internal/model"
	"github.com/sakif/intelligence-platform/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

// CreateUser inserts a new user row.
//
// TWO LAYERS OF DUPLICATE DETECTION:
//
//  1. Inside the transaction we SELECT the username first. Because the
//     transaction began IMMEDIATE, no other writer can slip a row in between
//     this lookup and the INSERT below.
//  2. The UNIQUE constraint on users.username is still the final arbiter. If
//     another process writes without our locking discipline, the INSERT fails
//     with SQLITE_CONSTRAINT_UNIQUE and we report the same DuplicateUsername.
//
// On any error the transaction rolls back, so a failed registration adds
// zero rows.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	if user.Role == "" {
		user.Role = model.DefaultRole
	}
	createdAt := db.now()

	err := db.withTx(ctx, func(tx dbtx) error {
		var existing int64
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM users WHERE username = ?`, user.Username,
		).Scan(&existing)
		switch {
		case err == nil:
			return apperror.DuplicateUsername(user.Username)
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("sqlite: looking up user %q: %w", user.Username, err)
		}

		result, err := tx.ExecContext(ctx,
			`INSERT INTO users (username, password_hash, role, created_at)
			 VALUES (?, ?, ?, ?)`,
			user.Username,
			user.PasswordHash,
			user.Role,
			formatTime(createdAt),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return apperror.DuplicateUsername(user.Username)
			}
			return fmt.Errorf("sqlite: inserting user %q: %w", user.Username, err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("sqlite: reading new user id: %w", err)
		}
		user.ID = id
		return nil
	})
	if err != nil {
		return err
	}

	user.CreatedAt = createdAt.Truncate(1e9)
	return nil
}

// GetUserByUsername retrieves a user by exact (case-sensitive) username.
// Returns apperror.ErrUserNotFound if no such user exists.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	var (
		u         model.User
		createdAt sql.NullString
	)

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, username, password_hash, role, CAST(created_at AS TEXT)
		 FROM users WHERE username = ?`,
		username,
	).Scan(
		&u.ID,
		&u.Username,
		&u.PasswordHash,
		&u.Role,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.UserNotFound(username)
		}
		return nil, fmt.Errorf("sqlite: getting user %q: %w", username, err)
	}

	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("sqlite: user %q created_at: %w", username, err)
	}
	return &u, nil
}
