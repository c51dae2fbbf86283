package sqlite

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/intelligence-platform/internal/apperror"
	"github.com/sakif/intelligence-platform/internal/model"
)

// createTestUser is a test helper that creates a user and fails the test if it errors.
func createTestUser(t *testing.T, db *DB, username string) *model.User {
	t.Helper()
	user := &model.User{Username: username, PasswordHash: "$2a$04$hash-of-" + username}
	if err := db.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// =========================================================================
// CREATE TESTS
// =========================================================================

func TestCreateUser(t *testing.T) {
	db := newTestDB(t)

	user := &model.User{Username: "alice", PasswordHash: "$2a$04$abc"}
	err := db.CreateUser(context.Background(), user)
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	// Verify the user was modified in-place (pointer receiver)
	if user.ID < 1 {
		t.Errorf("CreateUser() ID = %d, want >= 1", user.ID)
	}
	if user.CreatedAt.IsZero() {
		t.Error("CreateUser() did not set CreatedAt")
	}
	if user.Role != model.DefaultRole {
		t.Errorf("Role = %q, want %q", user.Role, model.DefaultRole)
	}
}

func TestCreateUser_KeepsRole(t *testing.T) {
	db := newTestDB(t)

	user := &model.User{Username: "root", PasswordHash: "h", Role: "admin"}
	require.NoError(t, db.CreateUser(context.Background(), user))

	found, err := db.GetUserByUsername(context.Background(), "root")
	require.NoError(t, err)
	assert.Equal(t, "admin", found.Role)
}

func TestCreateUser_Duplicate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	createTestUser(t, db, "alice")

	err := db.CreateUser(ctx, &model.User{Username: "alice", PasswordHash: "other"})

	if !errors.Is(err, apperror.ErrDuplicateUsername) {
		t.Fatalf("CreateUser() error = %v, want ErrDuplicateUsername", err)
	}
	assert.ErrorIs(t, err, apperror.ErrConflict)

	n, err := db.CountRows(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, 1, n, "a declined registration must not add a row")
}

func TestCreateUser_CaseSensitive(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "alice")

	err := db.CreateUser(context.Background(), &model.User{Username: "Alice", PasswordHash: "h"})
	assert.NoError(t, err)
}

func TestCreateUser_EmptyHashRejected(t *testing.T) {
	db := newTestDB(t)

	err := db.CreateUser(context.Background(), &model.User{Username: "bob"})
	require.Error(t, err)
	assert.True(t, isConstraintViolation(err), "want CHECK constraint failure, got %v", err)
}

func TestCreateUser_ConcurrentSameUsername(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	const workers = 8
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		successes  int
		duplicates int
		others     []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := db.CreateUser(ctx, &model.User{Username: "racer", PasswordHash: "h"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, apperror.ErrDuplicateUsername):
				duplicates++
			default:
				others = append(others, err)
			}
		}()
	}
	wg.Wait()

	assert.Empty(t, others)
	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, duplicates)

	n, err := db.CountRows(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// =========================================================================
// GET TESTS
// =========================================================================

func TestGetUserByUsername(t *testing.T) {
	db := newTestDB(t)
	created := createTestUser(t, db, "carol")

	found, err := db.GetUserByUsername(context.Background(), "carol")
	if err != nil {
		t.Fatalf("GetUserByUsername() error = %v", err)
	}

	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, created.PasswordHash, found.PasswordHash)
	assert.Equal(t, model.DefaultRole, found.Role)
	assert.True(t, created.CreatedAt.Equal(found.CreatedAt),
		"CreatedAt = %v, want %v", found.CreatedAt, created.CreatedAt)
}

func TestGetUserByUsername_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetUserByUsername(context.Background(), "ghost")

	if !errors.Is(err, apperror.ErrUserNotFound) {
		t.Errorf("GetUserByUsername() error = %v, want ErrUserNotFound", err)
	}
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
