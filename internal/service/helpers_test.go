package service

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/intelligence-platform/internal/auth"
	"github.com/sakif/intelligence-platform/internal/logging"
	"github.com/sakif/intelligence-platform/internal/repository/sqlite"
)

// =========================================================================
// TEST HELPERS
// =========================================================================

func newTestLogger() *slog.Logger {
	return logging.Discard()
}

// newTestStore opens a real SQLite file in a temporary directory.
func newTestStore(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.New(context.Background(), filepath.Join(t.TempDir(), "store.db"), sqlite.Options{})
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// newTestPasswords uses the minimum bcrypt cost so tests stay fast.
func newTestPasswords(t *testing.T) *auth.PasswordService {
	t.Helper()
	p, err := auth.NewPasswordServiceWithCost(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to create password service: %v", err)
	}
	return p
}

// writeFile creates name under dir with content and returns its path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}
