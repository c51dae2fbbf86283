package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/intelligence-platform/internal/apperror"
	"github.com/sakif/intelligence-platform/internal/model"
)

func newTestMigration(t *testing.T) (*MigrationService, *CredentialService) {
	t.Helper()
	store := newTestStore(t)
	logger := newTestLogger()
	return NewMigrationService(store, DefaultDelimiter, logger),
		NewCredentialService(store, newTestPasswords(t), logger)
}

// =========================================================================
// LEGACY CREDENTIAL MIGRATION
// =========================================================================

func TestMigrateLegacyCredentials(t *testing.T) {
	svc, _ := newTestMigration(t)
	path := writeFile(t, t.TempDir(), "users.txt",
		"alice,$2b$12$aaa\n"+
			"bob,$2b$12$bbb,admin,extra\n"+
			"\n"+
			"carol,$2b$12$ccc\r\n")

	res, err := svc.MigrateLegacyCredentials(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Rows)
	assert.Equal(t, 0, res.Skipped)
	assert.False(t, res.Missing)
	assert.Equal(t, "users", res.Table)
}

func TestMigrateLegacyCredentials_MissingFile(t *testing.T) {
	svc, _ := newTestMigration(t)

	res, err := svc.MigrateLegacyCredentials(context.Background(),
		filepath.Join(t.TempDir(), "nope.txt"))

	require.NoError(t, err, "a missing file is a soft no-op")
	assert.True(t, res.Missing)
	assert.Equal(t, 0, res.Rows)
}

func TestMigrateLegacyCredentials_Idempotent(t *testing.T) {
	svc, _ := newTestMigration(t)
	ctx := context.Background()
	path := writeFile(t, t.TempDir(), "users.txt", "alice,h1\nbob,h2\n")

	first, err := svc.MigrateLegacyCredentials(ctx, path)
	require.NoError(t, err)
	second, err := svc.MigrateLegacyCredentials(ctx, path)
	require.NoError(t, err)

	assert.Equal(t, 2, first.Rows)
	assert.Equal(t, 0, second.Rows)

	runs, err := svc.ListRuns(ctx)
	require.NoError(t, err)
	assert.Len(t, runs, 1, "a run that changed nothing is not recorded")
}

func TestMigrateLegacyCredentials_AppendedLines(t *testing.T) {
	svc, _ := newTestMigration(t)
	ctx := context.Background()
	dir := t.TempDir()

	_, err := svc.MigrateLegacyCredentials(ctx, writeFile(t, dir, "users.txt", "alice,h1\n"))
	require.NoError(t, err)

	res, err := svc.MigrateLegacyCredentials(ctx, writeFile(t, dir, "users.txt", "alice,h1\ndave,h4\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rows)
}

func TestMigrateLegacyCredentials_MalformedLinesSkipped(t *testing.T) {
	svc, creds := newTestMigration(t)
	ctx := context.Background()
	path := writeFile(t, t.TempDir(), "users.txt",
		"alice,h1\n"+
			"no-comma-here\n"+
			",orphan-hash\n"+
			"eve,\n"+
			"bob,h2\n")

	res, err := svc.MigrateLegacyCredentials(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Rows)
	assert.Equal(t, 3, res.Skipped)

	// Migrated users exist; their stored value is not a bcrypt hash, so a
	// login attempt is classified as invalid credentials rather than "no
	// such user".
	assert.ErrorIs(t, creds.Login(ctx, "bob", "h2"), apperror.ErrInvalidCredentials)
	assert.ErrorIs(t, creds.Login(ctx, "eve", "x"), apperror.ErrUserNotFound)
}

func TestMigrateLegacyCredentials_MigratedBcryptHashLogsIn(t *testing.T) {
	svc, creds := newTestMigration(t)
	ctx := context.Background()

	hash, err := newTestPasswords(t).Hash("legacy-pw")
	require.NoError(t, err)
	path := writeFile(t, t.TempDir(), "users.txt", "frank,"+hash+"\n")

	_, err = svc.MigrateLegacyCredentials(ctx, path)
	require.NoError(t, err)
	assert.NoError(t, creds.Login(ctx, "frank", "legacy-pw"))
}

func TestMigrateLegacyCredentials_CustomDelimiter(t *testing.T) {
	store := newTestStore(t)
	svc := NewMigrationService(store, ';', newTestLogger())
	path := writeFile(t, t.TempDir(), "users.txt", "alice;h1\nbob,h2\n")

	res, err := svc.MigrateLegacyCredentials(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rows)
	assert.Equal(t, 1, res.Skipped)
}

// =========================================================================
// BULK LOAD
// =========================================================================

const ticketsCSV = "\ufeffticket_id,priority,status,category,subject\n" +
	"T-100,High,Open,Network,\"VPN down, again\"\n" +
	"T-101,Low,Closed,Hardware,Mouse\n"

func TestBulkLoad(t *testing.T) {
	svc, _ := newTestMigration(t)
	ctx := context.Background()
	path := writeFile(t, t.TempDir(), "it_tickets.csv", ticketsCSV)

	res, err := svc.BulkLoad(ctx, path, "it_tickets")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Rows)
	assert.Equal(t, "it_tickets", res.Table)

	runs, err := svc.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.IngestBulkAppend, runs[0].Kind)
	assert.Equal(t, path, runs[0].Source)
}

func TestBulkLoad_MissingFile(t *testing.T) {
	svc, _ := newTestMigration(t)

	res, err := svc.BulkLoad(context.Background(), filepath.Join(t.TempDir(), "gone.csv"), "it_tickets")
	require.NoError(t, err)
	assert.True(t, res.Missing)
	assert.Equal(t, 0, res.Rows)
}

func TestBulkLoad_AppendsEveryTime(t *testing.T) {
	store := newTestStore(t)
	svc := NewMigrationService(store, DefaultDelimiter, newTestLogger())
	ctx := context.Background()
	path := writeFile(t, t.TempDir(), "cyber_incidents.csv",
		"last_updated,incident_type,severity,status\n"+
			"2024-01-01,Phishing,High,Open\n")

	for i := 0; i < 2; i++ {
		_, err := svc.BulkLoad(ctx, path, "incidents")
		require.NoError(t, err)
	}

	n, err := store.CountRows(ctx, "incidents")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestBulkLoad_Rejected(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		table    string
		wantErr  error
		wantLine int
	}{
		{
			name:     "empty file",
			content:  "",
			table:    "it_tickets",
			wantErr:  apperror.ErrMalformedRecord,
			wantLine: 1,
		},
		{
			name:     "unknown column",
			content:  "ticket_id,colour\nT-1,red\n",
			table:    "it_tickets",
			wantErr:  apperror.ErrMalformedRecord,
			wantLine: 1,
		},
		{
			name:     "type mismatch after good rows",
			content:  "dataset_name,record_count\na,1\nb,2\nc,three\n",
			table:    "dataset_metadata",
			wantErr:  apperror.ErrMalformedRecord,
			wantLine: 4,
		},
		{
			name:     "unreadable date",
			content:  "last_updated,incident_type\n2024-11-01,Phishing\n11/25/2024,Malware\n",
			table:    "incidents",
			wantErr:  apperror.ErrMalformedRecord,
			wantLine: 3,
		},
		{
			name:     "ragged row",
			content:  "ticket_id,priority\nT-1,High\nT-2\n",
			table:    "it_tickets",
			wantErr:  apperror.ErrMalformedRecord,
			wantLine: 3,
		},
		{
			name:     "bad quoting",
			content:  "ticket_id,subject\nT-1,\"unterminated\n",
			table:    "it_tickets",
			wantErr:  apperror.ErrMalformedRecord,
			wantLine: 0,
		},
		{
			name:    "unknown table",
			content: "a\n1\n",
			table:   "nope",
			wantErr: apperror.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t)
			svc := NewMigrationService(store, DefaultDelimiter, newTestLogger())
			ctx := context.Background()
			path := writeFile(t, t.TempDir(), "data.csv", tt.content)

			res, err := svc.BulkLoad(ctx, path, tt.table)

			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 0, res.Rows)
			if tt.wantLine > 0 {
				var appErr *apperror.AppError
				require.True(t, errors.As(err, &appErr))
				assert.Equal(t, tt.wantLine, appErr.Line)
			}

			if tt.table != "nope" {
				n, err := store.CountRows(ctx, tt.table)
				require.NoError(t, err)
				assert.Equal(t, 0, n, "a rejected file commits nothing")
			}
		})
	}
}

func TestBulkLoad_BadDateKeepsIncidentsListable(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	incidents := NewIncidentService(store, newTestLogger())
	_, err := incidents.Insert(ctx, model.NewIncident{
		LastUpdated:  time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC),
		IncidentType: "Phishing",
	})
	require.NoError(t, err)

	svc := NewMigrationService(store, DefaultDelimiter, newTestLogger())
	path := writeFile(t, t.TempDir(), "cyber_incidents.csv",
		"last_updated,incident_type,severity\n11/25/2024,Malware,Low\n")

	_, err = svc.BulkLoad(ctx, path, "incidents")
	require.ErrorIs(t, err, apperror.ErrMalformedRecord)

	list, err := incidents.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Phishing", list[0].IncidentType)
}

func TestBulkLoad_MultilineFieldLineNumbers(t *testing.T) {
	svc, _ := newTestMigration(t)
	path := writeFile(t, t.TempDir(), "d.csv",
		"dataset_name,record_count\n"+
			"\"two\nlines\",1\n"+
			"bad,x\n")

	_, err := svc.BulkLoad(context.Background(), path, "dataset_metadata")

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr), "got %v", err)
	assert.Equal(t, 4, appErr.Line)
}

func TestBulkLoad_RequiresTable(t *testing.T) {
	svc, _ := newTestMigration(t)

	_, err := svc.BulkLoad(context.Background(), "whatever.csv", " ")
	assert.ErrorIs(t, err, apperror.ErrValidation)
}
