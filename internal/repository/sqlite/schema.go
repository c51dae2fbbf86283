package sqlite

import (
	"context"
	"fmt"

	"github.com/sakif/intelligence-platform/internal/apperror"
	"github.com/sakif/intelligence-platform/internal/repository"
)

var _ repository.SchemaManager = (*DB)(nil)

// schemaObject is one idempotent DDL statement and the name reported when it
// fails.
type schemaObject struct {
	name string
	ddl  string
}

// schema lists every table and index, in creation order.
//
// The incidents table has exactly one definition, the event-shaped one used
// by the CRUD and aggregate queries. Dataset descriptions (name, category,
// source, record count, size) live in their own dataset_metadata table so the
// two shapes never compete for the same name.
var schema = []schemaObject{
	{"users table", `
		CREATE TABLE IF NOT EXISTS users (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			username      TEXT    NOT NULL UNIQUE,
			password_hash TEXT    NOT NULL CHECK (password_hash <> ''),
			role          TEXT    NOT NULL DEFAULT 'user',
			created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`},
	{"incidents table", `
		CREATE TABLE IF NOT EXISTS incidents (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			last_updated  DATETIME NOT NULL,
			incident_type TEXT,
			severity      TEXT,
			status        TEXT,
			description   TEXT,
			reported_by   TEXT,
			created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`},
	{"incidents type index", `
		CREATE INDEX IF NOT EXISTS idx_incidents_type ON incidents(incident_type)`},
	{"it_tickets table", `
		CREATE TABLE IF NOT EXISTS it_tickets (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			ticket_id     TEXT NOT NULL UNIQUE,
			priority      TEXT,
			status        TEXT,
			category      TEXT,
			subject       TEXT,
			description   TEXT,
			created_date  TEXT,
			resolved_date TEXT,
			assigned_to   TEXT,
			created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`},
	{"dataset_metadata table", `
		CREATE TABLE IF NOT EXISTS dataset_metadata (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			dataset_name TEXT,
			category     TEXT,
			source       TEXT,
			last_updated DATETIME,
			record_count INTEGER,
			file_size_mb REAL,
			created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`},
	{"ingest_runs table", `
		CREATE TABLE IF NOT EXISTS ingest_runs (
			id           TEXT    PRIMARY KEY,
			kind         TEXT    NOT NULL,
			source       TEXT    NOT NULL,
			target_table TEXT    NOT NULL,
			rows         INTEGER NOT NULL,
			skipped      INTEGER NOT NULL DEFAULT 0,
			started_at   TIMESTAMP NOT NULL,
			finished_at  TIMESTAMP NOT NULL
		)`},
}

// EnsureSchema creates every table and index that does not exist yet.
//
// IDEMPOTENCE:
// Each statement is CREATE ... IF NOT EXISTS, so running this once or a
// hundred times leaves the same schema and never touches data. All statements
// run in one transaction: a failure part-way leaves the file as it was.
//
// Failures are returned as apperror.ErrSchema naming the object that could
// not be created.
func (db *DB) EnsureSchema(ctx context.Context) error {
	return db.withTx(ctx, func(tx dbtx) error {
		for _, obj := range schema {
			if _, err := tx.ExecContext(ctx, obj.ddl); err != nil {
				return apperror.Schema(obj.name, err)
			}
		}
		return nil
	})
}

// tableColumns returns the declared columns of table in definition order,
// or nil if the table does not exist.
func tableColumns(ctx context.Context, q dbtx, table string) ([]column, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT name, type, "notnull" FROM pragma_table_info(?) ORDER BY cid`, table)
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading columns of %s: %w", table, err)
	}
	defer rows.Close()

	var cols []column
	for rows.Next() {
		var c column
		if err := rows.Scan(&c.name, &c.declType, &c.notNull); err != nil {
			return nil, fmt.Errorf("sqlite: scanning column of %s: %w", table, err)
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating columns of %s: %w", table, err)
	}
	return cols, nil
}
