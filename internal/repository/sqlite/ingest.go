package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/xid"

	"github.com/sakif/intelligence-platform/internal/apperror"
	"github.com/sakif/intelligence-platform/internal/model"
	"github.com/sakif/intelligence-platform/internal/repository"
)

var _ repository.IngestRepository = (*DB)(nil)

// column is one row of pragma_table_info.
type column struct {
	name     string
	declType string
	notNull  bool
}

// affinity is the SQLite type affinity derived from a declared column type.
// It decides how a raw text cell is converted before it is bound.
type affinity int

const (
	affinityText affinity = iota
	affinityInteger
	affinityReal
	affinityNumeric
)

// columnAffinity applies SQLite's affinity rules (section 3.1 of the SQLite
// datatype docs), in the same order SQLite checks them:
//
//	contains "INT"                    → INTEGER
//	contains "CHAR", "CLOB" or "TEXT" → TEXT
//	contains "BLOB" or no type        → stored as given (we bind text)
//	contains "REAL", "FLOA" or "DOUB" → REAL
//	anything else (DATETIME, NUMERIC) → NUMERIC
func columnAffinity(declType string) affinity {
	t := strings.ToUpper(declType)
	switch {
	case strings.Contains(t, "INT"):
		return affinityInteger
	case strings.Contains(t, "CHAR"), strings.Contains(t, "CLOB"), strings.Contains(t, "TEXT"):
		return affinityText
	case t == "", strings.Contains(t, "BLOB"):
		return affinityText
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"):
		return affinityReal
	default:
		return affinityNumeric
	}
}

// coerce converts one cell for binding into col. An empty cell becomes NULL,
// which a NOT NULL column rejects.
//
// INTEGER and REAL columns are strict: a value that does not parse is an
// error, so a type mismatch aborts the load instead of being stored as text.
// DATE, DATETIME and TIMESTAMP columns must hold a timestamp parseTime can
// read back, and are stored in timeLayout. Other NUMERIC columns keep the
// text when it is not a number, which is what SQLite itself would do.
func coerce(col column, raw string) (any, error) {
	if raw == "" {
		if col.notNull {
			return nil, fmt.Errorf("column %s: value required", col.name)
		}
		return nil, nil
	}
	v := strings.TrimSpace(raw)

	if isTemporal(col.declType) {
		t, err := parseTime(sql.NullString{String: v, Valid: true})
		if err != nil || t.IsZero() {
			return nil, fmt.Errorf("column %s: %q is not a date", col.name, raw)
		}
		return formatTime(t), nil
	}

	switch columnAffinity(col.declType) {
	case affinityInteger:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("column %s: %q is not an integer", col.name, raw)
		}
		return n, nil
	case affinityReal:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("column %s: %q is not a number", col.name, raw)
		}
		return f, nil
	case affinityNumeric:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n, nil
		}
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f, nil
		}
		return raw, nil
	default:
		return raw, nil
	}
}

// isTemporal reports whether a declared type names a date or time column.
func isTemporal(declType string) bool {
	t := strings.ToUpper(declType)
	return strings.Contains(t, "DATE") || strings.Contains(t, "TIME")
}

// quoteIdent quotes an SQL identifier. Table and column names in a bulk load
// come from a file header, so they are never spliced in unquoted.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// UpsertLegacyUsers inserts each credential whose username is not taken yet.
//
// INSERT ... ON CONFLICT(username) DO NOTHING makes every row an
// insert-or-ignore, so the returned count is the number of users actually
// added: running the same file twice returns 0 the second time and leaves no
// duplicates. Hashes are stored exactly as given.
//
// The whole file is one transaction. A ledger row is written in that same
// transaction only when at least one user was added.
func (db *DB) UpsertLegacyUsers(ctx context.Context, source string, creds []model.LegacyCredential, skipped int) (int, error) {
	started := db.now()
	inserted := 0

	err := db.withTx(ctx, func(tx dbtx) error {
		for _, c := range creds {
			result, err := tx.ExecContext(ctx,
				`INSERT INTO users (username, password_hash, role, created_at)
				 VALUES (?, ?, ?, ?)
				 ON CONFLICT(username) DO NOTHING`,
				c.Username,
				c.PasswordHash,
				model.DefaultRole,
				formatTime(started),
			)
			if err != nil {
				if isConstraintViolation(err) {
					return apperror.MalformedRecord(source, c.Line, err.Error())
				}
				return fmt.Errorf("sqlite: migrating user %q: %w", c.Username, err)
			}
			n, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("sqlite: reading rows affected: %w", err)
			}
			inserted += int(n)
		}

		if inserted == 0 {
			return nil
		}
		return db.recordRun(ctx, tx, model.IngestRun{
			Kind:        model.IngestLegacyCredentials,
			Source:      source,
			TargetTable: "users",
			Rows:        inserted,
			Skipped:     skipped,
			StartedAt:   started,
		})
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// AppendRows appends every row of batch to batch.Table, or none of them.
//
// VALIDATION ORDER:
//  1. The table must exist (apperror.ErrNotFound otherwise).
//  2. Every header name must be a column of the table, at most once.
//  3. Every row must have exactly as many fields as the header.
//  4. Every cell must convert to its column's affinity.
//  5. The row must satisfy the table's constraints (NOT NULL, UNIQUE...).
//
// Failing 2 to 5 returns apperror.ErrMalformedRecord carrying the file line
// (the header is line 1). Any failure rolls the transaction back, so a load
// never commits part of a file.
func (db *DB) AppendRows(ctx context.Context, batch model.TabularBatch) (int, error) {
	started := db.now()

	err := db.withTx(ctx, func(tx dbtx) error {
		var exists int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM sqlite_master
			 WHERE type = 'table' AND name = ? AND name NOT LIKE 'sqlite\_%' ESCAPE '\'`,
			batch.Table,
		).Scan(&exists); err != nil {
			return fmt.Errorf("sqlite: looking up table %s: %w", batch.Table, err)
		}
		if exists == 0 {
			return apperror.NotFound("table", batch.Table)
		}

		cols, err := tableColumns(ctx, tx, batch.Table)
		if err != nil {
			return err
		}
		targets, err := matchHeader(batch, cols)
		if err != nil {
			return err
		}
		if len(batch.Rows) == 0 {
			return nil
		}

		names := make([]string, len(targets))
		marks := make([]string, len(targets))
		for i, c := range targets {
			names[i] = quoteIdent(c.name)
			marks[i] = "?"
		}
		insert := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
			quoteIdent(batch.Table), strings.Join(names, ", "), strings.Join(marks, ", "))

		for i, row := range batch.Rows {
			line := i + 2
			if i < len(batch.Lines) {
				line = batch.Lines[i]
			}
			if len(row) != len(targets) {
				return apperror.MalformedRecord(batch.Source, line,
					fmt.Sprintf("expected %d fields, got %d", len(targets), len(row)))
			}

			args := make([]any, len(row))
			for j, cell := range row {
				v, err := coerce(targets[j], cell)
				if err != nil {
					return apperror.MalformedRecord(batch.Source, line, err.Error())
				}
				args[j] = v
			}

			if _, err := tx.ExecContext(ctx, insert, args...); err != nil {
				if isConstraintViolation(err) {
					return apperror.MalformedRecord(batch.Source, line, err.Error())
				}
				return fmt.Errorf("sqlite: appending to %s: %w", batch.Table, err)
			}
		}

		return db.recordRun(ctx, tx, model.IngestRun{
			Kind:        model.IngestBulkAppend,
			Source:      batch.Source,
			TargetTable: batch.Table,
			Rows:        len(batch.Rows),
			StartedAt:   started,
		})
	})
	if err != nil {
		return 0, err
	}
	return len(batch.Rows), nil
}

// matchHeader maps each header name to its column. SQLite column names are
// case-insensitive, so the match is too.
func matchHeader(batch model.TabularBatch, cols []column) ([]column, error) {
	byName := make(map[string]column, len(cols))
	for _, c := range cols {
		byName[strings.ToLower(c.name)] = c
	}

	if len(batch.Header) == 0 {
		return nil, apperror.MalformedRecord(batch.Source, 1, "header row is empty")
	}

	seen := make(map[string]bool, len(batch.Header))
	targets := make([]column, len(batch.Header))
	for i, h := range batch.Header {
		key := strings.ToLower(strings.TrimSpace(h))
		c, ok := byName[key]
		if !ok {
			return nil, apperror.MalformedRecord(batch.Source, 1,
				fmt.Sprintf("column %q does not exist in table %s", h, batch.Table))
		}
		if seen[key] {
			return nil, apperror.MalformedRecord(batch.Source, 1,
				fmt.Sprintf("column %q appears more than once", h))
		}
		seen[key] = true
		targets[i] = c
	}
	return targets, nil
}

// recordRun writes one ingest_runs row inside the caller's transaction, so the
// ledger entry and the data it describes commit or roll back together.
func (db *DB) recordRun(ctx context.Context, tx dbtx, run model.IngestRun) error {
	run.ID = xid.New().String()
	run.FinishedAt = db.now()

	_, err := tx.ExecContext(ctx,
		`INSERT INTO ingest_runs
			(id, kind, source, target_table, rows, skipped, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.Kind,
		run.Source,
		run.TargetTable,
		run.Rows,
		run.Skipped,
		formatTime(run.StartedAt),
		formatTime(run.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: recording ingest run: %w", err)
	}
	return nil
}

// ListIngestRuns returns the ledger, newest first.
func (db *DB) ListIngestRuns(ctx context.Context) ([]model.IngestRun, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, kind, source, target_table, rows, skipped,
			CAST(started_at AS TEXT), CAST(finished_at AS TEXT)
		 FROM ingest_runs
		 ORDER BY finished_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing ingest runs: %w", err)
	}
	defer rows.Close()

	runs := []model.IngestRun{}
	for rows.Next() {
		var (
			run               model.IngestRun
			started, finished sql.NullString
		)
		if err := rows.Scan(
			&run.ID,
			&run.Kind,
			&run.Source,
			&run.TargetTable,
			&run.Rows,
			&run.Skipped,
			&started,
			&finished,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning ingest run: %w", err)
		}
		if run.StartedAt, err = parseTime(started); err != nil {
			return nil, fmt.Errorf("sqlite: ingest run %s started_at: %w", run.ID, err)
		}
		if run.FinishedAt, err = parseTime(finished); err != nil {
			return nil, fmt.Errorf("sqlite: ingest run %s finished_at: %w", run.ID, err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating ingest runs: %w", err)
	}
	return runs, nil
}

// CountRows returns the number of rows in table; table must be a real table
// name.
func (db *DB) CountRows(ctx context.Context, table string) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+quoteIdent(table)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting rows of %s: %w", table, err)
	}
	return n, nil
}
