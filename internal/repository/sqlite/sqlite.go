// Package sqlite implements the repository interfaces on an embedded SQLite
// file using the pure-Go modernc.org/sqlite driver (no CGo, cross-compiles
// anywhere Go does).
//
// CONNECTION MODEL:
// DB wraps a *sql.DB, which is a pool, not a connection. Every repository
// method borrows a connection for exactly one logical operation: reads run a
// single query, writes run inside withTx (begin → work → commit or rollback).
// Nothing holds a connection between calls, so several processes can share
// the same file and the only coordination is SQLite's own locking.
//
// The pool is configured through the DSN rather than one-off PRAGMA calls,
// because database/sql opens new connections lazily and a PRAGMA executed on
// one connection does not reach the others:
//
//	busy_timeout(5000)  wait for a competing writer instead of failing with SQLITE_BUSY
//	foreign_keys(1)     enforce REFERENCES clauses
//	journal_mode(WAL)   readers don't block the writer
//	_txlock=immediate   BEGIN takes the write lock up front, so two writers queue
//	                    instead of deadlocking on a read-to-write upgrade
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DefaultBusyTimeout is how long a write waits for the file lock.
const DefaultBusyTimeout = 5 * time.Second

// DB wraps a sql.DB connection pool and provides repository methods.
type DB struct {
	conn *sql.DB
	now  func() time.Time
}

// Options tune how the store is opened.
type Options struct {
	// BusyTimeout bounds how long a write waits on a competing writer.
	// Zero means DefaultBusyTimeout.
	BusyTimeout time.Duration
}

// New opens (creating if needed) the SQLite file at dbPath and ensures the
// schema exists.
//
// dbPath examples:
//   - "DATA/intelligence_platform.db" → file-based store
//   - ":memory:"                      → private in-memory store (tests)
//
// A schema failure comes back as apperror.ErrSchema; callers treat it as
// fatal and do not retry.
func New(ctx context.Context, dbPath string, opts Options) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(dbPath, opts))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every new connection to ":memory:" is a brand-new empty database, so
	// the pool must never grow beyond one connection.
	if isMemory(dbPath) {
		conn.SetMaxOpenConns(1)
	}

	// sql.Open does not connect; Ping surfaces a bad path or permissions now.
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := NewWithConn(conn)
	if err := db.EnsureSchema(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	return db, nil
}

// NewWithConn wraps an already-open pool without touching the schema.
// Tests use it to put a sqlmock connection behind the repository.
func NewWithConn(conn *sql.DB) *DB {
	return &DB{
		conn: conn,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the store file is reachable.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite: pinging database: %w", err)
	}
	return nil
}

func dsn(dbPath string, opts Options) string {
	busy := opts.BusyTimeout
	if busy <= 0 {
		busy = DefaultBusyTimeout
	}

	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busy.Milliseconds()))
	q.Add("_pragma", "foreign_keys(1)")
	if !isMemory(dbPath) {
		q.Add("_pragma", "journal_mode(WAL)")
	}
	q.Set("_txlock", "immediate")

	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + q.Encode()
}

func isMemory(dbPath string) bool {
	return dbPath == ":memory:" || strings.Contains(dbPath, "mode=memory")
}
