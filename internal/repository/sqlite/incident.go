package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/sakif/intelligence-platform/internal/apperror"
	"github.com/sakif/intelligence-platform/internal/model"
	"github.com/sakif/intelligence-platform/internal/repository"
)

var _ repository.IncidentRepository = (*DB)(nil)

// incidentColumns is the SELECT list shared by every incident read. Text
// columns may be NULL after a bulk load, and timestamps are cast to TEXT so
// parseTime sees one stable representation regardless of how the row was
// written.
const incidentColumns = `id, CAST(last_updated AS TEXT), incident_type, severity,
	status, description, reported_by, CAST(created_at AS TEXT)`

// CreateIncident inserts one incident and returns it with ID and CreatedAt
// set. Only the fields of in are written; id and created_at come from the
// store.
func (db *DB) CreateIncident(ctx context.Context, in model.NewIncident) (*model.Incident, error) {
	createdAt := db.now()

	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO incidents
			(last_updated, incident_type, severity, status, description, reported_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		formatTime(in.LastUpdated),
		in.IncidentType,
		in.Severity,
		in.Status,
		in.Description,
		in.ReportedBy,
		formatTime(createdAt),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: inserting incident: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading new incident id: %w", err)
	}

	return &model.Incident{
		ID:           id,
		LastUpdated:  in.LastUpdated.UTC().Truncate(1e9),
		IncidentType: in.IncidentType,
		Severity:     in.Severity,
		Status:       in.Status,
		Description:  in.Description,
		ReportedBy:   in.ReportedBy,
		CreatedAt:    createdAt.Truncate(1e9),
	}, nil
}

// GetIncident returns the incident with the given id, or apperror.ErrNotFound.
func (db *DB) GetIncident(ctx context.Context, id int64) (*model.Incident, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+incidentColumns+` FROM incidents WHERE id = ?`, id)

	inc, err := scanIncident(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("incident", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: getting incident %d: %w", id, err)
	}
	return inc, nil
}

// ListIncidents returns every incident in insertion (id) order.
// An empty table yields an empty, non-nil slice.
func (db *DB) ListIncidents(ctx context.Context) ([]model.Incident, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+incidentColumns+` FROM incidents ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing incidents: %w", err)
	}
	defer rows.Close()

	incidents := []model.Incident{}
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning incident: %w", err)
		}
		incidents = append(incidents, *inc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating incidents: %w", err)
	}
	return incidents, nil
}

// UpdateIncidentStatus changes only the status column. Setting the status
// it already has still counts as a match, so it succeeds.
func (db *DB) UpdateIncidentStatus(ctx context.Context, id int64, status string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE incidents SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("sqlite: updating incident %d: %w", id, err)
	}
	return requireAffected(result, "incident", id)
}

// DeleteIncident removes the row. Deleting an id twice returns
// apperror.ErrNotFound the second time.
func (db *DB) DeleteIncident(ctx context.Context, id int64) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM incidents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting incident %d: %w", id, err)
	}
	return requireAffected(result, "incident", id)
}

// CountIncidentsByType groups incidents by incident_type, largest group
// first. Groups with equal counts are ordered by the first row of each group
// to be inserted, so the result is deterministic.
//
// A NULL incident_type forms its own group, reported as "".
func (db *DB) CountIncidentsByType(ctx context.Context) ([]model.TypeCount, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT incident_type, COUNT(*)
		 FROM incidents
		 GROUP BY incident_type
		 ORDER BY COUNT(*) DESC, MIN(id) ASC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: counting incidents by type: %w", err)
	}
	defer rows.Close()

	counts := []model.TypeCount{}
	for rows.Next() {
		var (
			typ sql.NullString
			n   int
		)
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, fmt.Errorf("sqlite: scanning type count: %w", err)
		}
		counts = append(counts, model.TypeCount{IncidentType: typ.String, Count: n})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating type counts: %w", err)
	}
	return counts, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanIncident(s scanner) (*model.Incident, error) {
	var (
		inc                    model.Incident
		lastUpdated, createdAt sql.NullString
		typ, severity, status  sql.NullString
		descr, reportedBy      sql.NullString
	)
	if err := s.Scan(
		&inc.ID,
		&lastUpdated,
		&typ,
		&severity,
		&status,
		&descr,
		&reportedBy,
		&createdAt,
	); err != nil {
		return nil, err
	}

	inc.IncidentType = typ.String
	inc.Severity = severity.String
	inc.Status = status.String
	inc.Description = descr.String
	inc.ReportedBy = reportedBy.String

	var err error
	if inc.LastUpdated, err = parseTime(lastUpdated); err != nil {
		return nil, fmt.Errorf("incident %d last_updated: %w", inc.ID, err)
	}
	if inc.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("incident %d created_at: %w", inc.ID, err)
	}
	return &inc, nil
}

// requireAffected turns "zero rows matched" into apperror.ErrNotFound.
func requireAffected(result sql.Result, resource string, id int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: reading rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, strconv.FormatInt(id, 10))
	}
	return nil
}
