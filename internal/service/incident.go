package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/intelligence-platform/internal/apperror"
	"github.com/sakif/intelligence-platform/internal/model"
	"github.com/sakif/intelligence-platform/internal/repository"
)

// eventTimeLayouts are the accepted spellings of an incident's event time,
// most specific first.
var eventTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseEventTime parses the caller-supplied time of an incident. A bare date
// such as "2024-11-01" means midnight UTC.
func ParseEventTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range eventTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, apperror.ValidationFailed("last_updated",
		fmt.Sprintf("%q is not a date (want YYYY-MM-DD or RFC 3339)", s))
}

// IncidentService manages incident reports.
type IncidentService struct {
	repo   repository.IncidentRepository
	logger *slog.Logger
}

func NewIncidentService(repo repository.IncidentRepository, logger *slog.Logger) *IncidentService {
	return &IncidentService{
		repo:   repo,
		logger: logger,
	}
}

// Insert records a new incident and returns its id (always >= 1).
// LastUpdated is the time of the event itself and is required; every other
// field may be empty.
func (s *IncidentService) Insert(ctx context.Context, in model.NewIncident) (int64, error) {
	if in.LastUpdated.IsZero() {
		return 0, apperror.ValidationFailed("last_updated", "event time is required")
	}
	in.IncidentType = strings.TrimSpace(in.IncidentType)
	in.Severity = strings.TrimSpace(in.Severity)
	in.Status = strings.TrimSpace(in.Status)
	in.ReportedBy = strings.TrimSpace(in.ReportedBy)

	inc, err := s.repo.CreateIncident(ctx, in)
	if err != nil {
		s.logger.Error("failed to create incident",
			slog.String("type", in.IncidentType),
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("creating incident: %w", err)
	}

	s.logger.Info("incident created",
		slog.Int64("id", inc.ID),
		slog.String("type", inc.IncidentType),
		slog.String("severity", inc.Severity),
	)
	return inc.ID, nil
}

// Get returns one incident or apperror.ErrNotFound.
func (s *IncidentService) Get(ctx context.Context, id int64) (*model.Incident, error) {
	return s.repo.GetIncident(ctx, id)
}

// ListAll returns every incident in insertion order.
func (s *IncidentService) ListAll(ctx context.Context) ([]model.Incident, error) {
	incidents, err := s.repo.ListIncidents(ctx)
	if err != nil {
		s.logger.Error("failed to list incidents", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing incidents: %w", err)
	}
	return incidents, nil
}

// UpdateStatus sets the status of incident id and nothing else.
// Returns apperror.ErrNotFound if there is no such incident.
func (s *IncidentService) UpdateStatus(ctx context.Context, id int64, status string) error {
	status = strings.TrimSpace(status)
	if status == "" {
		return apperror.ValidationFailed("status", "status is required")
	}

	if err := s.repo.UpdateIncidentStatus(ctx, id, status); err != nil {
		return s.mutationError("update", id, err)
	}

	s.logger.Info("incident status updated",
		slog.Int64("id", id),
		slog.String("status", status),
	)
	return nil
}

// Delete removes incident id permanently.
// Returns apperror.ErrNotFound if there is no such incident.
func (s *IncidentService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.DeleteIncident(ctx, id); err != nil {
		return s.mutationError("delete", id, err)
	}

	s.logger.Info("incident deleted", slog.Int64("id", id))
	return nil
}

// AggregateByType counts incidents per type, largest count first; equal
// counts keep the order in which each type first appeared.
func (s *IncidentService) AggregateByType(ctx context.Context) ([]model.TypeCount, error) {
	counts, err := s.repo.CountIncidentsByType(ctx)
	if err != nil {
		s.logger.Error("failed to aggregate incidents", slog.String("error", err.Error()))
		return nil, fmt.Errorf("aggregating incidents: %w", err)
	}
	return counts, nil
}

// mutationError passes classified errors through untouched and logs
// everything else as an infrastructure failure.
func (s *IncidentService) mutationError(op string, id int64, err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	s.logger.Error("failed to "+op+" incident",
		slog.Int64("id", id),
		slog.String("error", err.Error()),
	)
	return fmt.Errorf("%s incident %d: %w", op, id, err)
}
