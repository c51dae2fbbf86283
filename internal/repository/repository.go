package repository

import (
	"context"

	"github.com/sakif/intelligence-platform/internal/model"
)

type SchemaManager interface {
	EnsureSchema(ctx context.Context) error
}

type UserRepository interface {
	// CreateUser inserts user and fills in ID and CreatedAt. A taken username
	// returns apperror.ErrDuplicateUsername and writes nothing.
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
}

type IncidentRepository interface {
	CreateIncident(ctx context.Context, in model.NewIncident) (*model.Incident, error)
	GetIncident(ctx context.Context, id int64) (*model.Incident, error)
	ListIncidents(ctx context.Context) ([]model.Incident, error)
	UpdateIncidentStatus(ctx context.Context, id int64, status string) error
	DeleteIncident(ctx context.Context, id int64) error
	CountIncidentsByType(ctx context.Context) ([]model.TypeCount, error)
}

type IngestRepository interface {
	// UpsertLegacyUsers inserts each credential unless its username exists
	// and returns how many rows were actually added.
	UpsertLegacyUsers(ctx context.Context, source string, creds []model.LegacyCredential, skipped int) (int, error)
	// AppendRows appends every row of batch or none of them.
	AppendRows(ctx context.Context, batch model.TabularBatch) (int, error)
	ListIngestRuns(ctx context.Context) ([]model.IngestRun, error)
}
