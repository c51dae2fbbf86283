package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/intelligence-platform/internal/apperror"
	"github.com/sakif/intelligence-platform/internal/model"
	"github.com/sakif/intelligence-platform/internal/repository"
)

// BulkSource pairs a tabular file with the table it is appended to.
type BulkSource struct {
	Path  string
	Table string
}

// Setup brings a store from empty (or partly populated) to ready: schema,
// then legacy users, then every bulk file in order.
type Setup struct {
	schema    repository.SchemaManager
	migration *MigrationService
	usersFile string
	bulk      []BulkSource
	logger    *slog.Logger
}

func NewSetup(
	schema repository.SchemaManager,
	migration *MigrationService,
	usersFile string,
	bulk []BulkSource,
	logger *slog.Logger,
) *Setup {
	return &Setup{
		schema:    schema,
		migration: migration,
		usersFile: usersFile,
		bulk:      bulk,
		logger:    logger,
	}
}

// Run performs the full setup and reports what each step did.
//
// FAILURE POLICY:
//   - A schema failure stops everything and is returned as is.
//   - A classified failure of one file (malformed data, unknown table) is
//     recorded in that file's LoadResult.Error and the next file still runs.
//   - Any other error (the store went away) stops the run and is returned
//     together with the partial report.
//
// Because legacy migration is an upsert, running setup twice leaves users
// unchanged; bulk files, being pure appends, are loaded again.
func (s *Setup) Run(ctx context.Context) (model.SetupReport, error) {
	var report model.SetupReport

	if err := s.schema.EnsureSchema(ctx); err != nil {
		s.logger.Error("schema setup failed", slog.String("error", err.Error()))
		return report, err
	}
	s.logger.Info("schema ready")

	users, err := s.migration.MigrateLegacyCredentials(ctx, s.usersFile)
	if err = absorb(&users, err); err != nil {
		report.Users = users
		return report, fmt.Errorf("migrating %s: %w", s.usersFile, err)
	}
	report.Users = users

	for _, src := range s.bulk {
		res, err := s.migration.BulkLoad(ctx, src.Path, src.Table)
		if err = absorb(&res, err); err != nil {
			report.Loads = append(report.Loads, res)
			return report, fmt.Errorf("loading %s: %w", src.Path, err)
		}
		report.Loads = append(report.Loads, res)
	}

	s.logger.Info("setup complete",
		slog.Int("users_migrated", report.Users.Rows),
		slog.Int("files", len(report.Loads)),
		slog.Bool("failures", report.Failed()),
	)
	return report, nil
}

// absorb records err on res. A classified error is swallowed so the run
// continues; anything else is handed back to stop it.
func absorb(res *model.LoadResult, err error) error {
	if err == nil {
		return nil
	}
	res.Error = err.Error()
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return nil
	}
	return err
}
