package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sakif/intelligence-platform/internal/auth"
	"github.com/sakif/intelligence-platform/internal/config"
	"github.com/sakif/intelligence-platform/internal/logging"
	"github.com/sakif/intelligence-platform/internal/report"
	"github.com/sakif/intelligence-platform/internal/repository/sqlite"
	"github.com/sakif/intelligence-platform/internal/service"
)

// app is everything a command needs, built from configuration. Nothing is
// global: each command run opens its own store and closes it on return.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	db        *sqlite.DB
	users     *service.CredentialService
	incidents *service.IncidentService
	migration *service.MigrationService
	out       *report.Renderer
}

// loadConfig reads configuration and builds the logger. Commands that do
// not touch the store (config show) stop here.
func loadConfig(cmd *cobra.Command, opts *RootOptions) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(opts.ConfigPath, opts.EnvFile)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "loading configuration", err)
	}

	level := cfg.Log.Level
	if opts.Verbose {
		level = "debug"
	}
	logger, err := logging.New(level, cfg.Log.Format, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "configuring logging", err)
	}
	return cfg, logger, nil
}

// openApp loads configuration, opens the store at cfg.Database.Path (creating
// its directory and schema as needed) and wires the services.
func openApp(cmd *cobra.Command, opts *RootOptions) (*app, error) {
	cfg, logger, err := loadConfig(cmd, opts)
	if err != nil {
		return nil, err
	}
	return openStore(cmd, opts, cfg, logger, cfg.Database.Path)
}

func openStore(cmd *cobra.Command, opts *RootOptions, cfg *config.Config, logger *slog.Logger, dbPath string) (*app, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, WrapExitError(ExitCommandError, "creating database directory", err)
		}
	}

	db, err := sqlite.New(cmd.Context(), dbPath, sqlite.Options{BusyTimeout: cfg.BusyTimeout()})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("opening database %s", dbPath), err)
	}

	passwords, err := auth.NewPasswordServiceWithCost(cfg.Auth.BcryptCost)
	if err != nil {
		db.Close()
		return nil, WrapExitError(ExitCommandError, "configuring password hashing", err)
	}

	logger.Debug("store opened", slog.String("path", dbPath))

	return &app{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		users:     service.NewCredentialService(db, passwords, logger),
		incidents: service.NewIncidentService(db, logger),
		migration: service.NewMigrationService(db, cfg.Delimiter(), logger),
		out:       report.New(opts.Format, cmd.OutOrStdout()),
	}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.Warn("closing database", slog.String("error", err.Error()))
	}
}

// setup builds the full-setup runner from the configured file list.
func (a *app) setup() *service.Setup {
	bulk := make([]service.BulkSource, 0, len(a.cfg.Data.Bulk))
	for _, b := range a.cfg.Data.Bulk {
		bulk = append(bulk, service.BulkSource{Path: a.cfg.DataPath(b.File), Table: b.Table})
	}
	return service.NewSetup(a.db, a.migration, a.cfg.UsersPath(), bulk, a.logger)
}
