package cli

import (
	"github.com/spf13/cobra"

	"github.com/sakif/intelligence-platform/internal/report"
)

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the database and its tables",
		Long: `Create the database file and every table and index that does not exist
yet. Safe to run any number of times; existing data is never touched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			// sqlite.New already ensured the schema; run it again so init
			// reports a schema problem even on an existing file.
			if err := a.db.EnsureSchema(cmd.Context()); err != nil {
				return commandError(err)
			}
			return a.out.Render(report.Messagef("database ready at %s", a.cfg.Database.Path))
		},
	}
}

// NewSetupCommand creates the setup command.
func NewSetupCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Create the schema, migrate legacy users and load every bulk file",
		Long: `Run the full setup: create the schema, migrate the legacy users file,
then append each configured bulk file to its table.

A file that fails to load is reported and the next one still runs. The exit
code is 1 if any file failed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			rep, err := a.setup().Run(cmd.Context())
			if rerr := a.out.Render(rep); rerr != nil && err == nil {
				err = rerr
			}
			if err != nil {
				return commandError(err)
			}
			if rep.Failed() {
				return NewExitError(ExitFailure, "setup finished with errors")
			}
			return nil
		},
	}
}

// MigrateOptions holds flags for the migrate users command.
type MigrateOptions struct {
	*RootOptions
	File string
}

// NewMigrateCommand creates the migrate command group.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate legacy data files",
	}
	cmd.AddCommand(newMigrateUsersCommand(rootOpts))
	return cmd
}

func newMigrateUsersCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MigrateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "users",
		Short: "Upsert a legacy username,hash file into users",
		Long: `Read a legacy credentials file (one "username,password_hash" per line)
and add every user that does not exist yet. Hashes are stored as they are.
Malformed lines are skipped and counted. Running it twice adds nothing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			path := opts.File
			if path == "" {
				path = a.cfg.UsersPath()
			}
			res, err := a.migration.MigrateLegacyCredentials(cmd.Context(), path)
			if err != nil {
				return commandError(err)
			}
			return a.out.Render(res)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "legacy users file (default: data.dir/data.users_file)")

	return cmd
}

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "load <file> <table>",
		Short: "Append a delimited file with a header row to a table",
		Long: `Append every data row of <file> to <table>. The first row names the
columns. Either every row is appended or, if any row is bad, none is.
Loading the same file twice appends its rows twice.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.migration.BulkLoad(cmd.Context(), args[0], args[1])
			if err != nil {
				return commandError(err)
			}
			return a.out.Render(res)
		},
	}
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "runs",
		Short: "List recorded ingestion runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			runs, err := a.migration.ListRuns(cmd.Context())
			if err != nil {
				return commandError(err)
			}
			return a.out.Render(runs)
		},
	}
}
