package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sakif/intelligence-platform/internal/model"
	"github.com/sakif/intelligence-platform/internal/report"
	"github.com/sakif/intelligence-platform/internal/service"
)

// NewIncidentCommand creates the incident command group.
func NewIncidentCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "incident",
		Short: "Record and manage cyber incidents",
	}

	cmd.AddCommand(newIncidentAddCommand(rootOpts))
	cmd.AddCommand(newIncidentListCommand(rootOpts))
	cmd.AddCommand(newIncidentShowCommand(rootOpts))
	cmd.AddCommand(newIncidentStatusCommand(rootOpts))
	cmd.AddCommand(newIncidentDeleteCommand(rootOpts))
	cmd.AddCommand(newIncidentStatsCommand(rootOpts))

	return cmd
}

// IncidentAddOptions holds flags for incident add.
type IncidentAddOptions struct {
	*RootOptions
	Date        string
	Type        string
	Severity    string
	Status      string
	Description string
	ReportedBy  string
}

func newIncidentAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IncidentAddOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a new incident",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			when, err := service.ParseEventTime(opts.Date)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --date", err)
			}

			a, err := openApp(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := a.incidents.Insert(cmd.Context(), model.NewIncident{
				LastUpdated:  when,
				IncidentType: opts.Type,
				Severity:     opts.Severity,
				Status:       opts.Status,
				Description:  opts.Description,
				ReportedBy:   opts.ReportedBy,
			})
			if err != nil {
				return commandError(err)
			}

			inc, err := a.incidents.Get(cmd.Context(), id)
			if err != nil {
				return commandError(err)
			}
			return a.out.Render(inc)
		},
	}

	cmd.Flags().StringVar(&opts.Date, "date", "", "when the incident happened (YYYY-MM-DD, or RFC 3339)")
	cmd.Flags().StringVarP(&opts.Type, "type", "t", "", "incident type, e.g. Phishing")
	cmd.Flags().StringVarP(&opts.Severity, "severity", "s", "", "severity, e.g. High")
	cmd.Flags().StringVar(&opts.Status, "status", "Open", "initial status")
	cmd.Flags().StringVarP(&opts.Description, "description", "d", "", "free-text description")
	cmd.Flags().StringVar(&opts.ReportedBy, "reported-by", "", "username of the reporter")
	_ = cmd.MarkFlagRequired("date")

	return cmd
}

func newIncidentListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every incident in the order it was recorded",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			incidents, err := a.incidents.ListAll(cmd.Context())
			if err != nil {
				return commandError(err)
			}
			return a.out.Render(incidents)
		},
	}
}

func newIncidentShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one incident",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			a, err := openApp(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			inc, err := a.incidents.Get(cmd.Context(), id)
			if err != nil {
				return commandError(err)
			}
			return a.out.Render(inc)
		},
	}
}

func newIncidentStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Change the status of an incident",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			a, err := openApp(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.incidents.UpdateStatus(cmd.Context(), id, args[1]); err != nil {
				return commandError(err)
			}
			return a.out.Render(report.Messagef("incident %d status set to %s", id, args[1]))
		},
	}
}

func newIncidentDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an incident permanently",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			a, err := openApp(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.incidents.Delete(cmd.Context(), id); err != nil {
				return commandError(err)
			}
			return a.out.Render(report.Messagef("incident %d deleted", id))
		},
	}
}

func newIncidentStatsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count incidents per type, most frequent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			counts, err := a.incidents.AggregateByType(cmd.Context())
			if err != nil {
				return commandError(err)
			}
			return a.out.Render(counts)
		},
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 1 {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid incident id %q", s))
	}
	return id, nil
}
