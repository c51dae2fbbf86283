package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sakif/intelligence-platform/internal/apperror"
	"github.com/sakif/intelligence-platform/internal/model"
	"github.com/sakif/intelligence-platform/internal/report"
	"github.com/sakif/intelligence-platform/internal/service"
)

const (
	demoUser     = "alice"
	demoPassword = "Pass123!"
)

// DemoOptions holds flags for the demo command.
type DemoOptions struct {
	*RootOptions
	DB string
}

// NewDemoCommand creates the demo command.
func NewDemoCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DemoOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Walk through registration, login and the incident lifecycle",
		Long: `Run setup, register alice, log in with the right and a wrong password,
record a phishing incident, resolve it, delete it, and print what each step
returned.

The walkthrough uses a private in-memory database unless --db names a file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd, rootOpts)
			if err != nil {
				return err
			}
			a, err := openStore(cmd, rootOpts, cfg, logger, opts.DB)
			if err != nil {
				return err
			}
			defer a.Close()

			steps, err := runDemo(cmd.Context(), a)
			if rerr := a.out.Render(steps); rerr != nil && err == nil {
				err = rerr
			}
			return err
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", ":memory:", "database used by the walkthrough")

	return cmd
}

// runDemo returns the steps completed so far together with the first
// unexpected error.
func runDemo(ctx context.Context, a *app) ([]report.Step, error) {
	var steps []report.Step
	add := func(name, result string) {
		steps = append(steps, report.Step{Name: name, Result: result})
	}

	rep, err := a.setup().Run(ctx)
	if err != nil {
		return steps, err
	}
	loaded := 0
	for _, l := range rep.Loads {
		if l.Error == "" && !l.Missing {
			loaded++
		}
	}
	result := fmt.Sprintf("users migrated: %d, files loaded: %d", rep.Users.Rows, loaded)
	if rep.Failed() {
		result += ", some files failed"
	}
	add("setup", result)

	user, err := a.users.Register(ctx, demoUser, demoPassword, "")
	switch {
	case err == nil:
		add("register "+demoUser, fmt.Sprintf("ok (id %d)", user.ID))
	case errors.Is(err, apperror.ErrDuplicateUsername):
		add("register "+demoUser, "already registered")
	default:
		return steps, err
	}

	if err := a.users.Login(ctx, demoUser, demoPassword); err != nil {
		return steps, err
	}
	add("login with correct password", "ok")

	err = a.users.Login(ctx, demoUser, "WrongPass")
	if !errors.Is(err, apperror.ErrInvalidCredentials) {
		return steps, fmt.Errorf("login with wrong password: want invalid credentials, got %v", err)
	}
	add("login with wrong password", "rejected")

	when, err := service.ParseEventTime("2024-11-01")
	if err != nil {
		return steps, err
	}
	id, err := a.incidents.Insert(ctx, model.NewIncident{
		LastUpdated:  when,
		IncidentType: "Phishing",
		Severity:     "High",
		Status:       "Open",
		Description:  "Suspicious email",
		ReportedBy:   demoUser,
	})
	if err != nil {
		return steps, err
	}
	add("insert Phishing incident", fmt.Sprintf("ok (id %d)", id))

	incidents, err := a.incidents.ListAll(ctx)
	if err != nil {
		return steps, err
	}
	add("list incidents", fmt.Sprintf("%d found", len(incidents)))

	if err := a.incidents.UpdateStatus(ctx, id, "Resolved"); err != nil {
		return steps, err
	}
	inc, err := a.incidents.Get(ctx, id)
	if err != nil {
		return steps, err
	}
	add("resolve incident", "status "+inc.Status)

	if err := a.incidents.Delete(ctx, id); err != nil {
		return steps, err
	}
	add("delete incident", "ok")

	if _, err := a.incidents.Get(ctx, id); !errors.Is(err, apperror.ErrNotFound) {
		return steps, fmt.Errorf("incident %d still readable after delete: %v", id, err)
	}
	add("get deleted incident", "not found")

	return steps, nil
}
