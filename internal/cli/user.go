package cli

import (
	"github.com/spf13/cobra"

	"github.com/sakif/intelligence-platform/internal/report"
)

// RegisterOptions holds flags for the register command.
type RegisterOptions struct {
	*RootOptions
	Password string
	Role     string
}

// NewRegisterCommand creates the register command.
func NewRegisterCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RegisterOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "register <username>",
		Short: "Register a new user",
		Long: `Register a new user with a bcrypt-hashed password. Without --password
the password is read from the terminal without echo.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := passwordOrPrompt(opts.Password, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			a, err := openApp(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			user, err := a.users.Register(cmd.Context(), args[0], password, opts.Role)
			if err != nil {
				return commandError(err)
			}
			return a.out.Render(user)
		},
	}

	cmd.Flags().StringVarP(&opts.Password, "password", "p", "", "password (prompted when omitted)")
	cmd.Flags().StringVar(&opts.Role, "role", "user", "role label stored with the user")

	return cmd
}

// LoginOptions holds flags for the login command.
type LoginOptions struct {
	*RootOptions
	Password string
}

// NewLoginCommand creates the login command.
func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoginOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Check a user's password",
		Long: `Check the password of an existing user. Exits 0 on success and 1 if
the user does not exist or the password is wrong.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := passwordOrPrompt(opts.Password, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			a, err := openApp(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.users.Login(cmd.Context(), args[0], password); err != nil {
				return commandError(err)
			}
			return a.out.Render(report.Messagef("login successful for %s", args[0]))
		},
	}

	cmd.Flags().StringVarP(&opts.Password, "password", "p", "", "password (prompted when omitted)")

	return cmd
}
