// Package account holds the auth-facing commands: login, signup, logout and
// whoami.
package account

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"panny/internal/api"
	"panny/internal/authsession"
	"panny/internal/cli"
)

// NewLoginCmd authenticates with email and password.
func NewLoginCmd(manager *authsession.Manager) *cobra.Command {
	var opts struct {
		Email string
	}
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to Panny",
		Args:  cobra.ExactArgs(0),
		Run: func(cmd *cobra.Command, args []string) {
			email := opts.Email
			if email == "" {
				email = cli.QueryUserInput("Email:")
			}
			password := cli.QueryUserPassword("Password:")

			identity, err := manager.Login(cmd.Context(), email, password)
			cobra.CheckErr(err)
			cli.UserCommand("logged in as %s\n", identity.Name())
		},
	}
	cmd.Flags().StringVarP(&opts.Email, "email", "e", "", "account email")
	return cmd
}

// NewSignupCmd creates an account. Validation happens before any network
// call, and a rate-limited attempt starts a persisted per-email cooldown.
func NewSignupCmd(manager *authsession.Manager) *cobra.Command {
	return &cobra.Command{
		Use:   "signup",
		Short: "Create a Panny account",
		Args:  cobra.ExactArgs(0),
		Run: func(cmd *cobra.Command, args []string) {
			name := cli.QueryUserInput("Name:")
			if name == "" {
				cobra.CheckErr(errors.New("please enter your name"))
			}
			email := cli.QueryUserInput("Email:")
			password := cli.QueryUserPassword("Password:")
			confirm := cli.QueryUserPassword("Confirm password:")
			if password != confirm {
				cobra.CheckErr(errors.New("passwords do not match"))
			}

			identity, err := manager.Signup(cmd.Context(), api.SignupParams{
				Email:       email,
				Password:    password,
				DisplayName: name,
			})
			if err != nil {
				cooldownError := &authsession.CooldownError{}
				if errors.As(err, &cooldownError) {
					cli.Error("%s\n", cooldownError.Error())
					return
				}
				if rateLimitError, ok := api.IsRateLimited(err); ok {
					cli.Error("rate limit exceeded: %s\n", rateLimitError.Error())
					return
				}
				cobra.CheckErr(err)
			}
			cli.UserCommand("account created, welcome %s\n", identity.Name())
		},
	}
}

// NewLogoutCmd ends the session. The remote call is best-effort; local
// state is cleared regardless.
func NewLogoutCmd(manager *authsession.Manager) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out of Panny",
		Args:  cobra.ExactArgs(0),
		Run: func(cmd *cobra.Command, args []string) {
			if !cli.QueryUser("Log out and clear the saved session?") {
				return
			}
			manager.Logout(cmd.Context())
			cli.UserCommand("logged out\n")
		},
	}
}

// NewWhoamiCmd reports the current auth state.
func NewWhoamiCmd(manager *authsession.Manager) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		Args:  cobra.ExactArgs(0),
		Run: func(cmd *cobra.Command, args []string) {
			manager.SweepInactivity(cmd.Context())
			state := manager.Resolve(cmd.Context())
			if state != authsession.StateAuthenticated {
				cli.UserCommand("not logged in\n")
				return
			}
			_, identity := manager.State()
			if manager.SoftAuthenticated() {
				cli.Warn("using saved session (could not verify with server)\n")
			}
			cli.UserCommand("%s <%s>\n", identity.Name(), identity.Email)
		},
	}
}
