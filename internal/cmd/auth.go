package cmd

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/panelops/panelctl/internal/api"
	"github.com/panelops/panelctl/internal/metrics"
	"github.com/panelops/panelctl/internal/output"
)

var (
	loginEmail         string
	loginPasswordStdin bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the panel and save the session",
	Long: `Log in with an administrator account. The session (token pair and cookies) is stored
locally and refreshed automatically when it expires.

If the account has two-factor authentication enabled, you are asked for the code.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		prompter := newTerminalPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())

		email := strings.TrimSpace(loginEmail)
		var password string
		if loginPasswordStdin {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("read password from stdin: %w", err)
			}
			password = strings.TrimRight(line, "\r\n")
		}

		rt, err := openRuntime(ctx, runtimeOptions{prompter: prompter})
		if err != nil {
			return err
		}
		defer rt.Close() // nolint:errcheck // best-effort cleanup

		if email == "" {
			if email, err = prompter.ask(ctx, "Email: "); err != nil {
				return err
			}
		}
		if password == "" {
			if password, err = prompter.ask(ctx, "Password: "); err != nil {
				return err
			}
		}

		tokens, err := rt.session.Login(ctx, rt.loginClient, api.Credentials{Email: email, Password: password})
		metrics.RecordOperation("login", err == nil)
		if err != nil {
			return err
		}

		rt.debug("Logged in", zap.String("endpoint", rt.session.Endpoint()), zap.String("email", email))
		name := email
		if tokens.User != nil && tokens.User.Name != "" {
			name = tokens.User.Name
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Logged in to %s as %s\n", rt.session.Endpoint(), name)
		return err
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Revoke and forget the saved session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd.Context(), runtimeOptions{})
		if err != nil {
			return err
		}
		defer rt.Close() // nolint:errcheck // best-effort cleanup

		err = rt.session.Logout(cmd.Context(), rt.client)
		metrics.RecordOperation("logout", err == nil)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Logged out of %s\n", rt.session.Endpoint())
		return err
	},
}

var whoamiOffline bool

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd.Context(), runtimeOptions{prompter: newTerminalPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())})
		if err != nil {
			return err
		}
		defer rt.Close() // nolint:errcheck // best-effort cleanup

		if err := rt.requireSession(); err != nil {
			return err
		}

		if whoamiOffline {
			return render(cmd, output.SessionView(rt.session.State(), rt.locale.Current()))
		}

		user, err := rt.client.Me(cmd.Context())
		if err != nil {
			return err
		}
		return render(cmd, output.UserView(user, rt.session.Endpoint()))
	},
}

func init() {
	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd)

	loginCmd.Flags().StringVar(&loginEmail, "email", "", "account email (prompted when empty)")
	loginCmd.Flags().BoolVar(&loginPasswordStdin, "password-stdin", false, "read the password from the first line of stdin")

	whoamiCmd.Flags().BoolVar(&whoamiOffline, "offline", false, "show the saved session without calling the API")
}
