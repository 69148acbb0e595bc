package cmd

import (
	"github.com/spf13/cobra"

	"github.com/panelops/panelctl/internal/output"
	"github.com/panelops/panelctl/internal/store"
)

var localeCmd = &cobra.Command{
	Use:   "locale",
	Short: "Show or change the locale sent to the panel API",
}

var localeGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the active locale",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd.Context(), runtimeOptions{})
		if err != nil {
			return err
		}
		defer rt.Close() // nolint:errcheck // best-effort cleanup

		return render(cmd, output.LocaleView(rt.locale.Current(), rt.locale.Supported()))
	},
}

var localeSetCmd = &cobra.Command{
	Use:   "set <locale>",
	Short: "Change and save the active locale (e.g. en, ru, pt-BR)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd.Context(), runtimeOptions{})
		if err != nil {
			return err
		}
		defer rt.Close() // nolint:errcheck // best-effort cleanup

		value, err := rt.locale.Set(args[0])
		if err != nil {
			return err
		}
		if err := rt.store.SetPreference(cmd.Context(), store.PreferenceLocale, value); err != nil {
			return err
		}
		return render(cmd, output.LocaleView(value, rt.locale.Supported()))
	},
}

func init() {
	rootCmd.AddCommand(localeCmd)
	localeCmd.AddCommand(localeGetCmd, localeSetCmd)
}
