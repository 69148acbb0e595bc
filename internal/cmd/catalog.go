package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/panelops/panelctl/internal/output"
)

var categoriesCmd = &cobra.Command{
	Use:     "categories",
	Aliases: []string{"category"},
	Short:   "List service categories",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := listParams(cmd)
		if err != nil {
			return err
		}
		return withSession(cmd, func(ctx context.Context, rt *panelRuntime) error {
			page, err := rt.client.ListCategories(ctx, params)
			if err != nil {
				return err
			}
			return render(cmd, output.CategoriesView(page))
		})
	},
}

var serviceFilters = []string{"category-id", "provider-id"}

var servicesCmd = &cobra.Command{
	Use:     "services",
	Aliases: []string{"service"},
	Short:   "List services",
	Long: `List services, optionally filtered by category or provider.

Category and service listings are cached on disk per locale (see cache.ttl).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := listParams(cmd, serviceFilters...)
		if err != nil {
			return err
		}
		return withSession(cmd, func(ctx context.Context, rt *panelRuntime) error {
			page, err := rt.client.ListServices(ctx, params)
			if err != nil {
				return err
			}
			return render(cmd, output.ServicesView(page))
		})
	},
}

func init() {
	rootCmd.AddCommand(categoriesCmd, servicesCmd)
	addListFlags(categoriesCmd)
	addListFlags(servicesCmd, serviceFilters...)
}
