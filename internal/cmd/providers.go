package cmd

import (
	"context"
	"time"

	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/panelops/panelctl/internal/api"
	"github.com/panelops/panelctl/internal/metrics"
	"github.com/panelops/panelctl/internal/output"
	"github.com/panelops/panelctl/internal/store"
)

var providersCmd = &cobra.Command{
	Use:     "providers",
	Aliases: []string{"provider"},
	Short:   "Upstream SMM providers",
}

var providersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List providers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := listParams(cmd)
		if err != nil {
			return err
		}
		return withSession(cmd, func(ctx context.Context, rt *panelRuntime) error {
			page, err := rt.client.ListProviders(ctx, params)
			if err != nil {
				return err
			}
			return render(cmd, output.ProvidersView(page))
		})
	},
}

var providersSyncCmd = &cobra.Command{
	Use:   "sync-balances",
	Short: "Fetch live balances from every provider and record them",
	Long: `Fetch the live balance of each provider and store a snapshot locally.

Balances are requested concurrently; they share one session refresh if the session
expires part way through.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, rt *panelRuntime) error {
			providers, err := allProviders(ctx, rt.client)
			if err != nil {
				return err
			}

			snaps, failed := fetchBalances(ctx, rt, providers)
			if len(snaps) > 0 {
				if err := rt.store.RecordBalances(ctx, snaps); err != nil {
					return err
				}
			}
			metrics.RecordOperation("sync_balances", failed == 0)
			if failed > 0 {
				rt.warn("Some provider balances could not be fetched", zap.Int("failed", failed), zap.Int("synced", len(snaps)))
			}
			return render(cmd, output.BalancesView(snaps))
		})
	},
}

var providersBalancesCmd = &cobra.Command{
	Use:   "balances",
	Short: "Show the last recorded balance of each provider",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd.Context(), runtimeOptions{})
		if err != nil {
			return err
		}
		defer rt.Close() // nolint:errcheck // best-effort cleanup

		snaps, err := rt.store.LatestBalances(cmd.Context(), rt.session.Endpoint())
		if err != nil {
			return err
		}
		return render(cmd, output.BalancesView(snaps))
	},
}

// allProviders walks every page of the provider listing.
func allProviders(ctx context.Context, client *api.Client) ([]api.Provider, error) {
	var out []api.Provider
	params := api.ListParams{Page: 1, PerPage: 100}
	for {
		page, err := client.ListProviders(ctx, params)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Items...)
		if page.Meta.LastPage <= params.Page || len(page.Items) == 0 {
			return out, nil
		}
		params.Page++
	}
}

type balanceResult struct {
	snap store.BalanceSnapshot
	err  error
}

// fetchBalances requests balances on a small pool and returns the snapshots in provider
// order along with the number of failures.
func fetchBalances(ctx context.Context, rt *panelRuntime, providers []api.Provider) ([]store.BalanceSnapshot, int) {
	results := make([]balanceResult, len(providers))
	now := time.Now().UTC()
	endpoint := rt.session.Endpoint()

	p := pool.New().WithMaxGoroutines(4)
	for i := range providers {
		p.Go(func() {
			provider := providers[i]
			bal, err := rt.client.ProviderBalance(ctx, provider.ID)
			if err != nil {
				results[i] = balanceResult{err: err}
				rt.debug("Provider balance failed", zap.Int64("provider_id", provider.ID), zap.Error(err))
				return
			}
			currency := bal.Currency
			if currency == "" {
				currency = provider.Currency
			}
			results[i] = balanceResult{snap: store.BalanceSnapshot{
				Endpoint:     endpoint,
				ProviderID:   provider.ID,
				ProviderName: provider.Name,
				Balance:      bal.Balance,
				Currency:     currency,
				SyncedAt:     now,
			}}
		})
	}
	p.Wait()

	snaps := make([]store.BalanceSnapshot, 0, len(providers))
	failed := 0
	for _, r := range results {
		if r.err != nil {
			failed++
			continue
		}
		snaps = append(snaps, r.snap)
	}
	return snaps, failed
}

func init() {
	rootCmd.AddCommand(providersCmd)
	providersCmd.AddCommand(providersListCmd, providersSyncCmd, providersBalancesCmd)
	addListFlags(providersListCmd)
}
