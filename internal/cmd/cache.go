package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/panelops/panelctl/internal/cache"
	"github.com/panelops/panelctl/internal/output"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the catalog cache",
}

func openCache(cmd *cobra.Command) (*cache.Disk, string, error) {
	cfg, err := loadConfig(cmd.Context())
	if err != nil {
		return nil, "", err
	}
	if cfg.Cache.Path == "" {
		return nil, "", fmt.Errorf("cache path is not configured")
	}
	disk, err := cache.Open(cfg.Cache.Path)
	if err != nil {
		return nil, "", err
	}
	return disk, cfg.Cache.Path, nil
}

var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cache location and entry counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		disk, path, err := openCache(cmd)
		if err != nil {
			return err
		}
		defer disk.Close() // nolint:errcheck // best-effort cleanup

		usage, err := disk.Usage()
		if err != nil {
			return err
		}
		return render(cmd, output.CacheView(path, usage))
	},
}

var cachePurgeExpired bool

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove cached catalog listings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		disk, _, err := openCache(cmd)
		if err != nil {
			return err
		}
		defer disk.Close() // nolint:errcheck // best-effort cleanup

		removed, err := disk.Purge(cachePurgeExpired)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cache entries\n", removed)
		return err
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatusCmd, cachePurgeCmd)
	cachePurgeCmd.Flags().BoolVar(&cachePurgeExpired, "expired", false, "only remove expired entries")
}
