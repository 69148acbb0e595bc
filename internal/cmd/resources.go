package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/panelops/panelctl/internal/api"
)

// addListFlags registers the pagination and filter flags every listing accepts.
func addListFlags(cmd *cobra.Command, filters ...string) {
	cmd.Flags().Int("page", 1, "page number")
	cmd.Flags().Int("per-page", 0, "items per page (API default when 0)")
	cmd.Flags().String("search", "", "free-text search")
	cmd.Flags().String("status", "", "filter by status")
	for _, name := range filters {
		cmd.Flags().String(name, "", "filter by "+strings.ReplaceAll(name, "-", " "))
	}
}

func listParams(cmd *cobra.Command, filters ...string) (api.ListParams, error) {
	var p api.ListParams
	var err error
	if p.Page, err = cmd.Flags().GetInt("page"); err != nil {
		return p, err
	}
	if p.PerPage, err = cmd.Flags().GetInt("per-page"); err != nil {
		return p, err
	}
	if p.Search, err = cmd.Flags().GetString("search"); err != nil {
		return p, err
	}
	if p.Status, err = cmd.Flags().GetString("status"); err != nil {
		return p, err
	}
	for _, name := range filters {
		value, err := cmd.Flags().GetString(name)
		if err != nil {
			return p, err
		}
		if value == "" {
			continue
		}
		if p.Filters == nil {
			p.Filters = map[string]string{}
		}
		p.Filters[strings.ReplaceAll(name, "-", "_")] = value
	}
	if p.Page < 1 {
		return p, fmt.Errorf("--page must be at least 1")
	}
	if p.PerPage < 0 {
		return p, fmt.Errorf("--per-page must not be negative")
	}
	return p, nil
}

func parseID(raw, what string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(raw), "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", what, raw)
	}
	return id, nil
}

// withSession opens the runtime, checks for a session and runs fn. Second-factor
// challenges are prompted on the terminal.
func withSession(cmd *cobra.Command, fn func(ctx context.Context, rt *panelRuntime) error) error {
	ctx := cmd.Context()
	rt, err := openRuntime(ctx, runtimeOptions{prompter: newTerminalPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())})
	if err != nil {
		return err
	}
	defer rt.Close() // nolint:errcheck // best-effort cleanup

	if err := rt.requireSession(); err != nil {
		return err
	}
	return fn(ctx, rt)
}
