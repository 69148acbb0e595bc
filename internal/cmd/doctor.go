package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/panelops/panelctl/internal/config"
	"github.com/panelops/panelctl/internal/observability"
	"github.com/panelops/panelctl/internal/output"
	"github.com/panelops/panelctl/internal/server/handlers"
	"github.com/panelops/panelctl/internal/store"
)

// Check statuses, ordered by severity.
const (
	checkOK   = "ok"
	checkSkip = "skipped"
	checkWarn = "warn"
	checkFail = "fail"
)

type checkResult struct {
	Name   string `json:"name" yaml:"name"`
	Status string `json:"status" yaml:"status"`
	Detail string `json:"detail" yaml:"detail"`
}

// doctorEnv carries what earlier checks learned to later ones.
type doctorEnv struct {
	ctx     context.Context
	appName string
	cfg     *config.Config
	cfgErr  error
	db      *store.Store
	dbErr   error
}

type doctorCheck struct {
	name string
	run  func(env *doctorEnv) (status, detail string)
}

var doctorChecks = []doctorCheck{
	{"Go version", checkGoVersion},
	{"Fulmen libraries", checkFulmen},
	{"config directory", checkConfigDir},
	{"configuration", checkConfiguration},
	{"database", checkDatabase},
	{"session", checkSession},
	{"catalog cache", checkCache},
	{"panel API", checkPanel},
}

var doctorStrict bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long:  "Run diagnostic checks on the local installation, the saved session, and the panel API.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env := &doctorEnv{ctx: cmd.Context(), appName: GetAppIdentity().BinaryName}
		defer func() {
			if env.db != nil {
				_ = env.db.Close()
			}
		}()

		results := runDoctor(env, doctorChecks)
		if err := render(cmd, doctorView(env.appName, results)); err != nil {
			return err
		}

		failed := 0
		for _, r := range results {
			if r.Status == checkFail {
				failed++
			}
		}
		if failed > 0 && doctorStrict {
			return fmt.Errorf("%d diagnostic check(s) failed", failed)
		}
		return nil
	},
}

func runDoctor(env *doctorEnv, checks []doctorCheck) []checkResult {
	log := observability.CLILogger
	results := make([]checkResult, 0, len(checks))
	for _, c := range checks {
		status, detail := c.run(env)
		results = append(results, checkResult{Name: c.name, Status: status, Detail: detail})
		if log != nil {
			log.Debug("Doctor check", zap.String("check", c.name), zap.String("status", status), zap.String("detail", detail))
		}
	}
	return results
}

func doctorView(appName string, results []checkResult) *output.View {
	view := &output.View{
		Data:   results,
		Title:  appName + " doctor",
		Header: []string{"#", "Check", "Status", "Detail"},
		Footer: "all checks passed",
	}
	for i, r := range results {
		view.Rows = append(view.Rows, []string{fmt.Sprint(i + 1), r.Name, r.Status, r.Detail})
		if r.Status == checkFail || r.Status == checkWarn {
			view.Footer = "review failed checks above"
		}
	}
	return view
}

func checkGoVersion(*doctorEnv) (string, string) {
	v := runtime.Version()
	if v >= "go1.23" {
		return checkOK, v
	}
	return checkWarn, v + " (recommended: go1.23+)"
}

func checkFulmen(*doctorEnv) (string, string) {
	v := crucible.GetVersion()
	if v.Crucible == "" || v.Gofulmen == "" {
		return checkFail, "version metadata unavailable"
	}
	return checkOK, fmt.Sprintf("crucible v%s, gofulmen v%s", v.Crucible, v.Gofulmen)
}

func checkConfigDir(*doctorEnv) (string, string) {
	path := config.DefaultConfigPath()
	if path == "" {
		return checkFail, "cannot resolve config directory"
	}
	return checkOK, filepath.Dir(path)
}

func checkConfiguration(env *doctorEnv) (string, string) {
	env.cfg, env.cfgErr = config.Load(env.ctx, runtimeOverrides())
	switch {
	case env.cfgErr != nil:
		return checkFail, env.cfgErr.Error()
	case strings.TrimSpace(env.cfg.API.BaseURL) == "":
		return checkWarn, "api.base_url is not set (run '" + env.appName + " doctor init --base-url ...')"
	default:
		return checkOK, env.cfg.API.BaseURL
	}
}

func checkDatabase(env *doctorEnv) (string, string) {
	if env.cfg == nil {
		env.dbErr = errors.New("config not loaded")
		return checkSkip, "config not loaded"
	}
	env.db, env.dbErr = openStore(env.ctx, env.cfg.Store)
	if env.dbErr != nil {
		return checkFail, env.dbErr.Error()
	}
	if err := env.db.Ping(env.ctx); err != nil {
		env.dbErr = err
		return checkFail, "ping failed: " + err.Error()
	}
	return checkOK, describeStore(env.cfg.Store)
}

func checkSession(env *doctorEnv) (string, string) {
	if env.dbErr != nil {
		return checkSkip, "store unavailable"
	}
	if env.cfg.API.BaseURL == "" {
		return checkSkip, "no base url"
	}
	record, err := env.db.GetSession(env.ctx, strings.TrimRight(env.cfg.API.BaseURL, "/"))
	switch {
	case err != nil:
		return checkFail, err.Error()
	case record == nil:
		return checkWarn, "not logged in (run '" + env.appName + " login')"
	case record.RefreshToken == "":
		return checkWarn, record.Email + " (no refresh token; expiry forces a new login)"
	default:
		return checkOK, fmt.Sprintf("%s (saved %s)", record.Email, timeAgo(time.Since(record.UpdatedAt), record.UpdatedAt.IsZero()))
	}
}

func checkCache(env *doctorEnv) (string, string) {
	if env.cfg == nil {
		return checkSkip, "config not loaded"
	}
	if !env.cfg.Cache.Enabled {
		return checkOK, "disabled"
	}
	info, err := os.Stat(env.cfg.Cache.Path)
	switch {
	case err == nil && info.IsDir():
		return checkOK, env.cfg.Cache.Path
	case os.IsNotExist(err):
		return checkOK, env.cfg.Cache.Path + " (not created yet)"
	case err == nil:
		return checkFail, env.cfg.Cache.Path + " is not a directory"
	default:
		return checkFail, err.Error()
	}
}

func checkPanel(env *doctorEnv) (string, string) {
	if env.cfg == nil || env.cfg.API.BaseURL == "" {
		return checkSkip, "no base url"
	}
	ctx, cancel := context.WithTimeout(env.ctx, 5*time.Second)
	defer cancel()
	checker := handlers.UpstreamChecker{URL: env.cfg.API.BaseURL, Client: &http.Client{}}
	if err := checker.CheckHealth(ctx); err != nil {
		return checkFail, "unreachable: " + err.Error()
	}
	return checkOK, "reachable"
}

func describeStore(cfg config.StoreConfig) string {
	if cfg.URL == "" && cfg.Path == "" {
		cfg.Path = config.DefaultStorePath()
	}
	loc, err := store.ResolveLocation(cfg)
	if err != nil {
		return err.Error()
	}
	if loc.Path == "" {
		return loc.String()
	}
	path := loc.Path
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	if info, err := os.Stat(path); err == nil {
		return fmt.Sprintf("%s (%s)", path, byteSize(info.Size()))
	}
	return path
}

func byteSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d bytes", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit && exp < 2; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMG"[exp])
}

func timeAgo(d time.Duration, unknown bool) string {
	if unknown {
		return "unknown"
	}
	count := func(n int, unit string) string {
		if n == 1 {
			return "1 " + unit + " ago"
		}
		return fmt.Sprintf("%d %ss ago", n, unit)
	}
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return count(int(d.Minutes()), "min")
	case d < 24*time.Hour:
		return count(int(d.Hours()), "hour")
	default:
		return count(int(d.Hours()/24), "day")
	}
}
