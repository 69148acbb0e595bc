package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/panelops/panelctl/internal/api"
	"github.com/panelops/panelctl/internal/cache"
	"github.com/panelops/panelctl/internal/config"
	apperrors "github.com/panelops/panelctl/internal/errors"
	"github.com/panelops/panelctl/internal/gate"
	"github.com/panelops/panelctl/internal/locale"
	"github.com/panelops/panelctl/internal/metrics"
	"github.com/panelops/panelctl/internal/observability"
	"github.com/panelops/panelctl/internal/session"
	"github.com/panelops/panelctl/internal/store"
)

// panelRuntime is everything a command needs to talk to the panel. One instance per
// process; the gate chain inside it owns the refresh state.
type panelRuntime struct {
	cfg     *config.Config
	store   *store.Store
	cache   *cache.Disk
	locale  *locale.Source
	session *session.Manager
	chain   *gate.Chain
	// client sends through the full chain.
	client *api.Client
	// loginClient skips the request gate so a rejected login is not refreshed.
	loginClient *api.Client
	logger      *logging.Logger
}

type runtimeOptions struct {
	prompter gate.Prompter
	logger   *logging.Logger
	// base is the innermost transport; nil means http.DefaultTransport.
	base http.RoundTripper
}

func openRuntime(ctx context.Context, opts runtimeOptions) (*panelRuntime, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	return newRuntime(ctx, cfg, opts)
}

func newRuntime(ctx context.Context, cfg *config.Config, opts runtimeOptions) (_ *panelRuntime, err error) {
	if strings.TrimSpace(cfg.API.BaseURL) == "" {
		return nil, apperrors.Wrap(ctx, apperrors.CodeConfigInvalid,
			stderrors.New("api.base_url is empty"),
			"panel API base URL is not configured (set api.base_url, PANELCTL_API_BASE_URL or --base-url)")
	}

	logger := opts.logger
	if logger == nil {
		logger = observability.Logger()
	}
	base := opts.base
	if base == nil {
		base = http.DefaultTransport
	}

	rt := &panelRuntime{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = rt.Close()
		}
	}()

	rt.store, err = openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	rt.locale, err = newLocaleSource(ctx, cfg.Locale, rt.store, logger)
	if err != nil {
		return nil, err
	}

	rt.session, err = session.New(session.Options{
		Endpoint:  cfg.API.BaseURL,
		Transport: base,
		Paths:     apiPaths(cfg.API),
		UserAgent: userAgent(cfg.API),
		Timeout:   cfg.API.Timeout,
		Persister: rt.store,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	if err := rt.session.Restore(ctx); err != nil {
		return nil, fmt.Errorf("restore session: %w", err)
	}

	rt.chain, err = gate.NewChain(base, gate.Options{
		BaseURL:        cfg.API.BaseURL,
		Refresher:      rt.session,
		Credentials:    rt.session,
		Locale:         rt.locale,
		RefreshTimeout: cfg.Gate.RefreshTimeout,
		Logger:         logger,
		Hooks:          metrics.GateHooks(),
	}, gate.ChallengeOptions{
		Prompter:   opts.prompter,
		Header:     cfg.Gate.ChallengeHeader,
		CodeHeader: cfg.Gate.ChallengeCodeHeader,
		Logger:     logger,
		OnOutcome:  metrics.RecordChallenge,
	})
	if err != nil {
		return nil, err
	}

	if cfg.Cache.Enabled && cfg.Cache.Path != "" {
		disk, cacheErr := cache.Open(cfg.Cache.Path)
		if cacheErr != nil {
			// Another panelctl process may hold the cache lock.
			rt.warn("Catalog cache unavailable", zap.String("path", cfg.Cache.Path), zap.Error(cacheErr))
		} else {
			rt.cache = disk
		}
	}

	clientOpts := []api.Option{
		api.WithHTTPClient(rt.chain.Client(cfg.API.Timeout)),
		api.WithPaths(apiPaths(cfg.API)),
		api.WithUserAgent(userAgent(cfg.API)),
	}
	if rt.cache != nil {
		clientOpts = append(clientOpts, api.WithCache(rt.cache, cfg.Cache.TTL, rt.locale.Current))
	}
	rt.client, err = api.New(cfg.API.BaseURL, clientOpts...)
	if err != nil {
		return nil, err
	}

	rt.loginClient, err = api.New(cfg.API.BaseURL,
		api.WithHTTPClient(&http.Client{Transport: rt.chain.Challenge, Timeout: cfg.API.Timeout}),
		api.WithPaths(apiPaths(cfg.API)),
		api.WithUserAgent(userAgent(cfg.API)),
	)
	if err != nil {
		return nil, err
	}

	return rt, nil
}

// requireSession fails fast when no session exists, before any request is sent.
func (rt *panelRuntime) requireSession() error {
	if !rt.session.State().Authenticated {
		return fmt.Errorf("%w: run \"panelctl login\" first", session.ErrNotLoggedIn)
	}
	return nil
}

func (rt *panelRuntime) debug(msg string, fields ...zap.Field) {
	if rt.logger != nil {
		rt.logger.Debug(msg, fields...)
	}
}

func (rt *panelRuntime) warn(msg string, fields ...zap.Field) {
	if rt.logger != nil {
		rt.logger.Warn(msg, fields...)
	}
}

// Close releases the gate subscription, the cache and the store.
func (rt *panelRuntime) Close() error {
	var errs []error
	if rt.chain != nil {
		errs = append(errs, rt.chain.Close())
	}
	if rt.cache != nil {
		errs = append(errs, rt.cache.Close())
	}
	if rt.store != nil {
		errs = append(errs, rt.store.Close())
	}
	return stderrors.Join(errs...)
}

func openStore(ctx context.Context, cfg config.StoreConfig) (*store.Store, error) {
	db, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, apperrors.WrapDatabaseError(ctx, err, "open store: "+err.Error())
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, apperrors.WrapDatabaseError(ctx, err, "migrate store: "+err.Error())
	}
	return db, nil
}

// newLocaleSource starts from the saved preference, falling back to config when the saved
// value is no longer supported.
func newLocaleSource(ctx context.Context, cfg config.LocaleConfig, db *store.Store, logger *logging.Logger) (*locale.Source, error) {
	initial := cfg.Default
	if db != nil {
		saved, ok, err := db.GetPreference(ctx, store.PreferenceLocale)
		if err != nil {
			return nil, err
		}
		if ok {
			initial = saved
		}
	}

	src, err := locale.New(initial, cfg.Supported...)
	if err == nil || initial == cfg.Default {
		return src, err
	}
	if logger != nil {
		logger.Warn("Saved locale rejected, using configured default",
			zap.String("saved", initial),
			zap.String("default", cfg.Default),
			zap.Error(err))
	}
	return locale.New(cfg.Default, cfg.Supported...)
}

func apiPaths(cfg config.APIConfig) api.Paths {
	return api.Paths{
		Login:   cfg.LoginPath,
		Refresh: cfg.RefreshPath,
		Logout:  cfg.LogoutPath,
		Profile: cfg.ProfilePath,
	}
}

func userAgent(cfg config.APIConfig) string {
	ua := strings.TrimSpace(cfg.UserAgent)
	if ua == "" {
		ua = "panelctl"
	}
	if versionInfo.Version != "" && !strings.Contains(ua, "/") {
		ua += "/" + versionInfo.Version
	}
	return ua
}
