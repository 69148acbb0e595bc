// Package session owns the panel session: the bearer token pair, session cookies and the
// single refresh call the request gate coordinates.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/panelops/panelctl/internal/api"
	"github.com/panelops/panelctl/internal/gate"
	"github.com/panelops/panelctl/internal/store"
)

// ErrNotLoggedIn is returned when an operation needs a session and none exists.
var ErrNotLoggedIn = errors.New("not logged in")

// Persister stores sessions between runs. *store.Store implements it.
type Persister interface {
	SaveSession(ctx context.Context, record store.SessionRecord) error
	GetSession(ctx context.Context, endpoint string) (*store.SessionRecord, error)
	DeleteSession(ctx context.Context, endpoint string) error
}

// Options configures a Manager.
type Options struct {
	// Endpoint is the API base URL; sessions are keyed by it.
	Endpoint string
	// Transport is the raw transport used for the refresh call. It must not be a gate.
	Transport http.RoundTripper
	Paths     api.Paths
	UserAgent string
	Timeout   time.Duration
	Persister Persister
	Logger    *logging.Logger
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// State is a read-only view of the session.
type State struct {
	Endpoint      string     `json:"endpoint" yaml:"endpoint"`
	Email         string     `json:"email,omitempty" yaml:"email,omitempty"`
	Authenticated bool       `json:"authenticated" yaml:"authenticated"`
	HasRefresh    bool       `json:"has_refresh" yaml:"has_refresh"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
}

// Manager implements gate.Refresher and gate.Credentials.
type Manager struct {
	endpoint *url.URL
	persist  Persister
	logger   *logging.Logger
	now      func() time.Time
	auth     *api.Client
	jar      *cookiejar.Jar

	// cookieAttrs keeps what the jar does not return: path, domain, expiry and flags.
	cookieMu    sync.Mutex
	cookieAttrs map[string]store.Cookie

	mu        sync.RWMutex
	email     string
	access    string
	refresh   string
	expiresAt *time.Time
}

var (
	_ gate.Refresher   = (*Manager)(nil)
	_ gate.Credentials = (*Manager)(nil)
)

// New builds a Manager. Call Restore to load a persisted session.
func New(opts Options) (*Manager, error) {
	endpoint, err := url.Parse(strings.TrimSpace(opts.Endpoint))
	if err != nil || endpoint.Scheme == "" || endpoint.Host == "" {
		return nil, fmt.Errorf("session endpoint must be an absolute url: %q", opts.Endpoint)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	m := &Manager{
		endpoint: endpoint,
		persist:  opts.Persister,
		logger:   opts.Logger,
		now:      opts.Now,
		jar:      jar,

		cookieAttrs: make(map[string]store.Cookie),
	}
	if m.now == nil {
		m.now = time.Now
	}

	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	auth, err := api.New(opts.Endpoint,
		api.WithHTTPClient(&http.Client{Timeout: timeout, Transport: &cookieTransport{next: base, m: m}}),
		api.WithPaths(opts.Paths),
		api.WithUserAgent(opts.UserAgent),
	)
	if err != nil {
		return nil, err
	}
	m.auth = auth
	return m, nil
}

// Endpoint returns the normalized endpoint the session is keyed by.
func (m *Manager) Endpoint() string {
	return strings.TrimRight(m.endpoint.String(), "/")
}

// Restore loads the persisted session, if any.
func (m *Manager) Restore(ctx context.Context) error {
	if m.persist == nil {
		return nil
	}
	record, err := m.persist.GetSession(ctx, m.Endpoint())
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	if record == nil {
		return nil
	}

	m.mu.Lock()
	m.email = record.Email
	m.access = record.AccessToken
	m.refresh = record.RefreshToken
	m.expiresAt = record.ExpiresAt
	m.mu.Unlock()

	m.restoreCookies(record.Cookies)

	m.debug("session restored", zap.String("email", record.Email))
	return nil
}

// State returns a snapshot of the session.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return State{
		Endpoint:      m.Endpoint(),
		Email:         m.email,
		Authenticated: m.access != "",
		HasRefresh:    m.refresh != "",
		ExpiresAt:     m.expiresAt,
	}
}

// Apply attaches the bearer token and session cookies to an outbound attempt.
func (m *Manager) Apply(req *http.Request) error {
	m.mu.RLock()
	access := m.access
	m.mu.RUnlock()

	if access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}
	addCookies(req, m.jar.Cookies(req.URL))
	return nil
}

// Capture stores cookies the API sets.
func (m *Manager) Capture(target *url.URL, resp *http.Response) {
	if target == nil || resp == nil {
		return
	}
	cookies := resp.Cookies()
	if len(cookies) == 0 {
		return
	}
	m.jar.SetCookies(target, cookies)

	now := m.now()
	m.cookieMu.Lock()
	defer m.cookieMu.Unlock()
	for _, c := range cookies {
		if c.MaxAge < 0 {
			delete(m.cookieAttrs, c.Name)
			continue
		}
		attrs := store.Cookie{
			Name:     c.Name,
			Path:     c.Path,
			Domain:   c.Domain,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HTTPOnly: c.HttpOnly,
		}
		if c.MaxAge > 0 {
			attrs.Expires = now.Add(time.Duration(c.MaxAge) * time.Second).UTC()
		}
		m.cookieAttrs[c.Name] = attrs
	}
}

// savedCookies pairs the jar's live cookies with their captured attributes.
func (m *Manager) savedCookies() []store.Cookie {
	live := m.jar.Cookies(m.endpoint)
	if len(live) == 0 {
		return nil
	}
	m.cookieMu.Lock()
	defer m.cookieMu.Unlock()
	out := make([]store.Cookie, 0, len(live))
	for _, c := range live {
		saved, ok := m.cookieAttrs[c.Name]
		if !ok {
			saved = store.Cookie{Name: c.Name}
		}
		saved.Value = c.Value
		out = append(out, saved)
	}
	return out
}

// restoreCookies loads persisted cookies into the jar, dropping expired ones.
func (m *Manager) restoreCookies(saved []store.Cookie) {
	now := m.now()
	cookies := make([]*http.Cookie, 0, len(saved))

	m.cookieMu.Lock()
	for _, c := range saved {
		if !c.Expires.IsZero() && !c.Expires.After(now) {
			continue
		}
		path := c.Path
		if path == "" {
			path = "/"
		}
		cookies = append(cookies, &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     path,
			Domain:   c.Domain,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
		})
		attrs := c
		attrs.Value = ""
		m.cookieAttrs[c.Name] = attrs
	}
	m.cookieMu.Unlock()

	if len(cookies) > 0 {
		m.jar.SetCookies(m.endpoint, cookies)
	}
}

// Refresh performs the one refresh call the gate shares between all waiting requests.
// Rejections by the API are an explicit failure; anything else is an error.
func (m *Manager) Refresh(ctx context.Context) (gate.RefreshResult, error) {
	m.mu.RLock()
	refreshToken := m.refresh
	m.mu.RUnlock()

	if refreshToken == "" {
		return gate.RefreshResult{Success: false, Message: "no refresh token"}, nil
	}

	tokens, err := m.auth.Refresh(ctx, refreshToken)
	if err != nil {
		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			m.warn("session refresh rejected", zap.Int("status", apiErr.StatusCode), zap.String("message", apiErr.Message))
			m.clear()
			if perr := m.forget(ctx); perr != nil {
				m.warn("failed to drop rejected session", zap.Error(perr))
			}
			return gate.RefreshResult{Success: false, Message: apiErr.Message}, nil
		}
		return gate.RefreshResult{}, err
	}

	m.setTokens("", tokens)
	if err := m.Save(ctx); err != nil {
		m.warn("failed to persist refreshed session", zap.Error(err))
	}
	return gate.RefreshResult{Success: true}, nil
}

// Login authenticates with client, which should carry the challenge gate so a second
// factor can be prompted, and persists the resulting session.
func (m *Manager) Login(ctx context.Context, client *api.Client, creds api.Credentials) (*api.Tokens, error) {
	if strings.TrimSpace(creds.Email) == "" || creds.Password == "" {
		return nil, errors.New("email and password are required")
	}
	tokens, err := client.Login(ctx, creds)
	if err != nil {
		return nil, err
	}

	m.setTokens(strings.TrimSpace(creds.Email), tokens)
	if err := m.Save(ctx); err != nil {
		return nil, err
	}
	return tokens, nil
}

// Logout revokes the session server-side (best effort) and forgets it locally.
func (m *Manager) Logout(ctx context.Context, client *api.Client) error {
	if !m.State().Authenticated {
		return ErrNotLoggedIn
	}

	var remoteErr error
	if client != nil {
		if err := client.Logout(ctx); err != nil && !api.IsStatus(err, http.StatusUnauthorized) {
			remoteErr = fmt.Errorf("remote logout: %w", err)
		}
	}

	m.clear()
	if err := m.forget(ctx); err != nil {
		return err
	}
	return remoteErr
}

// Save persists the current session including captured cookies.
func (m *Manager) Save(ctx context.Context) error {
	if m.persist == nil {
		return nil
	}

	m.mu.RLock()
	record := store.SessionRecord{
		Endpoint:     m.Endpoint(),
		Email:        m.email,
		AccessToken:  m.access,
		RefreshToken: m.refresh,
		ExpiresAt:    m.expiresAt,
		UpdatedAt:    m.now(),
	}
	m.mu.RUnlock()

	if record.AccessToken == "" {
		return nil
	}
	record.Cookies = m.savedCookies()

	if err := m.persist.SaveSession(ctx, record); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

func (m *Manager) setTokens(email string, tokens *api.Tokens) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if email != "" {
		m.email = email
	}
	if tokens.User != nil && tokens.User.Email != "" {
		m.email = tokens.User.Email
	}
	m.access = tokens.AccessToken
	// Some deployments rotate the refresh token, others keep it.
	if tokens.RefreshToken != "" {
		m.refresh = tokens.RefreshToken
	}
	m.expiresAt = nil
	if tokens.ExpiresIn > 0 {
		exp := m.now().Add(time.Duration(tokens.ExpiresIn) * time.Second).UTC()
		m.expiresAt = &exp
	}
}

func (m *Manager) clear() {
	m.mu.Lock()
	m.access = ""
	m.refresh = ""
	m.expiresAt = nil
	m.mu.Unlock()

	if cookies := m.jar.Cookies(m.endpoint); len(cookies) > 0 {
		expired := make([]*http.Cookie, 0, len(cookies))
		for _, c := range cookies {
			expired = append(expired, &http.Cookie{Name: c.Name, Path: "/", MaxAge: -1})
		}
		m.jar.SetCookies(m.endpoint, expired)
	}

	m.cookieMu.Lock()
	m.cookieAttrs = make(map[string]store.Cookie)
	m.cookieMu.Unlock()
}

func (m *Manager) forget(ctx context.Context) error {
	if m.persist == nil {
		return nil
	}
	if err := m.persist.DeleteSession(ctx, m.Endpoint()); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (m *Manager) debug(msg string, fields ...zap.Field) {
	if m.logger != nil {
		m.logger.Debug(msg, fields...)
	}
}

func (m *Manager) warn(msg string, fields ...zap.Field) {
	if m.logger != nil {
		m.logger.Warn(msg, fields...)
	}
}

func addCookies(req *http.Request, cookies []*http.Cookie) {
	for _, c := range cookies {
		if _, err := req.Cookie(c.Name); err == nil {
			continue
		}
		req.AddCookie(c)
	}
}

// cookieTransport carries session cookies on the refresh call without the bearer token.
type cookieTransport struct {
	next http.RoundTripper
	m    *Manager
}

func (t *cookieTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	addCookies(out, t.m.jar.Cookies(out.URL))
	resp, err := t.next.RoundTrip(out)
	if err != nil {
		return nil, err
	}
	t.m.Capture(out.URL, resp)
	return resp, nil
}
