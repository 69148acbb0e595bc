// Package api is a typed client for the panel back-office REST API.
//
// Every endpoint answers with the {success, data, message, errors} envelope. The client
// itself knows nothing about sessions: install a gate chain as the HTTP client's
// transport to get credentials, locale and 401 recovery.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxResponseBytes = 10 << 20

// Paths are the auth endpoints, relative to the base URL.
type Paths struct {
	Login   string
	Refresh string
	Logout  string
	Profile string
}

// DefaultPaths matches the panel's stock routes.
var DefaultPaths = Paths{
	Login:   "/auth/login",
	Refresh: "/auth/refresh",
	Logout:  "/auth/logout",
	Profile: "/auth/me",
}

// Cache stores raw listing payloads.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
}

// Client calls the panel API.
type Client struct {
	base       *url.URL
	httpClient *http.Client
	userAgent  string
	paths      Paths

	cache      Cache
	cacheTTL   time.Duration
	cacheScope func() string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client; its transport is usually a gate chain.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = strings.TrimSpace(ua) }
}

// WithPaths overrides the auth endpoints. Empty fields keep their defaults.
func WithPaths(p Paths) Option {
	return func(c *Client) {
		if p.Login != "" {
			c.paths.Login = p.Login
		}
		if p.Refresh != "" {
			c.paths.Refresh = p.Refresh
		}
		if p.Logout != "" {
			c.paths.Logout = p.Logout
		}
		if p.Profile != "" {
			c.paths.Profile = p.Profile
		}
	}
}

// WithCache enables caching of catalog listings (categories, services). scope is mixed
// into every key, typically the active locale since catalog names are translated.
func WithCache(cache Cache, ttl time.Duration, scope func() string) Option {
	return func(c *Client) {
		c.cache = cache
		c.cacheTTL = ttl
		c.cacheScope = scope
	}
}

// New returns a client for baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	raw := strings.TrimSpace(baseURL)
	if raw == "" {
		return nil, fmt.Errorf("api base url is required")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("api base url must be absolute: %q", raw)
	}

	c := &Client{
		base:       parsed,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		paths:      DefaultPaths,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the configured endpoint.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Paths returns the auth endpoints in use.
func (c *Client) Paths() Paths {
	return c.paths
}

// URL joins path and query onto the base URL.
func (c *Client) URL(path string, query url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(c.base.Path, "/") + "/" + strings.TrimLeft(path, "/")
	u.RawPath = ""
	u.RawQuery = ""
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// Do sends one request and decodes the envelope's data into out (which may be nil).
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	data, err := c.roundTrip(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	return decodeData(data, out)
}

func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL(path, query), reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return parseEnvelope(resp, raw)
}

func parseEnvelope(resp *http.Response, raw []byte) (json.RawMessage, error) {
	var env Envelope[json.RawMessage]
	decodeErr := json.Unmarshal(raw, &env)

	ok := resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices
	if !ok || decodeErr != nil || !env.Success {
		apiErr := &Error{
			StatusCode: resp.StatusCode,
			Message:    env.Message,
			Fields:     env.Errors,
			RequestID:  resp.Header.Get("X-Request-ID"),
		}
		if decodeErr != nil {
			if ok {
				return nil, fmt.Errorf("decode response: %w", decodeErr)
			}
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return nil, apiErr
	}
	return env.Data, nil
}

func decodeData(data json.RawMessage, out any) error {
	if out == nil || len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

// getCached is a GET that consults the cache first when one is configured.
func (c *Client) getCached(ctx context.Context, path string, query url.Values, out any) error {
	if c.cache == nil || c.cacheTTL <= 0 {
		return c.Do(ctx, http.MethodGet, path, query, nil, out)
	}

	key := c.URL(path, query)
	if c.cacheScope != nil {
		key += "|" + c.cacheScope()
	}
	if cached, ok := c.cache.Get(key); ok {
		return decodeData(cached, out)
	}

	data, err := c.roundTrip(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	// A cache write failure only costs a refetch.
	_ = c.cache.Set(key, data, c.cacheTTL)
	return decodeData(data, out)
}
