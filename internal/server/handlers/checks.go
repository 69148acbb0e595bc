package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/panelops/panelctl/internal/session"
)

// CheckerFunc adapts a function to HealthChecker.
type CheckerFunc func(ctx context.Context) error

// CheckHealth calls f(ctx).
func (f CheckerFunc) CheckHealth(ctx context.Context) error {
	return f(ctx)
}

// UpstreamChecker probes the panel API endpoint. Any HTTP answer below 500 counts as
// reachable; authorization is not part of this check.
type UpstreamChecker struct {
	URL    string
	Client *http.Client
}

// CheckHealth issues a HEAD request against the API base URL.
func (u UpstreamChecker) CheckHealth(ctx context.Context) error {
	client := u.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, u.URL, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("upstream returned %d", resp.StatusCode)
	}
	return nil
}

// SessionStater exposes the current session state.
type SessionStater interface {
	State() session.State
}

// SessionChecker reports degraded while the gateway has no usable session.
type SessionChecker struct {
	Session SessionStater
}

// CheckHealth never fails hard; a missing session only degrades the gateway.
func (s SessionChecker) CheckHealth(ctx context.Context) error {
	if s.Session == nil {
		return fmt.Errorf("session: %w", ErrDegraded)
	}
	if !s.Session.State().Authenticated {
		return fmt.Errorf("not logged in: %w", ErrDegraded)
	}
	return nil
}
