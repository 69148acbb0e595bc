package api

import (
	"context"
	"errors"
	"net/http"
)

// Login exchanges credentials for a token pair. The panel may answer with a second-factor
// challenge, which the gate chain handles transparently.
func (c *Client) Login(ctx context.Context, creds Credentials) (*Tokens, error) {
	var tokens Tokens
	if err := c.Do(ctx, http.MethodPost, c.paths.Login, nil, creds, &tokens); err != nil {
		return nil, err
	}
	if tokens.AccessToken == "" {
		return nil, errors.New("login response carried no access token")
	}
	return &tokens, nil
}

// Refresh exchanges a refresh token for a new token pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	var tokens Tokens
	body := map[string]string{"refresh_token": refreshToken}
	if err := c.Do(ctx, http.MethodPost, c.paths.Refresh, nil, body, &tokens); err != nil {
		return nil, err
	}
	if tokens.AccessToken == "" {
		return nil, errors.New("refresh response carried no access token")
	}
	return &tokens, nil
}

// Logout revokes the current session server-side.
func (c *Client) Logout(ctx context.Context) error {
	return c.Do(ctx, http.MethodPost, c.paths.Logout, nil, nil, nil)
}

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	if err := c.Do(ctx, http.MethodGet, c.paths.Profile, nil, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
