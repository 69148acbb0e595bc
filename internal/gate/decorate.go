package gate

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// RequestIDHeader is attached to every outbound attempt that does not already carry one.
const RequestIDHeader = "X-Request-ID"

// Credentials attaches and captures session material (bearer token, cookies).
type Credentials interface {
	// Apply decorates an outbound attempt with the current credentials.
	Apply(req *http.Request) error
	// Capture stores credentials returned by the API (Set-Cookie) for later attempts.
	Capture(target *url.URL, resp *http.Response)
}

// LocaleSource is an observable active locale.
type LocaleSource interface {
	Current() string
	// Subscribe registers fn for locale changes and returns a function that removes it.
	Subscribe(fn func(locale string)) (cancel func())
}

// parseBaseURL validates the configured API endpoint. An empty value is allowed; every
// request must then carry an absolute URL.
func parseBaseURL(raw string) (*url.URL, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}
	parsed, err := url.Parse(value)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("base url must be absolute: %q", value)
	}
	return parsed, nil
}

// resolve joins a relative request URL onto the base endpoint, keeping the base path
// as a prefix the way the panel frontend joins baseURL and url.
func resolve(base *url.URL, target *url.URL) (*url.URL, error) {
	if target.IsAbs() && target.Host != "" {
		return target, nil
	}
	if base == nil {
		return nil, fmt.Errorf("relative url %q without a base url", target.String())
	}

	resolved := *base
	resolved.Path = strings.TrimRight(base.Path, "/") + "/" + strings.TrimLeft(target.Path, "/")
	resolved.RawPath = ""
	resolved.RawQuery = target.RawQuery
	resolved.Fragment = ""
	return &resolved, nil
}

// decorate is the pre-send hook. It returns a copy of req ready for the next transport.
func (g *RequestGate) decorate(req *http.Request) (*http.Request, error) {
	if req == nil || req.URL == nil {
		return nil, &DecorateError{Err: errors.New("request has no url")}
	}

	out := req.Clone(req.Context())
	target, err := resolve(g.base, out.URL)
	if err != nil {
		return nil, &DecorateError{Err: err}
	}
	out.URL = target
	out.Host = ""

	if IsRetry(req.Context()) && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, &DecorateError{Err: fmt.Errorf("rewind body: %w", err)}
		}
		out.Body = body
	}

	out.Header.Set("Accept", "application/json")
	if locale := g.Locale(); locale != "" {
		out.Header.Set("Accept-Language", locale)
	}
	if out.Header.Get(RequestIDHeader) == "" {
		out.Header.Set(RequestIDHeader, uuid.New().String())
	}

	if g.creds != nil {
		if err := g.creds.Apply(out); err != nil {
			return nil, &DecorateError{Err: fmt.Errorf("apply credentials: %w", err)}
		}
	}

	return out, nil
}
