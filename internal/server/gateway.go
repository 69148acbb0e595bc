package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	apperrors "github.com/panelops/panelctl/internal/errors"
	"github.com/panelops/panelctl/internal/metrics"
	"github.com/panelops/panelctl/internal/observability"
)

// DefaultMaxBodyBytes bounds buffered gateway request bodies.
const DefaultMaxBodyBytes int64 = 10 << 20

// Gateway forwards local /api requests to the panel API through the gate chain. Request
// bodies are buffered so the gate can replay them after a session refresh.
type Gateway struct {
	proxy        *httputil.ReverseProxy
	maxBodyBytes int64
	active       atomic.Int64
}

// NewGateway builds a gateway for baseURL. transport is normally the RequestGate.
func NewGateway(baseURL string, transport http.RoundTripper, maxBodyBytes int64) (*Gateway, error) {
	target, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("base url must be absolute: %q", baseURL)
	}
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}

	g := &Gateway{maxBodyBytes: maxBodyBytes}
	g.proxy = &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			// The gateway authenticates with its own session.
			pr.Out.Header.Del("Authorization")
			pr.Out.Header.Del("Cookie")
		},
		Transport: transport,
		ModifyResponse: func(resp *http.Response) error {
			metrics.RecordUpstreamStatus(resp.StatusCode)
			resp.Header.Del("Set-Cookie")
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			if logger := observability.ServerLogger; logger != nil {
				logger.Warn("Gateway request failed",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Error(err))
			}
			HandleError(w, r, err)
		},
	}
	return g, nil
}

// ServeHTTP expects the /api prefix to be stripped already.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	metrics.SetActiveConnections(g.active.Add(1))
	defer func() { metrics.SetActiveConnections(g.active.Add(-1)) }()

	if r.Body != nil && r.Body != http.NoBody {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, g.maxBodyBytes))
		if err != nil {
			if tooLarge := new(http.MaxBytesError); errors.As(err, &tooLarge) {
				HandleError(w, r, apperrors.Wrap(r.Context(), apperrors.CodePayloadTooLarge, err,
					fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit)))
				return
			}
			HandleError(w, r, apperrors.WrapInvalidInput(r.Context(), err, "request body unreadable"))
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		r.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
		r.ContentLength = int64(len(body))
	}

	g.proxy.ServeHTTP(w, r)
}

// Active returns the number of requests currently being proxied.
func (g *Gateway) Active() int64 {
	return g.active.Load()
}
