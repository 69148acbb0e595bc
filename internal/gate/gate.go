// Package gate implements the transport chain every panel API call goes through.
//
// RequestGate decorates outbound requests and recovers from authorization failures with a
// single shared session refresh. Requests that fail while a refresh is in flight are queued
// and resubmitted in arrival order once it settles. Each request is retried at most once.
//
// ChallengeGate parks a single request on a second-factor prompt and resubmits it with the
// code the user enters.
package gate

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"
)

// DefaultRefreshTimeout bounds a shared refresh so queued requests cannot wait forever.
const DefaultRefreshTimeout = 30 * time.Second

// Refresh outcomes reported to Hooks.OnRefresh.
const (
	OutcomeRefreshed = "success"
	OutcomeRejected  = "failed"
	OutcomeError     = "error"
)

// Reject reasons reported to Hooks.OnReject.
const (
	RejectAlreadyRetried = "already_retried"
	RejectNotReplayable  = "body_not_replayable"
	RejectRefreshFailed  = "refresh_failed"
)

// RefreshResult is the well-formed answer of a refresh attempt.
type RefreshResult struct {
	Success bool
	Message string
}

// Refresher exchanges an expired credential for a new one.
type Refresher interface {
	Refresh(ctx context.Context) (RefreshResult, error)
}

// RefresherFunc adapts a function to Refresher.
type RefresherFunc func(ctx context.Context) (RefreshResult, error)

// Refresh calls f(ctx).
func (f RefresherFunc) Refresh(ctx context.Context) (RefreshResult, error) {
	return f(ctx)
}

// Hooks observe gate decisions. All fields are optional.
//
// OnQueued and OnResume are called outside the gate lock; OnResume is called in drain
// order, before the resumed request is resubmitted.
type Hooks struct {
	OnRefresh func(outcome string, elapsed time.Duration)
	OnQueued  func(req *http.Request, depth int)
	OnResume  func(req *http.Request, position int)
	OnReject  func(req *http.Request, reason string)
}

// Options configures a RequestGate.
type Options struct {
	// BaseURL is the API endpoint relative request URLs are joined onto.
	BaseURL string
	// Next sends decorated requests. Defaults to http.DefaultTransport.
	Next        http.RoundTripper
	Refresher   Refresher
	Credentials Credentials
	Locale      LocaleSource
	// RefreshTimeout bounds the shared refresh. Zero uses DefaultRefreshTimeout; a negative
	// value disables the bound.
	RefreshTimeout time.Duration
	Logger         *logging.Logger
	Hooks          Hooks
}

type waiter struct {
	req        *http.Request
	resume     chan struct{}
	dispatched chan struct{}
}

// RequestGate is an http.RoundTripper that owns the process-wide refresh state.
// Construct it once and share it between every client that talks to the API.
type RequestGate struct {
	next           http.RoundTripper
	refresher      Refresher
	creds          Credentials
	refreshTimeout time.Duration
	logger         *logging.Logger
	hooks          Hooks

	base        *url.URL
	locale      atomic.Value
	unsubscribe func()

	mu         sync.Mutex
	refreshing bool
	queue      []waiter
}

// New builds a RequestGate and subscribes it to locale changes.
func New(opts Options) (*RequestGate, error) {
	if opts.Refresher == nil {
		return nil, errors.New("gate: refresher is required")
	}

	base, err := parseBaseURL(opts.BaseURL)
	if err != nil {
		return nil, err
	}

	next := opts.Next
	if next == nil {
		next = http.DefaultTransport
	}

	timeout := opts.RefreshTimeout
	if timeout == 0 {
		timeout = DefaultRefreshTimeout
	}

	g := &RequestGate{
		next:           next,
		refresher:      opts.Refresher,
		creds:          opts.Credentials,
		refreshTimeout: timeout,
		logger:         opts.Logger,
		hooks:          opts.Hooks,
		base:           base,
	}
	g.locale.Store("")

	if opts.Locale != nil {
		g.setLocale(opts.Locale.Current())
		g.unsubscribe = opts.Locale.Subscribe(g.setLocale)
	}

	return g, nil
}

// Close drops the locale subscription.
func (g *RequestGate) Close() error {
	if g != nil && g.unsubscribe != nil {
		g.unsubscribe()
		g.unsubscribe = nil
	}
	return nil
}

// Locale returns the locale attached to outbound requests.
func (g *RequestGate) Locale() string {
	value, _ := g.locale.Load().(string)
	return value
}

func (g *RequestGate) setLocale(locale string) {
	g.locale.Store(locale)
}

// Refreshing reports whether a shared refresh is in flight.
func (g *RequestGate) Refreshing() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.refreshing
}

// QueueLen returns the number of requests waiting on the in-flight refresh.
func (g *RequestGate) QueueLen() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.queue)
}

// RoundTrip implements http.RoundTripper.
func (g *RequestGate) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := g.send(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	if IsRetry(req.Context()) {
		g.reject(req, RejectAlreadyRetried)
		return resp, nil
	}
	if !replayable(req) {
		g.reject(req, RejectNotReplayable)
		return resp, nil
	}

	return g.recoverUnauthorized(req, resp)
}

func (g *RequestGate) send(req *http.Request) (*http.Response, error) {
	out, err := g.decorate(req)
	if err != nil {
		return nil, err
	}

	notifyDispatch(out.Context())
	resp, err := g.next.RoundTrip(out)
	if err != nil {
		return nil, err
	}
	if g.creds != nil {
		g.creds.Capture(out.URL, resp)
	}
	return resp, nil
}

// recoverUnauthorized either joins the in-flight refresh or starts one.
func (g *RequestGate) recoverUnauthorized(req *http.Request, unauthorized *http.Response) (*http.Response, error) {
	g.mu.Lock()
	if g.refreshing {
		w := waiter{req: req, resume: make(chan struct{}), dispatched: make(chan struct{})}
		g.queue = append(g.queue, w)
		depth := len(g.queue)
		g.mu.Unlock()

		drainBody(unauthorized)
		if g.hooks.OnQueued != nil {
			g.hooks.OnQueued(req, depth)
		}
		g.debug("Request queued behind session refresh",
			zap.String("method", req.Method),
			zap.String("url", req.URL.String()),
			zap.Int("depth", depth))

		select {
		case <-w.resume:
		case <-req.Context().Done():
			return nil, req.Context().Err()
		}
		ack := sync.OnceFunc(func() { close(w.dispatched) })
		defer ack()
		return g.RoundTrip(withDispatch(markRetry(req), ack))
	}
	g.refreshing = true
	g.mu.Unlock()

	retry := markRetry(req)
	result, err := g.refreshAndRelease(req.Context())

	switch {
	case err != nil:
		drainBody(unauthorized)
		return nil, &RefreshError{Err: err}
	case !result.Success:
		g.reject(req, RejectRefreshFailed)
		return unauthorized, nil
	default:
		drainBody(unauthorized)
		return g.RoundTrip(retry)
	}
}

// refreshAndRelease runs the shared refresh. The deferred release resets the flag and
// drains the queue whatever the outcome, including a panic in the refresher.
func (g *RequestGate) refreshAndRelease(ctx context.Context) (result RefreshResult, err error) {
	defer g.release()

	ctx = context.WithoutCancel(ctx)
	if g.refreshTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.refreshTimeout)
		defer cancel()
	}

	g.debug("Refreshing session")
	started := time.Now()
	result, err = g.refresher.Refresh(ctx)
	elapsed := time.Since(started)

	outcome := OutcomeRefreshed
	switch {
	case err != nil:
		outcome = OutcomeError
		g.warn("Session refresh errored", zap.Error(err), zap.Duration("elapsed", elapsed))
	case !result.Success:
		outcome = OutcomeRejected
		g.warn("Session refresh rejected", zap.String("message", result.Message), zap.Duration("elapsed", elapsed))
	default:
		g.debug("Session refreshed", zap.Duration("elapsed", elapsed))
	}
	if g.hooks.OnRefresh != nil {
		g.hooks.OnRefresh(outcome, elapsed)
	}

	return result, err
}

// release clears the refresh state and resumes queued requests front to back. Each one is
// handed to the next transport before the one behind it is woken.
func (g *RequestGate) release() {
	g.mu.Lock()
	queue := g.queue
	g.queue = nil
	g.refreshing = false
	g.mu.Unlock()

	if len(queue) > 0 {
		g.debug("Resuming queued requests", zap.Int("count", len(queue)))
	}
	for i, w := range queue {
		if g.hooks.OnResume != nil {
			g.hooks.OnResume(w.req, i+1)
		}
		close(w.resume)
		select {
		case <-w.dispatched:
		case <-w.req.Context().Done():
		}
	}
}

func (g *RequestGate) reject(req *http.Request, reason string) {
	if g.hooks.OnReject != nil {
		g.hooks.OnReject(req, reason)
	}
	g.debug("Authorization failure returned to caller",
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
		zap.String("reason", reason))
}

func (g *RequestGate) debug(msg string, fields ...zap.Field) {
	if g.logger != nil {
		g.logger.Debug(msg, fields...)
	}
}

func (g *RequestGate) warn(msg string, fields ...zap.Field) {
	if g.logger != nil {
		g.logger.Warn(msg, fields...)
	}
}
