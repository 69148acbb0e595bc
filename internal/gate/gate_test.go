package gate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripFunc func(req *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newResponse(req *http.Request, status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     fmt.Sprintf("%d %s", status, http.StatusText(status)),
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    req,
	}
}

type tokenCredentials struct {
	mu       sync.Mutex
	token    string
	applyErr error
	captured int
}

func (c *tokenCredentials) set(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *tokenCredentials) Apply(req *http.Request) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.applyErr != nil {
		return c.applyErr
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	return nil
}

func (c *tokenCredentials) Capture(_ *url.URL, _ *http.Response) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.captured++
}

// authTransport answers 200 only for the "fresh" token and records every attempt.
type authTransport struct {
	mu       sync.Mutex
	attempts []string
	bodies   []string
	// accepted lists the paths that arrived with the fresh token, in arrival order.
	accepted []string
}

func (a *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body string
	if req.Body != nil {
		data, _ := io.ReadAll(req.Body)
		body = string(data)
	}

	fresh := req.Header.Get("Authorization") == "Bearer fresh"

	a.mu.Lock()
	a.attempts = append(a.attempts, req.URL.Path)
	a.bodies = append(a.bodies, body)
	if fresh {
		a.accepted = append(a.accepted, req.URL.Path)
	}
	a.mu.Unlock()

	if !fresh {
		return newResponse(req, http.StatusUnauthorized, `{"success":false,"message":"original"}`), nil
	}
	return newResponse(req, http.StatusOK, `{"success":true,"data":"`+req.URL.Path+`"}`), nil
}

// replayed returns the accepted paths other than skip, in arrival order.
func (a *authTransport) replayed(skip string) []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []string
	for _, path := range a.accepted {
		if path != skip {
			out = append(out, path)
		}
	}
	return out
}

func (a *authTransport) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.attempts)
}

type fakeLocale struct {
	mu          sync.Mutex
	current     string
	subscribers []func(string)
	subscribes  int
	cancels     int
}

func (l *fakeLocale) Current() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

func (l *fakeLocale) Subscribe(fn func(string)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subscribes++
	l.subscribers = append(l.subscribers, fn)
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.cancels++
	}
}

func (l *fakeLocale) set(locale string) {
	l.mu.Lock()
	l.current = locale
	subs := append([]func(string){}, l.subscribers...)
	l.mu.Unlock()
	for _, fn := range subs {
		fn(locale)
	}
}

type outcome struct {
	path string
	resp *http.Response
	err  error
}

func newGate(t *testing.T, next http.RoundTripper, refresher Refresher, creds Credentials, hooks Hooks) *RequestGate {
	t.Helper()
	g, err := New(Options{
		BaseURL:     "https://panel.example.test/api/v1",
		Next:        next,
		Refresher:   refresher,
		Credentials: creds,
		Hooks:       hooks,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })
	return g
}

func get(t *testing.T, ctx context.Context, path string) *http.Request {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	require.NoError(t, err)
	return req
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close() // nolint:errcheck // test cleanup
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

func TestNewRequiresRefresher(t *testing.T) {
	_, err := New(Options{BaseURL: "https://panel.example.test"})
	require.Error(t, err)
}

func TestNewRejectsRelativeBaseURL(t *testing.T) {
	_, err := New(Options{BaseURL: "/api", Refresher: RefresherFunc(func(context.Context) (RefreshResult, error) {
		return RefreshResult{Success: true}, nil
	})})
	require.Error(t, err)
	require.Contains(t, err.Error(), "absolute")
}

func TestDecorate(t *testing.T) {
	creds := &tokenCredentials{token: "fresh"}
	locale := &fakeLocale{current: "ru"}

	var seen *http.Request
	next := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		seen = req
		return newResponse(req, http.StatusOK, `{}`), nil
	})

	g, err := New(Options{
		BaseURL:     "https://panel.example.test/api/v1/",
		Next:        next,
		Refresher:   RefresherFunc(func(context.Context) (RefreshResult, error) { return RefreshResult{}, nil }),
		Credentials: creds,
		Locale:      locale,
	})
	require.NoError(t, err)

	t.Run("JoinsBaseAndSetsHeaders", func(t *testing.T) {
		resp, err := g.RoundTrip(get(t, context.Background(), "/services?page=2"))
		require.NoError(t, err)
		_ = readBody(t, resp)

		require.Equal(t, "https://panel.example.test/api/v1/services?page=2", seen.URL.String())
		assert.Equal(t, "application/json", seen.Header.Get("Accept"))
		assert.Equal(t, "ru", seen.Header.Get("Accept-Language"))
		assert.Equal(t, "Bearer fresh", seen.Header.Get("Authorization"))
		assert.NotEmpty(t, seen.Header.Get(RequestIDHeader))
		assert.Equal(t, 1, creds.captured)
	})

	t.Run("AbsoluteURLUntouched", func(t *testing.T) {
		resp, err := g.RoundTrip(get(t, context.Background(), "https://cdn.example.test/file.json"))
		require.NoError(t, err)
		_ = readBody(t, resp)
		require.Equal(t, "cdn.example.test", seen.URL.Host)
	})

	t.Run("LocaleFollowsSingleSubscription", func(t *testing.T) {
		locale.set("en-US")
		for i := 0; i < 3; i++ {
			resp, err := g.RoundTrip(get(t, context.Background(), "/tickets"))
			require.NoError(t, err)
			_ = readBody(t, resp)
			require.Equal(t, "en-US", seen.Header.Get("Accept-Language"))
		}
		require.Equal(t, 1, locale.subscribes)
	})

	t.Run("CloseUnsubscribes", func(t *testing.T) {
		require.NoError(t, g.Close())
		require.Equal(t, 1, locale.cancels)
	})
}

func TestDecorateFailureIsNotRetried(t *testing.T) {
	creds := &tokenCredentials{applyErr: errors.New("keyring locked")}
	transport := &authTransport{}
	var refreshes atomic.Int32

	g := newGate(t, transport, RefresherFunc(func(context.Context) (RefreshResult, error) {
		refreshes.Add(1)
		return RefreshResult{Success: true}, nil
	}), creds, Hooks{})

	_, err := g.RoundTrip(get(t, context.Background(), "/users"))
	require.Error(t, err)

	var decorateErr *DecorateError
	require.ErrorAs(t, err, &decorateErr)
	require.Contains(t, err.Error(), "keyring locked")
	require.Zero(t, transport.count())
	require.Zero(t, refreshes.Load())
}

func TestDecorateWithoutBaseURLRejectsRelative(t *testing.T) {
	g, err := New(Options{
		Next:      &authTransport{},
		Refresher: RefresherFunc(func(context.Context) (RefreshResult, error) { return RefreshResult{}, nil }),
	})
	require.NoError(t, err)

	_, err = g.RoundTrip(get(t, context.Background(), "/users"))
	var decorateErr *DecorateError
	require.ErrorAs(t, err, &decorateErr)
}

func TestPassThroughNonAuthorizationFailures(t *testing.T) {
	for _, status := range []int{http.StatusOK, http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusInternalServerError} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			var refreshes atomic.Int32
			next := roundTripFunc(func(req *http.Request) (*http.Response, error) {
				return newResponse(req, status, "as-is"), nil
			})
			g := newGate(t, next, RefresherFunc(func(context.Context) (RefreshResult, error) {
				refreshes.Add(1)
				return RefreshResult{Success: true}, nil
			}), &tokenCredentials{token: "stale"}, Hooks{})

			resp, err := g.RoundTrip(get(t, context.Background(), "/providers"))
			require.NoError(t, err)
			require.Equal(t, status, resp.StatusCode)
			require.Equal(t, "as-is", readBody(t, resp))
			require.Zero(t, refreshes.Load())
		})
	}
}

func TestTransportErrorPassesThrough(t *testing.T) {
	boom := errors.New("connection reset")
	next := roundTripFunc(func(*http.Request) (*http.Response, error) { return nil, boom })
	g := newGate(t, next, RefresherFunc(func(context.Context) (RefreshResult, error) {
		t.Fatal("refresh must not run on transport errors")
		return RefreshResult{}, nil
	}), nil, Hooks{})

	_, err := g.RoundTrip(get(t, context.Background(), "/providers"))
	require.ErrorIs(t, err, boom)
}

func TestRefreshThenResubmit(t *testing.T) {
	creds := &tokenCredentials{token: "stale"}
	transport := &authTransport{}
	var refreshes atomic.Int32

	g := newGate(t, transport, RefresherFunc(func(context.Context) (RefreshResult, error) {
		refreshes.Add(1)
		creds.set("fresh")
		return RefreshResult{Success: true}, nil
	}), creds, Hooks{})

	req, err := http.NewRequest(http.MethodPost, "/payments/top-up", bytes.NewReader([]byte(`{"amount":10}`)))
	require.NoError(t, err)

	resp, err := g.RoundTrip(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, readBody(t, resp), "/api/v1/payments/top-up")

	require.Equal(t, int32(1), refreshes.Load())
	require.Equal(t, 2, transport.count())
	require.Equal(t, []string{`{"amount":10}`, `{"amount":10}`}, transport.bodies)
	require.False(t, g.Refreshing())
	require.Zero(t, g.QueueLen())
}

// startBlockedRefresh sends the initiating request and waits until the refresher is
// running, so later failures must queue.
func startBlockedRefresh(t *testing.T, g *RequestGate, started <-chan struct{}, results chan<- outcome) {
	t.Helper()
	go func() {
		resp, err := g.RoundTrip(get(t, context.Background(), "/initiator"))
		results <- outcome{path: "/initiator", resp: resp, err: err}
	}()
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("refresh did not start")
	}
}

func enqueue(t *testing.T, g *RequestGate, queued <-chan int, results chan<- outcome, paths ...string) {
	t.Helper()
	for i, path := range paths {
		go func(path string) {
			resp, err := g.RoundTrip(get(t, context.Background(), path))
			results <- outcome{path: path, resp: resp, err: err}
		}(path)
		select {
		case depth := <-queued:
			require.Equal(t, i+1, depth)
		case <-time.After(5 * time.Second):
			t.Fatalf("request %s was not queued", path)
		}
	}
}

func collect(t *testing.T, results <-chan outcome, n int) map[string]outcome {
	t.Helper()
	out := make(map[string]outcome, n)
	for i := 0; i < n; i++ {
		select {
		case o := <-results:
			out[o.path] = o
		case <-time.After(5 * time.Second):
			t.Fatalf("only %d of %d requests settled", i, n)
		}
	}
	return out
}

func TestConcurrentFailuresShareOneRefresh(t *testing.T) {
	creds := &tokenCredentials{token: "stale"}
	transport := &authTransport{}

	var refreshes atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	queued := make(chan int, 16)
	var resumedMu sync.Mutex
	var resumed []string

	g := newGate(t, transport, RefresherFunc(func(context.Context) (RefreshResult, error) {
		refreshes.Add(1)
		once.Do(func() { close(started) })
		<-release
		creds.set("fresh")
		return RefreshResult{Success: true}, nil
	}), creds, Hooks{
		OnQueued: func(_ *http.Request, depth int) { queued <- depth },
		OnResume: func(req *http.Request, position int) {
			resumedMu.Lock()
			defer resumedMu.Unlock()
			resumed = append(resumed, fmt.Sprintf("%d:%s", position, req.URL.Path))
		},
	})

	results := make(chan outcome, 16)
	startBlockedRefresh(t, g, started, results)

	queuedPaths := []string{"/q1", "/q2", "/q3", "/q4", "/q5"}
	enqueue(t, g, queued, results, queuedPaths...)
	require.True(t, g.Refreshing())
	require.Equal(t, len(queuedPaths), g.QueueLen())

	close(release)
	settled := collect(t, results, len(queuedPaths)+1)

	for path, o := range settled {
		require.NoError(t, o.err, path)
		require.Equal(t, http.StatusOK, o.resp.StatusCode, path)
		require.Contains(t, readBody(t, o.resp), path)
	}

	require.Equal(t, int32(1), refreshes.Load())
	require.Equal(t, []string{"1:/q1", "2:/q2", "3:/q3", "4:/q4", "5:/q5"}, resumed)
	assert.Equal(t, queuedPaths, transport.replayed("/initiator"))
	require.False(t, g.Refreshing())
	require.Zero(t, g.QueueLen())
}

func TestQueuedRequestsReachTransportInArrivalOrder(t *testing.T) {
	const waiting = 48

	creds := &tokenCredentials{token: "stale"}
	transport := &authTransport{}
	started := make(chan struct{})
	release := make(chan struct{})
	queued := make(chan int, waiting)

	g := newGate(t, transport, RefresherFunc(func(context.Context) (RefreshResult, error) {
		close(started)
		<-release
		creds.set("fresh")
		return RefreshResult{Success: true}, nil
	}), creds, Hooks{
		OnQueued: func(_ *http.Request, depth int) { queued <- depth },
	})

	results := make(chan outcome, waiting+1)
	startBlockedRefresh(t, g, started, results)

	paths := make([]string, waiting)
	for i := range paths {
		paths[i] = fmt.Sprintf("/q%02d", i)
	}
	enqueue(t, g, queued, results, paths...)

	close(release)
	settled := collect(t, results, waiting+1)
	for path, o := range settled {
		require.NoError(t, o.err, path)
		require.Equal(t, http.StatusOK, o.resp.StatusCode, path)
	}

	require.Equal(t, paths, transport.replayed("/initiator"))
}

func TestCancelledWaiterDoesNotStallDrain(t *testing.T) {
	creds := &tokenCredentials{token: "stale"}
	transport := &authTransport{}
	started := make(chan struct{})
	release := make(chan struct{})
	queued := make(chan int, 2)

	g := newGate(t, transport, RefresherFunc(func(context.Context) (RefreshResult, error) {
		close(started)
		<-release
		creds.set("fresh")
		return RefreshResult{Success: true}, nil
	}), creds, Hooks{
		OnQueued: func(_ *http.Request, depth int) { queued <- depth },
	})

	results := make(chan outcome, 3)
	startBlockedRefresh(t, g, started, results)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		resp, err := g.RoundTrip(get(t, ctx, "/gone"))
		results <- outcome{path: "/gone", resp: resp, err: err}
	}()
	require.Equal(t, 1, <-queued)
	go func() {
		resp, err := g.RoundTrip(get(t, context.Background(), "/kept"))
		results <- outcome{path: "/kept", resp: resp, err: err}
	}()
	require.Equal(t, 2, <-queued)

	cancel()
	gone := <-results
	require.Equal(t, "/gone", gone.path)
	require.ErrorIs(t, gone.err, context.Canceled)
	require.Equal(t, 2, g.QueueLen())

	close(release)
	settled := collect(t, results, 2)
	require.NoError(t, settled["/kept"].err)
	assert.Equal(t, http.StatusOK, settled["/kept"].resp.StatusCode)
	require.NoError(t, settled["/initiator"].err)
}

func TestExplicitRefreshFailureRejectsEveryone(t *testing.T) {
	creds := &tokenCredentials{token: "stale"}
	transport := &authTransport{}

	var refreshes atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	queued := make(chan int, 4)
	var rejected []string
	var rejectedMu sync.Mutex

	g := newGate(t, transport, RefresherFunc(func(context.Context) (RefreshResult, error) {
		refreshes.Add(1)
		close(started)
		<-release
		return RefreshResult{Success: false, Message: "refresh token expired"}, nil
	}), creds, Hooks{
		OnQueued: func(_ *http.Request, depth int) { queued <- depth },
		OnReject: func(req *http.Request, reason string) {
			rejectedMu.Lock()
			defer rejectedMu.Unlock()
			rejected = append(rejected, req.URL.Path+"="+reason)
		},
	})

	results := make(chan outcome, 4)
	startBlockedRefresh(t, g, started, results)
	enqueue(t, g, queued, results, "/q1", "/q2")
	close(release)

	settled := collect(t, results, 3)
	for path, o := range settled {
		require.NoError(t, o.err, path)
		require.Equal(t, http.StatusUnauthorized, o.resp.StatusCode, path)
		require.Contains(t, readBody(t, o.resp), "original", path)
	}

	require.Equal(t, int32(1), refreshes.Load())
	require.False(t, g.Refreshing())
	require.Zero(t, g.QueueLen())

	rejectedMu.Lock()
	defer rejectedMu.Unlock()
	assert.Contains(t, rejected, "/initiator="+RejectRefreshFailed)
	assert.Contains(t, rejected, "/q1="+RejectAlreadyRetried)
	assert.Contains(t, rejected, "/q2="+RejectAlreadyRetried)
}

func TestRetriedRequestIsNeverQueued(t *testing.T) {
	creds := &tokenCredentials{token: "stale"}
	transport := &authTransport{}

	var refreshes atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})

	g := newGate(t, transport, RefresherFunc(func(context.Context) (RefreshResult, error) {
		refreshes.Add(1)
		close(started)
		<-release
		return RefreshResult{Success: true}, nil
	}), creds, Hooks{})

	t.Run("NoRefreshInFlight", func(t *testing.T) {
		resp, err := g.RoundTrip(get(t, WithRetry(context.Background()), "/z"))
		require.NoError(t, err)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.Contains(t, readBody(t, resp), "original")
		require.Zero(t, refreshes.Load())
	})

	t.Run("RefreshInFlight", func(t *testing.T) {
		results := make(chan outcome, 1)
		startBlockedRefresh(t, g, started, results)

		resp, err := g.RoundTrip(get(t, WithRetry(context.Background()), "/z"))
		require.NoError(t, err)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		_ = readBody(t, resp)
		require.Zero(t, g.QueueLen())

		close(release)
		settled := collect(t, results, 1)
		require.NoError(t, settled["/initiator"].err)
		_ = readBody(t, settled["/initiator"].resp)
		require.Equal(t, int32(1), refreshes.Load())
	})
}

func TestRefreshErrorReachesInitiator(t *testing.T) {
	creds := &tokenCredentials{token: "stale"}
	transport := &authTransport{}
	boom := errors.New("auth service unreachable")

	started := make(chan struct{})
	release := make(chan struct{})
	queued := make(chan int, 4)

	g := newGate(t, transport, RefresherFunc(func(context.Context) (RefreshResult, error) {
		close(started)
		<-release
		return RefreshResult{}, boom
	}), creds, Hooks{OnQueued: func(_ *http.Request, depth int) { queued <- depth }})

	results := make(chan outcome, 4)
	startBlockedRefresh(t, g, started, results)
	enqueue(t, g, queued, results, "/q1", "/q2")
	close(release)

	settled := collect(t, results, 3)

	initiator := settled["/initiator"]
	require.Nil(t, initiator.resp)
	var refreshErr *RefreshError
	require.ErrorAs(t, initiator.err, &refreshErr)
	require.ErrorIs(t, initiator.err, boom)

	for _, path := range []string{"/q1", "/q2"} {
		o := settled[path]
		require.NoError(t, o.err, path)
		require.Equal(t, http.StatusUnauthorized, o.resp.StatusCode, path)
		_ = readBody(t, o.resp)
	}

	require.False(t, g.Refreshing())
	require.Zero(t, g.QueueLen())
}

func TestRefreshPanicStillReleasesState(t *testing.T) {
	g := newGate(t, &authTransport{}, RefresherFunc(func(context.Context) (RefreshResult, error) {
		panic("refresher bug")
	}), &tokenCredentials{token: "stale"}, Hooks{})

	require.Panics(t, func() {
		_, _ = g.RoundTrip(get(t, context.Background(), "/users"))
	})
	require.False(t, g.Refreshing())
	require.Zero(t, g.QueueLen())
}

func TestRefreshTimeout(t *testing.T) {
	g, err := New(Options{
		BaseURL: "https://panel.example.test",
		Next:    &authTransport{},
		Refresher: RefresherFunc(func(ctx context.Context) (RefreshResult, error) {
			<-ctx.Done()
			return RefreshResult{}, ctx.Err()
		}),
		Credentials:    &tokenCredentials{token: "stale"},
		RefreshTimeout: 20 * time.Millisecond,
	})
	require.NoError(t, err)

	_, err = g.RoundTrip(get(t, context.Background(), "/users"))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.False(t, g.Refreshing())
}

func TestRefreshSurvivesInitiatorCancellation(t *testing.T) {
	creds := &tokenCredentials{token: "stale"}
	refreshCtx := make(chan context.Context, 1)

	g := newGate(t, &authTransport{}, RefresherFunc(func(ctx context.Context) (RefreshResult, error) {
		refreshCtx <- ctx
		return RefreshResult{Success: true}, nil
	}), creds, Hooks{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _ = g.RoundTrip(get(t, ctx, "/users"))

	got := <-refreshCtx
	require.NoError(t, got.Err())
}

func TestQueuedCallerCancellation(t *testing.T) {
	creds := &tokenCredentials{token: "stale"}
	started := make(chan struct{})
	release := make(chan struct{})
	queued := make(chan int, 1)

	g := newGate(t, &authTransport{}, RefresherFunc(func(context.Context) (RefreshResult, error) {
		close(started)
		<-release
		creds.set("fresh")
		return RefreshResult{Success: true}, nil
	}), creds, Hooks{OnQueued: func(_ *http.Request, depth int) { queued <- depth }})

	results := make(chan outcome, 2)
	startBlockedRefresh(t, g, started, results)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		resp, err := g.RoundTrip(get(t, ctx, "/cancelled"))
		results <- outcome{path: "/cancelled", resp: resp, err: err}
	}()
	<-queued
	cancel()

	cancelled := collect(t, results, 1)["/cancelled"]
	require.ErrorIs(t, cancelled.err, context.Canceled)

	close(release)
	initiator := collect(t, results, 1)["/initiator"]
	require.NoError(t, initiator.err)
	require.Equal(t, http.StatusOK, initiator.resp.StatusCode)
	_ = readBody(t, initiator.resp)
	require.Zero(t, g.QueueLen())
}

func TestNonReplayableBodyIsNotRetried(t *testing.T) {
	var refreshes atomic.Int32
	g := newGate(t, &authTransport{}, RefresherFunc(func(context.Context) (RefreshResult, error) {
		refreshes.Add(1)
		return RefreshResult{Success: true}, nil
	}), &tokenCredentials{token: "stale"}, Hooks{})

	req, err := http.NewRequest(http.MethodPost, "/tickets/7/reply", io.NopCloser(strings.NewReader("hello")))
	require.NoError(t, err)
	req.GetBody = nil

	resp, err := g.RoundTrip(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = readBody(t, resp)
	require.Zero(t, refreshes.Load())
}

func TestSequentialRefreshes(t *testing.T) {
	creds := &tokenCredentials{token: "stale"}
	var refreshes atomic.Int32
	g := newGate(t, &authTransport{}, RefresherFunc(func(context.Context) (RefreshResult, error) {
		refreshes.Add(1)
		creds.set("fresh")
		return RefreshResult{Success: true}, nil
	}), creds, Hooks{})

	for i := 0; i < 3; i++ {
		creds.set("stale")
		resp, err := g.RoundTrip(get(t, context.Background(), "/users"))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		_ = readBody(t, resp)
	}
	require.Equal(t, int32(3), refreshes.Load())
}
