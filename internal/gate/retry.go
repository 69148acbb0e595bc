package gate

import (
	"context"
	"io"
	"net/http"
)

type retryContextKey struct{}

type dispatchContextKey struct{}

// WithRetry marks the context so the request carrying it is treated as an already-retried
// attempt: a second authorization failure is returned to the caller instead of refreshing.
func WithRetry(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, retryContextKey{}, true)
}

// IsRetry reports whether the context carries the retry marker.
func IsRetry(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	marked, _ := ctx.Value(retryContextKey{}).(bool)
	return marked
}

func markRetry(req *http.Request) *http.Request {
	if IsRetry(req.Context()) {
		return req
	}
	return req.WithContext(WithRetry(req.Context()))
}

// withDispatch attaches fn to be called once the request is handed to the next transport.
func withDispatch(req *http.Request, fn func()) *http.Request {
	return req.WithContext(context.WithValue(req.Context(), dispatchContextKey{}, fn))
}

func notifyDispatch(ctx context.Context) {
	if fn, ok := ctx.Value(dispatchContextKey{}).(func()); ok {
		fn()
	}
}

// replayable reports whether the request can be sent again.
func replayable(req *http.Request) bool {
	if req.Body == nil || req.Body == http.NoBody {
		return true
	}
	return req.GetBody != nil
}

// drainBody discards a bounded amount of the body so the connection can be reused.
func drainBody(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	_ = resp.Body.Close()
}
