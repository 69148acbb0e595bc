package middleware

import (
	"net/http"
	"strconv"

	"github.com/fulmenhq/gofulmen/errors"
	"golang.org/x/time/rate"

	"github.com/panelops/panelctl/internal/metrics"
)

// RateLimit throttles requests with a shared token bucket. A limit of zero disables it.
func RateLimit(limit float64, burst int) func(http.Handler) http.Handler {
	if limit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(limit), burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reservation := limiter.Reserve()
			if !reservation.OK() {
				reject(w, r, 1)
				return
			}
			if delay := reservation.Delay(); delay > 0 {
				reservation.Cancel()
				reject(w, r, int(delay.Seconds())+1)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func reject(w http.ResponseWriter, r *http.Request, retryAfter int) {
	envelope := errors.NewErrorEnvelope("RATE_LIMITED", "too many requests").
		WithCorrelationID(GetRequestID(r.Context()))
	metrics.RecordError(envelope.Code, http.StatusTooManyRequests)

	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	writeErrorResponse(w, envelope, http.StatusTooManyRequests)
}
