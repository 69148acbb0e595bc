package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestIDKeepsValidCallerID(t *testing.T) {
	var seenCtx, seenHeader string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenCtx = GetRequestID(r.Context())
		seenHeader = r.Header.Get(RequestIDHeader)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	req.Header.Set(RequestIDHeader, "ops-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "ops-42", seenCtx)
	assert.Equal(t, "ops-42", seenHeader)
	assert.Equal(t, "ops-42", rec.Header().Get(RequestIDHeader))
}

func TestRequestIDReplacesUnsafeIDs(t *testing.T) {
	for name, id := range map[string]string{
		"missing":  "",
		"spaces":   "two words",
		"too long": strings.Repeat("a", maxRequestIDLen+1),
		"control":  "id\x07",
	} {
		t.Run(name, func(t *testing.T) {
			var seen string
			h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = r.Header.Get(RequestIDHeader)
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if id != "" {
				req.Header[RequestIDHeader] = []string{id}
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			_, err := uuid.Parse(seen)
			require.NoError(t, err)
			assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
		})
	}
}
