package api

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Error is a failed API call: a non-2xx status or an envelope with success=false.
type Error struct {
	StatusCode int
	Message    string
	// Fields holds per-field validation messages.
	Fields    map[string][]string
	RequestID string
}

func (e *Error) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if len(e.Fields) == 0 {
		return fmt.Sprintf("api error %d: %s", e.StatusCode, msg)
	}

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(e.Fields[k], ", "))
	}
	return fmt.Sprintf("api error %d: %s (%s)", e.StatusCode, msg, strings.Join(parts, "; "))
}

// IsStatus reports whether err is an *Error with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}
