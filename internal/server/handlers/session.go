package handlers

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/panelops/panelctl/internal/errors"
)

// SessionHandler handles GET /session. Tokens are never included.
func SessionHandler(s SessionStater) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s == nil {
			apperrors.RespondWithError(w, r, apperrors.NewServiceUnavailableError("session manager not initialized"))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(s.State())
	}
}
