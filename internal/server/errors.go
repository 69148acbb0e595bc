package server

import (
	"net/http"

	apperrors "github.com/panelops/panelctl/internal/errors"
)

// HandleError writes err as a panel-shaped JSON error with the request's correlation ID.
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	apperrors.RespondWithError(w, r, err)
}
