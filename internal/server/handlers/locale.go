package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	apperrors "github.com/panelops/panelctl/internal/errors"
	"github.com/panelops/panelctl/internal/locale"
)

// LocaleSetter is the writable side of the active locale.
type LocaleSetter interface {
	Current() string
	Supported() []string
	Set(raw string) (string, error)
}

// LocaleHandler reads and changes the locale sent to the panel API. Changes reach the
// gate through its locale subscription, so in-flight requests are not affected.
type LocaleHandler struct {
	Source LocaleSetter
	// Persist stores the chosen locale. Optional.
	Persist func(ctx context.Context, locale string) error
}

// LocaleResponse is returned by both locale endpoints.
type LocaleResponse struct {
	Locale    string   `json:"locale"`
	Supported []string `json:"supported,omitempty"`
}

type localeRequest struct {
	Locale string `json:"locale"`
}

// Get handles GET /locale.
func (h *LocaleHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.respond(w, h.Source.Current())
}

// Put handles PUT /locale with a {"locale": "..."} body.
func (h *LocaleHandler) Put(w http.ResponseWriter, r *http.Request) {
	var body localeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&body); err != nil {
		apperrors.RespondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, "request body must be a JSON object with a locale"))
		return
	}

	value, err := h.Source.Set(body.Locale)
	if err != nil {
		message := "invalid locale"
		if stderrors.Is(err, locale.ErrUnsupported) {
			message = "unsupported locale"
		}
		apperrors.RespondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, message))
		return
	}

	if h.Persist != nil {
		if err := h.Persist(r.Context(), value); err != nil {
			apperrors.RespondWithError(w, r, apperrors.WrapDatabaseError(r.Context(), err, "locale changed but could not be saved"))
			return
		}
	}
	h.respond(w, value)
}

func (h *LocaleHandler) respond(w http.ResponseWriter, value string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(LocaleResponse{Locale: value, Supported: h.Source.Supported()})
}
