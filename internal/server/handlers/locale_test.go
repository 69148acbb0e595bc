package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panelops/panelctl/internal/locale"
)

func newLocaleHandler(t *testing.T, persist func(context.Context, string) error) (*LocaleHandler, *locale.Source) {
	t.Helper()
	src, err := locale.New("en", "en", "ru", "tr")
	require.NoError(t, err)
	return &LocaleHandler{Source: src, Persist: persist}, src
}

func TestLocaleHandlerGet(t *testing.T) {
	h, _ := newLocaleHandler(t, nil)

	rec := httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest(http.MethodGet, "/locale", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp LocaleResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "en", resp.Locale)
	assert.Equal(t, []string{"en", "ru", "tr"}, resp.Supported)
}

func TestLocaleHandlerPut(t *testing.T) {
	t.Run("ChangesAndPersists", func(t *testing.T) {
		var saved string
		h, src := newLocaleHandler(t, func(_ context.Context, v string) error {
			saved = v
			return nil
		})

		rec := httptest.NewRecorder()
		h.Put(rec, httptest.NewRequest(http.MethodPut, "/locale", strings.NewReader(`{"locale":"ru_RU"}`)))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ru", src.Current())
		assert.Equal(t, "ru", saved)
	})

	t.Run("Unsupported", func(t *testing.T) {
		h, src := newLocaleHandler(t, nil)

		rec := httptest.NewRecorder()
		h.Put(rec, httptest.NewRequest(http.MethodPut, "/locale", strings.NewReader(`{"locale":"ja"}`)))

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "INVALID_INPUT")
		assert.Equal(t, "en", src.Current())
	})

	t.Run("MalformedBody", func(t *testing.T) {
		h, _ := newLocaleHandler(t, nil)

		rec := httptest.NewRecorder()
		h.Put(rec, httptest.NewRequest(http.MethodPut, "/locale", strings.NewReader(`locale=ru`)))

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("PersistFailure", func(t *testing.T) {
		h, src := newLocaleHandler(t, func(context.Context, string) error {
			return errors.New("disk full")
		})

		rec := httptest.NewRecorder()
		h.Put(rec, httptest.NewRequest(http.MethodPut, "/locale", strings.NewReader(`{"locale":"tr"}`)))

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "DATABASE_ERROR")
		assert.Equal(t, "tr", src.Current())
	})
}
