package api

import (
	"errors"
	"net/http"

	"github.com/docketbot/docket/internal/log"
	"github.com/docketbot/docket/internal/mode"
	"github.com/docketbot/docket/internal/prefs"
)

// maxPrefsBodyBytes limits preference bodies.
const maxPrefsBodyBytes = 4 << 10

// prefsHandler exposes per-user preferences. The registry validates that a
// configured default mode actually exists.
type prefsHandler struct {
	store    prefs.Store
	registry *mode.Registry
	logger   log.Logger
}

// get handles GET /api/v1/preferences — the caller's preferences, falling
// back to defaults when nothing is stored.
func (h *prefsHandler) get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	p, err := h.store.Get(r.Context(), userID)
	if err != nil {
		h.logger.Error("getting preferences", "error", err, "user", userID)
		WriteError(w, http.StatusInternalServerError, "get_failed", "failed to get preferences", h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, p, h.logger)
}

// put handles PUT /api/v1/preferences — replaces the caller's preferences.
func (h *prefsHandler) put(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	var p prefs.Preferences
	if err := decodeBody(w, r, maxPrefsBodyBytes, &p); err != nil {
		writeBodyError(w, err, h.logger)
		return
	}

	if p.DefaultModeID != "" {
		if _, err := h.registry.Get(p.DefaultModeID); err != nil {
			if errors.Is(err, mode.ErrNotFound) {
				WriteError(w, http.StatusBadRequest, "unknown_mode", "default mode does not exist", h.logger)
				return
			}
			writeDomainError(w, err, "validating default mode", h.logger)
			return
		}
	}

	if err := h.store.Put(r.Context(), userID, p); err != nil {
		h.logger.Error("saving preferences", "error", err, "user", userID)
		WriteError(w, http.StatusInternalServerError, "put_failed", "failed to save preferences", h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, p, h.logger)
}
