package api

import (
	"net/http"

	"github.com/docketbot/docket/internal/log"
	"github.com/docketbot/docket/internal/mode"
)

// maxModeBodyBytes limits mode create/update bodies.
const maxModeBodyBytes = 64 << 10

// modeHandler exposes the mode registry over HTTP.
type modeHandler struct {
	registry *mode.Registry
	logger   log.Logger
}

// list handles GET /api/v1/modes — all modes in position order.
func (h *modeHandler) list(w http.ResponseWriter, _ *http.Request) {
	modes := h.registry.List()
	WriteJSON(w, http.StatusOK, map[string]any{
		"items": modes,
		"total": len(modes),
	}, h.logger)
}

// create handles POST /api/v1/modes — creates a custom mode from a draft,
// owned by the calling user.
func (h *modeHandler) create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	var draft mode.Draft
	if err := decodeBody(w, r, maxModeBodyBytes, &draft); err != nil {
		writeBodyError(w, err, h.logger)
		return
	}

	created, err := h.registry.Create(r.Context(), userID, draft)
	if err != nil {
		writeDomainError(w, err, "creating mode", h.logger)
		return
	}

	WriteJSON(w, http.StatusCreated, created, h.logger)
}

// get handles GET /api/v1/modes/{id}.
func (h *modeHandler) get(w http.ResponseWriter, r *http.Request) {
	m, err := h.registry.Get(r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err, "getting mode", h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, m, h.logger)
}

// update handles PUT /api/v1/modes/{id} — replaces a custom mode's draft
// fields. System modes and other users' modes reject updates.
func (h *modeHandler) update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	var draft mode.Draft
	if err := decodeBody(w, r, maxModeBodyBytes, &draft); err != nil {
		writeBodyError(w, err, h.logger)
		return
	}

	updated, err := h.registry.Update(r.Context(), r.PathValue("id"), userID, draft)
	if err != nil {
		writeDomainError(w, err, "updating mode", h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, updated, h.logger)
}

// delete handles DELETE /api/v1/modes/{id}. System modes and other users'
// modes reject deletion.
func (h *modeHandler) delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.registry.Delete(r.Context(), r.PathValue("id"), userID); err != nil {
		writeDomainError(w, err, "deleting mode", h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"}, h.logger)
}

// clone handles POST /api/v1/modes/{id}/clone — copies any mode, system
// ones included, into a new custom mode owned by the calling user.
func (h *modeHandler) clone(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	cloned, err := h.registry.CloneMode(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		writeDomainError(w, err, "cloning mode", h.logger)
		return
	}
	WriteJSON(w, http.StatusCreated, cloned, h.logger)
}
