package api

import (
	"net/http"

	"github.com/docketbot/docket/internal/log"
	"github.com/docketbot/docket/internal/search"
)

// maxSearchQueryLength is the maximum allowed search query length in bytes.
const maxSearchQueryLength = 1000

// searchHandler gives clients direct access to the search gateway, outside
// of any turn.
type searchHandler struct {
	gateway *search.Gateway
	logger  log.Logger
}

// search handles GET /api/v1/search?q=...&limit=....
// The gateway owns fallback behavior and limit clamping; backend failures
// surface in the result body, not as HTTP errors.
func (h *searchHandler) search(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r, h.logger); !ok {
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		WriteError(w, http.StatusBadRequest, "missing_query", "query parameter 'q' is required", h.logger)
		return
	}
	if len(query) > maxSearchQueryLength {
		WriteError(w, http.StatusBadRequest, "query_too_long", "query must be 1000 characters or fewer", h.logger)
		return
	}

	limit := parseIntParam(r, "limit", 0)
	result := h.gateway.Structured(r.Context(), query, limit)

	WriteJSON(w, http.StatusOK, result, h.logger)
}
