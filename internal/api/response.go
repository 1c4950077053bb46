package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/docketbot/docket/internal/conversation"
	"github.com/docketbot/docket/internal/log"
	"github.com/docketbot/docket/internal/mode"
)

// errorEnvelope is the wire format for all error responses.
type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteJSON writes a JSON response with the given status code.
// Uses buffer-first strategy to ensure headers are only sent after successful
// encoding. This allows returning a proper 500 error if encoding fails.
func WriteJSON(w http.ResponseWriter, status int, data any, logger log.Logger) {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(data); err != nil {
		logger.Error("encoding JSON response", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		// Client disconnects are common and expected.
		logger.Debug("writing response body", "error", err)
	}
}

// WriteError writes an error envelope with the given status, code, and message.
func WriteError(w http.ResponseWriter, status int, code, message string, logger log.Logger) {
	WriteJSON(w, status, errorEnvelope{Error: errorBody{Code: code, Message: message}}, logger)
}

// writeDomainError maps domain sentinels to HTTP error responses. Anything
// unrecognized is a 500; the caller-supplied action names the failed
// operation in the log line.
func writeDomainError(w http.ResponseWriter, err error, action string, logger log.Logger) {
	switch {
	case errors.Is(err, mode.ErrNotFound), errors.Is(err, conversation.ErrNotFound):
		WriteError(w, http.StatusNotFound, "not_found", err.Error(), logger)
	case errors.Is(err, mode.ErrNameTaken):
		WriteError(w, http.StatusConflict, "name_taken", err.Error(), logger)
	case errors.Is(err, mode.ErrSystemOwned):
		WriteError(w, http.StatusForbidden, "system_owned", err.Error(), logger)
	case errors.Is(err, mode.ErrNotOwner):
		WriteError(w, http.StatusForbidden, "not_owner", err.Error(), logger)
	case errors.Is(err, mode.ErrEmptyName):
		WriteError(w, http.StatusBadRequest, "name_required", err.Error(), logger)
	case errors.Is(err, mode.ErrEmptyFormatting):
		WriteError(w, http.StatusBadRequest, "formatting_required", err.Error(), logger)
	case errors.Is(err, mode.ErrEmptyOwner):
		WriteError(w, http.StatusBadRequest, "owner_required", err.Error(), logger)
	case errors.Is(err, mode.ErrInvalidPattern):
		WriteError(w, http.StatusBadRequest, "invalid_pattern", err.Error(), logger)
	default:
		logger.Error(action, "error", err)
		WriteError(w, http.StatusInternalServerError, "internal_error", "internal server error", logger)
	}
}

// requireUserID pulls the caller identity set by userMiddleware. Writes a 403
// and returns false when it is absent, which only happens for handlers
// exercised outside the middleware stack.
func requireUserID(w http.ResponseWriter, r *http.Request, logger log.Logger) (string, bool) {
	userID, ok := userIDFromContext(r.Context())
	if !ok || userID == "" {
		WriteError(w, http.StatusForbidden, "user_required", "user identity required", logger)
		return "", false
	}
	return userID, true
}

// parseIntParam reads a non-negative integer query parameter, falling back to
// def when the parameter is absent or malformed.
func parseIntParam(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// decodeBody decodes a JSON request body capped at maxBytes. It distinguishes
// oversized bodies from malformed ones so handlers can return 413 vs 400.
func decodeBody(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}

// writeBodyError writes the error response for a failed decodeBody call.
func writeBodyError(w http.ResponseWriter, err error, logger log.Logger) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		WriteError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large", logger)
		return
	}
	WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body", logger)
}
