package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/docketbot/docket/internal/log"
	"github.com/docketbot/docket/internal/stream"
	"github.com/docketbot/docket/internal/turn"
)

// maxTurnBodyBytes limits turn request bodies.
const maxTurnBodyBytes = 1 << 20

// TurnRunner executes one turn against a sink. *turn.Runner satisfies it;
// tests substitute scripted runners.
type TurnRunner interface {
	Run(ctx context.Context, req turn.Request, sink stream.Sink) (*turn.Outcome, error)
}

// turnHandler streams turns over SSE.
type turnHandler struct {
	runner TurnRunner
	logger log.Logger
}

// turnRequest is the POST /api/v1/turns body. Empty conversation_id starts a
// new conversation; empty mode_id lets the runner pick the mode.
type turnRequest struct {
	ConversationID string `json:"conversation_id"`
	ModeID         string `json:"mode_id"`
	Input          string `json:"input"`
}

// run handles POST /api/v1/turns. The request body is validated before any
// SSE bytes go out, so malformed requests still get proper HTTP statuses.
// Once streaming starts, failures arrive as terminal error events.
func (h *turnHandler) run(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	var req turnRequest
	if err := decodeBody(w, r, maxTurnBodyBytes, &req); err != nil {
		writeBodyError(w, err, h.logger)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, http.StatusInternalServerError, "streaming_unsupported", "response writer does not support streaming", h.logger)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sink := stream.SinkFunc(func(_ context.Context, ev stream.Event) error {
		return writeEvent(w, flusher, ev)
	})

	outcome, err := h.runner.Run(r.Context(), turn.Request{
		UserID:         userID,
		ConversationID: req.ConversationID,
		ModeID:         req.ModeID,
		Input:          req.Input,
	}, sink)
	if err != nil {
		// The terminal error event already went out; nothing more to send.
		h.logger.Debug("turn stream failed", "error", err, "user", userID)
		return
	}

	h.logger.Debug("turn stream finished",
		"user", userID,
		"conversation", outcome.ConversationID,
		"steps", outcome.Steps,
		"mode", outcome.Mode,
	)
}

// writeEvent writes a single SSE event. The event name is the stream event
// type and the data line is the JSON-encoded event.
// SSE format: "event: <type>\ndata: <json>\n\n"
func writeEvent(w io.Writer, flusher http.Flusher, ev stream.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	flusher.Flush()
	return nil
}
