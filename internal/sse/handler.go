package sse

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/tallyapp/tally-server/internal/http/response"
)

// TokenVerifier authenticates stream requests. Implemented by the auth
// service; declared here to avoid a dependency cycle.
type TokenVerifier interface {
	VerifyAccessToken(ctx context.Context, token string) (userID string, err error)
}

// Handler serves the event stream endpoint.
type Handler struct {
	hub      *Hub
	verifier TokenVerifier
	logger   *slog.Logger
}

// NewHandler creates an SSE handler backed by the given hub.
func NewHandler(hub *Hub, verifier TokenVerifier, logger *slog.Logger) *Handler {
	return &Handler{
		hub:      hub,
		verifier: verifier,
		logger:   logger,
	}
}

// ServeHTTP streams room events. Auth uses a `token` query parameter
// because EventSource cannot set headers. An optional `room` parameter
// narrows the stream to one room.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		response.Unauthorized(w, "missing token", h.logger)
		return
	}
	if _, err := h.verifier.VerifyAccessToken(r.Context(), token); err != nil {
		response.Unauthorized(w, "invalid token", h.logger)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		response.InternalError(w, "streaming unsupported", h.logger)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events, unsubscribe := h.hub.Subscribe(r.URL.Query().Get("room"))
	defer unsubscribe()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				if h.logger != nil {
					h.logger.Error("Failed to encode SSE event", "error", err)
				}
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
			flusher.Flush()
		}
	}
}
