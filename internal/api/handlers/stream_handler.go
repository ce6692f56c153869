package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/mermaid-studio/engine/internal/realtime"
	"github.com/mermaid-studio/engine/internal/services"
	appErr "github.com/mermaid-studio/engine/pkg/errors"
	"github.com/mermaid-studio/engine/pkg/logger"
	"go.uber.org/zap"
)

// Subscriber opens a live feed of one diagram's change events.
type Subscriber interface {
	Subscribe(ctx context.Context, diagramID uuid.UUID) (*realtime.Subscription, error)
}

// StreamHandler relays diagram change events to viewers as server-sent
// events.
type StreamHandler struct {
	diagrams  services.DiagramService
	sub       Subscriber
	keepAlive time.Duration
}

func NewStreamHandler(diagrams services.DiagramService, sub Subscriber) *StreamHandler {
	return &StreamHandler{diagrams: diagrams, sub: sub, keepAlive: 15 * time.Second}
}

// Events godoc
// @Summary  Stream change events for a diagram (SSE)
// @Tags     diagrams
// @Produce  text/event-stream
// @Param    id path string true "diagram id"
// @Success  200 {string} string "event stream"
// @Security BearerAuth
// @Router   /diagrams/{id}/events [get]
func (h *StreamHandler) Events(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	// Only viewers allowed to read the diagram may follow it.
	if _, err := h.diagrams.Get(r.Context(), principal(r), id); err != nil {
		writeError(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, appErr.New(appErr.CodeInternal, "streaming unsupported"))
		return
	}

	ctx := r.Context()
	sub, err := h.sub.Subscribe(ctx, id)
	if err != nil {
		writeError(w, r, appErr.Wrap(err, appErr.CodeUnavailable, "event stream unavailable"))
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": subscribed\n\n")
	flusher.Flush()

	logger.L().Debug("diagram stream opened", zap.String("diagram_id", id.String()))
	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data)
			flusher.Flush()
		}
	}
}
