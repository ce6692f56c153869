package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/mermaid-studio/engine/internal/realtime"
	"github.com/mermaid-studio/engine/pkg/logger"
	"go.uber.org/zap"
)

// NotifyTaskHandler forwards queued diagram events to the event bus.
type NotifyTaskHandler struct {
	pub realtime.Publisher
}

func NewNotifyTaskHandler(pub realtime.Publisher) *NotifyTaskHandler {
	return &NotifyTaskHandler{pub: pub}
}

// Register binds the handler on mux.
func (h *NotifyTaskHandler) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(realtime.TypeNotify, h.HandleNotify)
}

func (h *NotifyTaskHandler) HandleNotify(ctx context.Context, t *asynq.Task) error {
	var ev realtime.Event
	if err := json.Unmarshal(t.Payload(), &ev); err != nil {
		logger.L().Error("invalid notify task payload", zap.Error(err))
		return fmt.Errorf("decode notify payload: %v: %w", err, asynq.SkipRetry)
	}

	// Re-encode so subscribers always see the canonical event shape.
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode diagram event: %v: %w", err, asynq.SkipRetry)
	}

	if err := h.pub.Publish(ctx, realtime.Topic(ev.ID), payload); err != nil {
		logger.L().Warn("publish queued diagram event failed", zap.String("diagram_id", ev.ID.String()), zap.Error(err))
		return err
	}
	logger.L().Debug("queued diagram event published", zap.String("diagram_id", ev.ID.String()), zap.String("kind", string(ev.Kind)))
	return nil
}
