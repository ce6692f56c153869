// Package realtime emits diagram change events so other viewers of the same
// diagram can refresh.
package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mermaid-studio/engine/internal/models"
	"github.com/mermaid-studio/engine/pkg/logger"
	"go.uber.org/zap"
)

// EventKind tells subscribers what happened to the diagram.
type EventKind string

const (
	EventCreated EventKind = "created"
	EventUpdated EventKind = "updated"
)

const topicPrefix = "mermaid:diagram:"

// Event is the payload published on a diagram's topic.
type Event struct {
	Kind        EventKind `json:"kind"`
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	SourceText  string    `json:"source_text"`
	DiagramType string    `json:"diagram_type"`
	ModifiedAt  time.Time `json:"modified_at"`
}

// NewEvent snapshots d for publishing.
func NewEvent(d *models.Diagram, kind EventKind) Event {
	return Event{
		Kind:        kind,
		ID:          d.ID,
		Title:       d.Title,
		SourceText:  d.SourceText,
		DiagramType: d.DiagramType,
		ModifiedAt:  d.ModifiedAt,
	}
}

// Topic is the pub/sub channel scoped to one diagram.
func Topic(id uuid.UUID) string {
	return topicPrefix + id.String()
}

// Notifier tells interested viewers that a diagram changed. Notify must not
// block on delivery and never reports failure to the caller.
type Notifier interface {
	Notify(ctx context.Context, d *models.Diagram, kind EventKind)
}

// Publisher is the broadcast primitive of the event bus.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// PublishNotifier publishes events on a detached goroutine, bounded by
// timeout. Failures are logged and dropped.
type PublishNotifier struct {
	pub     Publisher
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewPublishNotifier(pub Publisher, timeout time.Duration) *PublishNotifier {
	return &PublishNotifier{pub: pub, timeout: timeout}
}

var _ Notifier = (*PublishNotifier)(nil)

func (n *PublishNotifier) Notify(ctx context.Context, d *models.Diagram, kind EventKind) {
	ev := NewEvent(d, kind)
	payload, err := json.Marshal(ev)
	if err != nil {
		logger.L().Warn("encode diagram event failed", zap.String("diagram_id", ev.ID.String()), zap.Error(err))
		return
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
		defer cancel()
		if err := n.pub.Publish(pctx, Topic(ev.ID), payload); err != nil {
			logger.L().Warn("publish diagram event failed",
				zap.String("diagram_id", ev.ID.String()),
				zap.String("kind", string(ev.Kind)),
				zap.Error(err),
			)
			return
		}
		logger.L().Debug("diagram event published", zap.String("diagram_id", ev.ID.String()), zap.String("kind", string(ev.Kind)))
	}()
}

// Wait blocks until every in-flight publish has finished.
func (n *PublishNotifier) Wait() {
	n.wg.Wait()
}

// NopNotifier drops every event.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, *models.Diagram, EventKind) {}
