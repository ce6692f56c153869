package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/mermaid-studio/engine/internal/models"
	"github.com/mermaid-studio/engine/pkg/logger"
	"go.uber.org/zap"
)

// TypeNotify is the asynq task type carrying an Event to the worker.
const TypeNotify = "diagram:notify"

// Enqueuer is the part of *asynq.Client the queue notifier needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// NewNotifyTask wraps ev in a task that is never retried.
func NewNotifyTask(ev Event) (*asynq.Task, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode diagram event: %w", err)
	}
	return asynq.NewTask(TypeNotify, payload, asynq.MaxRetry(0)), nil
}

// QueueNotifier hands events to the background worker instead of
// publishing them in-process.
type QueueNotifier struct {
	client  Enqueuer
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewQueueNotifier(client Enqueuer, timeout time.Duration) *QueueNotifier {
	return &QueueNotifier{client: client, timeout: timeout}
}

var _ Notifier = (*QueueNotifier)(nil)

func (n *QueueNotifier) Notify(ctx context.Context, d *models.Diagram, kind EventKind) {
	ev := NewEvent(d, kind)
	task, err := NewNotifyTask(ev)
	if err != nil {
		logger.L().Warn("build notify task failed", zap.String("diagram_id", ev.ID.String()), zap.Error(err))
		return
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		qctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
		defer cancel()
		if _, err := n.client.EnqueueContext(qctx, task); err != nil {
			logger.L().Warn("enqueue diagram event failed",
				zap.String("diagram_id", ev.ID.String()),
				zap.String("kind", string(ev.Kind)),
				zap.Error(err),
			)
		}
	}()
}

// Wait blocks until every in-flight enqueue has finished.
func (n *QueueNotifier) Wait() {
	n.wg.Wait()
}
