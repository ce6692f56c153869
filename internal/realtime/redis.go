package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/mermaid-studio/engine/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisPublisher publishes on Redis Pub/Sub channels.
type RedisPublisher struct {
	rdb *redis.Client
}

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

func (p *RedisPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := p.rdb.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", topic, err)
	}
	return nil
}

// Subscription delivers the events of one diagram until closed.
type Subscription struct {
	ps     *redis.PubSub
	events chan Event
}

// Events yields decoded events. It is closed when the subscription ends.
func (s *Subscription) Events() <-chan Event { return s.events }

// Close unsubscribes and releases the connection.
func (s *Subscription) Close() error { return s.ps.Close() }

// Subscriber opens per-diagram subscriptions on Redis.
type Subscriber struct {
	rdb *redis.Client
}

func NewSubscriber(rdb *redis.Client) *Subscriber {
	return &Subscriber{rdb: rdb}
}

// Subscribe listens on the diagram's topic. The subscription is confirmed
// before returning so no event published afterwards is missed.
func (s *Subscriber) Subscribe(ctx context.Context, diagramID uuid.UUID) (*Subscription, error) {
	ps := s.rdb.Subscribe(ctx, Topic(diagramID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", Topic(diagramID), err)
	}

	sub := &Subscription{ps: ps, events: make(chan Event, 16)}
	go func() {
		defer close(sub.events)
		for msg := range ps.Channel() {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				logger.L().Warn("drop malformed diagram event", zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			select {
			case sub.events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return sub, nil
}
