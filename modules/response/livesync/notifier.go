package livesync

import (
	"context"
	"fmt"

	"go-availability/core/cache"
	"go-availability/core/constants"
	"go-availability/core/logger"

	"github.com/google/uuid"
)

// Notifier is the change notification channel for a calendar's responses.
// Events carry no payload and may be duplicated, dropped or reordered;
// subscribers always reconcile against the store.
type Notifier interface {
	Publish(ctx context.Context, calendarID uuid.UUID) error
	Subscribe(ctx context.Context, calendarID uuid.UUID) (Subscription, error)
}

type Subscription interface {
	// Events is closed once the subscription ends.
	Events() <-chan struct{}
	Close() error
}

// Channel is the pub/sub topic for a calendar.
func Channel(calendarID uuid.UUID) string {
	return fmt.Sprintf(constants.RedisChannelResponsesChanged, calendarID)
}

// RedisNotifier publishes and subscribes over Redis pub/sub.
type RedisNotifier struct {
	cache cache.Cache
}

func NewRedisNotifier(c cache.Cache) *RedisNotifier {
	return &RedisNotifier{cache: c}
}

const changedMessage = "changed"

func (n *RedisNotifier) Publish(ctx context.Context, calendarID uuid.UUID) error {
	if err := n.cache.Publish(ctx, Channel(calendarID), changedMessage); err != nil {
		logger.Error("RedisNotifier:Publish", err, "calendar_id", calendarID)
		return err
	}
	return nil
}

func (n *RedisNotifier) Subscribe(ctx context.Context, calendarID uuid.UUID) (Subscription, error) {
	sub, err := n.cache.Subscribe(ctx, Channel(calendarID))
	if err != nil {
		logger.Error("RedisNotifier:Subscribe", err, "calendar_id", calendarID)
		return nil, err
	}

	rs := &redisSubscription{sub: sub, events: make(chan struct{}, 1)}
	go rs.forward()
	return rs, nil
}

type redisSubscription struct {
	sub    *cache.Subscription
	events chan struct{}
}

func (s *redisSubscription) forward() {
	defer close(s.events)
	for range s.sub.Messages() {
		select {
		case s.events <- struct{}{}:
		default:
		}
	}
}

func (s *redisSubscription) Events() <-chan struct{} {
	return s.events
}

func (s *redisSubscription) Close() error {
	return s.sub.Close()
}
