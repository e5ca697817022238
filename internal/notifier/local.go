package notifier

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// subscription pairs a pattern with a named handler
type subscription struct {
	pattern string
	name    string
	handler Handler
}

// LocalNotifier delivers events synchronously to in-process subscribers.
// It is the complete notifier for minimal deployments and the guaranteed
// delivery path inside broker-backed ones.
type LocalNotifier struct {
	mu          sync.RWMutex
	subscribers []subscription
	logger      *zap.Logger
	closed      atomic.Bool
}

// NewLocalNotifier creates a local-only notifier
func NewLocalNotifier(logger *zap.Logger) *LocalNotifier {
	return &LocalNotifier{logger: logger}
}

// Publish delivers the event synchronously to every subscriber whose
// pattern matches the event type. Handler errors and panics are logged,
// never propagated: one bad subscriber must not hide an event from the
// others or fail the publisher.
func (n *LocalNotifier) Publish(ctx context.Context, evt *Event) {
	if n.closed.Load() {
		n.logger.Warn("Dropping event, notifier is closed", zap.String("type", evt.Type))
		return
	}

	n.mu.RLock()
	subs := make([]subscription, len(n.subscribers))
	copy(subs, n.subscribers)
	n.mu.RUnlock()

	for _, sub := range subs {
		if !MatchPattern(evt.Type, sub.pattern) {
			continue
		}
		if err := n.safeExecute(ctx, evt, sub); err != nil {
			n.logger.Error("Subscriber handler failed",
				zap.String("type", evt.Type),
				zap.String("event_id", evt.ID),
				zap.String("handler", sub.name),
				zap.Error(err))
		}
	}
}

// Subscribe registers a handler for event types matching the pattern
func (n *LocalNotifier) Subscribe(pattern string, handler Handler) {
	n.mu.Lock()
	defer n.mu.Unlock()

	name := fmt.Sprintf("%s#%d", pattern, len(n.subscribers))
	n.subscribers = append(n.subscribers, subscription{
		pattern: pattern,
		name:    name,
		handler: handler,
	})

	n.logger.Info("Local subscriber registered",
		zap.String("pattern", pattern),
		zap.String("handler", name))
}

// Close stops delivery; later publishes are dropped with a warning
func (n *LocalNotifier) Close() error {
	if !n.closed.CompareAndSwap(false, true) {
		return fmt.Errorf("notifier already closed")
	}
	return nil
}

// safeExecute runs a handler with panic recovery
func (n *LocalNotifier) safeExecute(ctx context.Context, evt *Event, sub subscription) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	return sub.handler(ctx, evt)
}
