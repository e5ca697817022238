package notifier

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// BrokerConfig holds connection settings for the external broker
type BrokerConfig struct {
	URL               string
	Exchange          string
	ReconnectInterval time.Duration
}

// BrokerNotifier wraps a LocalNotifier and adds best-effort delivery
// through a topic exchange. Local delivery is unaffected by broker state:
// if the connection is down, publishes log and continue, and a fixed
// backoff retries re-initialization indefinitely.
type BrokerNotifier struct {
	cfg    BrokerConfig
	local  *LocalNotifier
	logger *zap.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
	subs []subscription

	closed atomic.Bool
	done   chan struct{}
}

// NewBrokerNotifier creates a broker-backed notifier around the local one.
// Construction never fails: an unreachable broker leaves the notifier in
// local-only mode with reconnection running in the background.
func NewBrokerNotifier(cfg BrokerConfig, local *LocalNotifier, logger *zap.Logger) *BrokerNotifier {
	if cfg.Exchange == "" {
		cfg.Exchange = "masterlinc.events"
	}
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = 5 * time.Second
	}

	n := &BrokerNotifier{
		cfg:    cfg,
		local:  local,
		logger: logger,
		done:   make(chan struct{}),
	}

	if err := n.connect(); err != nil {
		logger.Error("Broker unreachable, running local-only until reconnect",
			zap.String("url", cfg.URL), zap.Error(err))
		go n.retryLoop()
	}

	return n
}

// Publish delivers locally, then attempts broker delivery with a routing
// key equal to the event type. Broker failures never fail the caller.
func (n *BrokerNotifier) Publish(ctx context.Context, evt *Event) {
	n.local.Publish(ctx, evt)

	n.mu.Lock()
	ch := n.ch
	n.mu.Unlock()

	if ch == nil {
		return
	}

	body, err := json.Marshal(evt)
	if err != nil {
		n.logger.Error("Failed to encode event for broker",
			zap.String("type", evt.Type), zap.Error(err))
		return
	}

	err = ch.PublishWithContext(ctx, n.cfg.Exchange, evt.Type, false, false, amqp.Publishing{
		ContentType:   "application/json",
		MessageId:     evt.ID,
		CorrelationId: evt.CorrelationID,
		Timestamp:     evt.Timestamp,
		Body:          body,
	})
	if err != nil {
		n.logger.Error("Broker publish failed, event delivered locally only",
			zap.String("type", evt.Type), zap.Error(err))
	}
}

// Subscribe registers the handler locally and, when the broker is
// reachable, binds an exclusive queue to the pattern's routing key
func (n *BrokerNotifier) Subscribe(pattern string, handler Handler) {
	n.local.Subscribe(pattern, handler)

	n.mu.Lock()
	defer n.mu.Unlock()

	sub := subscription{pattern: pattern, handler: handler}
	n.subs = append(n.subs, sub)

	if n.ch != nil {
		if err := n.bind(n.ch, sub); err != nil {
			n.logger.Error("Failed to bind broker subscription",
				zap.String("pattern", pattern), zap.Error(err))
		}
	}
}

// Close stops reconnection, closes the broker connection and the local
// notifier
func (n *BrokerNotifier) Close() error {
	if !n.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(n.done)

	n.mu.Lock()
	conn := n.conn
	n.conn = nil
	n.ch = nil
	n.mu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			n.logger.Warn("Error closing broker connection", zap.Error(err))
		}
	}
	return n.local.Close()
}

func (n *BrokerNotifier) connect() error {
	conn, err := amqp.Dial(n.cfg.URL)
	if err != nil {
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}

	if err := ch.ExchangeDeclare(n.cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return err
	}

	n.mu.Lock()
	n.conn = conn
	n.ch = ch
	subs := make([]subscription, len(n.subs))
	copy(subs, n.subs)
	n.mu.Unlock()

	for _, sub := range subs {
		if err := n.bind(ch, sub); err != nil {
			n.logger.Error("Failed to rebind broker subscription",
				zap.String("pattern", sub.pattern), zap.Error(err))
		}
	}

	closeCh := conn.NotifyClose(make(chan *amqp.Error, 1))
	go n.watch(closeCh)

	n.logger.Info("Broker connected",
		zap.String("url", n.cfg.URL),
		zap.String("exchange", n.cfg.Exchange))
	return nil
}

// watch waits for the connection to drop and starts the retry loop
func (n *BrokerNotifier) watch(closeCh chan *amqp.Error) {
	select {
	case <-n.done:
		return
	case amqpErr := <-closeCh:
		if n.closed.Load() {
			return
		}
		n.logger.Error("Broker connection lost, local delivery continues",
			zap.Error(amqpErr))

		n.mu.Lock()
		n.conn = nil
		n.ch = nil
		n.mu.Unlock()

		n.retryLoop()
	}
}

// retryLoop attempts re-initialization indefinitely at a fixed interval
func (n *BrokerNotifier) retryLoop() {
	ticker := time.NewTicker(n.cfg.ReconnectInterval)
	defer ticker.Stop()

	for {
		select {
		case <-n.done:
			return
		case <-ticker.C:
			if err := n.connect(); err != nil {
				n.logger.Warn("Broker reconnect failed",
					zap.String("url", n.cfg.URL), zap.Error(err))
				continue
			}
			return
		}
	}
}

// bind declares an exclusive queue for the subscription and starts
// consuming from it
func (n *BrokerNotifier) bind(ch *amqp.Channel, sub subscription) error {
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return err
	}

	if err := ch.QueueBind(q.Name, brokerRoutingKey(sub.pattern), n.cfg.Exchange, false, nil); err != nil {
		return err
	}

	deliveries, err := ch.Consume(q.Name, "", false, true, false, false, nil)
	if err != nil {
		return err
	}

	go n.consume(deliveries, sub)
	return nil
}

// consume acks each message only after the handler returns without error.
// A handler error negatively acknowledges without requeue, so a poison
// message cannot loop.
func (n *BrokerNotifier) consume(deliveries <-chan amqp.Delivery, sub subscription) {
	for d := range deliveries {
		var evt Event
		if err := json.Unmarshal(d.Body, &evt); err != nil {
			n.logger.Error("Discarding undecodable broker message",
				zap.String("pattern", sub.pattern), zap.Error(err))
			d.Nack(false, false)
			continue
		}

		if err := sub.handler(context.Background(), &evt); err != nil {
			n.logger.Error("Broker subscriber handler failed",
				zap.String("type", evt.Type),
				zap.String("pattern", sub.pattern),
				zap.Error(err))
			d.Nack(false, false)
			continue
		}
		d.Ack(false)
	}
}

// brokerRoutingKey translates a subscription pattern into an AMQP binding
// key. The universal wildcard maps to "#"; a trailing-segment wildcard is
// already valid AMQP.
func brokerRoutingKey(pattern string) string {
	if pattern == "*" {
		return "#"
	}
	return pattern
}
