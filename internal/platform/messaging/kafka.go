package messaging

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"lexcontrib/contexts/lexeme-contribution/contribution-engine/ports"
)

var ErrClosed = errors.New("event bus closed")

// Kafka is the event bus the outbox relay publishes contribution events to.
// Delivery is in-process until a broker client is configured; topics are
// namespaced with the service prefix so they match the broker layout.
type Kafka struct {
	mu          sync.RWMutex
	prefix      string
	brokers     []string
	subscribers map[string][]chan ports.EventEnvelope
	closed      bool
	logger      *slog.Logger
}

func NewKafka(brokers []string, prefix string, logger *slog.Logger) (*Kafka, error) {
	if logger == nil {
		logger = slog.Default()
	}
	return &Kafka{
		prefix:      strings.TrimSuffix(prefix, "."),
		brokers:     append([]string(nil), brokers...),
		subscribers: make(map[string][]chan ports.EventEnvelope),
		logger:      logger,
	}, nil
}

func (k *Kafka) topic(name string) string {
	if k.prefix == "" {
		return name
	}
	return k.prefix + "." + name
}

func (k *Kafka) Publish(ctx context.Context, topic string, event ports.EventEnvelope) error {
	topic = k.topic(topic)

	k.mu.RLock()
	if k.closed {
		k.mu.RUnlock()
		return ErrClosed
	}
	subs := append([]chan ports.EventEnvelope(nil), k.subscribers[topic]...)
	k.mu.RUnlock()

	for _, sub := range subs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sub <- event:
		default:
			k.logger.Warn("dropping event for slow subscriber",
				"event", "kafka_publish_drop",
				"module", "internal/platform/messaging",
				"layer", "platform",
				"topic", topic,
				"event_id", event.EventID,
			)
		}
	}

	k.logger.Info("event published",
		"event", "kafka_publish",
		"module", "internal/platform/messaging",
		"layer", "platform",
		"topic", topic,
		"event_id", event.EventID,
		"event_type", event.EventType,
		"partition_key", event.PartitionKey,
		"subscribers", len(subs),
	)
	return nil
}

func (k *Kafka) Subscribe(
	ctx context.Context,
	topic string,
	consumerGroup string,
	handler func(context.Context, ports.EventEnvelope) error,
) error {
	topic = k.topic(topic)
	ch := make(chan ports.EventEnvelope, 128)

	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return ErrClosed
	}
	k.subscribers[topic] = append(k.subscribers[topic], ch)
	k.mu.Unlock()

	go func() {
		defer k.removeSubscriber(topic, ch)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-ch:
				if !ok {
					return
				}
				if err := handler(ctx, event); err != nil {
					k.logger.Error("consumer handler failed",
						"event", "kafka_consume_failed",
						"module", "internal/platform/messaging",
						"layer", "platform",
						"topic", topic,
						"consumer_group", consumerGroup,
						"event_id", event.EventID,
						"event_type", event.EventType,
						"error", err.Error(),
					)
				}
			}
		}
	}()
	return nil
}

// Close stops delivery; later Publish and Subscribe calls return ErrClosed.
func (k *Kafka) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return nil
	}
	k.closed = true
	for topic, subs := range k.subscribers {
		for _, sub := range subs {
			close(sub)
		}
		delete(k.subscribers, topic)
	}
	return nil
}

func (k *Kafka) removeSubscriber(topic string, target chan ports.EventEnvelope) {
	k.mu.Lock()
	defer k.mu.Unlock()

	items := k.subscribers[topic]
	if len(items) == 0 {
		return
	}
	filtered := make([]chan ports.EventEnvelope, 0, len(items))
	for _, item := range items {
		if item != target {
			filtered = append(filtered, item)
		}
	}
	k.subscribers[topic] = filtered
}
