package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	application "lexcontrib/contexts/lexeme-contribution/contribution-engine/application"
	"lexcontrib/contexts/lexeme-contribution/contribution-engine/ports"
)

// OutboxRelay publishes pending contribution events to the topic named by
// their event type, or to Topic when set.
//
// Events sharing a partition key (the user for session events, the
// sub-identifier for item events) are published in outbox order. A failure
// holds back the rest of that partition until the next cycle while other
// partitions keep flowing.
type OutboxRelay struct {
	Outbox    ports.OutboxRepository
	Publisher ports.EventPublisher
	Clock     ports.Clock
	Topic     string
	BatchSize int
	Logger    *slog.Logger
}

func (r OutboxRelay) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(r.Logger)
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}

	pending, err := r.Outbox.ListPendingOutbox(ctx, limit)
	if err != nil {
		logger.Error("outbox list pending failed",
			"event", "contribution_outbox_list_failed",
			"module", application.ModuleName,
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	now := time.Now().UTC()
	if r.Clock != nil {
		now = r.Clock.Now().UTC()
	}

	blocked := make(map[string]struct{})
	var failures []error
	sent := 0
	for _, message := range pending {
		if _, held := blocked[message.PartitionKey]; held {
			continue
		}
		if err := r.relay(ctx, message, now); err != nil {
			blocked[message.PartitionKey] = struct{}{}
			failures = append(failures, fmt.Errorf("outbox %s: %w", message.OutboxID, err))
			logger.Error("outbox relay failed",
				"event", "contribution_outbox_relay_failed",
				"module", application.ModuleName,
				"layer", "worker",
				"outbox_id", message.OutboxID,
				"event_type", message.EventType,
				"partition_key", message.PartitionKey,
				"error", err.Error(),
			)
			continue
		}
		sent++
	}

	if sent > 0 || len(failures) > 0 {
		logger.Info("outbox relay cycle completed",
			"event", "contribution_outbox_relay_completed",
			"module", application.ModuleName,
			"layer", "worker",
			"sent_count", sent,
			"held_partitions", len(blocked),
		)
	}
	return errors.Join(failures...)
}

func (r OutboxRelay) relay(ctx context.Context, message ports.OutboxMessage, sentAt time.Time) error {
	var envelope ports.EventEnvelope
	if err := json.Unmarshal(message.Payload, &envelope); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	topic := r.Topic
	if topic == "" {
		topic = envelope.EventType
	}
	if err := r.Publisher.Publish(ctx, topic, envelope); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return r.Outbox.MarkOutboxSent(ctx, message.OutboxID, sentAt)
}
