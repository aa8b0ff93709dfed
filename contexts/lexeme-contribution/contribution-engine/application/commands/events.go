package commands

import (
	"context"
	"time"

	"lexcontrib/contexts/lexeme-contribution/contribution-engine/domain/entities"
	"lexcontrib/contexts/lexeme-contribution/contribution-engine/ports"
)

const (
	EventSessionStarted = "contribution.session_started"
	EventItemUpdated    = "contribution.item_updated"
	EventSessionEnded   = "contribution.session_ended"
)

func newSessionEvent(
	ctx context.Context,
	ids ports.IDGenerator,
	eventType string,
	session entities.Session,
	occurredAt time.Time,
	attributes map[string]any,
) (ports.ContributionEvent, error) {
	eventID, err := ids.NewID(ctx)
	if err != nil {
		return ports.ContributionEvent{}, err
	}
	return ports.ContributionEvent{
		EventID:      eventID,
		EventType:    eventType,
		SessionID:    session.SessionID,
		UserID:       session.UserID,
		Activity:     session.Activity,
		Status:       string(session.Status),
		PartitionKey: session.UserID,
		OccurredAt:   occurredAt.UTC(),
		Attributes:   attributes,
	}, nil
}

func newItemEvent(
	ctx context.Context,
	ids ports.IDGenerator,
	session entities.Session,
	item entities.Item,
	occurredAt time.Time,
) (ports.ContributionEvent, error) {
	eventID, err := ids.NewID(ctx)
	if err != nil {
		return ports.ContributionEvent{}, err
	}
	return ports.ContributionEvent{
		EventID:      eventID,
		EventType:    EventItemUpdated,
		SessionID:    session.SessionID,
		ItemID:       item.ItemID,
		UserID:       session.UserID,
		Activity:     session.Activity,
		Status:       string(item.Status),
		PartitionKey: item.SubID,
		OccurredAt:   occurredAt.UTC(),
		Attributes: map[string]any{
			"lexeme_id":     item.LexemeID,
			"sub_id":        item.SubID,
			"result":        item.Result,
			"language_qid":  session.LanguageQID,
			"variant_code":  session.VariantCode,
			"external_user": session.ExternalUserID,
		},
	}, nil
}
