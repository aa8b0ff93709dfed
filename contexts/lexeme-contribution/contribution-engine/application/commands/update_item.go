package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	application "lexcontrib/contexts/lexeme-contribution/contribution-engine/application"
	"lexcontrib/contexts/lexeme-contribution/contribution-engine/domain/entities"
	domainerrors "lexcontrib/contexts/lexeme-contribution/contribution-engine/domain/errors"
	"lexcontrib/contexts/lexeme-contribution/contribution-engine/domain/services"
	"lexcontrib/contexts/lexeme-contribution/contribution-engine/ports"
)

const editSummaryPrefix = "lexcontrib"

var externalItemIDPattern = regexp.MustCompile(`^Q[1-9][0-9]*$`)

type ItemPayload struct {
	ExternalItemID string
	Text           string
	Segments       []string
}

type UpdateItemCommand struct {
	Contributor entities.Contributor
	SessionID   string
	Activity    entities.ActivityKind
	ItemID      string
	Action      services.ItemAction
	Payload     ItemPayload
}

type UpdateItemUseCase struct {
	UnitOfWork  ports.UnitOfWork
	Corpus      ports.CandidateSource
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

// Execute moves one pending item to a terminal status. The item row stays
// locked while the corpus write runs; a failed write rolls the transaction back
// and leaves the item pending.
func (u UpdateItemUseCase) Execute(ctx context.Context, cmd UpdateItemCommand) (entities.Item, error) {
	logger := application.ResolveLogger(u.Logger)
	if strings.TrimSpace(cmd.Contributor.UserID) == "" ||
		strings.TrimSpace(cmd.SessionID) == "" ||
		strings.TrimSpace(cmd.ItemID) == "" {
		return entities.Item{}, domainerrors.ErrInvalidRequest
	}
	policy, ok := services.PolicyFor(cmd.Activity)
	if !ok {
		return entities.Item{}, domainerrors.ErrInvalidRequest
	}
	status := policy.StatusFor(cmd.Action)

	logger.Info("update item started",
		"event", "update_item_started",
		"module", application.ModuleName,
		"layer", "application",
		"user_id", cmd.Contributor.UserID,
		"session_id", cmd.SessionID,
		"item_id", cmd.ItemID,
		"action", cmd.Action,
	)

	var updated entities.Item
	err := u.UnitOfWork.WithinTx(ctx, func(ctx context.Context, repos ports.Repositories) error {
		session, err := repos.Sessions.GetSession(ctx, cmd.SessionID)
		if errors.Is(err, domainerrors.ErrNoActiveSession) {
			return domainerrors.ErrItemNotFound
		}
		if err != nil {
			return err
		}
		item, err := repos.Items.GetItemForUpdate(ctx, cmd.SessionID, cmd.ItemID)
		if err != nil {
			return err
		}
		if !policy.CheckItemAccess(session, item, cmd.Contributor, true) {
			return domainerrors.ErrItemNotFound
		}

		now := u.now()
		switch status {
		case entities.ItemStatusCompleted:
			result, err := u.write(ctx, session, item, cmd)
			if err != nil {
				return err
			}
			updated = item.Completed(result, now)
		case entities.ItemStatusNoItem:
			updated = item.MarkedNoItem(now)
		default:
			updated = item.Skipped(now)
		}

		if err := repos.Items.UpdateItem(ctx, updated); err != nil {
			return err
		}
		event, err := newItemEvent(ctx, u.IDGenerator, session, updated, now)
		if err != nil {
			return err
		}
		return repos.Outbox.AppendOutbox(ctx, event)
	})
	if err != nil {
		level := slog.LevelError
		if isCallerError(err) {
			level = slog.LevelWarn
		}
		logger.Log(ctx, level, "update item failed",
			"event", "update_item_failed",
			"module", application.ModuleName,
			"layer", "application",
			"user_id", cmd.Contributor.UserID,
			"session_id", cmd.SessionID,
			"item_id", cmd.ItemID,
			"error", err.Error(),
		)
		return entities.Item{}, err
	}

	logger.Info("update item completed",
		"event", "update_item_completed",
		"module", application.ModuleName,
		"layer", "application",
		"session_id", updated.SessionID,
		"item_id", updated.ItemID,
		"sub_id", updated.SubID,
		"status", updated.Status,
	)
	return updated, nil
}

// write issues the activity's corpus write and returns the value to record on
// the item. Tokens are fetched per write and never cached.
func (u UpdateItemUseCase) write(
	ctx context.Context,
	session entities.Session,
	item entities.Item,
	cmd UpdateItemCommand,
) (string, error) {
	var (
		result string
		submit func(token string) error
	)

	switch session.Activity {
	case entities.ActivityConnect:
		itemID := strings.ToUpper(strings.TrimSpace(cmd.Payload.ExternalItemID))
		if !externalItemIDPattern.MatchString(itemID) {
			return "", domainerrors.ErrInvalidRequest
		}
		result = itemID
		submit = func(token string) error {
			return u.Corpus.SubmitClaim(ctx, ports.ClaimWrite{
				Token:       token,
				AccessToken: cmd.Contributor.AccessToken,
				TargetID:    item.SenseID,
				Property:    entities.PropertyItemForSense,
				Value:       ports.StatementValue{EntityID: itemID},
				Summary:     editSummary(session),
			})
		}
	case entities.ActivityScript:
		text := strings.TrimSpace(cmd.Payload.Text)
		if text == "" {
			return "", domainerrors.ErrInvalidRequest
		}
		result = text
		submit = func(token string) error {
			return u.Corpus.SubmitEdit(ctx, ports.EntityEdit{
				Token:       token,
				AccessToken: cmd.Contributor.AccessToken,
				TargetID:    item.LexemeID,
				Lemmas:      map[string]string{session.ContributionLanguage(): text},
				Summary:     editSummary(session),
			})
		}
	case entities.ActivityHyphenation:
		segments := cmd.Payload.Segments
		if len(segments) == 0 && strings.TrimSpace(cmd.Payload.Text) != "" {
			segments = []string{cmd.Payload.Text}
		}
		hyphenation, err := services.FlattenHyphenation(segments)
		if err != nil {
			return "", err
		}
		result = hyphenation
		submit = func(token string) error {
			return u.Corpus.SubmitClaim(ctx, ports.ClaimWrite{
				Token:       token,
				AccessToken: cmd.Contributor.AccessToken,
				TargetID:    item.FormID,
				Property:    entities.PropertyHyphenation,
				Value:       ports.StatementValue{Text: hyphenation},
				Summary:     editSummary(session),
			})
		}
	default:
		return "", domainerrors.ErrInvalidRequest
	}

	token, err := u.Corpus.GetWriteToken(ctx, cmd.Contributor.AccessToken)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domainerrors.ErrExternalWriteFailed, err)
	}
	if err := submit(token); err != nil {
		return "", fmt.Errorf("%w: %v", domainerrors.ErrExternalWriteFailed, err)
	}
	return result, nil
}

func editSummary(session entities.Session) string {
	return fmt.Sprintf("%s: %s (%s)", editSummaryPrefix, session.Activity, session.ContributionLanguage())
}

func (u UpdateItemUseCase) now() time.Time {
	if u.Clock == nil {
		return time.Now().UTC()
	}
	return u.Clock.Now().UTC()
}
