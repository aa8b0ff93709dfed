package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "lexcontrib/contexts/lexeme-contribution/contribution-engine/application"
	"lexcontrib/contexts/lexeme-contribution/contribution-engine/domain/entities"
	domainerrors "lexcontrib/contexts/lexeme-contribution/contribution-engine/domain/errors"
	"lexcontrib/contexts/lexeme-contribution/contribution-engine/ports"
)

const (
	EndReasonUser    = "user"
	EndReasonExpired = "expired"
)

type EndSessionCommand struct {
	UserID string
	// ExpectedSessionID, when set, only ends the pending session with this id.
	ExpectedSessionID string
	Reason            string
}

type EndSessionResult struct {
	Session      entities.Session
	DeletedItems int
}

type EndSessionUseCase struct {
	UnitOfWork  ports.UnitOfWork
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

// Execute deletes every item of the caller's pending session regardless of
// status, ends the session and clears the sticky activity in one transaction.
func (u EndSessionUseCase) Execute(ctx context.Context, cmd EndSessionCommand) (EndSessionResult, error) {
	logger := application.ResolveLogger(u.Logger)
	if strings.TrimSpace(cmd.UserID) == "" {
		return EndSessionResult{}, domainerrors.ErrInvalidRequest
	}
	reason := cmd.Reason
	if reason == "" {
		reason = EndReasonUser
	}

	var result EndSessionResult
	err := u.UnitOfWork.WithinTx(ctx, func(ctx context.Context, repos ports.Repositories) error {
		session, found, err := repos.Sessions.GetPendingSession(ctx, cmd.UserID)
		if err != nil {
			return err
		}
		if !found {
			return domainerrors.ErrNoActiveSession
		}
		if cmd.ExpectedSessionID != "" && session.SessionID != cmd.ExpectedSessionID {
			return domainerrors.ErrNoActiveSession
		}

		deleted, err := repos.Items.DeleteSessionItems(ctx, session.SessionID)
		if err != nil {
			return err
		}
		now := u.now()
		if err := repos.Sessions.EndSession(ctx, session.SessionID, now); err != nil {
			return err
		}
		if err := repos.Preferences.ClearActiveActivity(ctx, session.UserID); err != nil {
			return err
		}

		session.Status = entities.SessionStatusCompleted
		session.UpdatedAt = now
		event, err := newSessionEvent(ctx, u.IDGenerator, EventSessionEnded, session, now, map[string]any{
			"reason":        reason,
			"deleted_items": deleted,
		})
		if err != nil {
			return err
		}
		if err := repos.Outbox.AppendOutbox(ctx, event); err != nil {
			return err
		}
		result = EndSessionResult{Session: session, DeletedItems: deleted}
		return nil
	})
	if err != nil {
		level := slog.LevelError
		if isCallerError(err) {
			level = slog.LevelWarn
		}
		logger.Log(ctx, level, "end session failed",
			"event", "end_session_failed",
			"module", application.ModuleName,
			"layer", "application",
			"user_id", cmd.UserID,
			"reason", reason,
			"error", err.Error(),
		)
		return EndSessionResult{}, err
	}

	logger.Info("end session completed",
		"event", "end_session_completed",
		"module", application.ModuleName,
		"layer", "application",
		"user_id", cmd.UserID,
		"session_id", result.Session.SessionID,
		"deleted_items", result.DeletedItems,
		"reason", reason,
	)
	return result, nil
}

func (u EndSessionUseCase) now() time.Time {
	if u.Clock == nil {
		return time.Now().UTC()
	}
	return u.Clock.Now().UTC()
}
