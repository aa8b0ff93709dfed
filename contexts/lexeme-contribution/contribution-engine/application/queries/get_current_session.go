package queries

import (
	"context"
	"log/slog"
	"strings"

	application "lexcontrib/contexts/lexeme-contribution/contribution-engine/application"
	"lexcontrib/contexts/lexeme-contribution/contribution-engine/domain/entities"
	domainerrors "lexcontrib/contexts/lexeme-contribution/contribution-engine/domain/errors"
	"lexcontrib/contexts/lexeme-contribution/contribution-engine/ports"
)

type GetCurrentSessionQuery struct {
	UserID string
}

type CurrentSession struct {
	Session        entities.Session
	ItemCount      int
	PendingCount   int
	ActiveActivity entities.ActivityKind
}

type GetCurrentSessionUseCase struct {
	Sessions    ports.SessionRepository
	Items       ports.ItemRepository
	Preferences ports.PreferenceRepository
	Logger      *slog.Logger
}

func (u GetCurrentSessionUseCase) Execute(ctx context.Context, query GetCurrentSessionQuery) (CurrentSession, error) {
	logger := application.ResolveLogger(u.Logger)
	if strings.TrimSpace(query.UserID) == "" {
		return CurrentSession{}, domainerrors.ErrInvalidRequest
	}

	session, found, err := u.Sessions.GetPendingSession(ctx, query.UserID)
	if err != nil {
		logger.Error("get current session failed",
			"event", "get_current_session_failed",
			"module", application.ModuleName,
			"layer", "application",
			"user_id", query.UserID,
			"error", err.Error(),
		)
		return CurrentSession{}, err
	}
	if !found {
		return CurrentSession{}, domainerrors.ErrNoActiveSession
	}

	items, err := u.Items.ListSessionItems(ctx, session.SessionID)
	if err != nil {
		return CurrentSession{}, err
	}
	result := CurrentSession{Session: session, ItemCount: len(items), ActiveActivity: session.Activity}
	for _, item := range items {
		if item.IsPending() {
			result.PendingCount++
		}
	}
	if preference, ok, err := u.Preferences.GetPreference(ctx, query.UserID); err != nil {
		return CurrentSession{}, err
	} else if ok && preference.ActiveActivity != "" {
		result.ActiveActivity = preference.ActiveActivity
	}
	return result, nil
}
