package workers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	application "lexcontrib/contexts/lexeme-contribution/contribution-engine/application"
	"lexcontrib/contexts/lexeme-contribution/contribution-engine/application/commands"
	domainerrors "lexcontrib/contexts/lexeme-contribution/contribution-engine/domain/errors"
	"lexcontrib/contexts/lexeme-contribution/contribution-engine/ports"
)

// SessionExpirer ends pending sessions that were started more than TTL ago.
type SessionExpirer struct {
	Sessions   ports.SessionRepository
	EndSession commands.EndSessionUseCase
	Clock      ports.Clock
	TTL        time.Duration
	BatchSize  int
	Logger     *slog.Logger
}

func (e SessionExpirer) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(e.Logger)
	now := time.Now().UTC()
	if e.Clock != nil {
		now = e.Clock.Now().UTC()
	}
	ttl := e.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	limit := e.BatchSize
	if limit <= 0 {
		limit = 100
	}

	stale, err := e.Sessions.ListStalePendingSessions(ctx, now.Add(-ttl), limit)
	if err != nil {
		logger.Error("session expiry sweep failed",
			"event", "contribution_session_expiry_failed",
			"module", application.ModuleName,
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	expired := 0
	for _, session := range stale {
		_, err := e.EndSession.Execute(ctx, commands.EndSessionCommand{
			UserID:            session.UserID,
			ExpectedSessionID: session.SessionID,
			Reason:            commands.EndReasonExpired,
		})
		if errors.Is(err, domainerrors.ErrNoActiveSession) {
			// Ended or replaced since the sweep listed it.
			continue
		}
		if err != nil {
			logger.Error("session expiry end failed",
				"event", "contribution_session_expiry_end_failed",
				"module", application.ModuleName,
				"layer", "worker",
				"session_id", session.SessionID,
				"error", err.Error(),
			)
			return err
		}
		expired++
	}

	if expired > 0 {
		logger.Info("session expiry sweep completed",
			"event", "contribution_session_expiry_completed",
			"module", application.ModuleName,
			"layer", "worker",
			"expired_count", expired,
		)
	}
	return nil
}
