package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	application "lexcontrib/contexts/lexeme-contribution/contribution-engine/application"
	"lexcontrib/contexts/lexeme-contribution/contribution-engine/domain/entities"
	domainerrors "lexcontrib/contexts/lexeme-contribution/contribution-engine/domain/errors"
	"lexcontrib/contexts/lexeme-contribution/contribution-engine/domain/services"
	"lexcontrib/contexts/lexeme-contribution/contribution-engine/ports"
)

const (
	defaultBatchSize   = 10
	defaultMaxAttempts = 5
	defaultDeadline    = 30 * time.Second
)

type StartSessionCommand struct {
	Contributor  entities.Contributor
	Activity     entities.ActivityKind
	LanguageCode string
}

type StartSessionResult struct {
	Session entities.Session
	Items   []entities.Item
	Resumed bool
}

type StartSessionUseCase struct {
	UnitOfWork  ports.UnitOfWork
	Corpus      ports.CandidateSource
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	BatchSize   int
	MaxAttempts int
	Deadline    time.Duration
	Logger      *slog.Logger
}

// Execute resumes the caller's pending session or allocates a new one.
// Allocation runs in one transaction:
// 1) resolve language + activity association
// 2) lock the language/activity scope and create the session
// 3) snapshot the exclusion set
// 4) fetch/re-check/insert until a batch settles without collision
// 5) persist the sticky preference and the session_started outbox event.
func (u StartSessionUseCase) Execute(ctx context.Context, cmd StartSessionCommand) (StartSessionResult, error) {
	logger := application.ResolveLogger(u.Logger)
	if strings.TrimSpace(cmd.Contributor.UserID) == "" ||
		strings.TrimSpace(cmd.LanguageCode) == "" {
		return StartSessionResult{}, domainerrors.ErrInvalidRequest
	}
	policy, ok := services.PolicyFor(cmd.Activity)
	if !ok {
		return StartSessionResult{}, domainerrors.ErrInvalidRequest
	}
	if policy.OwnershipKey == services.OwnershipByExternalUser &&
		strings.TrimSpace(cmd.Contributor.ExternalUserID) == "" {
		return StartSessionResult{}, domainerrors.ErrInvalidRequest
	}

	logger.Info("start session started",
		"event", "start_session_started",
		"module", application.ModuleName,
		"layer", "application",
		"user_id", cmd.Contributor.UserID,
		"activity", cmd.Activity,
		"language_code", cmd.LanguageCode,
	)

	var result StartSessionResult
	err := u.UnitOfWork.WithinTx(ctx, func(ctx context.Context, repos ports.Repositories) error {
		session, found, err := repos.Sessions.GetPendingSession(ctx, cmd.Contributor.UserID)
		if err != nil {
			return err
		}
		if found {
			if session.Activity != cmd.Activity {
				return domainerrors.ErrPendingActivityConflict
			}
			items, err := u.resume(ctx, repos, session, cmd.Contributor)
			if err != nil {
				return err
			}
			result = StartSessionResult{Session: session, Items: items, Resumed: true}
			return nil
		}

		session, items, err := u.allocate(ctx, repos, policy, cmd)
		if err != nil {
			return err
		}
		result = StartSessionResult{Session: session, Items: items}
		return nil
	})
	if err != nil {
		level := slog.LevelError
		if isCallerError(err) {
			level = slog.LevelWarn
		}
		logger.Log(ctx, level, "start session failed",
			"event", "start_session_failed",
			"module", application.ModuleName,
			"layer", "application",
			"user_id", cmd.Contributor.UserID,
			"activity", cmd.Activity,
			"language_code", cmd.LanguageCode,
			"error", err.Error(),
		)
		return StartSessionResult{}, err
	}

	logger.Info("start session completed",
		"event", "start_session_completed",
		"module", application.ModuleName,
		"layer", "application",
		"user_id", cmd.Contributor.UserID,
		"session_id", result.Session.SessionID,
		"activity", result.Session.Activity,
		"resumed", result.Resumed,
		"item_count", len(result.Items),
	)
	return result, nil
}

// resume re-hydrates stored items from the corpus. Stored ordinal and status
// win; items the corpus no longer returns are dropped from the view.
func (u StartSessionUseCase) resume(
	ctx context.Context,
	repos ports.Repositories,
	session entities.Session,
	contributor entities.Contributor,
) ([]entities.Item, error) {
	stored, err := repos.Items.ListSessionItems(ctx, session.SessionID)
	if err != nil {
		return nil, err
	}
	if len(stored) == 0 {
		return nil, domainerrors.ErrCandidatesNotFound
	}
	sort.SliceStable(stored, func(i, j int) bool {
		return stored[i].Ordinal < stored[j].Ordinal
	})

	subIDs := make([]string, 0, len(stored))
	for _, item := range stored {
		subIDs = append(subIDs, item.SubID)
	}

	policy, _ := services.PolicyFor(session.Activity)
	fresh, err := u.Corpus.FetchByIDs(ctx, ports.LookupQuery{
		Activity:        session.Activity,
		LanguageQID:     session.LanguageQID,
		LanguageCode:    session.LanguageCode,
		VariantCode:     session.VariantCode,
		IncludeIDs:      subIDs,
		DisplayLanguage: contributor.ResolvedDisplayLanguage(session.DisplayLanguage),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domainerrors.ErrExternalLookupFailed, err)
	}
	if len(fresh) == 0 {
		return nil, domainerrors.ErrCandidatesNotFound
	}

	bySubID := make(map[string]entities.Candidate, len(fresh))
	for _, candidate := range fresh {
		bySubID[policy.SubID(candidate)] = candidate
	}

	items := make([]entities.Item, 0, len(stored))
	for _, item := range stored {
		candidate, ok := bySubID[item.SubID]
		if !ok {
			continue
		}
		items = append(items, item.Refreshed(candidate))
	}
	return items, nil
}

func (u StartSessionUseCase) allocate(
	ctx context.Context,
	repos ports.Repositories,
	policy services.ActivityPolicy,
	cmd StartSessionCommand,
) (entities.Session, []entities.Item, error) {
	language, err := repos.Languages.GetLanguageByCode(ctx, cmd.LanguageCode)
	if err != nil {
		return entities.Session{}, nil, err
	}
	association, ok := language.Activity(cmd.Activity)
	if !ok {
		return entities.Session{}, nil, domainerrors.ErrActivityNotAvailable
	}
	if err := repos.Languages.LockAllocationScope(ctx, language.LanguageID, cmd.Activity); err != nil {
		return entities.Session{}, nil, err
	}

	now := u.now()
	sessionID, err := u.IDGenerator.NewID(ctx)
	if err != nil {
		return entities.Session{}, nil, err
	}
	session, err := entities.NewSession(sessionID, cmd.Contributor, language, association, now)
	if err != nil {
		return entities.Session{}, nil, err
	}
	if err := repos.Sessions.CreateSession(ctx, session); err != nil {
		return entities.Session{}, nil, err
	}

	scope := ports.AllocationScope{Activity: cmd.Activity, LanguageQID: language.QID}
	blockers, err := repos.Items.ListAllocationBlockers(ctx, scope)
	if err != nil {
		return entities.Session{}, nil, err
	}
	excluded := newExclusionSet()
	for _, row := range blockers {
		if policy.BlocksAllocation(row, cmd.Contributor) {
			excluded.add(row.SubID)
		}
	}

	items, err := u.fill(ctx, repos, policy, scope, session, cmd.Contributor, excluded, now)
	if err != nil {
		return entities.Session{}, nil, err
	}

	if err := repos.Preferences.SavePreference(ctx, entities.Preference{
		UserID:          cmd.Contributor.UserID,
		LanguageID:      language.LanguageID,
		LanguageCode:    language.Code,
		ActiveActivity:  cmd.Activity,
		DisplayLanguage: session.DisplayLanguage,
	}); err != nil {
		return entities.Session{}, nil, err
	}

	event, err := newSessionEvent(ctx, u.IDGenerator, EventSessionStarted, session, now, map[string]any{
		"language_qid": session.LanguageQID,
		"item_count":   len(items),
	})
	if err != nil {
		return entities.Session{}, nil, err
	}
	if err := repos.Outbox.AppendOutbox(ctx, event); err != nil {
		return entities.Session{}, nil, err
	}
	return session, items, nil
}

// fill runs the candidate fetch/re-check loop. A collision (candidate already
// held, or returned despite the exclusion set) restarts the fetch with the
// enlarged exclusion set; rows inserted before the collision are kept and the
// next fetch only asks for the remaining slots.
func (u StartSessionUseCase) fill(
	ctx context.Context,
	repos ports.Repositories,
	policy services.ActivityPolicy,
	scope ports.AllocationScope,
	session entities.Session,
	contributor entities.Contributor,
	excluded *exclusionSet,
	startedAt time.Time,
) ([]entities.Item, error) {
	logger := application.ResolveLogger(u.Logger)
	batchSize := u.batchSize()
	deadline := startedAt.Add(u.deadline())
	items := make([]entities.Item, 0, batchSize)

	for attempt := 1; ; attempt++ {
		if attempt > u.maxAttempts() || u.now().After(deadline) {
			return nil, domainerrors.ErrAllocationTimeout
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		batch, err := u.Corpus.FetchCandidates(ctx, ports.CandidateQuery{
			Activity:        session.Activity,
			LanguageQID:     session.LanguageQID,
			LanguageCode:    session.LanguageCode,
			VariantCode:     session.VariantCode,
			ExcludeIDs:      excluded.list(),
			DisplayLanguage: session.DisplayLanguage,
			Limit:           batchSize - len(items),
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domainerrors.ErrExternalLookupFailed, err)
		}
		if len(batch) == 0 {
			if len(items) == 0 {
				return nil, domainerrors.ErrCandidatesNotFound
			}
			break
		}

		collision := ""
		for _, candidate := range batch {
			if len(items) >= batchSize {
				break
			}
			subID := policy.SubID(candidate)
			if strings.TrimSpace(subID) == "" {
				continue
			}
			if excluded.has(subID) {
				collision = subID
				break
			}

			held, err := repos.Items.FindAllocationBlockers(ctx, scope, subID)
			if err != nil {
				return nil, err
			}
			if blocksCandidate(policy, held, session, contributor) {
				excluded.add(subID)
				collision = subID
				break
			}

			itemID, err := u.IDGenerator.NewID(ctx)
			if err != nil {
				return nil, err
			}
			item, err := entities.NewItem(itemID, session, candidate, subID, len(items)+1, u.now())
			if err != nil {
				return nil, err
			}
			if err := repos.Items.CreateItem(ctx, item); err != nil {
				return nil, err
			}
			items = append(items, item)
			excluded.add(subID)
		}

		if collision == "" {
			break
		}
		logger.Info("candidate collision, refetching",
			"event", "start_session_candidate_collision",
			"module", application.ModuleName,
			"layer", "application",
			"session_id", session.SessionID,
			"sub_id", collision,
			"attempt", attempt,
			"allocated", len(items),
		)
		if len(items) >= batchSize {
			break
		}
	}

	if len(items) == 0 {
		return nil, domainerrors.ErrCandidatesNotFound
	}
	return items, nil
}

func blocksCandidate(
	policy services.ActivityPolicy,
	held []entities.Item,
	session entities.Session,
	contributor entities.Contributor,
) bool {
	for _, row := range held {
		if row.SessionID == session.SessionID || policy.BlocksAllocation(row, contributor) {
			return true
		}
	}
	return false
}

func (u StartSessionUseCase) batchSize() int {
	if u.BatchSize <= 0 {
		return defaultBatchSize
	}
	return u.BatchSize
}

func (u StartSessionUseCase) maxAttempts() int {
	if u.MaxAttempts <= 0 {
		return defaultMaxAttempts
	}
	return u.MaxAttempts
}

func (u StartSessionUseCase) deadline() time.Duration {
	if u.Deadline <= 0 {
		return defaultDeadline
	}
	return u.Deadline
}

func (u StartSessionUseCase) now() time.Time {
	if u.Clock == nil {
		return time.Now().UTC()
	}
	return u.Clock.Now().UTC()
}

type exclusionSet struct {
	ids   map[string]struct{}
	order []string
}

func newExclusionSet() *exclusionSet {
	return &exclusionSet{ids: make(map[string]struct{})}
}

func (s *exclusionSet) add(id string) {
	if _, ok := s.ids[id]; ok {
		return
	}
	s.ids[id] = struct{}{}
	s.order = append(s.order, id)
}

func (s *exclusionSet) has(id string) bool {
	_, ok := s.ids[id]
	return ok
}

func (s *exclusionSet) list() []string {
	return append([]string(nil), s.order...)
}

func isCallerError(err error) bool {
	return errors.Is(err, domainerrors.ErrInvalidRequest) ||
		errors.Is(err, domainerrors.ErrPendingActivityConflict) ||
		errors.Is(err, domainerrors.ErrConcurrentSessionStart) ||
		errors.Is(err, domainerrors.ErrLanguageNotFound) ||
		errors.Is(err, domainerrors.ErrActivityNotAvailable) ||
		errors.Is(err, domainerrors.ErrCandidatesNotFound) ||
		errors.Is(err, domainerrors.ErrItemNotFound) ||
		errors.Is(err, domainerrors.ErrNoActiveSession)
}
