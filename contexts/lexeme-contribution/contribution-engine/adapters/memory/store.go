package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	application "lexcontrib/contexts/lexeme-contribution/contribution-engine/application"
	"lexcontrib/contexts/lexeme-contribution/contribution-engine/domain/entities"
	domainerrors "lexcontrib/contexts/lexeme-contribution/contribution-engine/domain/errors"
	"lexcontrib/contexts/lexeme-contribution/contribution-engine/ports"
	contractsv1 "lexcontrib/contracts/gen/events/v1"
)

// Store is an in-memory adapter implementing the store ports for local runtime
// and tests. Transactions are serialized by txMu and roll back by restoring a
// snapshot taken when they began.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	languages   map[string]entities.Language
	sessions    map[string]entities.Session
	deleted     map[string]time.Time
	items       map[string]entities.Item
	preferences map[string]entities.Preference
	outbox      map[string]ports.OutboxMessage
	outboxOrder []string
	outboxSent  map[string]time.Time
	sequence    uint64
	logger      *slog.Logger
}

func NewStore(seedLanguages []entities.Language, logger *slog.Logger) *Store {
	store := &Store{
		languages:   make(map[string]entities.Language, len(seedLanguages)),
		sessions:    make(map[string]entities.Session),
		deleted:     make(map[string]time.Time),
		items:       make(map[string]entities.Item),
		preferences: make(map[string]entities.Preference),
		outbox:      make(map[string]ports.OutboxMessage),
		outboxSent:  make(map[string]time.Time),
		logger:      application.ResolveLogger(logger),
	}
	for _, language := range seedLanguages {
		store.languages[language.LanguageID] = language
	}
	return store
}

func (s *Store) SeedLanguages(_ context.Context, languages []entities.Language) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, language := range languages {
		s.languages[language.LanguageID] = language
	}
	return nil
}

type snapshot struct {
	sessions    map[string]entities.Session
	deleted     map[string]time.Time
	items       map[string]entities.Item
	preferences map[string]entities.Preference
	outbox      map[string]ports.OutboxMessage
	outboxOrder []string
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos ports.Repositories) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	saved := s.snapshot()
	err := fn(ctx, ports.Repositories{
		Sessions:    s,
		Items:       s,
		Languages:   s,
		Preferences: s,
		Outbox:      s,
	})
	if err != nil {
		s.restore(saved)
		return err
	}
	return nil
}

func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshot{
		sessions:    cloneMap(s.sessions),
		deleted:     cloneMap(s.deleted),
		items:       cloneMap(s.items),
		preferences: cloneMap(s.preferences),
		outbox:      cloneMap(s.outbox),
		outboxOrder: append([]string(nil), s.outboxOrder...),
	}
}

func (s *Store) restore(saved snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = saved.sessions
	s.deleted = saved.deleted
	s.items = saved.items
	s.preferences = saved.preferences
	s.outbox = saved.outbox
	s.outboxOrder = saved.outboxOrder
}

func (s *Store) GetPendingSession(_ context.Context, userID string) (entities.Session, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.pendingSessionLocked(userID)
	return session, ok, nil
}

func (s *Store) pendingSessionLocked(userID string) (entities.Session, bool) {
	for id, session := range s.sessions {
		if _, gone := s.deleted[id]; gone {
			continue
		}
		if session.UserID == userID && session.IsPending() {
			return session, true
		}
	}
	return entities.Session{}, false
}

func (s *Store) GetSession(_ context.Context, sessionID string) (entities.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return entities.Session{}, domainerrors.ErrNoActiveSession
	}
	if _, gone := s.deleted[sessionID]; gone {
		return entities.Session{}, domainerrors.ErrNoActiveSession
	}
	return session, nil
}

func (s *Store) CreateSession(_ context.Context, session entities.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.SessionID]; exists {
		return domainerrors.ErrRepositoryInvariantBroke
	}
	if session.IsPending() {
		if _, found := s.pendingSessionLocked(session.UserID); found {
			return domainerrors.ErrConcurrentSessionStart
		}
	}
	s.sessions[session.SessionID] = session
	return nil
}

func (s *Store) EndSession(_ context.Context, sessionID string, endedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok || !session.IsPending() {
		return domainerrors.ErrNoActiveSession
	}
	if _, gone := s.deleted[sessionID]; gone {
		return domainerrors.ErrNoActiveSession
	}
	session.Status = entities.SessionStatusCompleted
	session.UpdatedAt = endedAt.UTC()
	s.sessions[sessionID] = session
	s.deleted[sessionID] = endedAt.UTC()
	return nil
}

func (s *Store) ListStalePendingSessions(_ context.Context, startedBefore time.Time, limit int) ([]entities.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = 100
	}
	var stale []entities.Session
	for id, session := range s.sessions {
		if _, gone := s.deleted[id]; gone || !session.IsPending() {
			continue
		}
		if session.StartedAt.Before(startedBefore.UTC()) {
			stale = append(stale, session)
		}
	}
	sort.Slice(stale, func(i, j int) bool {
		return stale[i].StartedAt.Before(stale[j].StartedAt)
	})
	if len(stale) > limit {
		stale = stale[:limit]
	}
	return stale, nil
}

func (s *Store) ListSessionItems(_ context.Context, sessionID string) ([]entities.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var items []entities.Item
	for _, item := range s.items {
		if item.SessionID == sessionID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Ordinal < items[j].Ordinal
	})
	return items, nil
}

func (s *Store) ListAllocationBlockers(_ context.Context, scope ports.AllocationScope) ([]entities.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var items []entities.Item
	for _, item := range s.items {
		if item.Activity == scope.Activity && item.LanguageQID == scope.LanguageQID && isBlocking(item) {
			items = append(items, item)
		}
	}
	return items, nil
}

func (s *Store) FindAllocationBlockers(_ context.Context, scope ports.AllocationScope, subID string) ([]entities.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var items []entities.Item
	for _, item := range s.items {
		if item.Activity == scope.Activity && item.SubID == subID && isBlocking(item) {
			items = append(items, item)
		}
	}
	return items, nil
}

func (s *Store) CreateItem(_ context.Context, item entities.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[item.ItemID]; exists {
		return domainerrors.ErrRepositoryInvariantBroke
	}
	if item.IsPending() {
		for _, existing := range s.items {
			if existing.IsPending() && existing.Activity == item.Activity && existing.SubID == item.SubID {
				return domainerrors.ErrRepositoryInvariantBroke
			}
		}
	}
	item.Images = append([]string(nil), item.Images...)
	s.items[item.ItemID] = item
	return nil
}

func (s *Store) GetItem(_ context.Context, sessionID string, itemID string) (entities.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[itemID]
	if !ok || item.SessionID != sessionID {
		return entities.Item{}, domainerrors.ErrItemNotFound
	}
	return item, nil
}

func (s *Store) GetItemForUpdate(ctx context.Context, sessionID string, itemID string) (entities.Item, error) {
	return s.GetItem(ctx, sessionID, itemID)
}

func (s *Store) UpdateItem(_ context.Context, item entities.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.items[item.ItemID]
	if !ok || !existing.IsPending() {
		return domainerrors.ErrItemNotFound
	}
	existing.Status = item.Status
	existing.Result = item.Result
	existing.UpdatedAt = item.UpdatedAt.UTC()
	s.items[item.ItemID] = existing
	return nil
}

func (s *Store) DeleteSessionItems(_ context.Context, sessionID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for id, item := range s.items {
		if item.SessionID == sessionID {
			delete(s.items, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *Store) GetLanguageByCode(_ context.Context, code string) (entities.Language, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, language := range s.languages {
		if language.Code == code {
			return language, nil
		}
	}
	return entities.Language{}, domainerrors.ErrLanguageNotFound
}

func (s *Store) ListLanguages(_ context.Context) ([]entities.Language, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	languages := make([]entities.Language, 0, len(s.languages))
	for _, language := range s.languages {
		languages = append(languages, language)
	}
	sort.Slice(languages, func(i, j int) bool {
		return languages[i].Code < languages[j].Code
	})
	return languages, nil
}

// LockAllocationScope only validates the association; WithinTx already
// serializes every transaction.
func (s *Store) LockAllocationScope(_ context.Context, languageID string, activity entities.ActivityKind) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	language, ok := s.languages[languageID]
	if !ok {
		return domainerrors.ErrLanguageNotFound
	}
	if _, ok := language.Activity(activity); !ok {
		return domainerrors.ErrActivityNotAvailable
	}
	return nil
}

func (s *Store) GetPreference(_ context.Context, userID string) (entities.Preference, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	preference, ok := s.preferences[userID]
	return preference, ok, nil
}

func (s *Store) SavePreference(_ context.Context, preference entities.Preference) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preferences[preference.UserID] = preference
	return nil
}

func (s *Store) ClearActiveActivity(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	preference, ok := s.preferences[userID]
	if !ok {
		return nil
	}
	preference.ActiveActivity = ""
	s.preferences[userID] = preference
	return nil
}

func (s *Store) AppendOutbox(_ context.Context, event ports.ContributionEvent) error {
	data := map[string]any{
		"session_id": event.SessionID,
		"user_id":    event.UserID,
		"activity":   string(event.Activity),
		"status":     event.Status,
	}
	if event.ItemID != "" {
		data["item_id"] = event.ItemID
	}
	for key, value := range event.Attributes {
		data[key] = value
	}
	partitionKeyPath := "user_id"
	if event.ItemID != "" {
		partitionKeyPath = "sub_id"
	}
	envelope, err := contractsv1.NewEnvelope(
		event.EventID,
		event.EventType,
		"contribution-engine",
		partitionKeyPath,
		event.PartitionKey,
		event.OccurredAt,
		data,
	)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.outbox[event.EventID]; exists {
		return domainerrors.ErrRepositoryInvariantBroke
	}
	s.outbox[event.EventID] = ports.OutboxMessage{
		OutboxID:     event.EventID,
		EventType:    event.EventType,
		PartitionKey: event.PartitionKey,
		Payload:      payload,
		CreatedAt:    event.OccurredAt.UTC(),
	}
	s.outboxOrder = append(s.outboxOrder, event.EventID)

	s.logger.Debug("outbox event appended in memory store",
		"event", "memory_append_outbox",
		"module", application.ModuleName,
		"layer", "adapter",
		"event_type", event.EventType,
		"session_id", event.SessionID,
		"outbox_event_id", event.EventID,
	)
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	messages := make([]ports.OutboxMessage, 0, limit)
	for _, id := range s.outboxOrder {
		if _, sent := s.outboxSent[id]; sent {
			continue
		}
		if msg, ok := s.outbox[id]; ok {
			messages = append(messages, msg)
		}
		if len(messages) >= limit {
			break
		}
	}
	return messages, nil
}

func (s *Store) MarkOutboxSent(_ context.Context, outboxID string, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.outbox[outboxID]; !ok {
		return domainerrors.ErrRepositoryInvariantBroke
	}
	s.outboxSent[outboxID] = sentAt.UTC()
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	value := atomic.AddUint64(&s.sequence, 1)
	return fmt.Sprintf("lc-%d", value), nil
}

func (s *Store) OutboxEvents() []ports.OutboxMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]ports.OutboxMessage, 0, len(s.outboxOrder))
	for _, id := range s.outboxOrder {
		if evt, ok := s.outbox[id]; ok {
			events = append(events, evt)
		}
	}
	return events
}

// Items returns every stored item, ordered by session then ordinal.
func (s *Store) Items() []entities.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.Item, 0, len(s.items))
	for _, item := range s.items {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].SessionID == items[j].SessionID {
			return items[i].Ordinal < items[j].Ordinal
		}
		return items[i].SessionID < items[j].SessionID
	})
	return items
}

func isBlocking(item entities.Item) bool {
	return item.Status == entities.ItemStatusPending || item.Status == entities.ItemStatusNoItem
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
