package ports

import (
	"context"
	"time"

	"lexcontrib/contexts/lexeme-contribution/contribution-engine/domain/entities"
	contractsv1 "lexcontrib/contracts/gen/events/v1"
)

// CandidateQuery asks the corpus for one randomized batch of work items.
type CandidateQuery struct {
	Activity        entities.ActivityKind
	LanguageQID     string
	LanguageCode    string
	VariantCode     string
	ExcludeIDs      []string
	DisplayLanguage string
	Limit           int
}

// LookupQuery re-reads known work items by sub-identifier (resume path).
type LookupQuery struct {
	Activity        entities.ActivityKind
	LanguageQID     string
	LanguageCode    string
	VariantCode     string
	IncludeIDs      []string
	DisplayLanguage string
}

type EntityRequest struct {
	EntityID string
	Language string
	UseLang  string
	Props    []string
}

// StatementValue is the decoded main value of a statement or qualifier.
// EntityID is set for item/lexeme/sense/form values, Text for strings and
// monolingual text.
type StatementValue struct {
	EntityID string
	Text     string
	Language string
}

type Statement struct {
	Property   string
	Value      StatementValue
	Qualifiers map[string][]StatementValue
}

type SenseDocument struct {
	ID      string
	Glosses map[string]string
	Claims  map[string][]Statement
}

type FormDocument struct {
	ID                  string
	Representations     map[string]string
	GrammaticalFeatures []string
	Claims              map[string][]Statement
}

// EntityDocument is a raw corpus entity: items carry labels, lexemes carry
// lemmas/senses/forms, and directly fetched senses/forms carry glosses or
// representations.
type EntityDocument struct {
	ID                  string
	Type                string
	Labels              map[string]string
	Descriptions        map[string]string
	Aliases             map[string][]string
	Lemmas              map[string]string
	Glosses             map[string]string
	Representations     map[string]string
	LexicalCategory     string
	Language            string
	GrammaticalFeatures []string
	Claims              map[string][]Statement
	Senses              []SenseDocument
	Forms               []FormDocument
}

// DisplayLabel returns the first non-empty label for the preferred languages.
func (d EntityDocument) DisplayLabel(languages ...string) string {
	for _, language := range languages {
		if language == "" {
			continue
		}
		for _, values := range []map[string]string{d.Labels, d.Lemmas, d.Glosses, d.Representations} {
			if value := values[language]; value != "" {
				return value
			}
		}
	}
	return ""
}

// ClaimWrite adds one statement to TargetID. Value carries either an entity id
// or a string.
type ClaimWrite struct {
	Token       string
	AccessToken string
	TargetID    string
	Property    string
	Value       StatementValue
	Summary     string
}

// EntityEdit sets lemma variants on a lexeme.
type EntityEdit struct {
	Token       string
	AccessToken string
	TargetID    string
	Lemmas      map[string]string
	Summary     string
}

// CandidateSource is the external corpus. It is never part of a store
// transaction; writes are at-least-once.
type CandidateSource interface {
	FetchCandidates(ctx context.Context, query CandidateQuery) ([]entities.Candidate, error)
	FetchByIDs(ctx context.Context, query LookupQuery) ([]entities.Candidate, error)
	GetEntity(ctx context.Context, request EntityRequest) (EntityDocument, error)
	GetWriteToken(ctx context.Context, accessToken string) (string, error)
	SubmitClaim(ctx context.Context, write ClaimWrite) error
	SubmitEdit(ctx context.Context, edit EntityEdit) error
}

// AllocationScope bounds exclusion reads to one language/activity pair.
type AllocationScope struct {
	Activity    entities.ActivityKind
	LanguageQID string
}

type SessionRepository interface {
	// GetPendingSession locks the user's pending session row when called in a transaction.
	GetPendingSession(ctx context.Context, userID string) (entities.Session, bool, error)
	GetSession(ctx context.Context, sessionID string) (entities.Session, error)
	CreateSession(ctx context.Context, session entities.Session) error
	// EndSession marks the session completed and soft-deletes it.
	EndSession(ctx context.Context, sessionID string, endedAt time.Time) error
	ListStalePendingSessions(ctx context.Context, startedBefore time.Time, limit int) ([]entities.Session, error)
}

type ItemRepository interface {
	ListSessionItems(ctx context.Context, sessionID string) ([]entities.Item, error)
	// ListAllocationBlockers returns locked pending/no_item rows of the scope.
	ListAllocationBlockers(ctx context.Context, scope AllocationScope) ([]entities.Item, error)
	// FindAllocationBlockers re-reads, under lock, rows of the scope holding subID.
	FindAllocationBlockers(ctx context.Context, scope AllocationScope, subID string) ([]entities.Item, error)
	CreateItem(ctx context.Context, item entities.Item) error
	GetItem(ctx context.Context, sessionID string, itemID string) (entities.Item, error)
	GetItemForUpdate(ctx context.Context, sessionID string, itemID string) (entities.Item, error)
	UpdateItem(ctx context.Context, item entities.Item) error
	DeleteSessionItems(ctx context.Context, sessionID string) (int, error)
}

type LanguageRepository interface {
	GetLanguageByCode(ctx context.Context, code string) (entities.Language, error)
	ListLanguages(ctx context.Context) ([]entities.Language, error)
	// LockAllocationScope serializes allocators of one language/activity pair.
	LockAllocationScope(ctx context.Context, languageID string, activity entities.ActivityKind) error
}

type PreferenceRepository interface {
	GetPreference(ctx context.Context, userID string) (entities.Preference, bool, error)
	SavePreference(ctx context.Context, preference entities.Preference) error
	ClearActiveActivity(ctx context.Context, userID string) error
}

// ContributionEvent is the outbound integration payload persisted to outbox.
type ContributionEvent struct {
	EventID      string
	EventType    string
	SessionID    string
	ItemID       string
	UserID       string
	Activity     entities.ActivityKind
	Status       string
	PartitionKey string
	OccurredAt   time.Time
	Attributes   map[string]any
}

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, event ContributionEvent) error
}

// Repositories is the transaction-scoped view handed to UnitOfWork callbacks.
type Repositories struct {
	Sessions    SessionRepository
	Items       ItemRepository
	Languages   LanguageRepository
	Preferences PreferenceRepository
	Outbox      OutboxWriter
}

// UnitOfWork runs fn in one store transaction; any returned error rolls back.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// OutboxMessage is a row ready to relay from the module outbox.
type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

// OutboxRepository models worker-side outbox polling/acknowledgement.
type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxSent(ctx context.Context, outboxID string, sentAt time.Time) error
}

// EventEnvelope reuses the canonical cross-runtime envelope contract.
type EventEnvelope = contractsv1.Envelope

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

type EventSubscriber interface {
	Subscribe(
		ctx context.Context,
		topic string,
		consumerGroup string,
		handler func(context.Context, EventEnvelope) error,
	) error
}
