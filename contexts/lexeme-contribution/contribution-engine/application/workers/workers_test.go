package workers_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"lexcontrib/contexts/lexeme-contribution/contribution-engine/adapters/memory"
	"lexcontrib/contexts/lexeme-contribution/contribution-engine/application/commands"
	"lexcontrib/contexts/lexeme-contribution/contribution-engine/application/workers"
	"lexcontrib/contexts/lexeme-contribution/contribution-engine/domain/entities"
	"lexcontrib/contexts/lexeme-contribution/contribution-engine/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type recordingPublisher struct {
	mu        sync.Mutex
	topics    []string
	events    []ports.EventEnvelope
	err       error
	failUsers map[string]bool
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, event ports.EventEnvelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	if p.failUsers[event.PartitionKey] {
		return errors.New("partition unavailable")
	}
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return nil
}

func startedStore(t *testing.T, users ...string) (*memory.Store, commands.EndSessionUseCase) {
	t.Helper()
	store := memory.NewStore([]entities.Language{{
		LanguageID: "lang-sr", QID: "Q9299", Code: "sr",
		Activities: []entities.LanguageActivity{{LanguageID: "lang-sr", Activity: entities.ActivityScript}},
	}}, nil)
	corpus := memory.NewCorpus([]memory.CorpusEntry{
		{Activity: entities.ActivityScript, LanguageQID: "Q9299", Candidate: entities.Candidate{LexemeID: "L1"}},
		{Activity: entities.ActivityScript, LanguageQID: "Q9299", Candidate: entities.Candidate{LexemeID: "L2"}},
	}, nil)
	start := commands.StartSessionUseCase{UnitOfWork: store, Corpus: corpus, Clock: store, IDGenerator: store, BatchSize: 1}
	for _, user := range users {
		_, err := start.Execute(context.Background(), commands.StartSessionCommand{
			Contributor:  entities.Contributor{UserID: user},
			Activity:     entities.ActivityScript,
			LanguageCode: "sr",
		})
		require.NoError(t, err)
	}
	return store, commands.EndSessionUseCase{UnitOfWork: store, Clock: store, IDGenerator: store}
}

func TestOutboxRelayPublishesByEventType(t *testing.T) {
	store, _ := startedStore(t, "u1")
	publisher := &recordingPublisher{}
	relay := workers.OutboxRelay{Outbox: store, Publisher: publisher, Clock: store}

	require.NoError(t, relay.RunOnce(context.Background()))
	require.Len(t, publisher.events, 1)
	assert.Equal(t, commands.EventSessionStarted, publisher.topics[0])
	assert.Equal(t, "u1", publisher.events[0].PartitionKey)

	pending, err := store.ListPendingOutbox(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	require.NoError(t, relay.RunOnce(context.Background()))
	assert.Len(t, publisher.events, 1)
}

func TestOutboxRelayKeepsRowsOnPublishFailure(t *testing.T) {
	store, _ := startedStore(t, "u1")
	relay := workers.OutboxRelay{Outbox: store, Publisher: &recordingPublisher{err: errors.New("bus down")}, Topic: "fixed"}

	require.Error(t, relay.RunOnce(context.Background()))
	pending, err := store.ListPendingOutbox(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestOutboxRelayHoldsOnlyFailingPartition(t *testing.T) {
	store, end := startedStore(t, "u1", "u2")
	_, err := end.Execute(context.Background(), commands.EndSessionCommand{UserID: "u1"})
	require.NoError(t, err)

	publisher := &recordingPublisher{failUsers: map[string]bool{"u1": true}}
	relay := workers.OutboxRelay{Outbox: store, Publisher: publisher}

	require.Error(t, relay.RunOnce(context.Background()))
	require.Len(t, publisher.events, 1)
	assert.Equal(t, "u2", publisher.events[0].PartitionKey)

	pending, err := store.ListPendingOutbox(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, commands.EventSessionStarted, pending[0].EventType)
	assert.Equal(t, commands.EventSessionEnded, pending[1].EventType)

	publisher.failUsers = nil
	require.NoError(t, relay.RunOnce(context.Background()))
	require.Len(t, publisher.events, 3)
	assert.Equal(t, []string{commands.EventSessionStarted, commands.EventSessionStarted, commands.EventSessionEnded}, publisher.topics)
}

func TestSessionExpirerEndsStaleSessions(t *testing.T) {
	store, end := startedStore(t, "u1", "u2")
	expirer := workers.SessionExpirer{
		Sessions:   store,
		EndSession: end,
		Clock:      fixedClock{now: time.Now().Add(48 * time.Hour)},
		TTL:        24 * time.Hour,
	}

	require.NoError(t, expirer.RunOnce(context.Background()))
	for _, user := range []string{"u1", "u2"} {
		_, found, err := store.GetPendingSession(context.Background(), user)
		require.NoError(t, err)
		assert.False(t, found, user)
	}
	assert.Empty(t, store.Items())
}

func TestSessionExpirerLeavesFreshSessions(t *testing.T) {
	store, end := startedStore(t, "u1")
	expirer := workers.SessionExpirer{Sessions: store, EndSession: end, Clock: store, TTL: time.Hour}

	require.NoError(t, expirer.RunOnce(context.Background()))
	_, found, err := store.GetPendingSession(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, found)
}
