package commands_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"lexcontrib/contexts/lexeme-contribution/contribution-engine/adapters/memory"
	"lexcontrib/contexts/lexeme-contribution/contribution-engine/application/commands"
	"lexcontrib/contexts/lexeme-contribution/contribution-engine/domain/entities"
	domainerrors "lexcontrib/contexts/lexeme-contribution/contribution-engine/domain/errors"
	"lexcontrib/contexts/lexeme-contribution/contribution-engine/domain/services"
	"lexcontrib/contexts/lexeme-contribution/contribution-engine/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func languages() []entities.Language {
	return []entities.Language{{
		LanguageID: "lang-sr",
		QID:        "Q9299",
		Code:       "sr",
		Name:       "Serbian",
		Activities: []entities.LanguageActivity{
			{LanguageID: "lang-sr", Activity: entities.ActivityConnect},
			{LanguageID: "lang-sr", Activity: entities.ActivityScript, VariantCode: "sr-el"},
			{LanguageID: "lang-sr", Activity: entities.ActivityHyphenation},
		},
	}}
}

func entries(activity entities.ActivityKind, count int) []memory.CorpusEntry {
	out := make([]memory.CorpusEntry, 0, count)
	for i := 1; i <= count; i++ {
		candidate := entities.Candidate{LexemeID: fmt.Sprintf("L%d", i), Lemma: fmt.Sprintf("lemma-%d", i)}
		switch activity {
		case entities.ActivityConnect:
			candidate.SenseID = fmt.Sprintf("L%d-S1", i)
		case entities.ActivityHyphenation:
			candidate.FormID = fmt.Sprintf("L%d-F1", i)
		}
		out = append(out, memory.CorpusEntry{Activity: activity, LanguageQID: "Q9299", Candidate: candidate})
	}
	return out
}

type fixture struct {
	store  *memory.Store
	corpus *memory.Corpus
	start  commands.StartSessionUseCase
	update commands.UpdateItemUseCase
	end    commands.EndSessionUseCase
}

func newFixture(source []memory.CorpusEntry) fixture {
	store := memory.NewStore(languages(), nil)
	corpus := memory.NewCorpus(source, nil)
	return fixture{
		store:  store,
		corpus: corpus,
		start: commands.StartSessionUseCase{
			UnitOfWork:  store,
			Corpus:      corpus,
			Clock:       store,
			IDGenerator: store,
			BatchSize:   3,
			MaxAttempts: 3,
		},
		update: commands.UpdateItemUseCase{UnitOfWork: store, Corpus: corpus, Clock: store, IDGenerator: store},
		end:    commands.EndSessionUseCase{UnitOfWork: store, Clock: store, IDGenerator: store},
	}
}

func user(id string) entities.Contributor {
	return entities.Contributor{UserID: id, ExternalUserID: "ext-" + id, AccessToken: "token-" + id}
}

// stubbornCorpus keeps offering the same candidate regardless of exclusions.
type stubbornCorpus struct {
	ports.CandidateSource
	candidate entities.Candidate
}

func (s stubbornCorpus) FetchCandidates(context.Context, ports.CandidateQuery) ([]entities.Candidate, error) {
	return []entities.Candidate{s.candidate}, nil
}

func TestStartSessionAllocatesBatchAndPreference(t *testing.T) {
	f := newFixture(entries(entities.ActivityConnect, 5))

	result, err := f.start.Execute(context.Background(), commands.StartSessionCommand{
		Contributor:  user("u1"),
		Activity:     entities.ActivityConnect,
		LanguageCode: "sr",
	})
	require.NoError(t, err)
	assert.False(t, result.Resumed)
	require.Len(t, result.Items, 3)
	assert.Equal(t, "L1-S1", result.Items[0].SubID)
	assert.Equal(t, "Q9299", result.Items[0].LanguageQID)

	preference, found, err := f.store.GetPreference(context.Background(), "u1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, entities.ActivityConnect, preference.ActiveActivity)
	assert.Equal(t, "sr", preference.LanguageCode)
}

func TestStartSessionValidation(t *testing.T) {
	f := newFixture(entries(entities.ActivityConnect, 1))

	cases := []struct {
		name string
		cmd  commands.StartSessionCommand
		want error
	}{
		{"missing user", commands.StartSessionCommand{Activity: entities.ActivityConnect, LanguageCode: "sr"}, domainerrors.ErrInvalidRequest},
		{"connect without external account", commands.StartSessionCommand{Contributor: entities.Contributor{UserID: "u1"}, Activity: entities.ActivityConnect, LanguageCode: "sr"}, domainerrors.ErrInvalidRequest},
		{"unknown activity", commands.StartSessionCommand{Contributor: user("u1"), Activity: "translate", LanguageCode: "sr"}, domainerrors.ErrInvalidRequest},
		{"unknown language", commands.StartSessionCommand{Contributor: user("u1"), Activity: entities.ActivityConnect, LanguageCode: "xx"}, domainerrors.ErrLanguageNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.start.Execute(context.Background(), tc.cmd)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestStartSessionActivityNotAvailable(t *testing.T) {
	store := memory.NewStore([]entities.Language{{
		LanguageID: "lang-de", QID: "Q188", Code: "de",
		Activities: []entities.LanguageActivity{{LanguageID: "lang-de", Activity: entities.ActivityConnect}},
	}}, nil)
	uc := commands.StartSessionUseCase{UnitOfWork: store, Corpus: memory.NewCorpus(nil, nil), Clock: store, IDGenerator: store}

	_, err := uc.Execute(context.Background(), commands.StartSessionCommand{
		Contributor: user("u1"), Activity: entities.ActivityScript, LanguageCode: "de",
	})
	require.ErrorIs(t, err, domainerrors.ErrActivityNotAvailable)
}

func TestStartSessionEmptyCorpusRollsBack(t *testing.T) {
	f := newFixture(nil)

	_, err := f.start.Execute(context.Background(), commands.StartSessionCommand{
		Contributor: user("u1"), Activity: entities.ActivityConnect, LanguageCode: "sr",
	})
	require.ErrorIs(t, err, domainerrors.ErrCandidatesNotFound)

	_, found, err := f.store.GetPendingSession(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, f.store.OutboxEvents())
}

func TestStartSessionGivesUpAfterMaxAttempts(t *testing.T) {
	f := newFixture(entries(entities.ActivityConnect, 1))
	_, err := f.start.Execute(context.Background(), commands.StartSessionCommand{
		Contributor: user("u1"), Activity: entities.ActivityConnect, LanguageCode: "sr",
	})
	require.NoError(t, err)

	stubborn := f.start
	stubborn.Corpus = stubbornCorpus{CandidateSource: f.corpus, candidate: entities.Candidate{LexemeID: "L1", SenseID: "L1-S1"}}
	_, err = stubborn.Execute(context.Background(), commands.StartSessionCommand{
		Contributor: user("u2"), Activity: entities.ActivityConnect, LanguageCode: "sr",
	})
	require.ErrorIs(t, err, domainerrors.ErrAllocationTimeout)
}

func TestStartSessionHonoursDeadline(t *testing.T) {
	f := newFixture(entries(entities.ActivityConnect, 1))
	_, err := f.start.Execute(context.Background(), commands.StartSessionCommand{
		Contributor: user("u1"), Activity: entities.ActivityConnect, LanguageCode: "sr",
	})
	require.NoError(t, err)

	stubborn := f.start
	stubborn.MaxAttempts = 1000
	stubborn.Deadline = time.Nanosecond
	stubborn.Corpus = stubbornCorpus{CandidateSource: f.corpus, candidate: entities.Candidate{LexemeID: "L1", SenseID: "L1-S1"}}
	_, err = stubborn.Execute(context.Background(), commands.StartSessionCommand{
		Contributor: user("u2"), Activity: entities.ActivityConnect, LanguageCode: "sr",
	})
	require.ErrorIs(t, err, domainerrors.ErrAllocationTimeout)
}

func TestUpdateItemScriptWritesVariantLemma(t *testing.T) {
	f := newFixture(entries(entities.ActivityScript, 1))
	started, err := f.start.Execute(context.Background(), commands.StartSessionCommand{
		Contributor: user("u1"), Activity: entities.ActivityScript, LanguageCode: "sr",
	})
	require.NoError(t, err)

	_, err = f.update.Execute(context.Background(), commands.UpdateItemCommand{
		Contributor: user("u1"),
		SessionID:   started.Session.SessionID,
		Activity:    entities.ActivityScript,
		ItemID:      started.Items[0].ItemID,
		Action:      services.ItemActionAdd,
		Payload:     commands.ItemPayload{Text: "   "},
	})
	require.ErrorIs(t, err, domainerrors.ErrInvalidRequest)

	item, err := f.update.Execute(context.Background(), commands.UpdateItemCommand{
		Contributor: user("u1"),
		SessionID:   started.Session.SessionID,
		Activity:    entities.ActivityScript,
		ItemID:      started.Items[0].ItemID,
		Action:      services.ItemActionAdd,
		Payload:     commands.ItemPayload{Text: "kuća"},
	})
	require.NoError(t, err)
	assert.Equal(t, entities.ItemStatusCompleted, item.Status)

	edits := f.corpus.Edits()
	require.Len(t, edits, 1)
	assert.Equal(t, "L1", edits[0].TargetID)
	assert.Equal(t, map[string]string{"sr-el": "kuća"}, edits[0].Lemmas)
	assert.Equal(t, "token-u1", edits[0].AccessToken)
}

func TestUpdateItemHyphenationFlattensSegments(t *testing.T) {
	f := newFixture(entries(entities.ActivityHyphenation, 1))
	started, err := f.start.Execute(context.Background(), commands.StartSessionCommand{
		Contributor: user("u1"), Activity: entities.ActivityHyphenation, LanguageCode: "sr",
	})
	require.NoError(t, err)

	item, err := f.update.Execute(context.Background(), commands.UpdateItemCommand{
		Contributor: user("u1"),
		SessionID:   started.Session.SessionID,
		Activity:    entities.ActivityHyphenation,
		ItemID:      started.Items[0].ItemID,
		Action:      services.ItemActionAdd,
		Payload:     commands.ItemPayload{Segments: []string{"ku", "ća"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "ku‧ća", item.Result)

	claims := f.corpus.Claims()
	require.Len(t, claims, 1)
	assert.Equal(t, "L1-F1", claims[0].TargetID)
	assert.Equal(t, entities.PropertyHyphenation, claims[0].Property)
}

func TestUpdateItemRejectsWrongActivityPath(t *testing.T) {
	f := newFixture(entries(entities.ActivityConnect, 1))
	started, err := f.start.Execute(context.Background(), commands.StartSessionCommand{
		Contributor: user("u1"), Activity: entities.ActivityConnect, LanguageCode: "sr",
	})
	require.NoError(t, err)

	_, err = f.update.Execute(context.Background(), commands.UpdateItemCommand{
		Contributor: user("u1"),
		SessionID:   started.Session.SessionID,
		Activity:    entities.ActivityScript,
		ItemID:      started.Items[0].ItemID,
		Action:      services.ItemActionSkip,
	})
	require.ErrorIs(t, err, domainerrors.ErrItemNotFound)
}

func TestEndSessionDeletesItemsAndClearsActivity(t *testing.T) {
	f := newFixture(entries(entities.ActivityConnect, 3))
	started, err := f.start.Execute(context.Background(), commands.StartSessionCommand{
		Contributor: user("u1"), Activity: entities.ActivityConnect, LanguageCode: "sr",
	})
	require.NoError(t, err)

	result, err := f.end.Execute(context.Background(), commands.EndSessionCommand{UserID: "u1", Reason: commands.EndReasonUser})
	require.NoError(t, err)
	assert.Equal(t, started.Session.SessionID, result.Session.SessionID)
	assert.Equal(t, 3, result.DeletedItems)
	assert.Empty(t, f.store.Items())

	preference, found, err := f.store.GetPreference(context.Background(), "u1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Empty(t, preference.ActiveActivity)

	_, err = f.store.GetSession(context.Background(), started.Session.SessionID)
	require.ErrorIs(t, err, domainerrors.ErrNoActiveSession)
}

func TestEndSessionExpectedIDMismatch(t *testing.T) {
	f := newFixture(entries(entities.ActivityConnect, 1))
	_, err := f.start.Execute(context.Background(), commands.StartSessionCommand{
		Contributor: user("u1"), Activity: entities.ActivityConnect, LanguageCode: "sr",
	})
	require.NoError(t, err)

	_, err = f.end.Execute(context.Background(), commands.EndSessionCommand{UserID: "u1", ExpectedSessionID: "other", Reason: commands.EndReasonExpired})
	require.ErrorIs(t, err, domainerrors.ErrNoActiveSession)
	assert.Len(t, f.store.Items(), 1)
}

// racingStore reports subID as held by another user's pending row, as if a
// concurrent allocator committed it after the exclusion snapshot was taken.
type racingStore struct {
	*memory.Store
	subID string
}

func (s racingStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repos ports.Repositories) error) error {
	return s.Store.WithinTx(ctx, func(ctx context.Context, repos ports.Repositories) error {
		repos.Items = racingItems{ItemRepository: repos.Items, subID: s.subID}
		return fn(ctx, repos)
	})
}

type racingItems struct {
	ports.ItemRepository
	subID string
}

func (r racingItems) FindAllocationBlockers(ctx context.Context, scope ports.AllocationScope, subID string) ([]entities.Item, error) {
	if subID == r.subID {
		return []entities.Item{{
			ItemID:         "held-elsewhere",
			SessionID:      "other-session",
			Activity:       scope.Activity,
			UserID:         "u9",
			ExternalUserID: "ext-u9",
			SubID:          subID,
			LanguageQID:    scope.LanguageQID,
			Status:         entities.ItemStatusPending,
		}}, nil
	}
	return r.ItemRepository.FindAllocationBlockers(ctx, scope, subID)
}

type countingCorpus struct {
	ports.CandidateSource
	excludes [][]string
}

func (c *countingCorpus) FetchCandidates(ctx context.Context, query ports.CandidateQuery) ([]entities.Candidate, error) {
	c.excludes = append(c.excludes, append([]string(nil), query.ExcludeIDs...))
	return c.CandidateSource.FetchCandidates(ctx, query)
}

func TestStartSessionRefetchesWhenCandidateTakenConcurrently(t *testing.T) {
	f := newFixture(entries(entities.ActivityConnect, 5))
	corpus := &countingCorpus{CandidateSource: f.corpus}
	start := f.start
	start.UnitOfWork = racingStore{Store: f.store, subID: "L1-S1"}
	start.Corpus = corpus

	result, err := start.Execute(context.Background(), commands.StartSessionCommand{
		Contributor: user("u1"), Activity: entities.ActivityConnect, LanguageCode: "sr",
	})
	require.NoError(t, err)

	var subIDs []string
	for _, item := range result.Items {
		subIDs = append(subIDs, item.SubID)
	}
	assert.Equal(t, []string{"L2-S1", "L3-S1", "L4-S1"}, subIDs)
	require.Len(t, corpus.excludes, 2)
	assert.Empty(t, corpus.excludes[0])
	assert.Equal(t, []string{"L1-S1"}, corpus.excludes[1])
}

func startConnect(t *testing.T, f fixture) commands.StartSessionResult {
	t.Helper()
	result, err := f.start.Execute(context.Background(), commands.StartSessionCommand{
		Contributor: user("u1"), Activity: entities.ActivityConnect, LanguageCode: "sr",
	})
	require.NoError(t, err)
	return result
}

func TestResumeFailsWhenNoStoredItemResolves(t *testing.T) {
	f := newFixture(entries(entities.ActivityConnect, 3))
	first := startConnect(t, f)
	for _, item := range first.Items {
		f.corpus.Remove(item.SubID)
	}

	_, err := f.start.Execute(context.Background(), commands.StartSessionCommand{
		Contributor: user("u1"), Activity: entities.ActivityConnect, LanguageCode: "sr",
	})
	require.ErrorIs(t, err, domainerrors.ErrCandidatesNotFound)

	// The session itself survives for a later retry.
	session, found, err := f.store.GetPendingSession(context.Background(), "u1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, first.Session.SessionID, session.SessionID)
}

func TestResumeKeepsStoredStatus(t *testing.T) {
	f := newFixture(entries(entities.ActivityConnect, 3))
	first := startConnect(t, f)

	_, err := f.update.Execute(context.Background(), commands.UpdateItemCommand{
		Contributor: user("u1"),
		SessionID:   first.Session.SessionID,
		Activity:    entities.ActivityConnect,
		ItemID:      first.Items[0].ItemID,
		Action:      services.ItemActionNoItem,
	})
	require.NoError(t, err)
	_, err = f.update.Execute(context.Background(), commands.UpdateItemCommand{
		Contributor: user("u1"),
		SessionID:   first.Session.SessionID,
		Activity:    entities.ActivityConnect,
		ItemID:      first.Items[1].ItemID,
		Action:      services.ItemActionAdd,
		Payload:     commands.ItemPayload{ExternalItemID: "Q3947"},
	})
	require.NoError(t, err)

	resumed := startConnect(t, f)
	require.True(t, resumed.Resumed)
	require.Len(t, resumed.Items, 3)
	assert.Equal(t, entities.ItemStatusNoItem, resumed.Items[0].Status)
	assert.Equal(t, entities.ItemStatusCompleted, resumed.Items[1].Status)
	assert.Equal(t, entities.ItemStatusPending, resumed.Items[2].Status)
}

// refreshedCorpus answers id lookups with updated display fields.
type refreshedCorpus struct {
	ports.CandidateSource
}

func (c refreshedCorpus) FetchByIDs(ctx context.Context, query ports.LookupQuery) ([]entities.Candidate, error) {
	found, err := c.CandidateSource.FetchByIDs(ctx, query)
	if err != nil {
		return nil, err
	}
	for i := range found {
		found[i].Lemma = "fresh-" + found[i].LexemeID
		found[i].Gloss = "fresh gloss"
		found[i].CategoryQID = "Q1084"
		found[i].CategoryLabel = "noun"
		found[i].Images = []string{"House.jpg"}
	}
	return found, nil
}

func TestResumeRefreshesCachedDisplayFields(t *testing.T) {
	f := newFixture(entries(entities.ActivityConnect, 2))
	first := startConnect(t, f)
	assert.Equal(t, "lemma-1", first.Items[0].Lemma)

	resume := f.start
	resume.Corpus = refreshedCorpus{CandidateSource: f.corpus}
	resumed, err := resume.Execute(context.Background(), commands.StartSessionCommand{
		Contributor: user("u1"), Activity: entities.ActivityConnect, LanguageCode: "sr",
	})
	require.NoError(t, err)
	require.True(t, resumed.Resumed)
	require.Len(t, resumed.Items, 2)

	item := resumed.Items[0]
	assert.Equal(t, first.Items[0].ItemID, item.ItemID)
	assert.Equal(t, "fresh-L1", item.Lemma)
	assert.Equal(t, "fresh gloss", item.Gloss)
	assert.Equal(t, "Q1084", item.CategoryQID)
	assert.Equal(t, "noun", item.CategoryLabel)
	assert.Equal(t, []string{"House.jpg"}, item.Images)
	assert.Equal(t, 1, item.Ordinal)
}
