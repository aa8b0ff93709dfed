package queries_test

import (
	"context"
	"testing"

	"lexcontrib/contexts/lexeme-contribution/contribution-engine/adapters/memory"
	"lexcontrib/contexts/lexeme-contribution/contribution-engine/application/commands"
	"lexcontrib/contexts/lexeme-contribution/contribution-engine/application/queries"
	"lexcontrib/contexts/lexeme-contribution/contribution-engine/domain/entities"
	domainerrors "lexcontrib/contexts/lexeme-contribution/contribution-engine/domain/errors"
	"lexcontrib/contexts/lexeme-contribution/contribution-engine/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store   *memory.Store
	corpus  *memory.Corpus
	start   commands.StartSessionUseCase
	owner   entities.Contributor
	session entities.Session
	items   []entities.Item
}

func itemRef(id string) ports.Statement {
	return ports.Statement{Value: ports.StatementValue{EntityID: id}}
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := memory.NewStore([]entities.Language{
		{
			LanguageID: "lang-sr", QID: "Q9299", Code: "sr", Name: "Serbian",
			Activities: []entities.LanguageActivity{{LanguageID: "lang-sr", Activity: entities.ActivityConnect}},
		},
		{LanguageID: "lang-de", QID: "Q188", Code: "de", Name: "German"},
	}, nil)
	corpus := memory.NewCorpus([]memory.CorpusEntry{
		{Activity: entities.ActivityConnect, LanguageQID: "Q9299", Candidate: entities.Candidate{LexemeID: "L1", SenseID: "L1-S1", Lemma: "kuća"}},
	}, []ports.EntityDocument{
		{
			ID:              "L1",
			Type:            "lexeme",
			Lemmas:          map[string]string{"sr": "кућа", "sr-el": "kuća"},
			Language:        "Q9299",
			LexicalCategory: "Q1084",
			Claims: map[string][]ports.Statement{
				entities.PropertyUsageExample: {{
					Value:      ports.StatementValue{Text: "Моја кућа", Language: "sr"},
					Qualifiers: map[string][]ports.StatementValue{entities.PropertyDemonstratesSense: {{EntityID: "L1-S1"}}},
				}},
			},
			Senses: []ports.SenseDocument{{
				ID:      "L1-S1",
				Glosses: map[string]string{"en": "house"},
				Claims: map[string][]ports.Statement{
					entities.PropertyItemForSense: {itemRef("Q3947")},
					entities.PropertySynonym:      {itemRef("L404-S1")},
				},
			}},
			Forms: []ports.FormDocument{{
				ID:                  "L1-F1",
				Representations:     map[string]string{"sr": "кућа"},
				GrammaticalFeatures: []string{"Q131105"},
			}},
		},
		{ID: "Q9299", Labels: map[string]string{"sr": "српски", "en": "Serbian"}},
		{ID: "Q1084", Labels: map[string]string{"en": "noun"}},
		{ID: "Q3947", Labels: map[string]string{"sr": "кућа", "en": "house"}},
		{ID: "Q131105", Labels: map[string]string{"en": "nominative case"}},
		{ID: "L1-S1", Glosses: map[string]string{"en": "house"}},
	})

	start := commands.StartSessionUseCase{UnitOfWork: store, Corpus: corpus, Clock: store, IDGenerator: store, BatchSize: 5}
	owner := entities.Contributor{UserID: "u1", ExternalUserID: "ext-u1"}
	result, err := start.Execute(context.Background(), commands.StartSessionCommand{
		Contributor:  owner,
		Activity:     entities.ActivityConnect,
		LanguageCode: "sr",
	})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	return fixture{store: store, corpus: corpus, start: start, owner: owner, session: result.Session, items: result.Items}
}

func (f fixture) detailUseCase() queries.GetItemDetailUseCase {
	return queries.GetItemDetailUseCase{Sessions: f.store, Items: f.store, Corpus: f.corpus, LookupConcurrency: 2}
}

func TestGetItemDetailResolvesLabels(t *testing.T) {
	f := newFixture(t)

	detail, err := f.detailUseCase().Execute(context.Background(), queries.GetItemDetailQuery{
		Contributor: f.owner,
		SessionID:   f.session.SessionID,
		Activity:    entities.ActivityConnect,
		ItemID:      f.items[0].ItemID,
	})
	require.NoError(t, err)

	lexeme := detail.Lexeme
	assert.Equal(t, "L1", lexeme.LexemeID)
	assert.Equal(t, "кућа", lexeme.Lemma)
	assert.Equal(t, queries.EntityRef{ID: "Q9299", Label: "српски"}, lexeme.Language)
	assert.Equal(t, queries.EntityRef{ID: "Q1084", Label: "noun"}, lexeme.Category)

	require.Len(t, lexeme.UsageExamples, 1)
	assert.Equal(t, "Моја кућа", lexeme.UsageExamples[0].Text)
	assert.Equal(t, queries.EntityRef{ID: "L1-S1", Label: "house"}, lexeme.UsageExamples[0].DemonstratesSense)

	require.Len(t, lexeme.Senses, 1)
	sense := lexeme.Senses[0]
	assert.Equal(t, "house", sense.Gloss)
	assert.Equal(t, []queries.EntityRef{{ID: "Q3947", Label: "кућа"}}, sense.ItemsForSense)
	// Unresolvable references keep their id with an empty label.
	assert.Equal(t, []queries.EntityRef{{ID: "L404-S1"}}, sense.Synonyms)

	require.Len(t, lexeme.Forms, 1)
	assert.Equal(t, []queries.EntityRef{{ID: "Q131105", Label: "nominative case"}}, lexeme.Forms[0].GrammaticalFeatures)
}

func TestGetItemDetailHidesForeignItems(t *testing.T) {
	f := newFixture(t)
	useCase := f.detailUseCase()

	testCases := []struct {
		name  string
		query queries.GetItemDetailQuery
	}{
		{
			name: "other user",
			query: queries.GetItemDetailQuery{
				Contributor: entities.Contributor{UserID: "u2", ExternalUserID: "ext-u2"},
				SessionID:   f.session.SessionID, Activity: entities.ActivityConnect, ItemID: f.items[0].ItemID,
			},
		},
		{
			name: "wrong activity",
			query: queries.GetItemDetailQuery{
				Contributor: f.owner,
				SessionID:   f.session.SessionID, Activity: entities.ActivityScript, ItemID: f.items[0].ItemID,
			},
		},
		{
			name: "unknown session",
			query: queries.GetItemDetailQuery{
				Contributor: f.owner,
				SessionID:   "missing", Activity: entities.ActivityConnect, ItemID: f.items[0].ItemID,
			},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := useCase.Execute(context.Background(), tc.query)
			assert.ErrorIs(t, err, domainerrors.ErrItemNotFound)
		})
	}
}

func TestGetItemDetailLexemeLookupFailure(t *testing.T) {
	f := newFixture(t)
	useCase := f.detailUseCase()
	useCase.Corpus = memory.NewCorpus(nil, nil)

	_, err := useCase.Execute(context.Background(), queries.GetItemDetailQuery{
		Contributor: f.owner,
		SessionID:   f.session.SessionID,
		Activity:    entities.ActivityConnect,
		ItemID:      f.items[0].ItemID,
	})
	assert.ErrorIs(t, err, domainerrors.ErrExternalLookupFailed)
}

func TestGetCurrentSession(t *testing.T) {
	f := newFixture(t)
	useCase := queries.GetCurrentSessionUseCase{Sessions: f.store, Items: f.store, Preferences: f.store}

	current, err := useCase.Execute(context.Background(), queries.GetCurrentSessionQuery{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, f.session.SessionID, current.Session.SessionID)
	assert.Equal(t, 1, current.ItemCount)
	assert.Equal(t, 1, current.PendingCount)
	assert.Equal(t, entities.ActivityConnect, current.ActiveActivity)

	_, err = useCase.Execute(context.Background(), queries.GetCurrentSessionQuery{UserID: "u2"})
	assert.ErrorIs(t, err, domainerrors.ErrNoActiveSession)

	_, err = useCase.Execute(context.Background(), queries.GetCurrentSessionQuery{})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidRequest)
}

func TestListLanguages(t *testing.T) {
	f := newFixture(t)

	languages, err := queries.ListLanguagesUseCase{Languages: f.store}.Execute(context.Background())
	require.NoError(t, err)
	codes := make([]string, 0, len(languages))
	for _, language := range languages {
		codes = append(codes, language.Code)
	}
	assert.ElementsMatch(t, []string{"sr", "de"}, codes)
}
