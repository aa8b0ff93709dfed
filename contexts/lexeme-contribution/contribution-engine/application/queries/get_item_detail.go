package queries

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	application "lexcontrib/contexts/lexeme-contribution/contribution-engine/application"
	"lexcontrib/contexts/lexeme-contribution/contribution-engine/domain/entities"
	domainerrors "lexcontrib/contexts/lexeme-contribution/contribution-engine/domain/errors"
	"lexcontrib/contexts/lexeme-contribution/contribution-engine/domain/services"
	"lexcontrib/contexts/lexeme-contribution/contribution-engine/ports"
)

const defaultLookupConcurrency = 8

// Lexeme-level properties rendered as characteristics.
var characteristicProperties = []string{
	entities.PropertyInstanceOf,
	entities.PropertyGrammaticalGender,
	entities.PropertyLanguageStyle,
	entities.PropertyFieldOfUsage,
	entities.PropertyLocationOfSenseUsage,
}

type GetItemDetailQuery struct {
	Contributor entities.Contributor
	SessionID   string
	Activity    entities.ActivityKind
	ItemID      string
}

type GetItemDetailUseCase struct {
	Sessions          ports.SessionRepository
	Items             ports.ItemRepository
	Corpus            ports.CandidateSource
	LookupConcurrency int
	Logger            *slog.Logger
}

// Execute loads the item's lexeme and resolves every referenced entity to a
// label. Only the lexeme lookup itself can fail the request.
func (u GetItemDetailUseCase) Execute(ctx context.Context, query GetItemDetailQuery) (ItemDetail, error) {
	logger := application.ResolveLogger(u.Logger)
	policy, ok := services.PolicyFor(query.Activity)
	if !ok || strings.TrimSpace(query.Contributor.UserID) == "" {
		return ItemDetail{}, domainerrors.ErrInvalidRequest
	}

	session, err := u.Sessions.GetSession(ctx, query.SessionID)
	if errors.Is(err, domainerrors.ErrNoActiveSession) {
		return ItemDetail{}, domainerrors.ErrItemNotFound
	}
	if err != nil {
		return ItemDetail{}, err
	}
	item, err := u.Items.GetItem(ctx, query.SessionID, query.ItemID)
	if err != nil {
		return ItemDetail{}, err
	}
	if !policy.CheckItemAccess(session, item, query.Contributor, false) {
		return ItemDetail{}, domainerrors.ErrItemNotFound
	}

	languages := labelLanguages(session, query.Contributor)
	document, err := u.Corpus.GetEntity(ctx, ports.EntityRequest{
		EntityID: item.LexemeID,
		Language: languages[0],
		UseLang:  languages[1],
	})
	if err != nil {
		logger.Warn("item detail lexeme lookup failed",
			"event", "get_item_detail_lookup_failed",
			"module", application.ModuleName,
			"layer", "application",
			"session_id", session.SessionID,
			"lexeme_id", item.LexemeID,
			"error", err.Error(),
		)
		return ItemDetail{}, fmt.Errorf("%w: %v", domainerrors.ErrExternalLookupFailed, err)
	}

	labels := u.resolveLabels(ctx, collectReferences(document), languages)
	detail := buildLexemeDetail(document, labels, languages)

	logger.Info("get item detail completed",
		"event", "get_item_detail_completed",
		"module", application.ModuleName,
		"layer", "application",
		"session_id", session.SessionID,
		"item_id", item.ItemID,
		"resolved_labels", len(labels),
	)
	return ItemDetail{Item: item, Lexeme: detail}, nil
}

// labelLanguages returns the label fallback chain: contribution language,
// display language, then the default.
func labelLanguages(session entities.Session, contributor entities.Contributor) []string {
	chain := []string{
		session.ContributionLanguage(),
		contributor.ResolvedDisplayLanguage(session.DisplayLanguage),
		entities.DefaultDisplayLanguage,
	}
	if chain[0] == "" {
		chain[0] = chain[1]
	}
	return chain
}

// resolveLabels looks every id up with bounded concurrency. Failed lookups
// leave the id unresolved.
func (u GetItemDetailUseCase) resolveLabels(ctx context.Context, ids []string, languages []string) map[string]string {
	logger := application.ResolveLogger(u.Logger)
	labels := make(map[string]string, len(ids))
	var mu sync.Mutex

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(u.lookupConcurrency())
	for _, id := range ids {
		group.Go(func() error {
			document, err := u.Corpus.GetEntity(groupCtx, ports.EntityRequest{
				EntityID: id,
				Language: languages[0],
				UseLang:  languages[1],
				Props:    []string{"labels", "lemmas", "glosses", "representations"},
			})
			if err != nil {
				logger.Debug("referenced entity lookup failed",
					"event", "get_item_detail_reference_missing",
					"module", application.ModuleName,
					"layer", "application",
					"entity_id", id,
					"error", err.Error(),
				)
				return nil
			}
			mu.Lock()
			labels[id] = document.DisplayLabel(languages...)
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()
	return labels
}

func (u GetItemDetailUseCase) lookupConcurrency() int {
	if u.LookupConcurrency <= 0 {
		return defaultLookupConcurrency
	}
	return u.LookupConcurrency
}

func collectReferences(document ports.EntityDocument) []string {
	seen := make(map[string]struct{})
	add := func(id string) {
		if id == "" || id == document.ID {
			return
		}
		seen[id] = struct{}{}
	}

	add(document.Language)
	add(document.LexicalCategory)
	for _, property := range characteristicProperties {
		for _, statement := range document.Claims[property] {
			add(statement.Value.EntityID)
		}
	}
	for _, statement := range document.Claims[entities.PropertyCombinesLexemes] {
		add(statement.Value.EntityID)
	}
	for _, statement := range document.Claims[entities.PropertyUsageExample] {
		for _, value := range statement.Qualifiers[entities.PropertyDemonstratesSense] {
			add(value.EntityID)
		}
		for _, value := range statement.Qualifiers[entities.PropertyDemonstratesForm] {
			add(value.EntityID)
		}
	}
	for _, sense := range document.Senses {
		for _, property := range senseReferenceProperties {
			for _, statement := range sense.Claims[property] {
				add(statement.Value.EntityID)
			}
		}
	}
	for _, form := range document.Forms {
		for _, feature := range form.GrammaticalFeatures {
			add(feature)
		}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

var senseReferenceProperties = []string{
	entities.PropertyItemForSense,
	entities.PropertyLanguageStyle,
	entities.PropertyFieldOfUsage,
	entities.PropertyLocationOfSenseUsage,
	entities.PropertyGrammaticalGender,
	entities.PropertyAntonym,
	entities.PropertySynonym,
}

func buildLexemeDetail(document ports.EntityDocument, labels map[string]string, languages []string) LexemeDetail {
	ref := func(id string) EntityRef {
		return EntityRef{ID: id, Label: labels[id]}
	}
	refs := func(statements []ports.Statement) []EntityRef {
		var out []EntityRef
		for _, statement := range statements {
			if statement.Value.EntityID != "" {
				out = append(out, ref(statement.Value.EntityID))
			}
		}
		return out
	}
	texts := func(statements []ports.Statement) []string {
		var out []string
		for _, statement := range statements {
			if statement.Value.Text != "" {
				out = append(out, statement.Value.Text)
			}
		}
		return out
	}

	detail := LexemeDetail{
		LexemeID: document.ID,
		Lemma:    firstValue(document.Lemmas, languages),
		Lemmas:   document.Lemmas,
		Language: ref(document.Language),
		Category: ref(document.LexicalCategory),
	}
	for _, property := range characteristicProperties {
		detail.Characteristics = append(detail.Characteristics, refs(document.Claims[property])...)
	}
	detail.CombinesLexemes = refs(document.Claims[entities.PropertyCombinesLexemes])

	for _, statement := range document.Claims[entities.PropertyUsageExample] {
		example := UsageExample{Text: statement.Value.Text, Language: statement.Value.Language}
		if values := statement.Qualifiers[entities.PropertyDemonstratesSense]; len(values) > 0 {
			example.DemonstratesSense = ref(values[0].EntityID)
		}
		if values := statement.Qualifiers[entities.PropertyDemonstratesForm]; len(values) > 0 {
			example.DemonstratesForm = ref(values[0].EntityID)
		}
		detail.UsageExamples = append(detail.UsageExamples, example)
	}

	for _, sense := range document.Senses {
		detail.Senses = append(detail.Senses, SenseDetail{
			SenseID:        sense.ID,
			Gloss:          firstValue(sense.Glosses, languages),
			ItemsForSense:  refs(sense.Claims[entities.PropertyItemForSense]),
			LanguageStyles: refs(sense.Claims[entities.PropertyLanguageStyle]),
			FieldsOfUsage:  refs(sense.Claims[entities.PropertyFieldOfUsage]),
			Locations:      refs(sense.Claims[entities.PropertyLocationOfSenseUsage]),
			Genders:        refs(sense.Claims[entities.PropertyGrammaticalGender]),
			Antonyms:       refs(sense.Claims[entities.PropertyAntonym]),
			Synonyms:       refs(sense.Claims[entities.PropertySynonym]),
			GlossQuotes:    texts(sense.Claims[entities.PropertyGlossQuote]),
			Images:         texts(sense.Claims[entities.PropertyImage]),
		})
	}

	for _, form := range document.Forms {
		features := make([]EntityRef, 0, len(form.GrammaticalFeatures))
		for _, feature := range form.GrammaticalFeatures {
			features = append(features, ref(feature))
		}
		detail.Forms = append(detail.Forms, FormDetail{
			FormID:              form.ID,
			Representation:      firstValue(form.Representations, languages),
			GrammaticalFeatures: features,
			Hyphenations:        texts(form.Claims[entities.PropertyHyphenation]),
		})
	}
	return detail
}

// firstValue picks the value for the first matching language, then any value
// in key order so the result is stable.
func firstValue(values map[string]string, languages []string) string {
	for _, language := range languages {
		if value := values[language]; value != "" {
			return value
		}
	}
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] != "" {
			return values[key]
		}
	}
	return ""
}
