package unit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	contributionengine "lexcontrib/contexts/lexeme-contribution/contribution-engine"
	"lexcontrib/contexts/lexeme-contribution/contribution-engine/adapters/memory"
	"lexcontrib/contexts/lexeme-contribution/contribution-engine/domain/entities"
	domainerrors "lexcontrib/contexts/lexeme-contribution/contribution-engine/domain/errors"
	"lexcontrib/contexts/lexeme-contribution/contribution-engine/ports"
	httptransport "lexcontrib/contexts/lexeme-contribution/contribution-engine/transport/http"
)

const serbianQID = "Q9299"

func serbian() []entities.Language {
	return []entities.Language{{
		LanguageID: "lang-sr",
		QID:        serbianQID,
		Code:       "sr",
		Name:       "Serbian",
		Activities: []entities.LanguageActivity{
			{LanguageID: "lang-sr", Activity: entities.ActivityConnect},
			{LanguageID: "lang-sr", Activity: entities.ActivityScript, VariantCode: "sr-el"},
			{LanguageID: "lang-sr", Activity: entities.ActivityHyphenation},
		},
	}}
}

func senseEntries(count int) []memory.CorpusEntry {
	entries := make([]memory.CorpusEntry, 0, count)
	for i := 1; i <= count; i++ {
		entries = append(entries, memory.CorpusEntry{
			Activity:    entities.ActivityConnect,
			LanguageQID: serbianQID,
			Candidate: entities.Candidate{
				LexemeID: fmt.Sprintf("L%d", i),
				SenseID:  fmt.Sprintf("L%d-S1", i),
				Lemma:    fmt.Sprintf("lemma-%d", i),
			},
		})
	}
	return entries
}

func contributor(user string) entities.Contributor {
	return entities.Contributor{
		UserID:         user,
		ExternalUserID: "ext-" + user,
		AccessToken:    "token-" + user,
	}
}

func startConnect(module contributionengine.Module, user string) (httptransport.StartSessionResponse, error) {
	return module.Handler.StartSessionHandler(context.Background(), contributor(user), httptransport.StartSessionRequest{
		LanguageCode: "sr",
		Activity:     "connect",
	})
}

func subIDs(items []httptransport.ItemDTO) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.SubID)
	}
	return ids
}

// scriptedCorpus answers the first FetchCandidates calls from a script and
// delegates everything else to the wrapped corpus.
type scriptedCorpus struct {
	ports.CandidateSource
	mu      sync.Mutex
	batches [][]entities.Candidate
	calls   int
}

func (s *scriptedCorpus) FetchCandidates(ctx context.Context, query ports.CandidateQuery) ([]entities.Candidate, error) {
	s.mu.Lock()
	s.calls++
	if len(s.batches) > 0 {
		batch := s.batches[0]
		s.batches = s.batches[1:]
		s.mu.Unlock()
		return batch, nil
	}
	s.mu.Unlock()
	return s.CandidateSource.FetchCandidates(ctx, query)
}

func newModuleWithCorpus(store *memory.Store, corpus ports.CandidateSource) contributionengine.Module {
	module := contributionengine.NewModule(contributionengine.Dependencies{
		UnitOfWork:  store,
		Sessions:    store,
		Items:       store,
		Languages:   store,
		Preferences: store,
		Corpus:      corpus,
		Clock:       store,
		IDGenerator: store,
		BatchSize:   10,
		MaxAttempts: 5,
	})
	module.Store = store
	return module
}

func TestConnectAllocationOrdersFreshBatch(t *testing.T) {
	module := contributionengine.NewInMemoryModule(serbian(), senseEntries(3), nil, nil)

	resp, err := startConnect(module, "user-a")
	if err != nil {
		t.Fatalf("start should succeed: %v", err)
	}
	if len(resp.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(resp.Items))
	}
	for i, item := range resp.Items {
		if item.Ordinal != i+1 {
			t.Fatalf("expected ordinal %d, got %d", i+1, item.Ordinal)
		}
		if item.Status != string(entities.ItemStatusPending) {
			t.Fatalf("expected pending item, got %s", item.Status)
		}
	}
}

func TestConcurrentAllocationRetriesPastHeldCandidate(t *testing.T) {
	store := memory.NewStore(serbian(), nil)
	base := memory.NewCorpus(senseEntries(5), nil)
	moduleA := newModuleWithCorpus(store, base)

	first, err := startConnect(moduleA, "user-a")
	if err != nil {
		t.Fatalf("user-a start should succeed: %v", err)
	}
	if len(first.Items) != 5 {
		t.Fatalf("expected user-a to take all 5 candidates, got %d", len(first.Items))
	}
	// Free s4 and s5 so user-b has something left.
	for _, item := range first.Items[3:] {
		if _, err := moduleA.Handler.UpdateItemHandler(context.Background(), contributor("user-a"), first.SessionID, "connect", item.ItemID,
			httptransport.UpdateItemRequest{Action: "skip"}); err != nil {
			t.Fatalf("skip should succeed: %v", err)
		}
	}

	scripted := &scriptedCorpus{
		CandidateSource: base,
		batches: [][]entities.Candidate{{
			{LexemeID: "L1", SenseID: "L1-S1"},
			{LexemeID: "L4", SenseID: "L4-S1"},
		}},
	}
	moduleB := newModuleWithCorpus(store, scripted)
	second, err := startConnect(moduleB, "user-b")
	if err != nil {
		t.Fatalf("user-b start should succeed: %v", err)
	}
	if scripted.calls < 2 {
		t.Fatalf("expected a refetch after the collision, got %d calls", scripted.calls)
	}
	for _, id := range subIDs(second.Items) {
		if id == "L1-S1" || id == "L2-S1" || id == "L3-S1" {
			t.Fatalf("user-b received %s held by user-a: %v", id, subIDs(second.Items))
		}
	}
	if len(second.Items) == 0 || second.Items[0].SubID != "L4-S1" {
		t.Fatalf("expected user-b batch to start with L4-S1, got %v", subIDs(second.Items))
	}
}

func TestNoItemExcludesOnlyOtherUsers(t *testing.T) {
	module := contributionengine.NewInMemoryModule(serbian(), senseEntries(3), nil, nil)

	first, err := startConnect(module, "user-a")
	if err != nil {
		t.Fatalf("start should succeed: %v", err)
	}
	for _, item := range first.Items {
		action := "skip"
		if item.SubID == "L1-S1" {
			action = "no_item"
		}
		updated, err := module.Handler.UpdateItemHandler(context.Background(), contributor("user-a"), first.SessionID, "connect", item.ItemID,
			httptransport.UpdateItemRequest{Action: action})
		if err != nil {
			t.Fatalf("%s should succeed: %v", action, err)
		}
		if item.SubID == "L1-S1" && updated.Item.Status != string(entities.ItemStatusNoItem) {
			t.Fatalf("expected no_item status, got %s", updated.Item.Status)
		}
	}

	other, err := startConnect(module, "user-b")
	if err != nil {
		t.Fatalf("user-b start should succeed: %v", err)
	}
	if len(other.Items) != 2 {
		t.Fatalf("expected user-b to receive the two skipped senses, got %v", subIDs(other.Items))
	}
	for _, id := range subIDs(other.Items) {
		if id == "L1-S1" {
			t.Fatalf("user-b must not receive user-a's no_item row: %v", subIDs(other.Items))
		}
	}

	for _, user := range []string{"user-a", "user-b"} {
		if _, err := module.Handler.EndSessionHandler(context.Background(), user); err != nil {
			t.Fatalf("end for %s should succeed: %v", user, err)
		}
	}
	again, err := startConnect(module, "user-a")
	if err != nil {
		t.Fatalf("restart should succeed: %v", err)
	}
	found := false
	for _, id := range subIDs(again.Items) {
		found = found || id == "L1-S1"
	}
	if !found {
		t.Fatalf("expected L1-S1 to be eligible again for user-a, got %v", subIDs(again.Items))
	}
}

func TestNoItemOnScriptFallsBackToSkip(t *testing.T) {
	module := contributionengine.NewInMemoryModule(serbian(), []memory.CorpusEntry{{
		Activity:    entities.ActivityScript,
		LanguageQID: serbianQID,
		Candidate:   entities.Candidate{LexemeID: "L10", Lemma: "кућа"},
	}}, nil, nil)

	started, err := module.Handler.StartSessionHandler(context.Background(), contributor("user-a"), httptransport.StartSessionRequest{
		LanguageCode: "sr",
		Activity:     "script",
	})
	if err != nil {
		t.Fatalf("start should succeed: %v", err)
	}
	updated, err := module.Handler.UpdateItemHandler(context.Background(), contributor("user-a"), started.SessionID, "script", started.Items[0].ItemID,
		httptransport.UpdateItemRequest{Action: "no_item"})
	if err != nil {
		t.Fatalf("no_item should succeed: %v", err)
	}
	if updated.Item.Status != string(entities.ItemStatusSkipped) {
		t.Fatalf("expected skipped, got %s", updated.Item.Status)
	}
}

func TestFailedExternalWriteLeavesItemPending(t *testing.T) {
	module := contributionengine.NewInMemoryModule(serbian(), senseEntries(1), nil, nil)
	started, err := startConnect(module, "user-a")
	if err != nil {
		t.Fatalf("start should succeed: %v", err)
	}
	item := started.Items[0]

	module.Corpus.FailWrites(errors.New("corpus unavailable"))
	_, err = module.Handler.UpdateItemHandler(context.Background(), contributor("user-a"), started.SessionID, "connect", item.ItemID,
		httptransport.UpdateItemRequest{Action: "add", Payload: httptransport.ItemPayloadDTO{ItemID: "Q3947"}})
	if !errors.Is(err, domainerrors.ErrExternalWriteFailed) {
		t.Fatalf("expected external write failure, got %v", err)
	}
	for _, stored := range module.Store.Items() {
		if stored.ItemID == item.ItemID && stored.Status != entities.ItemStatusPending {
			t.Fatalf("expected item to stay pending, got %s", stored.Status)
		}
	}

	module.Corpus.FailWrites(nil)
	updated, err := module.Handler.UpdateItemHandler(context.Background(), contributor("user-a"), started.SessionID, "connect", item.ItemID,
		httptransport.UpdateItemRequest{Action: "add", Payload: httptransport.ItemPayloadDTO{ItemID: "Q3947"}})
	if err != nil {
		t.Fatalf("retry should succeed: %v", err)
	}
	if updated.Item.Status != string(entities.ItemStatusCompleted) || updated.Item.Result != "Q3947" {
		t.Fatalf("expected completed with Q3947, got %+v", updated.Item)
	}
	if len(module.Corpus.Claims()) != 1 {
		t.Fatalf("expected one claim written, got %d", len(module.Corpus.Claims()))
	}
}

func TestTerminalTransitionsAreOneWay(t *testing.T) {
	module := contributionengine.NewInMemoryModule(serbian(), senseEntries(1), nil, nil)
	started, err := startConnect(module, "user-a")
	if err != nil {
		t.Fatalf("start should succeed: %v", err)
	}
	itemID := started.Items[0].ItemID

	if _, err := module.Handler.UpdateItemHandler(context.Background(), contributor("user-a"), started.SessionID, "connect", itemID,
		httptransport.UpdateItemRequest{Action: "skip"}); err != nil {
		t.Fatalf("skip should succeed: %v", err)
	}
	for _, action := range []string{"add", "no_item", "skip"} {
		_, err := module.Handler.UpdateItemHandler(context.Background(), contributor("user-a"), started.SessionID, "connect", itemID,
			httptransport.UpdateItemRequest{Action: action, Payload: httptransport.ItemPayloadDTO{ItemID: "Q1"}})
		if !errors.Is(err, domainerrors.ErrItemNotFound) {
			t.Fatalf("%s on terminal item: expected ErrItemNotFound, got %v", action, err)
		}
	}
}

func TestResumePreservesOrdinalsAndDropsVanished(t *testing.T) {
	module := contributionengine.NewInMemoryModule(serbian(), senseEntries(4), nil, nil)
	first, err := startConnect(module, "user-a")
	if err != nil {
		t.Fatalf("start should succeed: %v", err)
	}
	module.Corpus.Remove("L2-S1")

	resumed, err := startConnect(module, "user-a")
	if err != nil {
		t.Fatalf("resume should succeed: %v", err)
	}
	if !resumed.Resumed || resumed.SessionID != first.SessionID {
		t.Fatalf("expected resume of %s, got %+v", first.SessionID, resumed)
	}
	if len(resumed.Items) != 3 {
		t.Fatalf("expected 3 items after removal, got %v", subIDs(resumed.Items))
	}
	want := []int{1, 3, 4}
	for i, item := range resumed.Items {
		if item.Ordinal != want[i] {
			t.Fatalf("expected ordinals %v, got item %d with ordinal %d", want, i, item.Ordinal)
		}
	}
}

func TestPendingSessionBlocksOtherActivity(t *testing.T) {
	module := contributionengine.NewInMemoryModule(serbian(), senseEntries(1), nil, nil)
	if _, err := startConnect(module, "user-a"); err != nil {
		t.Fatalf("start should succeed: %v", err)
	}
	_, err := module.Handler.StartSessionHandler(context.Background(), contributor("user-a"), httptransport.StartSessionRequest{
		LanguageCode: "sr",
		Activity:     "hyphenation",
	})
	if !errors.Is(err, domainerrors.ErrPendingActivityConflict) {
		t.Fatalf("expected pending activity conflict, got %v", err)
	}
}

func TestEndThenStartNeverReusesForeignPendingIDs(t *testing.T) {
	module := contributionengine.NewInMemoryModule(serbian(), senseEntries(4), nil, nil)

	a, err := startConnect(module, "user-a")
	if err != nil {
		t.Fatalf("user-a start should succeed: %v", err)
	}
	if _, err := module.Handler.EndSessionHandler(context.Background(), "user-a"); err != nil {
		t.Fatalf("end should succeed: %v", err)
	}
	b, err := startConnect(module, "user-b")
	if err != nil {
		t.Fatalf("user-b start should succeed: %v", err)
	}
	again, err := startConnect(module, "user-a")
	if !errors.Is(err, domainerrors.ErrCandidatesNotFound) {
		t.Fatalf("expected no candidates while user-b holds everything, got %v (%v)", err, subIDs(again.Items))
	}
	if len(a.Items) != 4 || len(b.Items) != 4 {
		t.Fatalf("expected both batches to hold all 4 candidates in turn, got %d and %d", len(a.Items), len(b.Items))
	}
	if _, err := module.Handler.EndSessionHandler(context.Background(), "user-a"); !errors.Is(err, domainerrors.ErrNoActiveSession) {
		t.Fatalf("expected no active session for user-a, got %v", err)
	}
}

func TestConcurrentAllocationsStayDisjoint(t *testing.T) {
	const users = 8
	module := contributionengine.NewInMemoryModule(serbian(), senseEntries(users*10), nil, nil)

	var wg sync.WaitGroup
	errs := make(chan error, users)
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(user string) {
			defer wg.Done()
			if _, err := startConnect(module, user); err != nil {
				errs <- err
			}
		}(fmt.Sprintf("user-%d", i))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent start failed: %v", err)
	}

	owner := make(map[string]string)
	for _, item := range module.Store.Items() {
		if item.Status != entities.ItemStatusPending {
			continue
		}
		if prev, ok := owner[item.SubID]; ok && prev != item.SessionID {
			t.Fatalf("sub id %s held by sessions %s and %s", item.SubID, prev, item.SessionID)
		}
		owner[item.SubID] = item.SessionID
	}
	if len(owner) != users*10 {
		t.Fatalf("expected %d distinct pending sub ids, got %d", users*10, len(owner))
	}
}

func TestSessionEventsRecordedInOutbox(t *testing.T) {
	module := contributionengine.NewInMemoryModule(serbian(), senseEntries(1), nil, nil)
	started, err := startConnect(module, "user-a")
	if err != nil {
		t.Fatalf("start should succeed: %v", err)
	}
	if _, err := module.Handler.UpdateItemHandler(context.Background(), contributor("user-a"), started.SessionID, "connect", started.Items[0].ItemID,
		httptransport.UpdateItemRequest{Action: "skip"}); err != nil {
		t.Fatalf("skip should succeed: %v", err)
	}
	if _, err := module.Handler.EndSessionHandler(context.Background(), "user-a"); err != nil {
		t.Fatalf("end should succeed: %v", err)
	}

	var types []string
	for _, event := range module.Store.OutboxEvents() {
		types = append(types, event.EventType)
	}
	want := []string{"contribution.session_started", "contribution.item_updated", "contribution.session_ended"}
	if len(types) != len(want) {
		t.Fatalf("expected events %v, got %v", want, types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("expected events %v, got %v", want, types)
		}
	}
}
