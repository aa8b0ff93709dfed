package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"lexcontrib/contexts/lexeme-contribution/contribution-engine/domain/entities"
	"lexcontrib/contexts/lexeme-contribution/contribution-engine/domain/services"
	"lexcontrib/contexts/lexeme-contribution/contribution-engine/ports"
)

var ErrEntityMissing = errors.New("entity missing")

// CorpusEntry is one seeded work item of the in-memory corpus.
type CorpusEntry struct {
	Activity    entities.ActivityKind
	LanguageQID string
	Candidate   entities.Candidate
}

// Corpus is an in-memory CandidateSource. A candidate stops being offered once
// a write for its sub-identifier succeeds, but stays visible to FetchByIDs.
type Corpus struct {
	mu       sync.RWMutex
	entries  []CorpusEntry
	done     map[string]struct{}
	entities map[string]ports.EntityDocument
	claims   []ports.ClaimWrite
	edits    []ports.EntityEdit
	writeErr error
	tokenSeq int
}

func NewCorpus(entries []CorpusEntry, documents []ports.EntityDocument) *Corpus {
	corpus := &Corpus{
		entries:  append([]CorpusEntry(nil), entries...),
		done:     make(map[string]struct{}),
		entities: make(map[string]ports.EntityDocument, len(documents)),
	}
	for _, document := range documents {
		corpus.entities[document.ID] = document
	}
	return corpus
}

// FailWrites makes every subsequent write return err; nil restores writes.
func (c *Corpus) FailWrites(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeErr = err
}

// Remove drops a candidate from the corpus entirely.
func (c *Corpus) Remove(subID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.entries[:0]
	for _, entry := range c.entries {
		policy, _ := services.PolicyFor(entry.Activity)
		if policy.SubID(entry.Candidate) != subID {
			kept = append(kept, entry)
		}
	}
	c.entries = kept
}

func (c *Corpus) FetchCandidates(_ context.Context, query ports.CandidateQuery) ([]entities.Candidate, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	policy, ok := services.PolicyFor(query.Activity)
	if !ok {
		return nil, fmt.Errorf("unsupported activity %q", query.Activity)
	}
	excluded := make(map[string]struct{}, len(query.ExcludeIDs))
	for _, id := range query.ExcludeIDs {
		excluded[id] = struct{}{}
	}

	var batch []entities.Candidate
	for _, entry := range c.entries {
		if query.Limit > 0 && len(batch) >= query.Limit {
			break
		}
		if entry.Activity != query.Activity || entry.LanguageQID != query.LanguageQID {
			continue
		}
		subID := policy.SubID(entry.Candidate)
		if _, skip := excluded[subID]; skip {
			continue
		}
		if _, finished := c.done[doneKey(query.Activity, subID)]; finished {
			continue
		}
		batch = append(batch, entry.Candidate)
	}
	return batch, nil
}

func (c *Corpus) FetchByIDs(_ context.Context, query ports.LookupQuery) ([]entities.Candidate, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	policy, ok := services.PolicyFor(query.Activity)
	if !ok {
		return nil, fmt.Errorf("unsupported activity %q", query.Activity)
	}
	included := make(map[string]struct{}, len(query.IncludeIDs))
	for _, id := range query.IncludeIDs {
		included[id] = struct{}{}
	}

	var found []entities.Candidate
	for _, entry := range c.entries {
		if entry.Activity != query.Activity {
			continue
		}
		if _, ok := included[policy.SubID(entry.Candidate)]; ok {
			found = append(found, entry.Candidate)
		}
	}
	return found, nil
}

func (c *Corpus) GetEntity(_ context.Context, request ports.EntityRequest) (ports.EntityDocument, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	document, ok := c.entities[request.EntityID]
	if !ok {
		return ports.EntityDocument{}, fmt.Errorf("%w: %s", ErrEntityMissing, request.EntityID)
	}
	return document, nil
}

func (c *Corpus) GetWriteToken(_ context.Context, accessToken string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return "", c.writeErr
	}
	if strings.TrimSpace(accessToken) == "" {
		return "", errors.New("access token required")
	}
	c.tokenSeq++
	return fmt.Sprintf("token-%d+\\", c.tokenSeq), nil
}

func (c *Corpus) SubmitClaim(_ context.Context, write ports.ClaimWrite) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.claims = append(c.claims, write)
	switch write.Property {
	case entities.PropertyItemForSense:
		c.done[doneKey(entities.ActivityConnect, write.TargetID)] = struct{}{}
	case entities.PropertyHyphenation:
		c.done[doneKey(entities.ActivityHyphenation, write.TargetID)] = struct{}{}
	}
	return nil
}

func (c *Corpus) SubmitEdit(_ context.Context, edit ports.EntityEdit) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.edits = append(c.edits, edit)
	c.done[doneKey(entities.ActivityScript, edit.TargetID)] = struct{}{}
	return nil
}

func (c *Corpus) Claims() []ports.ClaimWrite {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]ports.ClaimWrite(nil), c.claims...)
}

func (c *Corpus) Edits() []ports.EntityEdit {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]ports.EntityEdit(nil), c.edits...)
}

func doneKey(activity entities.ActivityKind, subID string) string {
	return string(activity) + ":" + subID
}
