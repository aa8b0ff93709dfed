package entities

import (
	"strings"
	"time"

	domainerrors "lexcontrib/contexts/lexeme-contribution/contribution-engine/domain/errors"
)

type ItemStatus string

const (
	ItemStatusPending   ItemStatus = "pending"
	ItemStatusCompleted ItemStatus = "completed"
	ItemStatusNoItem    ItemStatus = "no_item"
	ItemStatusSkipped   ItemStatus = "skipped"
)

// Candidate is one work item as returned by the corpus, before allocation.
type Candidate struct {
	LexemeID      string
	SenseID       string
	FormID        string
	CategoryQID   string
	CategoryLabel string
	Lemma         string
	Gloss         string
	Images        []string
}

// Item is a candidate claimed by one session. SubID is the activity-scoped
// identifier the exclusion rules operate on (sense, lexeme or form id).
type Item struct {
	ItemID         string
	SessionID      string
	Activity       ActivityKind
	UserID         string
	ExternalUserID string
	LexemeID       string
	SenseID        string
	FormID         string
	SubID          string
	LanguageQID    string
	CategoryQID    string
	Lemma          string
	CategoryLabel  string
	Gloss          string
	Images         []string
	Status         ItemStatus
	Ordinal        int
	Result         string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func NewItem(
	itemID string,
	session Session,
	candidate Candidate,
	subID string,
	ordinal int,
	createdAt time.Time,
) (Item, error) {
	if strings.TrimSpace(itemID) == "" ||
		strings.TrimSpace(session.SessionID) == "" ||
		strings.TrimSpace(subID) == "" ||
		strings.TrimSpace(candidate.LexemeID) == "" ||
		ordinal < 1 {
		return Item{}, domainerrors.ErrInvalidRequest
	}

	return Item{
		ItemID:         itemID,
		SessionID:      session.SessionID,
		Activity:       session.Activity,
		UserID:         session.UserID,
		ExternalUserID: session.ExternalUserID,
		LexemeID:       candidate.LexemeID,
		SenseID:        candidate.SenseID,
		FormID:         candidate.FormID,
		SubID:          subID,
		LanguageQID:    session.LanguageQID,
		CategoryQID:    candidate.CategoryQID,
		Lemma:          candidate.Lemma,
		CategoryLabel:  candidate.CategoryLabel,
		Gloss:          candidate.Gloss,
		Images:         append([]string(nil), candidate.Images...),
		Status:         ItemStatusPending,
		Ordinal:        ordinal,
		CreatedAt:      createdAt.UTC(),
		UpdatedAt:      createdAt.UTC(),
	}, nil
}

func (i Item) IsPending() bool {
	return i.Status == ItemStatusPending
}

// Refreshed overlays display fields fetched from the corpus on resume.
// Ordinal, status and result are never touched.
func (i Item) Refreshed(candidate Candidate) Item {
	if candidate.Lemma != "" {
		i.Lemma = candidate.Lemma
	}
	if candidate.Gloss != "" {
		i.Gloss = candidate.Gloss
	}
	if candidate.CategoryQID != "" {
		i.CategoryQID = candidate.CategoryQID
	}
	if candidate.CategoryLabel != "" {
		i.CategoryLabel = candidate.CategoryLabel
	}
	if len(candidate.Images) > 0 {
		i.Images = append([]string(nil), candidate.Images...)
	}
	return i
}

func (i Item) Completed(result string, at time.Time) Item {
	i.Status = ItemStatusCompleted
	i.Result = result
	i.UpdatedAt = at.UTC()
	return i
}

func (i Item) MarkedNoItem(at time.Time) Item {
	i.Status = ItemStatusNoItem
	i.Result = ""
	i.UpdatedAt = at.UTC()
	return i
}

func (i Item) Skipped(at time.Time) Item {
	i.Status = ItemStatusSkipped
	i.Result = ""
	i.UpdatedAt = at.UTC()
	return i
}
