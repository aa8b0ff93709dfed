package entities

import (
	"strings"
	"time"

	domainerrors "lexcontrib/contexts/lexeme-contribution/contribution-engine/domain/errors"
)

type SessionStatus string

const (
	SessionStatusPending   SessionStatus = "pending"
	SessionStatusCompleted SessionStatus = "completed"
)

type Session struct {
	SessionID       string
	UserID          string
	ExternalUserID  string
	Activity        ActivityKind
	LanguageID      string
	LanguageQID     string
	LanguageCode    string
	VariantCode     string
	DisplayLanguage string
	Status          SessionStatus
	StartedAt       time.Time
	UpdatedAt       time.Time
}

func NewSession(
	sessionID string,
	contributor Contributor,
	language Language,
	activity LanguageActivity,
	startedAt time.Time,
) (Session, error) {
	if strings.TrimSpace(sessionID) == "" ||
		strings.TrimSpace(contributor.UserID) == "" ||
		strings.TrimSpace(language.LanguageID) == "" ||
		!activity.Activity.Valid() {
		return Session{}, domainerrors.ErrInvalidRequest
	}

	return Session{
		SessionID:       sessionID,
		UserID:          contributor.UserID,
		ExternalUserID:  contributor.ExternalUserID,
		Activity:        activity.Activity,
		LanguageID:      language.LanguageID,
		LanguageQID:     language.QID,
		LanguageCode:    language.Code,
		VariantCode:     activity.VariantCode,
		DisplayLanguage: contributor.ResolvedDisplayLanguage(language.Code),
		Status:          SessionStatusPending,
		StartedAt:       startedAt.UTC(),
		UpdatedAt:       startedAt.UTC(),
	}, nil
}

func (s Session) IsPending() bool {
	return s.Status == SessionStatusPending
}

// ContributionLanguage is the language code labels and lemmas are requested in.
// Script sessions contribute in a variant code (e.g. "sr-el") when one is configured.
func (s Session) ContributionLanguage() string {
	if s.Activity == ActivityScript && s.VariantCode != "" {
		return s.VariantCode
	}
	return s.LanguageCode
}
