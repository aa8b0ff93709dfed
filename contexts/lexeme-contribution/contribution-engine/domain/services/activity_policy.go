package services

import (
	"strings"

	"lexcontrib/contexts/lexeme-contribution/contribution-engine/domain/entities"
)

// OwnershipKey selects which contributor identity a session is matched on.
type OwnershipKey string

const (
	OwnershipByExternalUser OwnershipKey = "external_user_id"
	OwnershipByUser         OwnershipKey = "user_id"
)

type ItemAction string

const (
	ItemActionAdd    ItemAction = "add"
	ItemActionNoItem ItemAction = "no_item"
	ItemActionSkip   ItemAction = "skip"
)

// ParseItemAction maps unknown values to skip.
func ParseItemAction(raw string) ItemAction {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	switch ItemAction(normalized) {
	case ItemActionAdd:
		return ItemActionAdd
	case ItemActionNoItem, "noitem":
		return ItemActionNoItem
	default:
		return ItemActionSkip
	}
}

// ActivityPolicy is the per-activity part of the shared allocation state machine.
// Connect matches owners on the external account and keeps other users' NoItem
// rows out of new batches; script and hyphenation match on the internal account
// and only exclude pending rows.
type ActivityPolicy struct {
	Kind                 entities.ActivityKind
	OwnershipKey         OwnershipKey
	ExcludeForeignNoItem bool
	AllowsNoItem         bool
}

var policies = map[entities.ActivityKind]ActivityPolicy{
	entities.ActivityConnect: {
		Kind:                 entities.ActivityConnect,
		OwnershipKey:         OwnershipByExternalUser,
		ExcludeForeignNoItem: true,
		AllowsNoItem:         true,
	},
	entities.ActivityScript: {
		Kind:         entities.ActivityScript,
		OwnershipKey: OwnershipByUser,
	},
	entities.ActivityHyphenation: {
		Kind:         entities.ActivityHyphenation,
		OwnershipKey: OwnershipByUser,
	},
}

func PolicyFor(kind entities.ActivityKind) (ActivityPolicy, bool) {
	policy, ok := policies[kind]
	return policy, ok
}

// SubID returns the identifier that scopes a candidate for this activity.
func (p ActivityPolicy) SubID(candidate entities.Candidate) string {
	switch p.Kind {
	case entities.ActivityConnect:
		return candidate.SenseID
	case entities.ActivityHyphenation:
		return candidate.FormID
	default:
		return candidate.LexemeID
	}
}

func (p ActivityPolicy) ownerKey(userID string, externalUserID string) string {
	if p.OwnershipKey == OwnershipByExternalUser {
		return externalUserID
	}
	return userID
}

func (p ActivityPolicy) OwnsSession(session entities.Session, contributor entities.Contributor) bool {
	want := p.ownerKey(contributor.UserID, contributor.ExternalUserID)
	if strings.TrimSpace(want) == "" {
		return false
	}
	return p.ownerKey(session.UserID, session.ExternalUserID) == want
}

// BlocksAllocation reports whether an existing item row keeps its SubID out of
// the requester's next batch.
func (p ActivityPolicy) BlocksAllocation(item entities.Item, requester entities.Contributor) bool {
	switch item.Status {
	case entities.ItemStatusPending:
		return true
	case entities.ItemStatusNoItem:
		if !p.ExcludeForeignNoItem {
			return false
		}
		return p.ownerKey(item.UserID, item.ExternalUserID) != p.ownerKey(requester.UserID, requester.ExternalUserID)
	default:
		return false
	}
}

// StatusFor resolves the terminal status an action moves an item to.
func (p ActivityPolicy) StatusFor(action ItemAction) entities.ItemStatus {
	switch action {
	case ItemActionAdd:
		return entities.ItemStatusCompleted
	case ItemActionNoItem:
		if p.AllowsNoItem {
			return entities.ItemStatusNoItem
		}
		return entities.ItemStatusSkipped
	default:
		return entities.ItemStatusSkipped
	}
}

// CheckItemAccess validates that contributor may act on item within session.
// Every failure reads as "item not found" to the caller.
func (p ActivityPolicy) CheckItemAccess(
	session entities.Session,
	item entities.Item,
	contributor entities.Contributor,
	requirePending bool,
) bool {
	if item.SessionID != session.SessionID || session.Activity != p.Kind || item.Activity != p.Kind {
		return false
	}
	if !p.OwnsSession(session, contributor) {
		return false
	}
	if !session.IsPending() {
		return false
	}
	if requirePending && !item.IsPending() {
		return false
	}
	return true
}
