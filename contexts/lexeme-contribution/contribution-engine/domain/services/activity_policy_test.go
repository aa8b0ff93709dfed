package services

import (
	"testing"

	"lexcontrib/contexts/lexeme-contribution/contribution-engine/domain/entities"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicySubIDPerActivity(t *testing.T) {
	candidate := entities.Candidate{LexemeID: "L1", SenseID: "L1-S1", FormID: "L1-F2"}

	cases := map[entities.ActivityKind]string{
		entities.ActivityConnect:     "L1-S1",
		entities.ActivityScript:      "L1",
		entities.ActivityHyphenation: "L1-F2",
	}
	for kind, want := range cases {
		policy, ok := PolicyFor(kind)
		require.True(t, ok, kind)
		assert.Equal(t, want, policy.SubID(candidate), kind)
	}
}

func TestConnectNoItemBlocksOnlyOtherUsers(t *testing.T) {
	policy, _ := PolicyFor(entities.ActivityConnect)
	row := entities.Item{SubID: "L1-S1", UserID: "u-a", ExternalUserID: "Alice", Status: entities.ItemStatusNoItem}

	assert.False(t, policy.BlocksAllocation(row, entities.Contributor{UserID: "u-a", ExternalUserID: "Alice"}))
	assert.True(t, policy.BlocksAllocation(row, entities.Contributor{UserID: "u-b", ExternalUserID: "Bob"}))
}

func TestScriptNoItemNeverBlocks(t *testing.T) {
	policy, _ := PolicyFor(entities.ActivityScript)
	row := entities.Item{SubID: "L1", UserID: "u-a", Status: entities.ItemStatusNoItem}

	assert.False(t, policy.BlocksAllocation(row, entities.Contributor{UserID: "u-b"}))
}

func TestPendingRowsBlockEveryone(t *testing.T) {
	for _, kind := range []entities.ActivityKind{entities.ActivityConnect, entities.ActivityScript, entities.ActivityHyphenation} {
		policy, _ := PolicyFor(kind)
		row := entities.Item{SubID: "x", UserID: "u-a", ExternalUserID: "Alice", Status: entities.ItemStatusPending}
		assert.True(t, policy.BlocksAllocation(row, entities.Contributor{UserID: "u-a", ExternalUserID: "Alice"}), kind)
		assert.False(t, policy.BlocksAllocation(entities.Item{Status: entities.ItemStatusCompleted}, entities.Contributor{UserID: "u-a"}), kind)
	}
}

func TestOwnershipKeyDiffersByActivity(t *testing.T) {
	session := entities.Session{SessionID: "s", UserID: "u-a", ExternalUserID: "Alice", Status: entities.SessionStatusPending}

	connect, _ := PolicyFor(entities.ActivityConnect)
	script, _ := PolicyFor(entities.ActivityScript)

	// same external account, different internal id
	caller := entities.Contributor{UserID: "u-other", ExternalUserID: "Alice"}
	assert.True(t, connect.OwnsSession(session, caller))
	assert.False(t, script.OwnsSession(session, caller))

	assert.False(t, connect.OwnsSession(session, entities.Contributor{UserID: "u-a"}))
}

func TestStatusForAction(t *testing.T) {
	connect, _ := PolicyFor(entities.ActivityConnect)
	hyphenation, _ := PolicyFor(entities.ActivityHyphenation)

	assert.Equal(t, entities.ItemStatusNoItem, connect.StatusFor(ParseItemAction("NoItem")))
	assert.Equal(t, entities.ItemStatusSkipped, hyphenation.StatusFor(ParseItemAction("no_item")))
	assert.Equal(t, entities.ItemStatusCompleted, hyphenation.StatusFor(ParseItemAction("add")))
	assert.Equal(t, entities.ItemStatusSkipped, connect.StatusFor(ParseItemAction("whatever")))
}

func TestCheckItemAccess(t *testing.T) {
	policy, _ := PolicyFor(entities.ActivityHyphenation)
	session := entities.Session{SessionID: "s1", UserID: "u-a", Activity: entities.ActivityHyphenation, Status: entities.SessionStatusPending}
	item := entities.Item{ItemID: "i1", SessionID: "s1", Activity: entities.ActivityHyphenation, Status: entities.ItemStatusPending}
	owner := entities.Contributor{UserID: "u-a"}

	assert.True(t, policy.CheckItemAccess(session, item, owner, true))
	assert.False(t, policy.CheckItemAccess(session, item, entities.Contributor{UserID: "u-b"}, true))

	done := item
	done.Status = entities.ItemStatusCompleted
	assert.False(t, policy.CheckItemAccess(session, done, owner, true))
	assert.True(t, policy.CheckItemAccess(session, done, owner, false))

	other := item
	other.SessionID = "s2"
	assert.False(t, policy.CheckItemAccess(session, other, owner, false))
}

func TestFlattenHyphenation(t *testing.T) {
	flat, err := FlattenHyphenation([]string{"hy", " phen", "ation "})
	require.NoError(t, err)
	assert.Equal(t, "hy‧phen‧ation", flat)

	flat, err = FlattenHyphenation([]string{"syl|la·ble"})
	require.NoError(t, err)
	assert.Equal(t, "syl‧la‧ble", flat)

	_, err = FlattenHyphenation([]string{" ", "|"})
	assert.Error(t, err)
}

func TestFlattenHyphenationKeepsLiteralHyphens(t *testing.T) {
	flat, err := FlattenHyphenation([]string{"self-es", "teem"})
	require.NoError(t, err)
	assert.Equal(t, "self-es‧teem", flat)

	flat, err = FlattenHyphenation([]string{"self-es‧teem"})
	require.NoError(t, err)
	assert.Equal(t, "self-es‧teem", flat)
}
