package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courtside/internal/interval"
)

func TestInviteStatusHelpers(t *testing.T) {
	t.Run("Blocking", func(t *testing.T) {
		assert.True(t, InvitePending.Blocking())
		assert.True(t, InviteAccepted.Blocking())
		assert.False(t, InviteDeclined.Blocking())
		assert.False(t, InviteCancelled.Blocking())
		assert.False(t, InviteExpired.Blocking())
	})

	t.Run("Terminal", func(t *testing.T) {
		assert.False(t, InvitePending.Terminal())
		assert.False(t, InviteAccepted.Terminal())
		assert.True(t, InviteDeclined.Terminal())
		assert.True(t, InviteCancelled.Terminal())
		assert.True(t, InviteExpired.Terminal())
	})

	assert.False(t, InviteStatus("archived").Valid())
}

func TestMatchInviteParticipants(t *testing.T) {
	inv := MatchInvite{SenderID: "alice", ReceiverID: "bob"}

	assert.True(t, inv.HasParticipant("alice"))
	assert.True(t, inv.HasParticipant("bob"))
	assert.False(t, inv.HasParticipant("carol"))
	assert.False(t, inv.HasParticipant(""))

	assert.Equal(t, "bob", inv.Counterparty("alice"))
	assert.Equal(t, "alice", inv.Counterparty("bob"))
	assert.Equal(t, "", inv.Counterparty("carol"))
}

func TestMatchInviteApply(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	proposed := interval.MustParse("2025-03-10", "19:00", "20:00")
	inv := MatchInvite{
		ID:         "inv-1",
		Status:     InvitePending,
		Interval:   interval.MustParse("2025-03-10", "18:00", "19:00"),
		SenderID:   "alice",
		ReceiverID: "bob",
	}

	withProposal := inv.Apply(InvitePatch{
		Status:           InvitePending,
		ProposedInterval: &proposed,
		ProposedBy:       "bob",
		ProposedAt:       &now,
	})
	require.True(t, withProposal.HasProposal())
	assert.Equal(t, "bob", withProposal.ProposedBy)
	assert.False(t, inv.HasProposal(), "Apply must not touch the receiver")

	accepted := withProposal.Apply(InvitePatch{
		Status:        InviteAccepted,
		Interval:      withProposal.ProposedInterval,
		ClearProposal: true,
		ResponseAt:    &now,
	})
	assert.Equal(t, InviteAccepted, accepted.Status)
	assert.Equal(t, proposed, accepted.Interval)
	assert.False(t, accepted.HasProposal())
	assert.Empty(t, accepted.ProposedBy)
	assert.Nil(t, accepted.ProposedAt)
}

func TestAvailabilitySlotApply(t *testing.T) {
	slot := AvailabilitySlot{
		ID:             "s1",
		Interval:       interval.MustParse("2025-03-10", "09:00", "11:00"),
		IsAvailable:    true,
		RecurrenceRule: "v1;p=weekly;i=1;u=;d=;s=x",
	}

	end := interval.MustAt(12, 0)
	detach := ""
	patched, err := slot.Apply(SlotPatch{End: &end, RecurrenceRule: &detach})
	require.NoError(t, err)
	assert.Equal(t, "12:00", patched.Interval.End.String())
	assert.False(t, patched.InSeries())
	assert.True(t, slot.InSeries())

	early := interval.MustAt(8, 0)
	_, err = slot.Apply(SlotPatch{End: &early})
	assert.ErrorIs(t, err, interval.ErrInvalidInterval)
}

func TestChangeAffects(t *testing.T) {
	c := Change{Kind: ChangeInvite, UserIDs: []string{"alice", "bob"}}
	assert.True(t, c.Affects("bob"))
	assert.False(t, c.Affects("carol"))
}
