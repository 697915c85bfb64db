package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courtside/internal/interval"
	"courtside/internal/models"
)

func slot(id, owner, date, start, end string) models.AvailabilitySlot {
	return models.AvailabilitySlot{
		ID:           id,
		OwnerID:      owner,
		Interval:     interval.MustParse(date, start, end),
		IsAvailable:  true,
		PrivacyLevel: models.PrivacyPublic,
	}
}

func invite(id string, status models.InviteStatus, date, start, end string) models.MatchInvite {
	return models.MatchInvite{
		ID:         id,
		SenderID:   "alice",
		ReceiverID: "bob",
		Status:     status,
		Interval:   interval.MustParse(date, start, end),
	}
}

func kinds(qs Quarters) []Kind {
	out := make([]Kind, len(qs))
	for i, q := range qs {
		out[i] = q.Kind
	}
	return out
}

func TestClassifyInvitePrecedence(t *testing.T) {
	date := interval.MustParseDate("2025-03-10")
	slots := []models.AvailabilitySlot{slot("s1", "bob", "2025-03-10", "09:00", "11:00")}
	invites := []models.MatchInvite{invite("i1", models.InviteAccepted, "2025-03-10", "10:00", "10:30")}

	got := Classify(date, 10, slots, invites)

	assert.Equal(t, []Kind{KindAvailable, KindInvite, KindInvite, KindAvailable}, kinds(got))
	assert.Equal(t, "i1", got[1].InviteID)
	assert.Equal(t, models.InviteAccepted, got[1].InviteStatus)
	assert.Equal(t, models.InviteAccepted, got[2].InviteStatus)
	assert.Empty(t, got[0].InviteID)
}

func TestClassifyIgnoresBlockedAndUnavailableSlots(t *testing.T) {
	date := interval.MustParseDate("2025-03-10")
	blocked := slot("s1", "bob", "2025-03-10", "09:00", "10:00")
	blocked.IsBlocked = true
	off := slot("s2", "bob", "2025-03-10", "09:00", "10:00")
	off.IsAvailable = false

	got := Classify(date, 9, []models.AvailabilitySlot{blocked, off}, nil)
	assert.Equal(t, []Kind{KindUnavailable, KindUnavailable, KindUnavailable, KindUnavailable}, kinds(got))
}

func TestClassifyDropsClosedInvites(t *testing.T) {
	date := interval.MustParseDate("2025-03-10")
	slots := []models.AvailabilitySlot{slot("s1", "bob", "2025-03-10", "09:00", "10:00")}
	invites := []models.MatchInvite{
		invite("d", models.InviteDeclined, "2025-03-10", "09:00", "10:00"),
		invite("p", models.InvitePending, "2025-03-10", "09:45", "10:30"),
	}

	got := Classify(date, 9, slots, invites)
	assert.Equal(t, []Kind{KindAvailable, KindAvailable, KindAvailable, KindInvite}, kinds(got))
	assert.Equal(t, "p", got[3].InviteID)
}

func TestClassifyPrefersAcceptedInvite(t *testing.T) {
	date := interval.MustParseDate("2025-03-10")
	invites := []models.MatchInvite{
		invite("a-pending", models.InvitePending, "2025-03-10", "18:00", "19:00"),
		invite("z-accepted", models.InviteAccepted, "2025-03-10", "18:00", "19:00"),
	}
	got := Classify(date, 18, nil, invites)
	for _, q := range got {
		assert.Equal(t, "z-accepted", q.InviteID)
	}
}

func TestClassifyOthers(t *testing.T) {
	date := interval.MustParseDate("2025-03-10")
	slots := []models.AvailabilitySlot{
		slot("s1", "bob", "2025-03-10", "09:00", "10:00"),
		slot("s2", "bob", "2025-03-10", "09:00", "09:30"),
		slot("s3", "carol", "2025-03-10", "09:15", "09:45"),
	}

	got := ClassifyOthers(date, 9, slots)
	assert.Equal(t, []Kind{KindOthers, KindOthers, KindOthers, KindOthers}, kinds(got))
	assert.Equal(t, 1, got[0].Count)
	assert.Equal(t, 2, got[1].Count)
	assert.Equal(t, 2, got[2].Count)
	assert.Equal(t, 1, got[3].Count)

	assert.Equal(t, KindUnavailable, ClassifyOthers(date, 11, slots)[0].Kind)
}

func TestGridSpansEveryTouchedHour(t *testing.T) {
	slots := []models.AvailabilitySlot{slot("s1", "bob", "2025-03-10", "09:30", "11:00")}
	invites := []models.MatchInvite{invite("i1", models.InvitePending, "2025-03-10", "10:45", "11:15")}
	g := Build(slots, invites)
	date := interval.MustParseDate("2025-03-10")

	assert.False(t, g.IsHourAvailable(date, 8))
	assert.True(t, g.IsHourAvailable(date, 9))
	assert.True(t, g.IsHourAvailable(date, 10))
	assert.False(t, g.IsHourAvailable(date, 11), "11:00 end does not touch hour 11")

	assert.False(t, g.HasInviteInHour(date, 9))
	assert.True(t, g.HasInviteInHour(date, 10))
	assert.True(t, g.HasInviteInHour(date, 11))

	assert.Equal(t, []Kind{KindUnavailable, KindUnavailable, KindAvailable, KindAvailable}, kinds(g.Quarters(date, 9)))
	assert.False(t, g.IsHourAvailable(date.AddDays(1), 9))
}

func TestGridDays(t *testing.T) {
	slots := []models.AvailabilitySlot{slot("s1", "bob", "2025-03-11", "18:00", "19:00")}
	g := Build(slots, nil)

	days := g.Days(interval.MustParseDate("2025-03-10"), 3, HourWindow{First: 17, Last: 19})
	require.Len(t, days, 3)
	assert.Equal(t, "2025-03-12", days[2].Date.ISO())
	require.Len(t, days[1].Hours, 3)
	assert.Equal(t, 18, days[1].Hours[1].Hour)
	assert.True(t, days[1].Hours[1].Quarters.AnyAvailable())
	assert.False(t, days[0].Hours[1].Quarters.AnyAvailable())
}

func TestVisibility(t *testing.T) {
	public := slot("p", "bob", "2025-03-10", "09:00", "10:00")
	friendsOnly := slot("f", "bob", "2025-03-10", "10:00", "11:00")
	friendsOnly.PrivacyLevel = models.PrivacyFriendsOnly
	private := slot("x", "bob", "2025-03-10", "11:00", "12:00")
	private.PrivacyLevel = models.PrivacyPrivate
	all := []models.AvailabilitySlot{public, friendsOnly, private}

	ids := func(slots []models.AvailabilitySlot) []string {
		out := make([]string, 0, len(slots))
		for _, s := range slots {
			out = append(out, s.ID)
		}
		return out
	}

	calls := 0
	friend := func(string) bool { calls++; return true }
	stranger := func(string) bool { return false }

	assert.Equal(t, []string{"p", "f", "x"}, ids(FilterVisible(all, "bob", stranger)))
	assert.Equal(t, []string{"p", "f"}, ids(FilterVisible(all, "alice", friend)))
	assert.Equal(t, []string{"p"}, ids(FilterVisible(all, "carol", stranger)))
	assert.Equal(t, 1, calls)
}

func TestRedactInvites(t *testing.T) {
	invites := []models.MatchInvite{invite("i1", models.InvitePending, "2025-03-10", "09:00", "10:00")}
	invites[0].CourtLocation = "Court 3"

	mine := RedactInvites(invites, "bob")
	require.Len(t, mine, 1)
	assert.Equal(t, invites[0], mine[0])

	theirs := RedactInvites(invites, "carol")
	require.Len(t, theirs, 1)
	assert.Empty(t, theirs[0].ID)
	assert.Empty(t, theirs[0].SenderID)
	assert.Empty(t, theirs[0].CourtLocation)
	assert.Equal(t, invites[0].Interval, theirs[0].Interval)
}

func TestClassifyRedactedInviteHidesAvailability(t *testing.T) {
	date := interval.MustParseDate("2025-03-10")
	slots := []models.AvailabilitySlot{slot("s1", "bob", "2025-03-10", "09:00", "11:00")}
	invites := RedactInvites([]models.MatchInvite{
		invite("i1", models.InvitePending, "2025-03-10", "10:00", "10:30"),
		invite("i2", models.InviteDeclined, "2025-03-10", "10:30", "10:45"),
	}, "carol")

	got := Classify(date, 10, slots, invites)

	assert.Equal(t, []Kind{KindUnavailable, KindUnavailable, KindAvailable, KindAvailable}, kinds(got))
	assert.Empty(t, got[0].InviteID)
	assert.Empty(t, got[0].InviteStatus)
}
