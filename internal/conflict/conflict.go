// Package conflict decides whether a candidate interval may be written next to
// a user's existing availability and reservations.
package conflict

import (
	"courtside/internal/interval"
	"courtside/internal/models"
)

// Source tells where an entry of the corpus came from.
type Source string

const (
	SourceSlot   Source = "slot"
	SourceInvite Source = "invite"
)

// Entry is one occupied interval of the corpus.
type Entry struct {
	ID       string
	Source   Source
	Interval interval.DateInterval
}

// HasConflict reports whether any entry other than excludeID overlaps candidate.
// An empty excludeID excludes nothing.
func HasConflict(candidate interval.DateInterval, existing []Entry, excludeID string) bool {
	for _, e := range existing {
		if excludeID != "" && e.ID == excludeID {
			continue
		}
		if interval.Overlaps(candidate, e.Interval) {
			return true
		}
	}
	return false
}

// FindConflicts returns every entry other than excludeID that overlaps candidate.
func FindConflicts(candidate interval.DateInterval, existing []Entry, excludeID string) []Entry {
	var out []Entry
	for _, e := range existing {
		if excludeID != "" && e.ID == excludeID {
			continue
		}
		if interval.Overlaps(candidate, e.Interval) {
			out = append(out, e)
		}
	}
	return out
}

// Corpus builds the union the detector must run against: the owner's slots and
// every invite touching the owner that still blocks time.
func Corpus(owner string, slots []models.AvailabilitySlot, invites []models.MatchInvite) []Entry {
	out := make([]Entry, 0, len(slots)+len(invites))
	for i := range slots {
		if slots[i].OwnerID != owner {
			continue
		}
		out = append(out, Entry{ID: slots[i].ID, Source: SourceSlot, Interval: slots[i].Interval})
	}
	out = append(out, InviteEntries(owner, invites)...)
	return out
}

// InviteEntries keeps pending and accepted invites where owner is a participant.
func InviteEntries(owner string, invites []models.MatchInvite) []Entry {
	var out []Entry
	for i := range invites {
		inv := &invites[i]
		if !inv.Status.Blocking() || !inv.HasParticipant(owner) {
			continue
		}
		out = append(out, Entry{ID: inv.ID, Source: SourceInvite, Interval: inv.Interval})
	}
	return out
}

// Within checks candidates against each other, in order. It returns the
// indexes of candidates that overlap an earlier accepted candidate or the corpus.
func Within(candidates []interval.DateInterval, existing []Entry) (accepted, rejected []int) {
	taken := make([]Entry, 0, len(existing)+len(candidates))
	taken = append(taken, existing...)
	for i, c := range candidates {
		if HasConflict(c, taken, "") {
			rejected = append(rejected, i)
			continue
		}
		accepted = append(accepted, i)
		taken = append(taken, Entry{Interval: c})
	}
	return accepted, rejected
}
