// Package grid merges availability slots and match invites into a
// quarter-hour classified calendar.
package grid

import (
	"sort"

	"courtside/internal/interval"
	"courtside/internal/models"
)

// Kind tags a quarter-hour cell.
type Kind string

const (
	KindUnavailable Kind = "unavailable"
	KindAvailable   Kind = "available"
	KindInvite      Kind = "invite"
	KindOthers      Kind = "others"
)

// QuarterInfo classifies one 15-minute cell. InviteID and InviteStatus are set
// for KindInvite, Count for KindOthers.
type QuarterInfo struct {
	Kind         Kind                `json:"kind"`
	InviteID     string              `json:"invite_id,omitempty"`
	InviteStatus models.InviteStatus `json:"invite_status,omitempty"`
	Count        int                 `json:"count,omitempty"`
}

// Quarters is the classification of one hour.
type Quarters [interval.QuartersInHour]QuarterInfo

// Classify tags each quarter of (date, hour). A pending or accepted invite wins
// over an offered slot, which wins over the empty state. When several invites
// cover a quarter, accepted ones come first, then the lowest ID. An invite
// without an ID is redacted and only turns the quarter unavailable.
func Classify(date interval.Date, hour int, slots []models.AvailabilitySlot, invites []models.MatchInvite) Quarters {
	var out Quarters
	for q := range out {
		out[q] = QuarterInfo{Kind: KindUnavailable}
	}

	for i := range slots {
		s := &slots[i]
		if !s.Offered() || s.Interval.Date != date {
			continue
		}
		covered := interval.QuartersCovered(s.Interval, hour)
		for q, hit := range covered {
			if hit {
				out[q] = QuarterInfo{Kind: KindAvailable}
			}
		}
	}

	for _, inv := range blockingInOrder(invites) {
		if inv.Interval.Date != date {
			continue
		}
		covered := interval.QuartersCovered(inv.Interval, hour)
		for q, hit := range covered {
			if !hit || out[q].Kind == KindInvite {
				continue
			}
			if inv.ID == "" {
				out[q] = QuarterInfo{Kind: KindUnavailable}
				continue
			}
			out[q] = QuarterInfo{Kind: KindInvite, InviteID: inv.ID, InviteStatus: inv.Status}
		}
	}

	return out
}

// ClassifyOthers counts, per quarter, how many distinct owners offer time.
func ClassifyOthers(date interval.Date, hour int, slots []models.AvailabilitySlot) Quarters {
	var owners [interval.QuartersInHour]map[string]struct{}
	for i := range slots {
		s := &slots[i]
		if !s.Offered() || s.Interval.Date != date {
			continue
		}
		for q, hit := range interval.QuartersCovered(s.Interval, hour) {
			if !hit {
				continue
			}
			if owners[q] == nil {
				owners[q] = make(map[string]struct{})
			}
			owners[q][s.OwnerID] = struct{}{}
		}
	}

	var out Quarters
	for q := range out {
		if n := len(owners[q]); n > 0 {
			out[q] = QuarterInfo{Kind: KindOthers, Count: n}
		} else {
			out[q] = QuarterInfo{Kind: KindUnavailable}
		}
	}
	return out
}

// AnyAvailable reports whether a quarter is tagged available.
func (qs Quarters) AnyAvailable() bool {
	return qs.any(KindAvailable)
}

// AnyInvite reports whether a quarter is tagged invite.
func (qs Quarters) AnyInvite() bool {
	return qs.any(KindInvite)
}

func (qs Quarters) any(k Kind) bool {
	for _, q := range qs {
		if q.Kind == k {
			return true
		}
	}
	return false
}

func blockingInOrder(invites []models.MatchInvite) []models.MatchInvite {
	out := make([]models.MatchInvite, 0, len(invites))
	for i := range invites {
		if invites[i].Status.Blocking() {
			out = append(out, invites[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ai, aj := out[i].Status == models.InviteAccepted, out[j].Status == models.InviteAccepted
		if ai != aj {
			return ai
		}
		return out[i].ID < out[j].ID
	})
	return out
}
