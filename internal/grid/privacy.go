package grid

import "courtside/internal/models"

// Visible reports whether viewer may see slot. The owner always sees their own
// slots; friends-only slots need friendship.
func Visible(slot *models.AvailabilitySlot, viewer string, friends bool) bool {
	if slot.OwnerID == viewer {
		return true
	}
	switch slot.PrivacyLevel {
	case models.PrivacyPublic, "":
		return true
	case models.PrivacyFriendsOnly:
		return friends
	default:
		return false
	}
}

// FilterVisible keeps the slots viewer may see. isFriend is asked once per owner.
func FilterVisible(slots []models.AvailabilitySlot, viewer string, isFriend func(owner string) bool) []models.AvailabilitySlot {
	known := make(map[string]bool)
	out := make([]models.AvailabilitySlot, 0, len(slots))
	for i := range slots {
		owner := slots[i].OwnerID
		friends := false
		if owner != viewer && slots[i].PrivacyLevel == models.PrivacyFriendsOnly {
			f, ok := known[owner]
			if !ok {
				f = isFriend(owner)
				known[owner] = f
			}
			friends = f
		}
		if Visible(&slots[i], viewer, friends) {
			out = append(out, slots[i])
		}
	}
	return out
}

// RedactInvites keeps the invites viewer takes part in as they are. Any other
// invite is reduced to its status and interval so it still shows the owner as
// busy without revealing who or where.
func RedactInvites(invites []models.MatchInvite, viewer string) []models.MatchInvite {
	out := make([]models.MatchInvite, 0, len(invites))
	for i := range invites {
		if invites[i].HasParticipant(viewer) {
			out = append(out, invites[i])
			continue
		}
		out = append(out, models.MatchInvite{Status: invites[i].Status, Interval: invites[i].Interval})
	}
	return out
}
