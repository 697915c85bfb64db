// Package domain holds the error taxonomy and the collaborator contracts the
// scheduling core consumes.
package domain

import (
	"context"
	"time"

	"courtside/internal/interval"
	"courtside/internal/models"
)

// Repository is the storage collaborator. Every write publishes a change to
// subscribers of the affected users.
type Repository interface {
	ListAvailability(ctx context.Context, ownerID string) ([]models.AvailabilitySlot, error)
	// ListAvailabilityForOwners returns slots dated in [from, to).
	ListAvailabilityForOwners(ctx context.Context, ownerIDs []string, from, to interval.Date) ([]models.AvailabilitySlot, error)
	ListAvailabilityBySignature(ctx context.Context, ownerID, signature string) ([]models.AvailabilitySlot, error)
	GetAvailability(ctx context.Context, id string) (*models.AvailabilitySlot, error)
	// CreateAvailability fails with ErrConflict when the storage backstop rejects the row.
	CreateAvailability(ctx context.Context, slot models.AvailabilitySlot) (*models.AvailabilitySlot, error)
	UpdateAvailability(ctx context.Context, id string, patch models.SlotPatch) (*models.AvailabilitySlot, error)
	DeleteAvailability(ctx context.Context, id string) error

	// ListInvites returns invites where userID is sender or receiver.
	ListInvites(ctx context.Context, userID string) ([]models.MatchInvite, error)
	GetInvite(ctx context.Context, id string) (*models.MatchInvite, error)
	CreateInvite(ctx context.Context, invite models.MatchInvite) (*models.MatchInvite, error)
	UpdateInviteStatus(ctx context.Context, id string, patch models.InvitePatch) (*models.MatchInvite, error)
	ListExpiredPendingInvites(ctx context.Context, now time.Time, limit int) ([]models.MatchInvite, error)

	Subscribe(userID string, onChange func(models.Change)) Subscription
}

// Subscription is a session-scoped handle on a change feed.
type Subscription interface {
	// Unsubscribe stops delivery. It is safe to call more than once.
	Unsubscribe()
}

// ProfileDirectory resolves player profiles and friendships.
type ProfileDirectory interface {
	// GetProfiles looks up every id in one round trip. Unknown ids are absent
	// from the result.
	GetProfiles(ctx context.Context, ids []string) (map[string]models.Profile, error)
	AreFriends(ctx context.Context, a, b string) (bool, error)
}

// ChannelOpener opens a conversation between the two parties of an agreed match.
type ChannelOpener interface {
	OpenConversation(ctx context.Context, inviteID string, participants []string) (*models.Conversation, error)
}

// Notifier delivers a notification outside the application.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

// Inbox stores notifications.
type Inbox interface {
	CreateNotification(ctx context.Context, n models.Notification) error
	ListNotifications(ctx context.Context, userID string, limit int) ([]models.Notification, error)
	SetNotificationRead(ctx context.Context, userID, id string, read bool) error
}
