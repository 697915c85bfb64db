package models

import "time"

// NotificationKind names the event a notification reports.
type NotificationKind string

const (
	NotifyInviteReceived  NotificationKind = "invite_received"
	NotifyInviteAccepted  NotificationKind = "invite_accepted"
	NotifyInviteDeclined  NotificationKind = "invite_declined"
	NotifyInviteProposed  NotificationKind = "invite_proposed"
	NotifyInviteCancelled NotificationKind = "invite_cancelled"
	NotifyInviteExpired   NotificationKind = "invite_expired"
)

// Notification is an inbox entry for one user.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Kind      NotificationKind `json:"kind"`
	InviteID  string           `json:"invite_id,omitempty"`
	Title     string           `json:"title"`
	Body      string           `json:"body,omitempty"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}

// ChangeKind names the collection a change belongs to.
type ChangeKind string

const (
	ChangeAvailability ChangeKind = "availability"
	ChangeInvite       ChangeKind = "invite"
	ChangeNotification ChangeKind = "notification"
)

// ChangeOp is the write that produced a change.
type ChangeOp string

const (
	OpCreated ChangeOp = "created"
	OpUpdated ChangeOp = "updated"
	OpDeleted ChangeOp = "deleted"
)

// Change is a real-time notification that a stored record was written.
// UserIDs lists every user whose view is affected.
type Change struct {
	Kind    ChangeKind `json:"kind"`
	Op      ChangeOp   `json:"op"`
	ID      string     `json:"id"`
	UserIDs []string   `json:"user_ids"`
	At      time.Time  `json:"at"`
}

// Affects reports whether user is among the affected users.
func (c Change) Affects(user string) bool {
	for _, id := range c.UserIDs {
		if id == user {
			return true
		}
	}
	return false
}
