package models

import (
	"time"

	"courtside/internal/interval"
)

// PrivacyLevel controls who may see an availability slot.
type PrivacyLevel string

const (
	PrivacyPublic      PrivacyLevel = "public"
	PrivacyFriendsOnly PrivacyLevel = "friends_only"
	PrivacyPrivate     PrivacyLevel = "private"
)

// Valid reports whether p is a known level.
func (p PrivacyLevel) Valid() bool {
	switch p {
	case PrivacyPublic, PrivacyFriendsOnly, PrivacyPrivate:
		return true
	}
	return false
}

// AvailabilitySlot is one concrete availability occurrence of a player.
type AvailabilitySlot struct {
	ID           string                `json:"id"`
	OwnerID      string                `json:"owner_id"`
	Interval     interval.DateInterval `json:"interval"`
	IsAvailable  bool                  `json:"is_available"`
	IsBlocked    bool                  `json:"is_blocked"`
	PrivacyLevel PrivacyLevel          `json:"privacy_level"`
	// RecurrenceRule is the encoded signature shared by every occurrence of a
	// series. Empty for one-off slots.
	RecurrenceRule string    `json:"recurrence_rule,omitempty"`
	Notes          string    `json:"notes,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Offered reports whether the slot advertises open time.
func (s *AvailabilitySlot) Offered() bool {
	return s.IsAvailable && !s.IsBlocked
}

// InSeries reports whether the slot belongs to a recurrence group.
func (s *AvailabilitySlot) InSeries() bool {
	return s.RecurrenceRule != ""
}

// SlotPatch lists the fields an owner may change. Nil fields are left as is.
type SlotPatch struct {
	Date         *interval.Date      `json:"date,omitempty"`
	Start        *interval.TimeOfDay `json:"-"`
	End          *interval.TimeOfDay `json:"-"`
	IsAvailable  *bool               `json:"is_available,omitempty"`
	IsBlocked    *bool               `json:"is_blocked,omitempty"`
	PrivacyLevel *PrivacyLevel       `json:"privacy_level,omitempty"`
	Notes        *string             `json:"notes,omitempty"`
	// RecurrenceRule replaces the signature; a pointer to "" detaches the slot.
	RecurrenceRule *string `json:"-"`
}

// TouchesTime reports whether the patch moves the slot in time.
func (p SlotPatch) TouchesTime() bool {
	return p.Date != nil || p.Start != nil || p.End != nil
}

// Apply returns s with the patch applied. The resulting interval is validated.
func (s AvailabilitySlot) Apply(p SlotPatch) (AvailabilitySlot, error) {
	date, start, end := s.Interval.Date, s.Interval.Start, s.Interval.End
	if p.Date != nil {
		date = *p.Date
	}
	if p.Start != nil {
		start = *p.Start
	}
	if p.End != nil {
		end = *p.End
	}
	iv, err := interval.New(date, start, end)
	if err != nil {
		return AvailabilitySlot{}, err
	}
	s.Interval = iv

	if p.IsAvailable != nil {
		s.IsAvailable = *p.IsAvailable
	}
	if p.IsBlocked != nil {
		s.IsBlocked = *p.IsBlocked
	}
	if p.PrivacyLevel != nil {
		s.PrivacyLevel = *p.PrivacyLevel
	}
	if p.Notes != nil {
		s.Notes = *p.Notes
	}
	if p.RecurrenceRule != nil {
		s.RecurrenceRule = *p.RecurrenceRule
	}
	return s, nil
}

// InviteStatus is the negotiation state of a match invite.
type InviteStatus string

const (
	InvitePending   InviteStatus = "pending"
	InviteAccepted  InviteStatus = "accepted"
	InviteDeclined  InviteStatus = "declined"
	InviteCancelled InviteStatus = "cancelled"
	InviteExpired   InviteStatus = "expired"
)

// Valid reports whether s is a known status.
func (s InviteStatus) Valid() bool {
	switch s {
	case InvitePending, InviteAccepted, InviteDeclined, InviteCancelled, InviteExpired:
		return true
	}
	return false
}

// Blocking reports whether an invite in this status occupies its interval.
func (s InviteStatus) Blocking() bool {
	return s == InvitePending || s == InviteAccepted
}

// Terminal reports whether no transition may leave this status.
func (s InviteStatus) Terminal() bool {
	return s == InviteDeclined || s == InviteCancelled || s == InviteExpired
}

// MatchInvite is a proposal from one player to another to play at a time.
type MatchInvite struct {
	ID         string                `json:"id"`
	SenderID   string                `json:"sender_id"`
	ReceiverID string                `json:"receiver_id"`
	SlotID     string                `json:"slot_id,omitempty"`
	Interval   interval.DateInterval `json:"interval"`
	Status     InviteStatus          `json:"status"`

	ProposedInterval *interval.DateInterval `json:"proposed_interval,omitempty"`
	ProposedBy       string                 `json:"proposed_by,omitempty"`
	ProposedAt       *time.Time             `json:"proposed_at,omitempty"`

	ExpiresAt    time.Time  `json:"expires_at"`
	ResponseAt   *time.Time `json:"response_at,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CancelledBy  string     `json:"cancelled_by,omitempty"`
	CancelReason string     `json:"cancel_reason,omitempty"`

	CourtLocation string    `json:"court_location,omitempty"`
	Message       string    `json:"message,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	// Joined by the batch profile lookup; never persisted.
	Sender   *Profile `json:"sender,omitempty"`
	Receiver *Profile `json:"receiver,omitempty"`
}

// HasParticipant reports whether user is the sender or the receiver.
func (m *MatchInvite) HasParticipant(user string) bool {
	return user != "" && (m.SenderID == user || m.ReceiverID == user)
}

// Counterparty returns the other participant, or "" when user is not one.
func (m *MatchInvite) Counterparty(user string) string {
	switch user {
	case m.SenderID:
		return m.ReceiverID
	case m.ReceiverID:
		return m.SenderID
	}
	return ""
}

// HasProposal reports whether a counter-proposal is attached.
func (m *MatchInvite) HasProposal() bool {
	return m.ProposedInterval != nil
}

// Participants returns sender and receiver.
func (m *MatchInvite) Participants() []string {
	return []string{m.SenderID, m.ReceiverID}
}

// InvitePatch carries a status change and the fields recorded with it.
// From is the status the change was decided from; storage refuses the patch
// when the stored status differs. Empty skips the check.
type InvitePatch struct {
	From             InviteStatus
	Status           InviteStatus
	Interval         *interval.DateInterval
	ProposedInterval *interval.DateInterval
	ProposedBy       string
	ProposedAt       *time.Time
	ClearProposal    bool
	ResponseAt       *time.Time
	CancelledAt      *time.Time
	CancelledBy      string
	CancelReason     string
	UpdatedAt        time.Time
}

// Apply returns m with the patch applied.
func (m MatchInvite) Apply(p InvitePatch) MatchInvite {
	m.Status = p.Status
	if p.Interval != nil {
		m.Interval = *p.Interval
	}
	if p.ClearProposal {
		m.ProposedInterval, m.ProposedBy, m.ProposedAt = nil, "", nil
	}
	if p.ProposedInterval != nil {
		iv := *p.ProposedInterval
		m.ProposedInterval = &iv
		m.ProposedBy = p.ProposedBy
		m.ProposedAt = p.ProposedAt
	}
	if p.ResponseAt != nil {
		m.ResponseAt = p.ResponseAt
	}
	if p.CancelledAt != nil {
		m.CancelledAt = p.CancelledAt
		m.CancelledBy = p.CancelledBy
		m.CancelReason = p.CancelReason
	}
	if !p.UpdatedAt.IsZero() {
		m.UpdatedAt = p.UpdatedAt
	}
	return m
}

// Profile is the public part of a player's account.
type Profile struct {
	ID             string    `json:"id"`
	DisplayName    string    `json:"display_name"`
	SkillLevel     string    `json:"skill_level,omitempty"`
	TelegramChatID int64     `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

// Conversation is the channel opened between two players once a match is agreed.
type Conversation struct {
	ID           string    `json:"id"`
	InviteID     string    `json:"invite_id"`
	Participants []string  `json:"participants"`
	CreatedAt    time.Time `json:"created_at"`
}
