// Package negotiation implements the match invite lifecycle as pure
// transitions: each call takes the current invite and returns the patch to
// store, or an error and no patch.
package negotiation

import (
	"fmt"
	"strings"
	"time"

	"courtside/internal/conflict"
	"courtside/internal/domain"
	"courtside/internal/interval"
	"courtside/internal/models"
)

// Transition names a legal move of the machine.
type Transition string

const (
	TransitionCreate         Transition = "create"
	TransitionAccept         Transition = "accept"
	TransitionDecline        Transition = "decline"
	TransitionPropose        Transition = "propose"
	TransitionAcceptProposal Transition = "accept_proposal"
	TransitionCancel         Transition = "cancel"
	TransitionExpire         Transition = "expire"
)

// Decision is the receiver's answer to an invite.
type Decision string

const (
	DecisionAccept  Decision = "accept"
	DecisionDecline Decision = "decline"
)

var transitions = map[models.InviteStatus][]models.InviteStatus{
	models.InvitePending: {
		models.InvitePending,
		models.InviteAccepted,
		models.InviteDeclined,
		models.InviteCancelled,
		models.InviteExpired,
	},
	models.InviteAccepted: {models.InviteCancelled},
}

// CanTransition checks the status graph. Declined, cancelled and expired have
// no way out.
func CanTransition(from, to models.InviteStatus) bool {
	allowed, ok := transitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Outcome is the result of a successful transition.
type Outcome struct {
	Transition Transition
	Invite     models.MatchInvite
	Patch      models.InvitePatch
	// Notify lists the users to tell about the change.
	Notify []string
	// OpenChannel is set when the match is agreed.
	OpenChannel bool
}

// Draft is the input of Create.
type Draft struct {
	ID            string
	SenderID      string
	ReceiverID    string
	SlotID        string
	Interval      interval.DateInterval
	ExpiresAt     time.Time
	CourtLocation string
	Message       string
}

// Create opens a pending invite. receiverBusy is the receiver's blocking corpus;
// the originating slot is not consumed.
func Create(d Draft, receiverBusy []conflict.Entry, now time.Time) (Outcome, error) {
	switch {
	case strings.TrimSpace(d.SenderID) == "" || strings.TrimSpace(d.ReceiverID) == "":
		return Outcome{}, fmt.Errorf("%w: sender and receiver are required", domain.ErrValidation)
	case d.SenderID == d.ReceiverID:
		return Outcome{}, fmt.Errorf("%w: cannot invite yourself", domain.ErrValidation)
	case d.Interval.Date.IsZero() || !d.Interval.Start.Before(d.Interval.End):
		return Outcome{}, fmt.Errorf("%w: invite interval", domain.ErrInvalidInterval)
	case !d.ExpiresAt.After(now):
		return Outcome{}, fmt.Errorf("%w: expiry must be in the future", domain.ErrValidation)
	}

	if hits := conflict.FindConflicts(d.Interval, receiverBusy, ""); len(hits) > 0 {
		return Outcome{}, fmt.Errorf("%w: receiver is busy at %s (%s %s)", domain.ErrConflict, d.Interval, hits[0].Source, hits[0].ID)
	}

	inv := models.MatchInvite{
		ID:            d.ID,
		SenderID:      d.SenderID,
		ReceiverID:    d.ReceiverID,
		SlotID:        d.SlotID,
		Interval:      d.Interval,
		Status:        models.InvitePending,
		ExpiresAt:     d.ExpiresAt,
		CourtLocation: d.CourtLocation,
		Message:       d.Message,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return Outcome{
		Transition: TransitionCreate,
		Invite:     inv,
		Patch:      models.InvitePatch{Status: models.InvitePending, UpdatedAt: now},
		Notify:     []string{d.ReceiverID},
	}, nil
}

// Respond lets the receiver accept or decline. Any pending counter-proposal is
// dropped: the original interval is what gets answered.
func Respond(inv models.MatchInvite, actor string, decision Decision, now time.Time) (Outcome, error) {
	var to models.InviteStatus
	var tr Transition
	switch decision {
	case DecisionAccept:
		to, tr = models.InviteAccepted, TransitionAccept
	case DecisionDecline:
		to, tr = models.InviteDeclined, TransitionDecline
	default:
		return Outcome{}, fmt.Errorf("%w: unknown decision %q", domain.ErrValidation, decision)
	}

	if err := requireParticipant(inv, actor); err != nil {
		return Outcome{}, err
	}
	if actor != inv.ReceiverID {
		return Outcome{}, fmt.Errorf("%w: only the receiver may respond to invite %s", domain.ErrUnauthorized, inv.ID)
	}
	if err := requireTransition(inv, to); err != nil {
		return Outcome{}, err
	}

	at := now
	patch := models.InvitePatch{
		From:          inv.Status,
		Status:        to,
		ResponseAt:    &at,
		ClearProposal: inv.HasProposal(),
		UpdatedAt:     now,
	}
	return Outcome{
		Transition:  tr,
		Invite:      inv.Apply(patch),
		Patch:       patch,
		Notify:      []string{inv.SenderID},
		OpenChannel: to == models.InviteAccepted,
	}, nil
}

// ProposeNewTime attaches a counter-proposal. The invite stays pending and its
// interval is unchanged until the proposal is accepted. A newer proposal
// replaces an older one.
func ProposeNewTime(inv models.MatchInvite, actor string, proposed interval.DateInterval, counterpartyBusy []conflict.Entry, now time.Time) (Outcome, error) {
	if err := requireParticipant(inv, actor); err != nil {
		return Outcome{}, err
	}
	if err := requireTransition(inv, models.InvitePending); err != nil {
		return Outcome{}, err
	}
	if proposed.Date.IsZero() || !proposed.Start.Before(proposed.End) {
		return Outcome{}, fmt.Errorf("%w: proposed interval", domain.ErrInvalidInterval)
	}
	if conflict.HasConflict(proposed, counterpartyBusy, inv.ID) {
		return Outcome{}, fmt.Errorf("%w: counterparty is busy at %s", domain.ErrConflict, proposed)
	}

	at := now
	iv := proposed
	patch := models.InvitePatch{
		From:             inv.Status,
		Status:           models.InvitePending,
		ProposedInterval: &iv,
		ProposedBy:       actor,
		ProposedAt:       &at,
		UpdatedAt:        now,
	}
	return Outcome{
		Transition: TransitionPropose,
		Invite:     inv.Apply(patch),
		Patch:      patch,
		Notify:     []string{inv.Counterparty(actor)},
	}, nil
}

// AcceptProposedTime promotes the proposal to the invite's interval and accepts
// it. Only the participant who did not make the proposal may do this.
func AcceptProposedTime(inv models.MatchInvite, actor string, now time.Time) (Outcome, error) {
	if err := requireParticipant(inv, actor); err != nil {
		return Outcome{}, err
	}
	if inv.HasProposal() && actor == inv.ProposedBy {
		return Outcome{}, fmt.Errorf("%w: the proposer cannot accept their own proposal", domain.ErrUnauthorized)
	}
	if !inv.HasProposal() {
		return Outcome{}, fmt.Errorf("%w: invite %s has no proposed time", domain.ErrInvalidTransition, inv.ID)
	}
	if err := requireTransition(inv, models.InviteAccepted); err != nil {
		return Outcome{}, err
	}

	at := now
	iv := *inv.ProposedInterval
	patch := models.InvitePatch{
		From:          inv.Status,
		Status:        models.InviteAccepted,
		Interval:      &iv,
		ClearProposal: true,
		ResponseAt:    &at,
		UpdatedAt:     now,
	}
	return Outcome{
		Transition:  TransitionAcceptProposal,
		Invite:      inv.Apply(patch),
		Patch:       patch,
		Notify:      []string{inv.Counterparty(actor)},
		OpenChannel: true,
	}, nil
}

// Cancel withdraws a pending or accepted invite.
func Cancel(inv models.MatchInvite, actor, reason string, now time.Time) (Outcome, error) {
	if err := requireParticipant(inv, actor); err != nil {
		return Outcome{}, err
	}
	if err := requireTransition(inv, models.InviteCancelled); err != nil {
		return Outcome{}, err
	}

	at := now
	patch := models.InvitePatch{
		From:          inv.Status,
		Status:        models.InviteCancelled,
		CancelledAt:   &at,
		CancelledBy:   actor,
		CancelReason:  strings.TrimSpace(reason),
		ClearProposal: inv.HasProposal(),
		UpdatedAt:     now,
	}
	return Outcome{
		Transition: TransitionCancel,
		Invite:     inv.Apply(patch),
		Patch:      patch,
		Notify:     []string{inv.Counterparty(actor)},
	}, nil
}

// Expire closes a pending invite whose expiry has passed. It is driven by the
// sweeper, never by a user.
func Expire(inv models.MatchInvite, now time.Time) (Outcome, error) {
	if err := requireTransition(inv, models.InviteExpired); err != nil {
		return Outcome{}, err
	}
	if !now.After(inv.ExpiresAt) {
		return Outcome{}, fmt.Errorf("%w: invite %s expires at %s", domain.ErrInvalidTransition, inv.ID, inv.ExpiresAt.Format(time.RFC3339))
	}

	patch := models.InvitePatch{
		From:          inv.Status,
		Status:        models.InviteExpired,
		ClearProposal: inv.HasProposal(),
		UpdatedAt:     now,
	}
	return Outcome{
		Transition: TransitionExpire,
		Invite:     inv.Apply(patch),
		Patch:      patch,
		Notify:     inv.Participants(),
	}, nil
}

func requireParticipant(inv models.MatchInvite, actor string) error {
	if !inv.HasParticipant(actor) {
		return fmt.Errorf("%w: %q is not a participant of invite %s", domain.ErrUnauthorized, actor, inv.ID)
	}
	return nil
}

func requireTransition(inv models.MatchInvite, to models.InviteStatus) error {
	if !CanTransition(inv.Status, to) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, inv.Status, to)
	}
	return nil
}
