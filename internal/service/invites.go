package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"courtside/internal/conflict"
	"courtside/internal/domain"
	"courtside/internal/interval"
	"courtside/internal/metrics"
	"courtside/internal/models"
	"courtside/internal/negotiation"
)

// DefaultInviteTTL is used when no expiry is configured.
const DefaultInviteTTL = 48 * time.Hour

// InviteInput describes an invite to send.
type InviteInput struct {
	ReceiverID    string
	SlotID        string
	Interval      interval.DateInterval
	ExpiresAt     *time.Time
	CourtLocation string
	Message       string
}

type InviteService struct {
	repo     domain.Repository
	profiles domain.ProfileDirectory
	channels domain.ChannelOpener
	inbox    domain.Inbox
	notifier domain.Notifier
	ttl      time.Duration
	loc      *time.Location
	now      Clock
	newID    func() string
	logger   *zerolog.Logger
}

func NewInviteService(
	repo domain.Repository,
	profiles domain.ProfileDirectory,
	channels domain.ChannelOpener,
	inbox domain.Inbox,
	notifier domain.Notifier,
	ttl time.Duration,
	loc *time.Location,
	logger *zerolog.Logger,
) *InviteService {
	if ttl <= 0 {
		ttl = DefaultInviteTTL
	}
	if loc == nil {
		loc = time.Local
	}
	return &InviteService{
		repo:     repo,
		profiles: profiles,
		channels: channels,
		inbox:    inbox,
		notifier: notifier,
		ttl:      ttl,
		loc:      loc,
		now:      time.Now,
		newID:    uuid.NewString,
		logger:   componentLogger(logger, "invites"),
	}
}

// List returns the user's invites with both participants' profiles attached.
// Profiles are resolved with one batch lookup.
func (s *InviteService) List(ctx context.Context, user string) ([]models.MatchInvite, error) {
	invites, err := s.repo.ListInvites(ctx, user)
	if err != nil {
		return nil, err
	}
	if len(invites) == 0 || s.profiles == nil {
		return invites, nil
	}

	ids := make([]string, 0, len(invites)*2)
	for i := range invites {
		ids = append(ids, invites[i].SenderID, invites[i].ReceiverID)
	}
	profiles, err := s.profiles.GetProfiles(ctx, uniqueStrings(ids))
	if err != nil {
		s.logger.Warn().Err(err).Str("user", user).Msg("Profile lookup failed, returning invites without profiles")
		return invites, nil
	}
	for i := range invites {
		if p, ok := profiles[invites[i].SenderID]; ok {
			invites[i].Sender = &p
		}
		if p, ok := profiles[invites[i].ReceiverID]; ok {
			invites[i].Receiver = &p
		}
	}
	return invites, nil
}

// Get returns an invite visible to actor.
func (s *InviteService) Get(ctx context.Context, actor, id string) (*models.MatchInvite, error) {
	inv, err := s.repo.GetInvite(ctx, id)
	if err != nil {
		return nil, err
	}
	if !inv.HasParticipant(actor) {
		err := fmt.Errorf("%w: %q is not a participant of invite %s", domain.ErrUnauthorized, actor, id)
		logRejection(s.logger, "get_invite", actor, id, err)
		return nil, err
	}
	return inv, nil
}

// Create sends a pending invite from sender.
func (s *InviteService) Create(ctx context.Context, sender string, in InviteInput) (*models.MatchInvite, error) {
	const op = "create_invite"
	now := s.now()

	if sender == "" {
		err := fmt.Errorf("%w: no sender", domain.ErrUnauthorized)
		logRejection(s.logger, op, sender, "", err)
		return nil, err
	}
	if err := checkInterval(in.Interval); err != nil {
		return nil, err
	}
	if err := checkFuture(in.Interval, now, s.loc); err != nil {
		return nil, err
	}
	if in.SlotID != "" {
		slot, err := s.repo.GetAvailability(ctx, in.SlotID)
		if err != nil {
			return nil, err
		}
		if slot.OwnerID != in.ReceiverID && slot.OwnerID != sender {
			return nil, fmt.Errorf("%w: slot %s does not belong to a participant", domain.ErrValidation, in.SlotID)
		}
	}

	expires := now.Add(s.ttl)
	if in.ExpiresAt != nil {
		expires = *in.ExpiresAt
	}

	var busy []conflict.Entry
	if in.ReceiverID != "" && in.ReceiverID != sender {
		invites, err := s.repo.ListInvites(ctx, in.ReceiverID)
		if err != nil {
			return nil, fmt.Errorf("list invites: %w", err)
		}
		busy = conflict.InviteEntries(in.ReceiverID, invites)
	}

	outcome, err := negotiation.Create(negotiation.Draft{
		ID:            s.newID(),
		SenderID:      sender,
		ReceiverID:    in.ReceiverID,
		SlotID:        in.SlotID,
		Interval:      in.Interval,
		ExpiresAt:     expires,
		CourtLocation: in.CourtLocation,
		Message:       in.Message,
	}, busy, now)
	if err != nil {
		var hits []conflict.Entry
		if errors.Is(err, domain.ErrConflict) {
			hits = conflict.FindConflicts(in.Interval, busy, "")
		}
		return nil, s.reject(op, sender, "", hits, err)
	}

	stored, err := s.repo.CreateInvite(ctx, outcome.Invite)
	if err != nil {
		return nil, s.reject(op, sender, "", nil, err)
	}
	s.afterTransition(ctx, outcome, stored)
	return stored, nil
}

// Respond lets the receiver accept or decline.
func (s *InviteService) Respond(ctx context.Context, actor, id string, decision negotiation.Decision) (*models.MatchInvite, error) {
	return s.transition(ctx, "respond", actor, id, func(inv models.MatchInvite, now time.Time) (negotiation.Outcome, error) {
		return negotiation.Respond(inv, actor, decision, now)
	})
}

// ProposeNewTime attaches a counter-proposal. The proposed interval must be
// free for both participants apart from this invite.
func (s *InviteService) ProposeNewTime(ctx context.Context, actor, id string, proposed interval.DateInterval) (*models.MatchInvite, error) {
	const op = "propose_time"
	if err := checkInterval(proposed); err != nil {
		return nil, err
	}
	if err := checkFuture(proposed, s.now(), s.loc); err != nil {
		return nil, err
	}

	var busy []conflict.Entry
	return s.transition(ctx, op, actor, id, func(inv models.MatchInvite, now time.Time) (negotiation.Outcome, error) {
		if inv.HasParticipant(actor) {
			for _, user := range inv.Participants() {
				invites, err := s.repo.ListInvites(ctx, user)
				if err != nil {
					return negotiation.Outcome{}, fmt.Errorf("list invites: %w", err)
				}
				busy = append(busy, conflict.InviteEntries(user, invites)...)
			}
		}
		out, err := negotiation.ProposeNewTime(inv, actor, proposed, busy, now)
		if errors.Is(err, domain.ErrConflict) {
			for _, h := range conflict.FindConflicts(proposed, busy, inv.ID) {
				metrics.IncConflict(string(h.Source))
			}
		}
		return out, err
	})
}

// AcceptProposedTime promotes the proposal and accepts the invite.
func (s *InviteService) AcceptProposedTime(ctx context.Context, actor, id string) (*models.MatchInvite, error) {
	return s.transition(ctx, "accept_proposal", actor, id, func(inv models.MatchInvite, now time.Time) (negotiation.Outcome, error) {
		return negotiation.AcceptProposedTime(inv, actor, now)
	})
}

// Cancel withdraws a pending or accepted invite.
func (s *InviteService) Cancel(ctx context.Context, actor, id, reason string) (*models.MatchInvite, error) {
	return s.transition(ctx, "cancel", actor, id, func(inv models.MatchInvite, now time.Time) (negotiation.Outcome, error) {
		return negotiation.Cancel(inv, actor, reason, now)
	})
}

// Expire closes one overdue pending invite. It is driven by the sweeper.
func (s *InviteService) Expire(ctx context.Context, id string) (*models.MatchInvite, error) {
	return s.transition(ctx, "expire", "system", id, func(inv models.MatchInvite, now time.Time) (negotiation.Outcome, error) {
		return negotiation.Expire(inv, now)
	})
}

// ExpireDue expires up to limit overdue pending invites and returns how many
// were closed. Failures on single invites are logged and skipped.
func (s *InviteService) ExpireDue(ctx context.Context, limit int) (int, error) {
	due, err := s.repo.ListExpiredPendingInvites(ctx, s.now(), limit)
	if err != nil {
		return 0, fmt.Errorf("list expired invites: %w", err)
	}
	expired := 0
	for i := range due {
		if ctx.Err() != nil {
			return expired, ctx.Err()
		}
		if _, err := s.Expire(ctx, due[i].ID); err != nil {
			s.logger.Warn().Err(err).Str("invite_id", due[i].ID).Msg("Failed to expire invite")
			continue
		}
		expired++
	}
	if expired > 0 {
		metrics.AddInvitesExpired(expired)
	}
	return expired, nil
}

type decideFunc func(inv models.MatchInvite, now time.Time) (negotiation.Outcome, error)

// transition is the read-decide-write cycle shared by every invite action.
func (s *InviteService) transition(ctx context.Context, op, actor, id string, decide decideFunc) (*models.MatchInvite, error) {
	inv, err := s.repo.GetInvite(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	outcome, err := decide(*inv, now)
	if err != nil {
		return nil, s.reject(op, actor, id, nil, err)
	}

	stored, err := s.repo.UpdateInviteStatus(ctx, id, outcome.Patch)
	if err != nil {
		return nil, s.reject(op, actor, id, nil, err)
	}
	s.afterTransition(ctx, outcome, stored)
	return stored, nil
}

func (s *InviteService) reject(op, actor, target string, hits []conflict.Entry, err error) error {
	for _, h := range hits {
		metrics.IncConflict(string(h.Source))
	}
	metrics.IncInviteTransition(op, domain.ErrorKind(err))
	logRejection(s.logger, op, actor, target, err)
	return err
}

// afterTransition runs the side effects of a committed transition. They are
// best effort: the transition is already stored.
func (s *InviteService) afterTransition(ctx context.Context, outcome negotiation.Outcome, inv *models.MatchInvite) {
	metrics.IncInviteTransition(string(outcome.Transition), domain.KindOK)
	s.logger.Info().
		Str("invite_id", inv.ID).
		Str("transition", string(outcome.Transition)).
		Str("status", string(inv.Status)).
		Msg("Invite transition")

	if outcome.OpenChannel {
		s.openChannel(ctx, inv)
		s.blockOfferedSlots(ctx, inv)
	}
	for _, user := range outcome.Notify {
		s.notify(ctx, user, outcome.Transition, inv)
	}
}

func (s *InviteService) openChannel(ctx context.Context, inv *models.MatchInvite) {
	if s.channels == nil {
		return
	}
	conv, err := s.channels.OpenConversation(ctx, inv.ID, inv.Participants())
	if err != nil {
		s.logger.Error().Err(err).Str("invite_id", inv.ID).Msg("Failed to open conversation")
		return
	}
	s.logger.Debug().Str("invite_id", inv.ID).Str("conversation_id", conv.ID).Msg("Conversation opened")
}

// blockOfferedSlots takes the agreed time off both players' offered slots so
// no offered slot overlaps an accepted invite.
func (s *InviteService) blockOfferedSlots(ctx context.Context, inv *models.MatchInvite) {
	day := inv.Interval.Date
	slots, err := s.repo.ListAvailabilityForOwners(ctx, inv.Participants(), day, day.AddDays(1))
	if err != nil {
		s.logger.Error().Err(err).Str("invite_id", inv.ID).Msg("Failed to load slots to block")
		return
	}
	for i := range slots {
		if !slots[i].Offered() || !interval.Overlaps(slots[i].Interval, inv.Interval) {
			continue
		}
		if _, err := s.repo.UpdateAvailability(ctx, slots[i].ID, models.SlotPatch{IsBlocked: boolPtr(true)}); err != nil {
			s.logger.Error().Err(err).Str("slot_id", slots[i].ID).Str("invite_id", inv.ID).Msg("Failed to block slot")
			continue
		}
		metrics.IncAvailabilityWrite("block")
	}
}

func (s *InviteService) notify(ctx context.Context, user string, tr negotiation.Transition, inv *models.MatchInvite) {
	n := notificationFor(user, tr, inv, s.now())
	if s.inbox != nil {
		if err := s.inbox.CreateNotification(ctx, n); err != nil {
			s.logger.Error().Err(err).Str("user", user).Str("invite_id", inv.ID).Msg("Failed to store notification")
		}
	}
	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, n); err != nil {
			s.logger.Warn().Err(err).Str("user", user).Str("invite_id", inv.ID).Msg("Failed to deliver notification")
		}
	}
}

func notificationFor(user string, tr negotiation.Transition, inv *models.MatchInvite, now time.Time) models.Notification {
	n := models.Notification{
		ID:        uuid.NewString(),
		UserID:    user,
		InviteID:  inv.ID,
		Body:      inv.Interval.String(),
		CreatedAt: now,
	}
	switch tr {
	case negotiation.TransitionCreate:
		n.Kind, n.Title = models.NotifyInviteReceived, "New match invite"
	case negotiation.TransitionAccept, negotiation.TransitionAcceptProposal:
		n.Kind, n.Title = models.NotifyInviteAccepted, "Match confirmed"
	case negotiation.TransitionDecline:
		n.Kind, n.Title = models.NotifyInviteDeclined, "Invite declined"
	case negotiation.TransitionPropose:
		n.Kind, n.Title = models.NotifyInviteProposed, "New time proposed"
		if inv.ProposedInterval != nil {
			n.Body = inv.ProposedInterval.String()
		}
	case negotiation.TransitionCancel:
		n.Kind, n.Title = models.NotifyInviteCancelled, "Match cancelled"
		if inv.CancelReason != "" {
			n.Body += ": " + inv.CancelReason
		}
	case negotiation.TransitionExpire:
		n.Kind, n.Title = models.NotifyInviteExpired, "Invite expired"
	}
	return n
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
