package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"courtside/internal/domain"
	"courtside/internal/grid"
	"courtside/internal/interval"
	"courtside/internal/metrics"
	"courtside/internal/models"
)

// MaxCalendarDays bounds one calendar request.
const MaxCalendarDays = 31

// Calendar is a rendered range of days.
type Calendar struct {
	OwnerID string        `json:"owner_id,omitempty"`
	From    interval.Date `json:"from"`
	Days    []grid.Day    `json:"days"`
}

type CalendarService struct {
	repo     domain.Repository
	profiles domain.ProfileDirectory
	window   grid.HourWindow
	logger   *zerolog.Logger
}

func NewCalendarService(repo domain.Repository, profiles domain.ProfileDirectory, window grid.HourWindow, logger *zerolog.Logger) *CalendarService {
	return &CalendarService{
		repo:     repo,
		profiles: profiles,
		window:   window,
		logger:   componentLogger(logger, "calendar"),
	}
}

// Week renders the owner's calendar as seen by viewer. Slots the viewer may
// not see are dropped. Invites are shown to their participants; anyone else
// sees the time as unavailable.
func (s *CalendarService) Week(ctx context.Context, viewer, owner string, from interval.Date, days int) (*Calendar, error) {
	days, err := checkRange(from, days)
	if err != nil {
		return nil, err
	}

	slots, err := s.repo.ListAvailabilityForOwners(ctx, []string{owner}, from, from.AddDays(days))
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	slots = grid.FilterVisible(slots, viewer, s.friendsWith(ctx, viewer))

	invites, err := s.repo.ListInvites(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list invites: %w", err)
	}
	invites = grid.RedactInvites(inRange(invites, from, days), viewer)

	started := time.Now()
	g := grid.Build(slots, invites)
	cal := &Calendar{OwnerID: owner, From: from, Days: g.Days(from, days, s.window)}
	metrics.ObserveGridBuild(time.Since(started))
	return cal, nil
}

// Others renders how many of ownerIDs offer each quarter, counting only slots
// viewer may see. The viewer is never counted.
func (s *CalendarService) Others(ctx context.Context, viewer string, ownerIDs []string, from interval.Date, days int) (*Calendar, error) {
	days, err := checkRange(from, days)
	if err != nil {
		return nil, err
	}

	owners := make([]string, 0, len(ownerIDs))
	for _, id := range uniqueStrings(ownerIDs) {
		if id != viewer {
			owners = append(owners, id)
		}
	}

	slots, err := s.repo.ListAvailabilityForOwners(ctx, owners, from, from.AddDays(days))
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	slots = grid.FilterVisible(slots, viewer, s.friendsWith(ctx, viewer))

	started := time.Now()
	g := grid.Build(slots, nil)
	cal := &Calendar{From: from, Days: g.OthersDays(from, days, s.window)}
	metrics.ObserveGridBuild(time.Since(started))
	return cal, nil
}

func (s *CalendarService) friendsWith(ctx context.Context, viewer string) func(owner string) bool {
	return func(owner string) bool {
		if s.profiles == nil || viewer == "" {
			return false
		}
		ok, err := s.profiles.AreFriends(ctx, viewer, owner)
		if err != nil {
			s.logger.Warn().Err(err).Str("viewer", viewer).Str("owner", owner).Msg("Friendship lookup failed, hiding friends-only slots")
			return false
		}
		return ok
	}
}

func checkRange(from interval.Date, days int) (int, error) {
	if from.IsZero() {
		return 0, fmt.Errorf("%w: start date is required", domain.ErrValidation)
	}
	if days <= 0 {
		days = 7
	}
	if days > MaxCalendarDays {
		return 0, fmt.Errorf("%w: at most %d days per request", domain.ErrValidation, MaxCalendarDays)
	}
	return days, nil
}

func inRange(invites []models.MatchInvite, from interval.Date, days int) []models.MatchInvite {
	to := from.AddDays(days)
	out := invites[:0:0]
	for i := range invites {
		d := invites[i].Interval.Date
		if !d.Before(from) && d.Before(to) {
			out = append(out, invites[i])
		}
	}
	return out
}
