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
	"courtside/internal/recurrence"
)

// Scope selects whether an edit touches one occurrence or its whole series.
type Scope string

const (
	ScopeSingle Scope = "single"
	ScopeSeries Scope = "series"
)

// ParseScope reads a scope. Empty means single.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case "", ScopeSingle:
		return ScopeSingle, nil
	case ScopeSeries:
		return ScopeSeries, nil
	}
	return "", fmt.Errorf("%w: unknown scope %q", domain.ErrValidation, s)
}

// SlotInput describes a slot to create.
type SlotInput struct {
	Interval     interval.DateInterval
	IsAvailable  bool
	IsBlocked    bool
	PrivacyLevel models.PrivacyLevel
	Notes        string
}

// RecurringResult reports a series creation. Occurrences colliding with the
// corpus or with earlier occurrences are skipped, not fatal.
type RecurringResult struct {
	Signature string                    `json:"signature"`
	Created   []models.AvailabilitySlot `json:"created"`
	Skipped   []interval.DateInterval   `json:"skipped,omitempty"`
	Truncated bool                      `json:"truncated"`
	Warnings  []string                  `json:"warnings,omitempty"`
}

// SeriesResult reports an edit that may span several occurrences.
type SeriesResult struct {
	domain.BulkResult
	Slots []models.AvailabilitySlot `json:"slots,omitempty"`
}

type AvailabilityService struct {
	repo    domain.Repository
	hardCap int
	loc     *time.Location
	now     Clock
	newID   func() string
	logger  *zerolog.Logger
}

func NewAvailabilityService(repo domain.Repository, hardCap int, loc *time.Location, logger *zerolog.Logger) *AvailabilityService {
	if hardCap <= 0 {
		hardCap = recurrence.DefaultHardCap
	}
	if loc == nil {
		loc = time.Local
	}
	return &AvailabilityService{
		repo:    repo,
		hardCap: hardCap,
		loc:     loc,
		now:     time.Now,
		newID:   uuid.NewString,
		logger:  componentLogger(logger, "availability"),
	}
}

// List returns the owner's slots.
func (s *AvailabilityService) List(ctx context.Context, owner string) ([]models.AvailabilitySlot, error) {
	return s.repo.ListAvailability(ctx, owner)
}

// Create writes a one-off slot.
func (s *AvailabilityService) Create(ctx context.Context, owner string, in SlotInput) (*models.AvailabilitySlot, error) {
	slot, err := s.prepare(owner, in)
	if err == nil {
		err = checkFuture(slot.Interval, s.now(), s.loc)
	}
	if err != nil {
		logRejection(s.logger, "create_slot", owner, "", err)
		return nil, err
	}

	corpus, err := s.corpus(ctx, owner, slot.Offered())
	if err != nil {
		return nil, err
	}
	if hits := conflict.FindConflicts(slot.Interval, corpus, ""); len(hits) > 0 {
		err := conflictError(slot.Interval, hits)
		logRejection(s.logger, "create_slot", owner, "", err)
		return nil, err
	}

	created, err := s.repo.CreateAvailability(ctx, slot)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			metrics.IncConflict("backstop")
		}
		logRejection(s.logger, "create_slot", owner, "", err)
		return nil, err
	}
	metrics.IncAvailabilityWrite("create")
	s.logger.Info().Str("owner", owner).Str("slot_id", created.ID).Str("interval", created.Interval.String()).Msg("Slot created")
	return created, nil
}

// CreateRecurring expands rule from in.Interval and writes one slot per
// occurrence, all sharing the rule's signature.
func (s *AvailabilityService) CreateRecurring(ctx context.Context, owner string, in SlotInput, rule recurrence.Rule) (*RecurringResult, error) {
	if !rule.IsRecurring() {
		slot, err := s.Create(ctx, owner, in)
		if err != nil {
			return nil, err
		}
		return &RecurringResult{Created: []models.AvailabilitySlot{*slot}}, nil
	}

	base, err := s.prepare(owner, in)
	if err == nil {
		err = checkFuture(base.Interval, s.now(), s.loc)
	}
	if err != nil {
		logRejection(s.logger, "create_series", owner, "", err)
		return nil, err
	}

	if rule.SeriesID == "" {
		rule.SeriesID = s.newID()
	}
	rule, err = rule.Normalize()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	exp, err := recurrence.Expand(base.Interval, rule, s.hardCap)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	res := &RecurringResult{Signature: recurrence.Encode(rule), Truncated: exp.Truncated}
	if exp.Truncated {
		metrics.IncRecurrenceTruncated()
		res.Warnings = append(res.Warnings, fmt.Sprintf("series stopped at %d occurrences", exp.HardCap))
		s.logger.Warn().Str("owner", owner).Int("cap", exp.HardCap).Int("emitted", len(exp.Occurrences)).Msg("Recurrence truncated at hard cap")
	}

	corpus, err := s.corpus(ctx, owner, base.Offered())
	if err != nil {
		return nil, err
	}
	accepted, rejected := conflict.Within(exp.Occurrences, corpus)
	for _, i := range rejected {
		res.Skipped = append(res.Skipped, exp.Occurrences[i])
	}

	for _, i := range accepted {
		slot := base
		slot.Interval = exp.Occurrences[i]
		slot.RecurrenceRule = res.Signature
		created, err := s.repo.CreateAvailability(ctx, slot)
		if errors.Is(err, domain.ErrConflict) {
			metrics.IncConflict("backstop")
			res.Skipped = append(res.Skipped, slot.Interval)
			continue
		}
		if err != nil {
			s.logger.Error().Err(err).Str("owner", owner).Int("created", len(res.Created)).Msg("Series creation stopped")
			return res, err
		}
		metrics.IncAvailabilityWrite("create")
		res.Created = append(res.Created, *created)
	}

	if len(res.Skipped) > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%d occurrences skipped because of conflicts", len(res.Skipped)))
	}
	s.logger.Info().
		Str("owner", owner).
		Str("signature", res.Signature).
		Int("created", len(res.Created)).
		Int("skipped", len(res.Skipped)).
		Msg("Series created")
	return res, nil
}

// Update edits one slot or its whole series. A single-scope edit detaches the
// occurrence from its series. Past slots may be edited.
func (s *AvailabilityService) Update(ctx context.Context, owner, id string, patch models.SlotPatch, scope Scope) (*SeriesResult, error) {
	slot, err := s.owned(ctx, "update_slot", owner, id)
	if err != nil {
		return nil, err
	}
	if patch.PrivacyLevel != nil && !patch.PrivacyLevel.Valid() {
		return nil, fmt.Errorf("%w: privacy level %q", domain.ErrValidation, *patch.PrivacyLevel)
	}
	patch.RecurrenceRule = nil

	targets := []models.AvailabilitySlot{*slot}
	if scope == ScopeSeries && slot.InSeries() {
		if patch.Date != nil {
			return nil, fmt.Errorf("%w: a series edit cannot move occurrences to one date", domain.ErrValidation)
		}
		targets, err = s.repo.ListAvailabilityBySignature(ctx, owner, slot.RecurrenceRule)
		if err != nil {
			return nil, err
		}
	} else if slot.InSeries() {
		patch.RecurrenceRule = strPtr("")
	}

	var corpus []conflict.Entry
	corpusLoaded := false
	res := &SeriesResult{BulkResult: domain.BulkResult{Requested: len(targets)}}
	var firstErr error
	for i := range targets {
		target := &targets[i]
		next, err := target.Apply(patch)
		if err == nil && needsConflictCheck(target, &next, patch) {
			if !corpusLoaded {
				corpus, err = s.corpus(ctx, owner, true)
				corpusLoaded = err == nil
			}
			if err == nil {
				against := corpus
				if !next.Offered() {
					against = slotEntries(corpus)
				}
				if hits := conflict.FindConflicts(next.Interval, against, target.ID); len(hits) > 0 {
					err = conflictError(next.Interval, hits)
				}
			}
		}
		var updated *models.AvailabilitySlot
		if err == nil {
			updated, err = s.repo.UpdateAvailability(ctx, target.ID, patch)
		}
		if err != nil {
			if errors.Is(err, domain.ErrConflict) {
				metrics.IncConflict("backstop")
			}
			logRejection(s.logger, "update_slot", owner, target.ID, err)
			res.Failed = append(res.Failed, target.ID)
			if firstErr == nil {
				firstErr = err
			}
			if scope != ScopeSeries {
				return nil, err
			}
			continue
		}
		metrics.IncAvailabilityWrite("update")
		res.Updated++
		res.Slots = append(res.Slots, *updated)
		if corpusLoaded {
			corpus = replaceEntry(corpus, *updated)
		}
	}

	s.logger.Info().Str("owner", owner).Str("slot_id", id).Str("scope", string(scope)).
		Int("updated", res.Updated).Int("failed", len(res.Failed)).Msg("Slots updated")
	return res, firstErr
}

// Delete removes one slot or its whole series. Series deletes are independent
// single deletes: earlier ones stay committed when a later one fails.
func (s *AvailabilityService) Delete(ctx context.Context, owner, id string, scope Scope) (domain.BulkResult, error) {
	slot, err := s.owned(ctx, "delete_slot", owner, id)
	if err != nil {
		return domain.BulkResult{}, err
	}

	targets := []models.AvailabilitySlot{*slot}
	if scope == ScopeSeries && slot.InSeries() {
		targets, err = s.repo.ListAvailabilityBySignature(ctx, owner, slot.RecurrenceRule)
		if err != nil {
			return domain.BulkResult{}, err
		}
	}

	res := domain.BulkResult{Requested: len(targets)}
	var firstErr error
	for i := range targets {
		if err := s.repo.DeleteAvailability(ctx, targets[i].ID); err != nil {
			res.Failed = append(res.Failed, targets[i].ID)
			if firstErr == nil {
				firstErr = err
			}
			s.logger.Error().Err(err).Str("slot_id", targets[i].ID).Msg("Failed to delete slot")
			continue
		}
		metrics.IncAvailabilityWrite("delete")
		res.Deleted++
	}

	s.logger.Info().Str("owner", owner).Str("slot_id", id).Str("scope", string(scope)).
		Int("deleted", res.Deleted).Int("failed", len(res.Failed)).Msg("Slots deleted")
	return res, firstErr
}

func (s *AvailabilityService) prepare(owner string, in SlotInput) (models.AvailabilitySlot, error) {
	if owner == "" {
		return models.AvailabilitySlot{}, fmt.Errorf("%w: no owner", domain.ErrUnauthorized)
	}
	if err := checkInterval(in.Interval); err != nil {
		return models.AvailabilitySlot{}, err
	}
	privacy := in.PrivacyLevel
	if privacy == "" {
		privacy = models.PrivacyPublic
	}
	if !privacy.Valid() {
		return models.AvailabilitySlot{}, fmt.Errorf("%w: privacy level %q", domain.ErrValidation, privacy)
	}
	return models.AvailabilitySlot{
		OwnerID:      owner,
		Interval:     in.Interval,
		IsAvailable:  in.IsAvailable,
		IsBlocked:    in.IsBlocked,
		PrivacyLevel: privacy,
		Notes:        in.Notes,
	}, nil
}

func (s *AvailabilityService) owned(ctx context.Context, op, owner, id string) (*models.AvailabilitySlot, error) {
	slot, err := s.repo.GetAvailability(ctx, id)
	if err != nil {
		return nil, err
	}
	if owner == "" || slot.OwnerID != owner {
		err := fmt.Errorf("%w: slot %s belongs to another player", domain.ErrUnauthorized, id)
		logRejection(s.logger, op, owner, id, err)
		return nil, err
	}
	return slot, nil
}

// corpus loads the owner's slots and, when the candidate is offered, the
// blocking invites. Slots that are not offered cannot contradict an invite.
func (s *AvailabilityService) corpus(ctx context.Context, owner string, withInvites bool) ([]conflict.Entry, error) {
	slots, err := s.repo.ListAvailability(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	var invites []models.MatchInvite
	if withInvites {
		invites, err = s.repo.ListInvites(ctx, owner)
		if err != nil {
			return nil, fmt.Errorf("list invites: %w", err)
		}
	}
	return conflict.Corpus(owner, slots, invites), nil
}

func needsConflictCheck(before, after *models.AvailabilitySlot, patch models.SlotPatch) bool {
	return patch.TouchesTime() || (!before.Offered() && after.Offered())
}

func slotEntries(entries []conflict.Entry) []conflict.Entry {
	out := make([]conflict.Entry, 0, len(entries))
	for _, e := range entries {
		if e.Source == conflict.SourceSlot {
			out = append(out, e)
		}
	}
	return out
}

func replaceEntry(entries []conflict.Entry, slot models.AvailabilitySlot) []conflict.Entry {
	for i := range entries {
		if entries[i].Source == conflict.SourceSlot && entries[i].ID == slot.ID {
			entries[i].Interval = slot.Interval
		}
	}
	return entries
}
