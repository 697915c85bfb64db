package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"courtside/internal/domain"
	"courtside/internal/inbox"
)

// InboxService applies inbox changes optimistically: the local state moves
// first and falls back to the snapshot taken before the change when the
// stored write fails.
type InboxService struct {
	store  domain.Inbox
	logger *zerolog.Logger
}

func NewInboxService(store domain.Inbox, logger *zerolog.Logger) *InboxService {
	return &InboxService{store: store, logger: componentLogger(logger, "inbox")}
}

// Load reads the user's newest notifications.
func (s *InboxService) Load(ctx context.Context, user string, limit int) (inbox.State, error) {
	items, err := s.store.ListNotifications(ctx, user, limit)
	if err != nil {
		return inbox.State{}, err
	}
	return inbox.New(items), nil
}

// MarkRead marks one notification read. On failure the returned state is the
// one passed in.
func (s *InboxService) MarkRead(ctx context.Context, user string, state inbox.State, id string) (inbox.State, error) {
	return s.setRead(ctx, user, state, id, true)
}

// MarkUnread is the reverse of MarkRead.
func (s *InboxService) MarkUnread(ctx context.Context, user string, state inbox.State, id string) (inbox.State, error) {
	return s.setRead(ctx, user, state, id, false)
}

func (s *InboxService) setRead(ctx context.Context, user string, state inbox.State, id string, read bool) (inbox.State, error) {
	if user == "" {
		return state, fmt.Errorf("%w: no user", domain.ErrUnauthorized)
	}
	kind := inbox.ActionMarkUnread
	if read {
		kind = inbox.ActionMarkRead
	}
	step := inbox.Apply(state, inbox.Action{Kind: kind, ID: id})

	if err := s.store.SetNotificationRead(ctx, user, id, read); err != nil {
		s.logger.Warn().Err(err).Str("user", user).Str("notification_id", id).Msg("Rolling back inbox change")
		return step.Before, err
	}
	return step.After, nil
}
