// Package api exposes the scheduling services over JSON HTTP. Callers are
// authenticated upstream; the acting user arrives in the X-User-ID header.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"courtside/internal/domain"
	"courtside/internal/models"
	"courtside/internal/service"
)

// UserHeader carries the acting user's ID.
const UserHeader = "X-User-ID"

const maxBodyBytes = 1 << 20

// ChangeSource hands out change subscriptions for the event stream.
type ChangeSource interface {
	Subscribe(userID string, onChange func(models.Change)) domain.Subscription
}

// Services are the handlers' collaborators.
type Services struct {
	Availability *service.AvailabilityService
	Invites      *service.InviteService
	Calendar     *service.CalendarService
	Inbox        *service.InboxService
	Changes      ChangeSource
}

type Options struct {
	Port int
	// RateLimitRPS is the per-user request rate. Zero disables limiting.
	RateLimitRPS   float64
	RateLimitBurst int
	// Heartbeat is the event stream keep-alive period.
	Heartbeat time.Duration
}

type HTTPServer struct {
	svc       Services
	limiter   *userLimiter
	heartbeat time.Duration
	logger    zerolog.Logger
	server    *http.Server
}

func NewHTTPServer(svc Services, opts Options, logger *zerolog.Logger) *HTTPServer {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "http").Logger()
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = 25 * time.Second
	}

	s := &HTTPServer{
		svc:       svc,
		heartbeat: opts.Heartbeat,
		logger:    l,
	}
	if opts.RateLimitRPS > 0 {
		s.limiter = newUserLimiter(opts.RateLimitRPS, opts.RateLimitBurst)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the routed handler, for tests and embedding.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) routes() http.Handler {
	mux := http.NewServeMux()

	s.handle(mux, "GET /api/v1/users/{id}/calendar", "calendar", s.handleCalendar)
	s.handle(mux, "GET /api/v1/users/{id}/calendar.xlsx", "calendar_xlsx", s.handleCalendarXLSX)
	s.handle(mux, "GET /api/v1/calendar/others", "calendar_others", s.handleOthers)

	s.handle(mux, "GET /api/v1/availability", "list_availability", s.handleListAvailability)
	s.handle(mux, "POST /api/v1/availability", "create_availability", s.handleCreateAvailability)
	s.handle(mux, "PATCH /api/v1/availability/{id}", "update_availability", s.handleUpdateAvailability)
	s.handle(mux, "DELETE /api/v1/availability/{id}", "delete_availability", s.handleDeleteAvailability)

	s.handle(mux, "GET /api/v1/invites", "list_invites", s.handleListInvites)
	s.handle(mux, "POST /api/v1/invites", "create_invite", s.handleCreateInvite)
	s.handle(mux, "GET /api/v1/invites/{id}", "get_invite", s.handleGetInvite)
	s.handle(mux, "POST /api/v1/invites/{id}/respond", "respond_invite", s.handleRespond)
	s.handle(mux, "POST /api/v1/invites/{id}/propose", "propose_time", s.handlePropose)
	s.handle(mux, "POST /api/v1/invites/{id}/accept-proposal", "accept_proposal", s.handleAcceptProposal)
	s.handle(mux, "POST /api/v1/invites/{id}/cancel", "cancel_invite", s.handleCancel)

	s.handle(mux, "GET /api/v1/notifications", "list_notifications", s.handleNotifications)
	s.handle(mux, "POST /api/v1/notifications/{id}/read", "read_notification", s.handleMarkRead(true))
	s.handle(mux, "POST /api/v1/notifications/{id}/unread", "unread_notification", s.handleMarkRead(false))

	s.handle(mux, "GET /api/v1/events", "events", s.handleEvents)

	return Chain(mux, withRequestID, withRecover(s.logger))
}

func (s *HTTPServer) handle(mux *http.ServeMux, pattern, route string, h http.HandlerFunc) {
	mux.Handle(pattern, Chain(h, s.instrument(route), s.rateLimit, withBodyLimit(maxBodyBytes)))
}

// Start serves until Shutdown. http.ErrServerClosed is not reported.
func (s *HTTPServer) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
