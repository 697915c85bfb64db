package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"courtside/internal/models"
)

// changeBuffer bounds the changes queued for one slow client. Overflow is
// dropped; clients refetch on the next change anyway.
const changeBuffer = 64

// handleEvents streams the caller's changes as server-sent events. The
// subscription is released when the client goes away.
// GET /api/v1/events
func (s *HTTPServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(w, r)
	if !ok {
		return
	}
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	changes := make(chan models.Change, changeBuffer)
	sub := s.svc.Changes.Subscribe(user, func(c models.Change) {
		select {
		case changes <- c:
		default:
			s.logger.Warn().Str("user", user).Str("change_id", c.ID).Msg("Event stream lagging, change dropped")
		}
	})
	defer sub.Unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(w, ": connected\n\n"); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		s.logger.Error().Err(err).Msg("Response does not support streaming")
		return
	}

	s.logger.Debug().Str("user", user).Msg("Event stream opened")
	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug().Str("user", user).Msg("Event stream closed")
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		case c := <-changes:
			data, err := json.Marshal(c)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", c.Kind, data); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
