package api

import (
	"net/http"
	"strconv"

	"courtside/internal/domain"
)

const defaultNotificationLimit = 50

func (s *HTTPServer) handleNotifications(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(w, r)
	if !ok {
		return
	}
	limit := defaultNotificationLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive number", domain.KindValidation)
			return
		}
		limit = n
	}
	state, err := s.svc.Inbox.Load(r.Context(), user, limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// handleMarkRead flips one notification and returns the resulting inbox. On a
// failed write the inbox is returned as it was, together with the error.
func (s *HTTPServer) handleMarkRead(read bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := actor(w, r)
		if !ok {
			return
		}
		state, err := s.svc.Inbox.Load(r.Context(), user, defaultNotificationLimit)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		mark := s.svc.Inbox.MarkUnread
		if read {
			mark = s.svc.Inbox.MarkRead
		}
		state, err = mark(r.Context(), user, state, r.PathValue("id"))
		if err != nil {
			kind := domain.ErrorKind(err)
			writeJSON(w, statusForKind(kind), map[string]any{"error": err.Error(), "kind": kind, "inbox": state})
			return
		}
		writeJSON(w, http.StatusOK, state)
	}
}
