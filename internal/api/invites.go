package api

import (
	"net/http"
	"time"

	"courtside/internal/negotiation"
	"courtside/internal/service"
)

// InviteRequest is the body of POST /api/v1/invites.
type InviteRequest struct {
	intervalRequest
	ReceiverID    string     `json:"receiver_id"`
	SlotID        string     `json:"slot_id,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	CourtLocation string     `json:"court_location,omitempty"`
	Message       string     `json:"message,omitempty"`
}

type respondRequest struct {
	Decision string `json:"decision"`
}

type cancelRequest struct {
	Reason string `json:"reason,omitempty"`
}

func (s *HTTPServer) handleListInvites(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(w, r)
	if !ok {
		return
	}
	invites, err := s.svc.Invites.List(r.Context(), user)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invites": nonNil(invites)})
}

func (s *HTTPServer) handleGetInvite(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(w, r)
	if !ok {
		return
	}
	inv, err := s.svc.Invites.Get(r.Context(), user, r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (s *HTTPServer) handleCreateInvite(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(w, r)
	if !ok {
		return
	}
	var req InviteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	iv, err := req.parse()
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	inv, err := s.svc.Invites.Create(r.Context(), user, service.InviteInput{
		ReceiverID:    req.ReceiverID,
		SlotID:        req.SlotID,
		Interval:      iv,
		ExpiresAt:     req.ExpiresAt,
		CourtLocation: req.CourtLocation,
		Message:       req.Message,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

func (s *HTTPServer) handleRespond(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(w, r)
	if !ok {
		return
	}
	var req respondRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	inv, err := s.svc.Invites.Respond(r.Context(), user, r.PathValue("id"), negotiation.Decision(req.Decision))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (s *HTTPServer) handlePropose(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(w, r)
	if !ok {
		return
	}
	var req intervalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	iv, err := req.parse()
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	inv, err := s.svc.Invites.ProposeNewTime(r.Context(), user, r.PathValue("id"), iv)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (s *HTTPServer) handleAcceptProposal(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(w, r)
	if !ok {
		return
	}
	inv, err := s.svc.Invites.AcceptProposedTime(r.Context(), user, r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (s *HTTPServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(w, r)
	if !ok {
		return
	}
	var req cancelRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	inv, err := s.svc.Invites.Cancel(r.Context(), user, r.PathValue("id"), req.Reason)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}
