package api

import (
	"fmt"
	"net/http"
	"time"

	"courtside/internal/domain"
	"courtside/internal/interval"
	"courtside/internal/models"
	"courtside/internal/recurrence"
	"courtside/internal/service"
)

// SlotRequest is the body of POST /api/v1/availability.
type SlotRequest struct {
	intervalRequest
	IsAvailable  *bool              `json:"is_available,omitempty"`
	IsBlocked    bool               `json:"is_blocked,omitempty"`
	PrivacyLevel string             `json:"privacy_level,omitempty"`
	Notes        string             `json:"notes,omitempty"`
	Recurrence   *RecurrenceRequest `json:"recurrence,omitempty"`
}

// RecurrenceRequest repeats the slot. Days use 0 for Sunday through 6 for
// Saturday.
type RecurrenceRequest struct {
	Pattern    string `json:"pattern"`
	Interval   int    `json:"interval,omitempty"`
	EndDate    string `json:"end_date,omitempty"`
	DaysOfWeek []int  `json:"days_of_week,omitempty"`
}

// SlotPatchRequest is the body of PATCH /api/v1/availability/{id}.
type SlotPatchRequest struct {
	Date         *string `json:"date,omitempty"`
	Start        *string `json:"start,omitempty"`
	End          *string `json:"end,omitempty"`
	IsAvailable  *bool   `json:"is_available,omitempty"`
	IsBlocked    *bool   `json:"is_blocked,omitempty"`
	PrivacyLevel *string `json:"privacy_level,omitempty"`
	Notes        *string `json:"notes,omitempty"`
}

func (s *HTTPServer) handleListAvailability(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(w, r)
	if !ok {
		return
	}
	slots, err := s.svc.Availability.List(r.Context(), user)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": nonNil(slots)})
}

func (s *HTTPServer) handleCreateAvailability(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(w, r)
	if !ok {
		return
	}
	var req SlotRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	in, err := req.input()
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	if req.Recurrence == nil {
		slot, err := s.svc.Availability.Create(r.Context(), user, in)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, slot)
		return
	}

	rule, err := req.Recurrence.rule()
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	res, err := s.svc.Availability.CreateRecurring(r.Context(), user, in, rule)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *HTTPServer) handleUpdateAvailability(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(w, r)
	if !ok {
		return
	}
	scope, err := service.ParseScope(r.URL.Query().Get("scope"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	var req SlotPatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	patch, err := req.patch()
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	res, err := s.svc.Availability.Update(r.Context(), user, r.PathValue("id"), patch, scope)
	if err != nil {
		if res != nil {
			writeJSON(w, statusForKind(domain.ErrorKind(err)), map[string]any{
				"error":  err.Error(),
				"kind":   domain.ErrorKind(err),
				"result": res,
			})
			return
		}
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *HTTPServer) handleDeleteAvailability(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(w, r)
	if !ok {
		return
	}
	scope, err := service.ParseScope(r.URL.Query().Get("scope"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	res, err := s.svc.Availability.Delete(r.Context(), user, r.PathValue("id"), scope)
	if err != nil {
		if res.Deleted > 0 {
			// Part of the series is gone; report what happened.
			writeJSON(w, statusForKind(domain.ErrorKind(err)), map[string]any{
				"error":  err.Error(),
				"kind":   domain.ErrorKind(err),
				"result": res,
			})
			return
		}
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (req SlotRequest) input() (service.SlotInput, error) {
	iv, err := req.parse()
	if err != nil {
		return service.SlotInput{}, err
	}
	in := service.SlotInput{
		Interval:     iv,
		IsAvailable:  true,
		IsBlocked:    req.IsBlocked,
		PrivacyLevel: models.PrivacyLevel(req.PrivacyLevel),
		Notes:        req.Notes,
	}
	if req.IsAvailable != nil {
		in.IsAvailable = *req.IsAvailable
	}
	return in, nil
}

func (req RecurrenceRequest) rule() (recurrence.Rule, error) {
	rule := recurrence.Rule{Pattern: recurrence.Pattern(req.Pattern), Interval: req.Interval}
	if req.EndDate != "" {
		end, err := interval.ParseDate(req.EndDate)
		if err != nil {
			return recurrence.Rule{}, err
		}
		rule.EndDate = &end
	}
	for _, d := range req.DaysOfWeek {
		if d < 0 || d > 6 {
			return recurrence.Rule{}, fmt.Errorf("%w: weekday %d out of range", domain.ErrValidation, d)
		}
		rule.DaysOfWeek = append(rule.DaysOfWeek, time.Weekday(d))
	}
	return rule, nil
}

func (req SlotPatchRequest) patch() (models.SlotPatch, error) {
	var p models.SlotPatch
	if req.Date != nil {
		d, err := interval.ParseDate(*req.Date)
		if err != nil {
			return p, err
		}
		p.Date = &d
	}
	if req.Start != nil {
		t, err := interval.ParseTimeOfDay(*req.Start)
		if err != nil {
			return p, err
		}
		p.Start = &t
	}
	if req.End != nil {
		t, err := interval.ParseTimeOfDay(*req.End)
		if err != nil {
			return p, err
		}
		p.End = &t
	}
	if req.PrivacyLevel != nil {
		level := models.PrivacyLevel(*req.PrivacyLevel)
		p.PrivacyLevel = &level
	}
	p.IsAvailable = req.IsAvailable
	p.IsBlocked = req.IsBlocked
	p.Notes = req.Notes
	return p, nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
