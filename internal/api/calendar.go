package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"courtside/internal/export"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// handleCalendar returns the owner's classified days as the caller may see
// them. GET /api/v1/users/{id}/calendar?from=YYYY-MM-DD&days=N
func (s *HTTPServer) handleCalendar(w http.ResponseWriter, r *http.Request) {
	viewer, ok := actor(w, r)
	if !ok {
		return
	}
	from, days, err := dateRange(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	cal, err := s.svc.Calendar.Week(r.Context(), viewer, r.PathValue("id"), from, days)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cal)
}

// handleCalendarXLSX is handleCalendar rendered as a spreadsheet.
func (s *HTTPServer) handleCalendarXLSX(w http.ResponseWriter, r *http.Request) {
	viewer, ok := actor(w, r)
	if !ok {
		return
	}
	from, days, err := dateRange(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	owner := r.PathValue("id")
	cal, err := s.svc.Calendar.Week(r.Context(), viewer, owner, from, days)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	// Buffer so a rendering failure can still be reported as JSON.
	var buf bytes.Buffer
	if err := export.WriteWeek(&buf, owner, cal.Days); err != nil {
		s.writeServiceError(w, r, fmt.Errorf("render xlsx: %w", err))
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="calendar_%s_%s.xlsx"`, owner, from.ISO()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// handleOthers counts, per quarter, how many of the listed players are free.
// GET /api/v1/calendar/others?owners=a,b&from=YYYY-MM-DD&days=N
func (s *HTTPServer) handleOthers(w http.ResponseWriter, r *http.Request) {
	viewer, ok := actor(w, r)
	if !ok {
		return
	}
	from, days, err := dateRange(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	var owners []string
	for _, id := range strings.Split(r.URL.Query().Get("owners"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			owners = append(owners, id)
		}
	}
	cal, err := s.svc.Calendar.Others(r.Context(), viewer, owners, from, days)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cal)
}
