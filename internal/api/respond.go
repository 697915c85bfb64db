package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"courtside/internal/domain"
	"courtside/internal/interval"
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, kind string) {
	writeJSON(w, status, errorResponse{Error: msg, Kind: kind})
}

// writeServiceError maps a service error to its status. Unexpected errors are
// logged and hidden from the caller.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.ErrorKind(err)
	status := statusForKind(kind)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("request_id", RequestIDFromContext(r.Context())).Str("path", r.URL.Path).Msg("Request failed")
		msg = "internal error"
	}
	writeError(w, status, msg, kind)
}

func statusForKind(kind string) int {
	switch kind {
	case domain.KindInvalidInterval, domain.KindValidation, domain.KindPastStart:
		return http.StatusBadRequest
	case domain.KindUnauthorized:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict, domain.KindInvalidTransition:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// actor returns the acting user or writes 401.
func actor(w http.ResponseWriter, r *http.Request) (string, bool) {
	user := r.Header.Get(UserHeader)
	if user == "" {
		writeError(w, http.StatusUnauthorized, "missing "+UserHeader+" header", domain.KindUnauthorized)
		return "", false
	}
	return user, true
}

// decodeJSON reads a strict JSON body. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error(), domain.KindValidation)
		return false
	}
	return true
}

type intervalRequest struct {
	Date  string `json:"date"`
	Start string `json:"start"`
	End   string `json:"end"`
}

func (req intervalRequest) parse() (interval.DateInterval, error) {
	if req.Date == "" || req.Start == "" || req.End == "" {
		return interval.DateInterval{}, fmt.Errorf("%w: date, start and end are required", domain.ErrValidation)
	}
	return interval.Parse(req.Date, req.Start, req.End)
}

// dateRange reads ?from=YYYY-MM-DD&days=N.
func dateRange(r *http.Request) (interval.Date, int, error) {
	q := r.URL.Query()
	from, err := interval.ParseDate(q.Get("from"))
	if err != nil {
		return interval.Date{}, 0, err
	}
	days := 0
	if raw := q.Get("days"); raw != "" {
		days, err = strconv.Atoi(raw)
		if err != nil || days < 0 {
			return interval.Date{}, 0, fmt.Errorf("%w: days must be a positive number", domain.ErrValidation)
		}
	}
	return from, days, nil
}
