package domain

import (
	"errors"

	"courtside/internal/interval"
)

var (
	// ErrInvalidInterval is shared with the interval package so construction
	// failures there match without translation.
	ErrInvalidInterval   = interval.ErrInvalidInterval
	ErrConflict          = errors.New("interval conflicts with an existing reservation")
	ErrInvalidTransition = errors.New("invalid invite transition")
	ErrUnauthorized      = errors.New("actor is not allowed to perform this action")
	ErrNotFound          = errors.New("not found")
	ErrPastStart         = errors.New("start is in the past")
	ErrValidation        = errors.New("validation failed")
)

// Error kind labels. They are stable and safe to branch on.
const (
	KindInvalidInterval   = "invalid_interval"
	KindConflict          = "conflict"
	KindInvalidTransition = "invalid_transition"
	KindUnauthorized      = "unauthorized"
	KindNotFound          = "not_found"
	KindPastStart         = "past_start"
	KindValidation        = "validation"
	KindUnexpected        = "unexpected"
	KindOK                = "ok"
)

// ErrorKind maps err to its label. A nil error is "ok".
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return KindOK
	case errors.Is(err, ErrInvalidInterval),
		errors.Is(err, interval.ErrInvalidTime),
		errors.Is(err, interval.ErrInvalidDate):
		return KindInvalidInterval
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrInvalidTransition):
		return KindInvalidTransition
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrPastStart):
		return KindPastStart
	case errors.Is(err, ErrValidation):
		return KindValidation
	default:
		return KindUnexpected
	}
}

// BulkResult reports a series-wide operation that is not atomic: deletes that
// succeeded before a failure stay committed.
type BulkResult struct {
	Requested int      `json:"requested"`
	Deleted   int      `json:"deleted"`
	Updated   int      `json:"updated"`
	Failed    []string `json:"failed,omitempty"`
}
