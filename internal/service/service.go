// Package service orchestrates the scheduling core: each operation reads what
// it needs, lets the pure packages decide, and performs one write.
package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"courtside/internal/conflict"
	"courtside/internal/domain"
	"courtside/internal/interval"
	"courtside/internal/metrics"
)

// Clock is the time source of the services.
type Clock func() time.Time

func componentLogger(logger *zerolog.Logger, name string) *zerolog.Logger {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", name).Logger()
	return &l
}

// checkInterval re-validates an interval that may have been assembled field by
// field.
func checkInterval(iv interval.DateInterval) error {
	_, err := interval.New(iv.Date, iv.Start, iv.End)
	return err
}

// checkFuture rejects intervals starting before now. Dates are naive and read
// in loc.
func checkFuture(iv interval.DateInterval, now time.Time, loc *time.Location) error {
	if iv.StartTime(loc).Before(now) {
		return fmt.Errorf("%w: %s", domain.ErrPastStart, iv)
	}
	return nil
}

// logRejection logs a failed operation. Unauthorized attempts are security
// events and are logged apart from ordinary validation failures.
func logRejection(logger *zerolog.Logger, op, actor, target string, err error) {
	kind := domain.ErrorKind(err)
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		metrics.IncUnauthorized(op)
		logger.Warn().
			Bool("security", true).
			Str("operation", op).
			Str("actor", actor).
			Str("target", target).
			Err(err).
			Msg("Unauthorized action rejected")
	case kind == domain.KindUnexpected:
		logger.Error().Str("operation", op).Str("actor", actor).Str("target", target).Err(err).Msg("Operation failed")
	default:
		logger.Debug().Str("operation", op).Str("actor", actor).Str("target", target).Str("kind", kind).Err(err).Msg("Operation rejected")
	}
}

func conflictError(candidate interval.DateInterval, hits []conflict.Entry) error {
	for _, h := range hits {
		metrics.IncConflict(string(h.Source))
	}
	return fmt.Errorf("%w: %s overlaps %s %s", domain.ErrConflict, candidate, hits[0].Source, hits[0].ID)
}

func boolPtr(b bool) *bool { return &b }

func strPtr(s string) *string { return &s }
