package notify

import (
	"context"

	"github.com/rs/zerolog"

	"courtside/internal/models"
)

// LogNotifier writes notifications to the log. It stands in when Telegram is
// disabled.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger *zerolog.Logger) *LogNotifier {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "log_notifier").Logger()
	}
	return &LogNotifier{logger: l}
}

func (l *LogNotifier) Notify(_ context.Context, n models.Notification) error {
	l.logger.Info().
		Str("user", n.UserID).
		Str("kind", string(n.Kind)).
		Str("invite_id", n.InviteID).
		Str("title", n.Title).
		Msg("Notification")
	return nil
}
