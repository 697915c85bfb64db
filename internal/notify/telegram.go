// Package notify delivers inbox notifications outside the application.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"courtside/internal/domain"
	"courtside/internal/models"
)

// TelegramSender is the part of the bot API the notifier uses.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// RetryConfig bounds resending after transient Telegram failures.
type RetryConfig struct {
	MaxRetries  int
	RetryDelays []time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:  3,
		RetryDelays: []time.Duration{time.Second, 5 * time.Second, 30 * time.Second},
	}
}

// TelegramNotifier sends notifications to the chat linked to each profile.
// Users without a linked chat are skipped.
type TelegramNotifier struct {
	sender   TelegramSender
	profiles domain.ProfileDirectory
	limiter  *rate.Limiter
	retry    RetryConfig
	logger   zerolog.Logger
}

func NewTelegramNotifier(sender TelegramSender, profiles domain.ProfileDirectory, limiter *rate.Limiter, retry RetryConfig, logger *zerolog.Logger) *TelegramNotifier {
	if limiter == nil {
		// Telegram allows roughly 30 messages per second per bot.
		limiter = rate.NewLimiter(rate.Limit(20), 30)
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "telegram_notifier").Logger()
	}
	return &TelegramNotifier{sender: sender, profiles: profiles, limiter: limiter, retry: retry, logger: l}
}

func (t *TelegramNotifier) Notify(ctx context.Context, n models.Notification) error {
	profiles, err := t.profiles.GetProfiles(ctx, []string{n.UserID})
	if err != nil {
		return fmt.Errorf("resolve chat: %w", err)
	}
	p, ok := profiles[n.UserID]
	if !ok || p.TelegramChatID == 0 {
		t.logger.Debug().Str("user", n.UserID).Msg("No linked chat, skipping notification")
		return nil
	}

	msg := tgbotapi.NewMessage(p.TelegramChatID, formatMessage(n))
	return t.sendWithRetry(ctx, msg, n)
}

func (t *TelegramNotifier) sendWithRetry(ctx context.Context, msg tgbotapi.MessageConfig, n models.Notification) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= t.retry.MaxRetries; attempt++ {
		_, err := t.sender.Send(msg)
		if err == nil {
			t.logger.Debug().Str("user", n.UserID).Str("notification_id", n.ID).Msg("Notification sent")
			return nil
		}
		lastErr = err

		wait := t.delay(attempt)
		var tgErr *tgbotapi.Error
		if errors.As(err, &tgErr) {
			switch tgErr.Code {
			case http.StatusTooManyRequests:
				if tgErr.RetryAfter > 0 {
					wait = time.Duration(tgErr.RetryAfter) * time.Second
				}
			case http.StatusForbidden, http.StatusBadRequest:
				t.logger.Warn().Err(err).Str("user", n.UserID).Int("code", tgErr.Code).Msg("Telegram refused notification")
				return err
			}
		}

		if attempt == t.retry.MaxRetries {
			break
		}
		t.logger.Info().Err(err).Int("attempt", attempt+1).Dur("delay", wait).Str("user", n.UserID).Msg("Retrying notification")
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	t.logger.Error().Err(lastErr).Str("user", n.UserID).Str("notification_id", n.ID).Msg("Max retries exceeded for notification")
	return lastErr
}

func (t *TelegramNotifier) delay(attempt int) time.Duration {
	if len(t.retry.RetryDelays) == 0 {
		return 0
	}
	if attempt >= len(t.retry.RetryDelays) {
		return t.retry.RetryDelays[len(t.retry.RetryDelays)-1]
	}
	return t.retry.RetryDelays[attempt]
}

func formatMessage(n models.Notification) string {
	if n.Body == "" {
		return n.Title
	}
	return n.Title + "\n\n" + n.Body
}
