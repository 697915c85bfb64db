package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"courtside/internal/models"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return tgbotapi.Message{}, args.Error(0)
}

type stubProfiles map[string]models.Profile

func (s stubProfiles) GetProfiles(_ context.Context, ids []string) (map[string]models.Profile, error) {
	out := make(map[string]models.Profile, len(ids))
	for _, id := range ids {
		if p, ok := s[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (s stubProfiles) AreFriends(context.Context, string, string) (bool, error) { return false, nil }

var testProfiles = stubProfiles{
	"alice": {ID: "alice", DisplayName: "Alice", TelegramChatID: 1001},
	"bob":   {ID: "bob", DisplayName: "Bob"},
}

func newNotifier(sender TelegramSender) *TelegramNotifier {
	retry := RetryConfig{MaxRetries: 2, RetryDelays: []time.Duration{time.Millisecond}}
	return NewTelegramNotifier(sender, testProfiles, rate.NewLimiter(rate.Inf, 1), retry, nil)
}

func TestNotifySendsToLinkedChat(t *testing.T) {
	sender := new(mockSender)
	sender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg, ok := c.(tgbotapi.MessageConfig)
		return ok && msg.ChatID == 1001 && msg.Text == "Invite accepted\n\nSat 14:00-15:00"
	})).Return(nil).Once()

	err := newNotifier(sender).Notify(context.Background(), models.Notification{
		ID: "n1", UserID: "alice", Title: "Invite accepted", Body: "Sat 14:00-15:00",
	})
	require.NoError(t, err)
	sender.AssertExpectations(t)
}

func TestNotifySkipsUnlinkedUsers(t *testing.T) {
	sender := new(mockSender)
	n := newNotifier(sender)

	require.NoError(t, n.Notify(context.Background(), models.Notification{UserID: "bob", Title: "x"}))
	require.NoError(t, n.Notify(context.Background(), models.Notification{UserID: "ghost", Title: "x"}))
	sender.AssertNotCalled(t, "Send", mock.Anything)
}

func TestNotifyRetriesTransientErrors(t *testing.T) {
	sender := new(mockSender)
	sender.On("Send", mock.Anything).Return(errors.New("connection reset")).Once()
	sender.On("Send", mock.Anything).Return(&tgbotapi.Error{
		Code:               429,
		Message:            "Too Many Requests",
		ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 0},
	}).Once()
	sender.On("Send", mock.Anything).Return(nil).Once()

	require.NoError(t, newNotifier(sender).Notify(context.Background(), models.Notification{UserID: "alice", Title: "x"}))
	sender.AssertNumberOfCalls(t, "Send", 3)
}

func TestNotifyGivesUpOnBlockedBot(t *testing.T) {
	sender := new(mockSender)
	sender.On("Send", mock.Anything).Return(&tgbotapi.Error{Code: 403, Message: "Forbidden: bot was blocked by the user"}).Once()

	err := newNotifier(sender).Notify(context.Background(), models.Notification{UserID: "alice", Title: "x"})
	assert.Error(t, err)
	sender.AssertNumberOfCalls(t, "Send", 1)
}

func TestNotifyStopsAfterMaxRetries(t *testing.T) {
	sender := new(mockSender)
	sender.On("Send", mock.Anything).Return(errors.New("timeout"))

	err := newNotifier(sender).Notify(context.Background(), models.Notification{UserID: "alice", Title: "x"})
	assert.EqualError(t, err, "timeout")
	sender.AssertNumberOfCalls(t, "Send", 3)
}

func TestLogNotifier(t *testing.T) {
	assert.NoError(t, NewLogNotifier(nil).Notify(context.Background(), models.Notification{UserID: "alice"}))
}
