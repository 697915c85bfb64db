package cache

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"courtside/internal/models"
)

type mockDirectory struct {
	mock.Mock
}

func (m *mockDirectory) GetProfiles(ctx context.Context, ids []string) (map[string]models.Profile, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]models.Profile), args.Error(1)
}

func (m *mockDirectory) AreFriends(ctx context.Context, a, b string) (bool, error) {
	args := m.Called(ctx, a, b)
	return args.Bool(0), args.Error(1)
}

func newCache(t *testing.T, ttl time.Duration) (*ProfileCache, *mockDirectory, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	logger := zerolog.New(io.Discard)
	dir := &mockDirectory{}
	return NewProfileCache(dir, rdb, ttl, &logger), dir, mr
}

func TestGetProfilesReadThrough(t *testing.T) {
	ctx := context.Background()
	c, dir, mr := newCache(t, time.Minute)

	alice := models.Profile{ID: "alice", DisplayName: "Alice", TelegramChatID: 7}
	bob := models.Profile{ID: "bob", DisplayName: "Bob"}

	dir.On("GetProfiles", ctx, []string{"alice", "bob"}).
		Return(map[string]models.Profile{"alice": alice, "bob": bob}, nil).Once()

	got, err := c.GetProfiles(ctx, []string{"alice", "bob"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.True(t, mr.Exists(profileKeyPrefix+"alice"))
	assert.Equal(t, time.Minute, mr.TTL(profileKeyPrefix+"alice"))

	// Second lookup only misses carol.
	dir.On("GetProfiles", ctx, []string{"carol"}).Return(map[string]models.Profile{}, nil).Once()
	got, err = c.GetProfiles(ctx, []string{"alice", "bob", "carol"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, int64(7), got["alice"].TelegramChatID, "hidden fields survive the cache")

	dir.AssertExpectations(t)
}

func TestGetProfilesFullHitSkipsDirectory(t *testing.T) {
	ctx := context.Background()
	c, dir, _ := newCache(t, time.Minute)

	dir.On("GetProfiles", ctx, []string{"alice"}).
		Return(map[string]models.Profile{"alice": {ID: "alice", DisplayName: "Alice"}}, nil).Once()

	for i := 0; i < 3; i++ {
		got, err := c.GetProfiles(ctx, []string{"alice"})
		require.NoError(t, err)
		assert.Equal(t, "Alice", got["alice"].DisplayName)
	}
	dir.AssertNumberOfCalls(t, "GetProfiles", 1)
}

func TestInvalidate(t *testing.T) {
	ctx := context.Background()
	c, dir, mr := newCache(t, time.Minute)

	dir.On("GetProfiles", ctx, []string{"alice"}).
		Return(map[string]models.Profile{"alice": {ID: "alice", DisplayName: "Alice"}}, nil).Twice()

	_, err := c.GetProfiles(ctx, []string{"alice"})
	require.NoError(t, err)
	c.Invalidate(ctx, "alice")
	assert.False(t, mr.Exists(profileKeyPrefix+"alice"))

	_, err = c.GetProfiles(ctx, []string{"alice"})
	require.NoError(t, err)
	dir.AssertExpectations(t)
}

func TestDisabledCachePassesThrough(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.New(io.Discard)
	dir := &mockDirectory{}
	c := NewProfileCache(dir, nil, time.Minute, &logger)

	dir.On("GetProfiles", ctx, []string{"alice"}).Return(nil, errors.New("db down")).Once()
	dir.On("AreFriends", ctx, "alice", "bob").Return(true, nil).Once()

	_, err := c.GetProfiles(ctx, []string{"alice"})
	assert.Error(t, err)

	ok, err := c.AreFriends(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.True(t, ok)
	dir.AssertExpectations(t)
}

func TestRedisOutageFallsBackToDirectory(t *testing.T) {
	ctx := context.Background()
	c, dir, mr := newCache(t, time.Minute)
	mr.Close()

	dir.On("GetProfiles", ctx, []string{"alice"}).
		Return(map[string]models.Profile{"alice": {ID: "alice"}}, nil).Once()

	got, err := c.GetProfiles(ctx, []string{"alice"})
	require.NoError(t, err)
	assert.Contains(t, got, "alice")
}
