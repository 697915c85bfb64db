// Package cache holds Redis read-through caches in front of slower lookups.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"courtside/internal/domain"
	"courtside/internal/models"
)

const profileKeyPrefix = "courtside:profile:"

// cachedProfile keeps the fields Profile hides from its public JSON.
type cachedProfile struct {
	ID             string    `json:"id"`
	DisplayName    string    `json:"display_name"`
	SkillLevel     string    `json:"skill_level"`
	TelegramChatID int64     `json:"telegram_chat_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// ProfileCache wraps a ProfileDirectory with a Redis cache of profiles.
// Friendship checks pass through uncached. A nil client or a zero TTL turns
// the cache off.
type ProfileCache struct {
	next   domain.ProfileDirectory
	redis  *redis.Client
	ttl    time.Duration
	logger *zerolog.Logger
}

func NewProfileCache(next domain.ProfileDirectory, rdb *redis.Client, ttl time.Duration, logger *zerolog.Logger) *ProfileCache {
	l := logger.With().Str("component", "profile_cache").Logger()
	return &ProfileCache{next: next, redis: rdb, ttl: ttl, logger: &l}
}

func (c *ProfileCache) enabled() bool {
	return c.redis != nil && c.ttl > 0
}

// GetProfiles serves what it can from one MGET and loads the rest from the
// wrapped directory in a single call.
func (c *ProfileCache) GetProfiles(ctx context.Context, ids []string) (map[string]models.Profile, error) {
	if !c.enabled() || len(ids) == 0 {
		return c.next.GetProfiles(ctx, ids)
	}

	out := make(map[string]models.Profile, len(ids))
	missing := c.readCache(ctx, ids, out)
	if len(missing) == 0 {
		return out, nil
	}

	loaded, err := c.next.GetProfiles(ctx, missing)
	if err != nil {
		return nil, err
	}
	for id, p := range loaded {
		out[id] = p
	}
	c.writeCache(ctx, loaded)
	return out, nil
}

func (c *ProfileCache) AreFriends(ctx context.Context, a, b string) (bool, error) {
	return c.next.AreFriends(ctx, a, b)
}

// Invalidate drops cached profiles.
func (c *ProfileCache) Invalidate(ctx context.Context, ids ...string) {
	if !c.enabled() || len(ids) == 0 {
		return
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = profileKeyPrefix + id
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn().Err(err).Strs("ids", ids).Msg("Failed to invalidate cached profiles")
	}
}

// readCache fills out with cache hits and returns the ids that missed.
func (c *ProfileCache) readCache(ctx context.Context, ids []string, out map[string]models.Profile) []string {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = profileKeyPrefix + id
	}
	vals, err := c.redis.MGet(ctx, keys...).Result()
	if err != nil {
		c.logger.Debug().Err(err).Msg("Profile cache read failed")
		return ids
	}

	var missing []string
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			missing = append(missing, ids[i])
			continue
		}
		var cp cachedProfile
		if err := json.Unmarshal([]byte(s), &cp); err != nil {
			missing = append(missing, ids[i])
			continue
		}
		out[ids[i]] = models.Profile{
			ID:             cp.ID,
			DisplayName:    cp.DisplayName,
			SkillLevel:     cp.SkillLevel,
			TelegramChatID: cp.TelegramChatID,
			CreatedAt:      cp.CreatedAt,
		}
	}
	return missing
}

func (c *ProfileCache) writeCache(ctx context.Context, profiles map[string]models.Profile) {
	if len(profiles) == 0 {
		return
	}
	pipe := c.redis.Pipeline()
	for id, p := range profiles {
		data, err := json.Marshal(cachedProfile{
			ID:             p.ID,
			DisplayName:    p.DisplayName,
			SkillLevel:     p.SkillLevel,
			TelegramChatID: p.TelegramChatID,
			CreatedAt:      p.CreatedAt,
		})
		if err != nil {
			continue
		}
		pipe.Set(ctx, profileKeyPrefix+id, data, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Debug().Err(err).Msg("Profile cache write failed")
	}
}

var _ domain.ProfileDirectory = (*ProfileCache)(nil)
