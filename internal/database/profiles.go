package database

import (
	"context"
	"fmt"

	"courtside/internal/domain"
	"courtside/internal/models"
)

// UpsertProfile creates or replaces a profile.
func (db *DB) UpsertProfile(ctx context.Context, p models.Profile) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = db.now()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO profiles (id, display_name, skill_level, telegram_chat_id, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			display_name = excluded.display_name,
			skill_level = excluded.skill_level,
			telegram_chat_id = excluded.telegram_chat_id`,
		p.ID, p.DisplayName, p.SkillLevel, p.TelegramChatID, dbTime(p.CreatedAt))
	if err != nil {
		return fmt.Errorf("upsert profile %s: %w", p.ID, mapError(err))
	}
	return nil
}

// GetProfiles resolves all ids with one query.
func (db *DB) GetProfiles(ctx context.Context, ids []string) (map[string]models.Profile, error) {
	ids = uniqueIDs(ids)
	out := make(map[string]models.Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := db.QueryContext(ctx,
		`SELECT id, display_name, skill_level, telegram_chat_id, created_at FROM profiles WHERE id IN (`+placeholders(len(ids))+`)`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("get profiles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p models.Profile
		if err := rows.Scan(&p.ID, &p.DisplayName, &p.SkillLevel, &p.TelegramChatID, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.CreatedAt = p.CreatedAt.UTC()
		out[p.ID] = p
	}
	return out, rows.Err()
}

// AddFriendship records a symmetric friendship.
func (db *DB) AddFriendship(ctx context.Context, a, b string) error {
	if a == b {
		return fmt.Errorf("%w: cannot befriend yourself", domain.ErrValidation)
	}
	x, y := orderedPair(a, b)
	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO friendships (user_a, user_b, created_at) VALUES (?, ?, ?)`,
		x, y, dbTime(db.now()))
	return mapError(err)
}

// AreFriends reports whether a and b are friends.
func (db *DB) AreFriends(ctx context.Context, a, b string) (bool, error) {
	if a == b {
		return false, nil
	}
	x, y := orderedPair(a, b)
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM friendships WHERE user_a = ? AND user_b = ?`, x, y).Scan(&n)
	if err != nil {
		return false, mapError(err)
	}
	return n > 0, nil
}

// OpenConversation creates the conversation of an invite, or returns the
// existing one so accepting twice through different paths stays harmless.
func (db *DB) OpenConversation(ctx context.Context, inviteID string, participants []string) (*models.Conversation, error) {
	participants = uniqueIDs(participants)
	if len(participants) != 2 {
		return nil, fmt.Errorf("%w: a conversation needs two participants", domain.ErrValidation)
	}

	c := models.Conversation{
		ID:           newID(""),
		InviteID:     inviteID,
		Participants: participants,
		CreatedAt:    dbTime(db.now()),
	}
	res, err := db.ExecContext(ctx, `
		INSERT OR IGNORE INTO conversations (id, invite_id, participant_a, participant_b, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		c.ID, inviteID, participants[0], participants[1], c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("open conversation: %w", mapError(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var a, b string
		err := db.QueryRowContext(ctx,
			`SELECT id, participant_a, participant_b, created_at FROM conversations WHERE invite_id = ?`, inviteID).
			Scan(&c.ID, &a, &b, &c.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("load conversation: %w", mapError(err))
		}
		c.Participants = []string{a, b}
		c.CreatedAt = c.CreatedAt.UTC()
	}
	return &c, nil
}

func orderedPair(a, b string) (string, string) {
	if a < b {
		return a, b
	}
	return b, a
}

var (
	_ domain.ProfileDirectory = (*DB)(nil)
	_ domain.ChannelOpener    = (*DB)(nil)
)
