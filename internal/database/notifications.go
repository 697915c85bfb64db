package database

import (
	"context"
	"fmt"

	"courtside/internal/domain"
	"courtside/internal/models"
)

// CreateNotification stores an inbox entry.
func (db *DB) CreateNotification(ctx context.Context, n models.Notification) error {
	n.ID = newID(n.ID)
	if n.CreatedAt.IsZero() {
		n.CreatedAt = db.now()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, kind, invite_id, title, body, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, string(n.Kind), n.InviteID, n.Title, n.Body, n.Read, dbTime(n.CreatedAt))
	if err != nil {
		return fmt.Errorf("create notification: %w", mapError(err))
	}
	db.publish(models.ChangeNotification, models.OpCreated, n.ID, n.UserID)
	return nil
}

// ListNotifications returns the newest entries of userID first.
func (db *DB) ListNotifications(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, user_id, kind, invite_id, title, body, is_read, created_at
		FROM notifications WHERE user_id = ? ORDER BY created_at DESC, id LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var n models.Notification
		var kind string
		if err := rows.Scan(&n.ID, &n.UserID, &kind, &n.InviteID, &n.Title, &n.Body, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Kind = models.NotificationKind(kind)
		n.CreatedAt = n.CreatedAt.UTC()
		out = append(out, n)
	}
	return out, rows.Err()
}

// SetNotificationRead flips the read flag of a notification owned by userID.
func (db *DB) SetNotificationRead(ctx context.Context, userID, id string, read bool) error {
	res, err := db.ExecContext(ctx,
		`UPDATE notifications SET is_read = ? WHERE id = ? AND user_id = ?`, read, id, userID)
	if err != nil {
		return fmt.Errorf("mark notification %s: %w", id, mapError(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("notification %s: %w", id, domain.ErrNotFound)
	}
	db.publish(models.ChangeNotification, models.OpUpdated, id, userID)
	return nil
}

var _ domain.Inbox = (*DB)(nil)
