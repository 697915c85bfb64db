package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"courtside/internal/domain"
	"courtside/internal/interval"
	"courtside/internal/models"
)

const inviteColumns = `id, sender_id, receiver_id, slot_id, date, start_time, end_time, status,
	proposed_date, proposed_start_time, proposed_end_time, proposed_by, proposed_at,
	expires_at, response_at, cancelled_at, cancelled_by, cancel_reason,
	court_location, message, created_at, updated_at`

func scanInvite(row rowScanner) (*models.MatchInvite, error) {
	var (
		inv                          models.MatchInvite
		date, start, end, status     string
		pDate, pStart, pEnd          sql.NullString
		proposedAt, responseAt, canc sql.NullTime
	)
	err := row.Scan(&inv.ID, &inv.SenderID, &inv.ReceiverID, &inv.SlotID, &date, &start, &end, &status,
		&pDate, &pStart, &pEnd, &inv.ProposedBy, &proposedAt,
		&inv.ExpiresAt, &responseAt, &canc, &inv.CancelledBy, &inv.CancelReason,
		&inv.CourtLocation, &inv.Message, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, err
	}

	iv, err := interval.Parse(date, start, end)
	if err != nil {
		return nil, fmt.Errorf("invite %s: %w", inv.ID, err)
	}
	inv.Interval = iv
	inv.Status = models.InviteStatus(status)

	if pDate.Valid {
		piv, err := interval.Parse(pDate.String, pStart.String, pEnd.String)
		if err != nil {
			return nil, fmt.Errorf("invite %s proposal: %w", inv.ID, err)
		}
		inv.ProposedInterval = &piv
	}
	inv.ProposedAt = timePtr(proposedAt)
	inv.ResponseAt = timePtr(responseAt)
	inv.CancelledAt = timePtr(canc)
	inv.ExpiresAt = inv.ExpiresAt.UTC()
	inv.CreatedAt = inv.CreatedAt.UTC()
	inv.UpdatedAt = inv.UpdatedAt.UTC()
	return &inv, nil
}

func (db *DB) queryInvites(ctx context.Context, query string, args ...any) ([]models.MatchInvite, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.MatchInvite
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

// ListInvites returns the invites userID sent or received.
func (db *DB) ListInvites(ctx context.Context, userID string) ([]models.MatchInvite, error) {
	return db.queryInvites(ctx,
		`SELECT `+inviteColumns+` FROM match_invites WHERE sender_id = ? OR receiver_id = ? ORDER BY date, start_min, id`,
		userID, userID)
}

// GetInvite returns one invite or domain.ErrNotFound.
func (db *DB) GetInvite(ctx context.Context, id string) (*models.MatchInvite, error) {
	inv, err := scanInvite(db.QueryRowContext(ctx, `SELECT `+inviteColumns+` FROM match_invites WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("get invite %s: %w", id, mapError(err))
	}
	return inv, nil
}

// ListExpiredPendingInvites returns pending invites whose expiry is before now.
func (db *DB) ListExpiredPendingInvites(ctx context.Context, now time.Time, limit int) ([]models.MatchInvite, error) {
	if limit <= 0 {
		limit = 100
	}
	return db.queryInvites(ctx,
		`SELECT `+inviteColumns+` FROM match_invites WHERE status = 'pending' AND expires_at < ? ORDER BY expires_at LIMIT ?`,
		dbTime(now), limit)
}

// CreateInvite inserts an invite.
func (db *DB) CreateInvite(ctx context.Context, inv models.MatchInvite) (*models.MatchInvite, error) {
	now := dbTime(db.now())
	inv.ID = newID(inv.ID)
	if inv.Status == "" {
		inv.Status = models.InvitePending
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = now
	}
	inv.CreatedAt = dbTime(inv.CreatedAt)
	inv.UpdatedAt = now
	inv.ExpiresAt = dbTime(inv.ExpiresAt)

	iv := inv.Interval
	pDate, pStart, pEnd := proposalColumns(inv.ProposedInterval)
	_, err := db.ExecContext(ctx, `
		INSERT INTO match_invites (id, sender_id, receiver_id, slot_id, date, start_min, end_min, start_time, end_time,
			status, proposed_date, proposed_start_time, proposed_end_time, proposed_by, proposed_at,
			expires_at, court_location, message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.SenderID, inv.ReceiverID, inv.SlotID, iv.Date.ISO(), iv.Start.Minutes(), iv.End.Minutes(),
		iv.Start.Clock(), iv.End.Clock(), string(inv.Status), pDate, pStart, pEnd, inv.ProposedBy, nullTime(inv.ProposedAt),
		inv.ExpiresAt, inv.CourtLocation, inv.Message, inv.CreatedAt, inv.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create invite: %w", mapError(err))
	}

	db.publish(models.ChangeInvite, models.OpCreated, inv.ID, inv.SenderID, inv.ReceiverID)
	return &inv, nil
}

// UpdateInviteStatus stores a transition. The row is re-read and the patch
// applied inside one transaction. A patch decided from a status the row no
// longer has fails with domain.ErrInvalidTransition and writes nothing.
func (db *DB) UpdateInviteStatus(ctx context.Context, id string, patch models.InvitePatch) (*models.MatchInvite, error) {
	var updated *models.MatchInvite
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		current, err := scanInvite(tx.QueryRowContext(ctx, `SELECT `+inviteColumns+` FROM match_invites WHERE id = ?`, id))
		if err != nil {
			return err
		}
		if patch.From != "" && current.Status != patch.From {
			return fmt.Errorf("%w: invite %s is %s, not %s", domain.ErrInvalidTransition, id, current.Status, patch.From)
		}
		if patch.UpdatedAt.IsZero() {
			patch.UpdatedAt = db.now()
		}
		next := current.Apply(patch)
		next.UpdatedAt = dbTime(next.UpdatedAt)

		iv := next.Interval
		pDate, pStart, pEnd := proposalColumns(next.ProposedInterval)
		res, err := tx.ExecContext(ctx, `
			UPDATE match_invites SET date = ?, start_min = ?, end_min = ?, start_time = ?, end_time = ?, status = ?,
				proposed_date = ?, proposed_start_time = ?, proposed_end_time = ?, proposed_by = ?, proposed_at = ?,
				response_at = ?, cancelled_at = ?, cancelled_by = ?, cancel_reason = ?, updated_at = ?
			WHERE id = ? AND status = ?`,
			iv.Date.ISO(), iv.Start.Minutes(), iv.End.Minutes(), iv.Start.Clock(), iv.End.Clock(), string(next.Status),
			pDate, pStart, pEnd, next.ProposedBy, nullTime(next.ProposedAt),
			nullTime(next.ResponseAt), nullTime(next.CancelledAt), next.CancelledBy, next.CancelReason, next.UpdatedAt,
			id, string(current.Status))
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("%w: invite %s changed concurrently", domain.ErrInvalidTransition, id)
		}
		updated = &next
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update invite %s: %w", id, mapError(err))
	}

	db.publish(models.ChangeInvite, models.OpUpdated, id, updated.SenderID, updated.ReceiverID)
	return updated, nil
}

func proposalColumns(iv *interval.DateInterval) (date, start, end sql.NullString) {
	if iv == nil {
		return
	}
	return sql.NullString{String: iv.Date.ISO(), Valid: true},
		sql.NullString{String: iv.Start.Clock(), Valid: true},
		sql.NullString{String: iv.End.Clock(), Valid: true}
}
