package database

import (
	"context"
	"database/sql"
	"fmt"

	"courtside/internal/domain"
	"courtside/internal/interval"
	"courtside/internal/models"
)

const slotColumns = `id, owner_id, date, start_time, end_time, is_available, is_blocked,
	privacy_level, recurrence_rule, notes, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSlot(row rowScanner) (*models.AvailabilitySlot, error) {
	var (
		s                      models.AvailabilitySlot
		date, start, end, priv string
	)
	err := row.Scan(&s.ID, &s.OwnerID, &date, &start, &end, &s.IsAvailable, &s.IsBlocked,
		&priv, &s.RecurrenceRule, &s.Notes, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	iv, err := interval.Parse(date, start, end)
	if err != nil {
		return nil, fmt.Errorf("slot %s: %w", s.ID, err)
	}
	s.Interval = iv
	s.PrivacyLevel = models.PrivacyLevel(priv)
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	return &s, nil
}

func (db *DB) querySlots(ctx context.Context, query string, args ...any) ([]models.AvailabilitySlot, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AvailabilitySlot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// ListAvailability returns every slot of ownerID ordered by date and start.
func (db *DB) ListAvailability(ctx context.Context, ownerID string) ([]models.AvailabilitySlot, error) {
	return db.querySlots(ctx,
		`SELECT `+slotColumns+` FROM availability_slots WHERE owner_id = ? ORDER BY date, start_min`, ownerID)
}

// ListAvailabilityForOwners returns the slots of several owners in [from, to).
func (db *DB) ListAvailabilityForOwners(ctx context.Context, ownerIDs []string, from, to interval.Date) ([]models.AvailabilitySlot, error) {
	ownerIDs = uniqueIDs(ownerIDs)
	if len(ownerIDs) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(ownerIDs)+2)
	for _, id := range ownerIDs {
		args = append(args, id)
	}
	args = append(args, from.ISO(), to.ISO())
	return db.querySlots(ctx,
		`SELECT `+slotColumns+` FROM availability_slots
		 WHERE owner_id IN (`+placeholders(len(ownerIDs))+`) AND date >= ? AND date < ?
		 ORDER BY date, start_min, owner_id`, args...)
}

// ListAvailabilityBySignature returns the siblings of a recurrence group.
func (db *DB) ListAvailabilityBySignature(ctx context.Context, ownerID, signature string) ([]models.AvailabilitySlot, error) {
	if signature == "" {
		return nil, nil
	}
	return db.querySlots(ctx,
		`SELECT `+slotColumns+` FROM availability_slots WHERE owner_id = ? AND recurrence_rule = ? ORDER BY date, start_min`,
		ownerID, signature)
}

// GetAvailability returns one slot or domain.ErrNotFound.
func (db *DB) GetAvailability(ctx context.Context, id string) (*models.AvailabilitySlot, error) {
	row := db.QueryRowContext(ctx, `SELECT `+slotColumns+` FROM availability_slots WHERE id = ?`, id)
	s, err := scanSlot(row)
	if err != nil {
		return nil, fmt.Errorf("get slot %s: %w", id, mapError(err))
	}
	return s, nil
}

// CreateAvailability inserts a slot. Backstop violations map to domain.ErrConflict.
func (db *DB) CreateAvailability(ctx context.Context, slot models.AvailabilitySlot) (*models.AvailabilitySlot, error) {
	now := dbTime(db.now())
	slot.ID = newID(slot.ID)
	if slot.PrivacyLevel == "" {
		slot.PrivacyLevel = models.PrivacyPublic
	}
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = now
	}
	slot.CreatedAt = dbTime(slot.CreatedAt)
	slot.UpdatedAt = now

	iv := slot.Interval
	_, err := db.ExecContext(ctx, `
		INSERT INTO availability_slots (id, owner_id, date, start_min, end_min, start_time, end_time,
			is_available, is_blocked, privacy_level, recurrence_rule, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		slot.ID, slot.OwnerID, iv.Date.ISO(), iv.Start.Minutes(), iv.End.Minutes(), iv.Start.Clock(), iv.End.Clock(),
		slot.IsAvailable, slot.IsBlocked, string(slot.PrivacyLevel), slot.RecurrenceRule, slot.Notes,
		slot.CreatedAt, slot.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create slot: %w", mapError(err))
	}

	db.publish(models.ChangeAvailability, models.OpCreated, slot.ID, slot.OwnerID)
	return &slot, nil
}

// UpdateAvailability applies patch to one slot.
func (db *DB) UpdateAvailability(ctx context.Context, id string, patch models.SlotPatch) (*models.AvailabilitySlot, error) {
	var updated *models.AvailabilitySlot
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		current, err := scanSlot(tx.QueryRowContext(ctx, `SELECT `+slotColumns+` FROM availability_slots WHERE id = ?`, id))
		if err != nil {
			return err
		}
		next, err := current.Apply(patch)
		if err != nil {
			return err
		}
		next.UpdatedAt = dbTime(db.now())

		iv := next.Interval
		_, err = tx.ExecContext(ctx, `
			UPDATE availability_slots SET date = ?, start_min = ?, end_min = ?, start_time = ?, end_time = ?,
				is_available = ?, is_blocked = ?, privacy_level = ?, recurrence_rule = ?, notes = ?, updated_at = ?
			WHERE id = ?`,
			iv.Date.ISO(), iv.Start.Minutes(), iv.End.Minutes(), iv.Start.Clock(), iv.End.Clock(),
			next.IsAvailable, next.IsBlocked, string(next.PrivacyLevel), next.RecurrenceRule, next.Notes, next.UpdatedAt,
			id)
		if err != nil {
			return err
		}
		updated = &next
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update slot %s: %w", id, mapError(err))
	}

	db.publish(models.ChangeAvailability, models.OpUpdated, id, updated.OwnerID)
	return updated, nil
}

// DeleteAvailability removes one slot.
func (db *DB) DeleteAvailability(ctx context.Context, id string) error {
	var owner string
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `SELECT owner_id FROM availability_slots WHERE id = ?`, id).Scan(&owner); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM availability_slots WHERE id = ?`, id)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete slot %s: %w", id, mapError(err))
	}

	db.publish(models.ChangeAvailability, models.OpDeleted, id, owner)
	return nil
}

var _ domain.Repository = (*DB)(nil)
