package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"courtside/internal/domain"
	"courtside/internal/events"
	"courtside/internal/models"
)

// conflictMarker is the message of the backstop triggers.
const conflictMarker = "courtside_conflict"

// ChangeFeed publishes store changes and hands out subscriptions.
type ChangeFeed interface {
	Publish(change models.Change)
	Subscribe(userID string, handler func(models.Change)) domain.Subscription
}

// DB is the SQLite store. It implements domain.Repository,
// domain.ProfileDirectory, domain.ChannelOpener and domain.Inbox.
type DB struct {
	*sql.DB
	path   string
	feed   ChangeFeed
	now    func() time.Time
	logger *zerolog.Logger
}

// NewDB opens the database at path, creating directories and tables as needed.
// A nil feed gets an in-process bus.
func NewDB(path string, feed ChangeFeed, logger *zerolog.Logger) (*DB, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if feed == nil {
		feed = events.NewBus(logger)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	instance := &DB{
		DB:     db,
		path:   path,
		feed:   feed,
		now:    time.Now,
		logger: logger,
	}

	if err := instance.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return instance, nil
}

// Path returns the database file path.
func (db *DB) Path() string { return db.path }

// Subscribe hands out a change subscription for userID.
func (db *DB) Subscribe(userID string, onChange func(models.Change)) domain.Subscription {
	return db.feed.Subscribe(userID, onChange)
}

func (db *DB) publish(kind models.ChangeKind, op models.ChangeOp, id string, users ...string) {
	db.feed.Publish(models.Change{Kind: kind, Op: op, ID: id, UserIDs: uniqueIDs(users), At: db.now()})
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS profiles (
			id TEXT PRIMARY KEY,
			display_name TEXT NOT NULL,
			skill_level TEXT NOT NULL DEFAULT '',
			telegram_chat_id INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS friendships (
			user_a TEXT NOT NULL,
			user_b TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			PRIMARY KEY (user_a, user_b)
		)`,
		`CREATE TABLE IF NOT EXISTS availability_slots (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			date TEXT NOT NULL,
			start_min INTEGER NOT NULL,
			end_min INTEGER NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			is_available BOOLEAN NOT NULL DEFAULT 1,
			is_blocked BOOLEAN NOT NULL DEFAULT 0,
			privacy_level TEXT NOT NULL DEFAULT 'public',
			recurrence_rule TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			CHECK (start_min < end_min)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_slots_owner_date ON availability_slots(owner_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_slots_rule ON availability_slots(owner_id, recurrence_rule)`,

		`CREATE TABLE IF NOT EXISTS match_invites (
			id TEXT PRIMARY KEY,
			sender_id TEXT NOT NULL,
			receiver_id TEXT NOT NULL,
			slot_id TEXT NOT NULL DEFAULT '',
			date TEXT NOT NULL,
			start_min INTEGER NOT NULL,
			end_min INTEGER NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			proposed_date TEXT,
			proposed_start_time TEXT,
			proposed_end_time TEXT,
			proposed_by TEXT NOT NULL DEFAULT '',
			proposed_at DATETIME,
			expires_at DATETIME NOT NULL,
			response_at DATETIME,
			cancelled_at DATETIME,
			cancelled_by TEXT NOT NULL DEFAULT '',
			cancel_reason TEXT NOT NULL DEFAULT '',
			court_location TEXT NOT NULL DEFAULT '',
			message TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			CHECK (start_min < end_min),
			CHECK (sender_id <> receiver_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_invites_sender ON match_invites(sender_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_invites_receiver ON match_invites(receiver_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_invites_expiry ON match_invites(status, expires_at)`,

		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			invite_id TEXT NOT NULL UNIQUE,
			participant_a TEXT NOT NULL,
			participant_b TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS notifications (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			invite_id TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL,
			body TEXT NOT NULL DEFAULT '',
			is_read BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, created_at)`,
	}
	queries = append(queries, backstopTriggers()...)

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// backstopTriggers close the check-then-write race of the conflict detector:
// an owner may not hold two overlapping slots, and an offered slot may not
// overlap an accepted invite of the same owner.
func backstopTriggers() []string {
	slotOverlap := `EXISTS (
		SELECT 1 FROM availability_slots s
		WHERE s.owner_id = NEW.owner_id AND s.date = NEW.date AND s.id <> NEW.id
		  AND s.start_min < NEW.end_min AND NEW.start_min < s.end_min)`
	acceptedOverlap := `NEW.is_available = 1 AND NEW.is_blocked = 0 AND EXISTS (
		SELECT 1 FROM match_invites i
		WHERE i.status = 'accepted' AND (i.sender_id = NEW.owner_id OR i.receiver_id = NEW.owner_id)
		  AND i.date = NEW.date AND i.start_min < NEW.end_min AND NEW.start_min < i.end_min)`

	var out []string
	for _, op := range []struct{ name, event string }{
		{"insert", "BEFORE INSERT ON availability_slots"},
		{"update", "BEFORE UPDATE OF date, start_min, end_min, is_available, is_blocked ON availability_slots"},
	} {
		out = append(out,
			fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS trg_slots_overlap_%s %s
				FOR EACH ROW WHEN %s
				BEGIN SELECT RAISE(ABORT, '%s'); END`, op.name, op.event, slotOverlap, conflictMarker),
			fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS trg_slots_accepted_%s %s
				FOR EACH ROW WHEN %s
				BEGIN SELECT RAISE(ABORT, '%s'); END`, op.name, op.event, acceptedOverlap, conflictMarker),
		)
	}
	return out
}

// mapError turns driver errors into domain errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		if strings.Contains(sqliteErr.Error(), conflictMarker) {
			return fmt.Errorf("%w: rejected by storage constraint", domain.ErrConflict)
		}
		return fmt.Errorf("%w: %v", domain.ErrValidation, sqliteErr)
	}
	if strings.Contains(err.Error(), conflictMarker) {
		return fmt.Errorf("%w: rejected by storage constraint", domain.ErrConflict)
	}
	return err
}

func newID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

// dbTime normalizes timestamps so stored text sorts chronologically.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: dbTime(*t), Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// withTx runs fn in a transaction.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
