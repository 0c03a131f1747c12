package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dkeye/VibeRoom/internal/domain"
)

// SQLiteStore is a single-file store. Times are stored as unix milliseconds.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/vibe.db"
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// PRAGMAs below are per connection.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, `
		PRAGMA journal_mode = WAL;
		PRAGMA busy_timeout = 5000;
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure database: %w", err)
	}
	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS rooms (
		id            TEXT PRIMARY KEY,
		name          TEXT NOT NULL,
		host_identity TEXT NOT NULL DEFAULT '',
		member_count  INTEGER NOT NULL DEFAULT 0,
		is_active     INTEGER NOT NULL DEFAULT 0,
		created_at    INTEGER NOT NULL,
		updated_at    INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id          TEXT PRIMARY KEY,
		room_id     TEXT NOT NULL,
		identity    TEXT NOT NULL,
		text        TEXT NOT NULL,
		emoji       TEXT NOT NULL,
		occurred_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS reactions (
		id          TEXT PRIMARY KEY,
		room_id     TEXT NOT NULL,
		identity    TEXT NOT NULL,
		emoji       TEXT NOT NULL,
		weight      REAL NOT NULL,
		x           REAL NOT NULL,
		y           REAL NOT NULL,
		occurred_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_room ON messages(room_id, occurred_at);
	CREATE INDEX IF NOT EXISTS idx_reactions_room ON reactions(room_id, occurred_at);
	`)
	if err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) FindRoom(ctx context.Context, id domain.RoomID) (*RoomRecord, error) {
	var (
		rec              RoomRecord
		active           int
		created, updated int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, host_identity, member_count, is_active, created_at, updated_at
		FROM rooms WHERE id = ?
	`, string(id)).Scan(&rec.ID, &rec.Name, &rec.HostIdentity, &rec.MemberCount, &active, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.IsActive = active != 0
	rec.CreatedAt = time.UnixMilli(created)
	rec.UpdatedAt = time.UnixMilli(updated)
	return &rec, nil
}

func (s *SQLiteStore) UpsertRoom(ctx context.Context, rec RoomRecord) error {
	active := 0
	if rec.IsActive {
		active = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rooms (id, name, host_identity, member_count, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			host_identity = excluded.host_identity,
			member_count = excluded.member_count,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at
	`, string(rec.ID), rec.Name, string(rec.HostIdentity), rec.MemberCount, active,
		rec.CreatedAt.UnixMilli(), rec.UpdatedAt.UnixMilli())
	return err
}

func (s *SQLiteStore) AppendMessage(ctx context.Context, msg domain.Message) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, room_id, identity, text, emoji, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, msg.ID, string(msg.RoomID), string(msg.Identity), msg.Text, msg.Emoji, msg.OccurredAt.UnixMilli())
	return err
}

func (s *SQLiteStore) AppendReaction(ctx context.Context, r domain.Reaction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO reactions (id, room_id, identity, emoji, weight, x, y, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, string(r.RoomID), string(r.Identity), r.Emoji, r.IntensityWeight,
		r.Position.X, r.Position.Y, r.OccurredAt.UnixMilli()); err != nil {
		return err
	}
	cutoff := s.now().Add(-ReactionRetention).UnixMilli()
	if _, err := tx.ExecContext(ctx, `DELETE FROM reactions WHERE occurred_at < ?`, cutoff); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) RecentMessages(ctx context.Context, id domain.RoomID, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, room_id, identity, text, emoji, occurred_at
		FROM messages WHERE room_id = ?
		ORDER BY occurred_at DESC, id DESC
		LIMIT ?
	`, string(id), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		var (
			msg domain.Message
			at  int64
		)
		if err := rows.Scan(&msg.ID, &msg.RoomID, &msg.Identity, &msg.Text, &msg.Emoji, &at); err != nil {
			return nil, err
		}
		msg.OccurredAt = time.UnixMilli(at)
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slices.Reverse(out)
	return out, nil
}
