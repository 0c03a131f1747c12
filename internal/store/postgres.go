package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dkeye/VibeRoom/internal/domain"
)

// PostgresStore handles PostgreSQL persistence through a connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	s := &PostgresStore{pool: pool, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS rooms (
		id            TEXT PRIMARY KEY,
		name          TEXT NOT NULL,
		host_identity TEXT NOT NULL DEFAULT '',
		member_count  INTEGER NOT NULL DEFAULT 0,
		is_active     BOOLEAN NOT NULL DEFAULT FALSE,
		created_at    TIMESTAMPTZ NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id          TEXT PRIMARY KEY,
		room_id     TEXT NOT NULL,
		identity    TEXT NOT NULL,
		text        TEXT NOT NULL,
		emoji       TEXT NOT NULL,
		occurred_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS reactions (
		id          TEXT PRIMARY KEY,
		room_id     TEXT NOT NULL,
		identity    TEXT NOT NULL,
		emoji       TEXT NOT NULL,
		weight      DOUBLE PRECISION NOT NULL,
		x           DOUBLE PRECISION NOT NULL,
		y           DOUBLE PRECISION NOT NULL,
		occurred_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_room ON messages(room_id, occurred_at);
	CREATE INDEX IF NOT EXISTS idx_reactions_room ON reactions(room_id, occurred_at);
	`)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) FindRoom(ctx context.Context, id domain.RoomID) (*RoomRecord, error) {
	var (
		rec    RoomRecord
		roomID string
		host   string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, host_identity, member_count, is_active, created_at, updated_at
		FROM rooms WHERE id = $1
	`, string(id)).Scan(&roomID, &rec.Name, &host, &rec.MemberCount, &rec.IsActive, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.ID = domain.RoomID(roomID)
	rec.HostIdentity = domain.Identity(host)
	return &rec, nil
}

func (s *PostgresStore) UpsertRoom(ctx context.Context, rec RoomRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO rooms (id, name, host_identity, member_count, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			host_identity = EXCLUDED.host_identity,
			member_count = EXCLUDED.member_count,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
	`, string(rec.ID), rec.Name, string(rec.HostIdentity), rec.MemberCount, rec.IsActive, rec.CreatedAt, rec.UpdatedAt)
	return err
}

func (s *PostgresStore) AppendMessage(ctx context.Context, msg domain.Message) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (id, room_id, identity, text, emoji, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, msg.ID, string(msg.RoomID), string(msg.Identity), msg.Text, msg.Emoji, msg.OccurredAt)
	return err
}

func (s *PostgresStore) AppendReaction(ctx context.Context, r domain.Reaction) error {
	batch := &pgx.Batch{}
	batch.Queue(`
		INSERT INTO reactions (id, room_id, identity, emoji, weight, x, y, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, r.ID, string(r.RoomID), string(r.Identity), r.Emoji, r.IntensityWeight, r.Position.X, r.Position.Y, r.OccurredAt)
	batch.Queue(`DELETE FROM reactions WHERE occurred_at < $1`, s.now().Add(-ReactionRetention))
	return s.pool.SendBatch(ctx, batch).Close()
}

func (s *PostgresStore) RecentMessages(ctx context.Context, id domain.RoomID, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, room_id, identity, text, emoji, occurred_at
		FROM messages WHERE room_id = $1
		ORDER BY occurred_at DESC, id DESC
		LIMIT $2
	`, string(id), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		var (
			msg            domain.Message
			roomID, author string
		)
		if err := rows.Scan(&msg.ID, &roomID, &author, &msg.Text, &msg.Emoji, &msg.OccurredAt); err != nil {
			return nil, err
		}
		msg.RoomID = domain.RoomID(roomID)
		msg.Identity = domain.Identity(author)
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slices.Reverse(out)
	return out, nil
}
