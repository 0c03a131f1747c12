package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/dkeye/VibeRoom/internal/domain"
)

// RedisStore keeps room records as JSON strings and chat and reactions in
// sorted sets scored by unix milliseconds.
type RedisStore struct {
	client *redis.Client
	limit  int64
	now    func() time.Time
}

func NewRedisStore(ctx context.Context, redisURL string, messageLimit int) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	if messageLimit <= 0 {
		messageLimit = 500
	}
	return &RedisStore{client: client, limit: int64(messageLimit), now: time.Now}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func roomKey(id domain.RoomID) string {
	return fmt.Sprintf("room:%s", id)
}

func roomMessagesKey(id domain.RoomID) string {
	return fmt.Sprintf("room:%s:messages", id)
}

func roomReactionsKey(id domain.RoomID) string {
	return fmt.Sprintf("room:%s:reactions", id)
}

func (s *RedisStore) FindRoom(ctx context.Context, id domain.RoomID) (*RoomRecord, error) {
	data, err := s.client.Get(ctx, roomKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec RoomRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode room %s: %w", id, err)
	}
	return &rec, nil
}

func (s *RedisStore) UpsertRoom(ctx context.Context, rec RoomRecord) error {
	if old, err := s.FindRoom(ctx, rec.ID); err == nil && !old.CreatedAt.IsZero() {
		rec.CreatedAt = old.CreatedAt
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, roomKey(rec.ID), data, 0).Err()
}

func (s *RedisStore) AppendMessage(ctx context.Context, msg domain.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	key := roomMessagesKey(msg.RoomID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(msg.OccurredAt.UnixMilli()), Member: data})
		// Keep the newest limit entries.
		pipe.ZRemRangeByRank(ctx, key, 0, -(s.limit + 1))
		return nil
	})
	return err
}

func (s *RedisStore) AppendReaction(ctx context.Context, r domain.Reaction) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	key := roomReactionsKey(r.RoomID)
	cutoff := s.now().Add(-ReactionRetention).UnixMilli()
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(r.OccurredAt.UnixMilli()), Member: data})
		pipe.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(cutoff, 10))
		return nil
	})
	return err
}

func (s *RedisStore) RecentMessages(ctx context.Context, id domain.RoomID, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = int(s.limit)
	}
	results, err := s.client.ZRevRange(ctx, roomMessagesKey(id), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.Message, 0, len(results))
	for _, data := range results {
		var msg domain.Message
		if err := json.Unmarshal([]byte(data), &msg); err != nil {
			continue
		}
		out = append(out, msg)
	}
	slices.Reverse(out)
	return out, nil
}
