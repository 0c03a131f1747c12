package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dkeye/VibeRoom/internal/domain"
)

// MemoryStore keeps everything in process. Message logs are capped per room.
type MemoryStore struct {
	mu        sync.RWMutex
	rooms     map[domain.RoomID]RoomRecord
	messages  map[domain.RoomID][]domain.Message
	reactions map[domain.RoomID][]domain.Reaction
	limit     int
	now       func() time.Time
}

func NewMemoryStore(messageLimit int) *MemoryStore {
	if messageLimit <= 0 {
		messageLimit = 500
	}
	return &MemoryStore{
		rooms:     make(map[domain.RoomID]RoomRecord),
		messages:  make(map[domain.RoomID][]domain.Message),
		reactions: make(map[domain.RoomID][]domain.Reaction),
		limit:     messageLimit,
		now:       time.Now,
	}
}

func (s *MemoryStore) Close() error                   { return nil }
func (s *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

func (s *MemoryStore) FindRoom(_ context.Context, id domain.RoomID) (*RoomRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.rooms[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (s *MemoryStore) UpsertRoom(_ context.Context, rec RoomRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.rooms[rec.ID]; ok && !old.CreatedAt.IsZero() {
		rec.CreatedAt = old.CreatedAt
	}
	s.rooms[rec.ID] = rec
	return nil
}

func (s *MemoryStore) AppendMessage(_ context.Context, msg domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := append(s.messages[msg.RoomID], msg)
	if over := len(msgs) - s.limit; over > 0 {
		msgs = slices.Delete(msgs, 0, over)
	}
	s.messages[msg.RoomID] = msgs
	return nil
}

func (s *MemoryStore) AppendReaction(_ context.Context, r domain.Reaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-ReactionRetention)
	kept := slices.DeleteFunc(s.reactions[r.RoomID], func(old domain.Reaction) bool {
		return old.OccurredAt.Before(cutoff)
	})
	s.reactions[r.RoomID] = append(kept, r)
	return nil
}

func (s *MemoryStore) RecentMessages(_ context.Context, id domain.RoomID, limit int) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[id]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return slices.Clone(msgs), nil
}
