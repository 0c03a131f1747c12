package store

import (
	"context"
	"errors"
	"time"

	"github.com/dkeye/VibeRoom/internal/domain"
)

// ReactionRetention bounds how long stored reactions are kept.
const ReactionRetention = 5 * time.Minute

var ErrNotFound = errors.New("not found")

// RoomRecord is the durable summary of a room.
type RoomRecord struct {
	ID           domain.RoomID   `json:"id"`
	Name         string          `json:"name"`
	HostIdentity domain.Identity `json:"hostIdentity"`
	MemberCount  int             `json:"memberCount"`
	IsActive     bool            `json:"isActive"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// RecordOf summarizes a room snapshot.
func RecordOf(r domain.Room, now time.Time) RoomRecord {
	return RoomRecord{
		ID:           r.ID,
		Name:         r.Name,
		HostIdentity: r.HostIdentity,
		MemberCount:  len(r.Members),
		IsActive:     r.IsActive,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    now,
	}
}

// Store persists room summaries, chat and reactions. The live room state is
// always in memory; a store only outlives the process.
type Store interface {
	Close() error
	Ping(ctx context.Context) error

	// FindRoom returns ErrNotFound when the room was never stored.
	FindRoom(ctx context.Context, id domain.RoomID) (*RoomRecord, error)
	UpsertRoom(ctx context.Context, rec RoomRecord) error

	AppendMessage(ctx context.Context, msg domain.Message) error
	AppendReaction(ctx context.Context, r domain.Reaction) error
	// RecentMessages returns up to limit messages, oldest first.
	RecentMessages(ctx context.Context, id domain.RoomID, limit int) ([]domain.Message, error)
}
