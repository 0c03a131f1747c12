package app

import (
	"context"
	"maps"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/VibeRoom/internal/core"
	"github.com/dkeye/VibeRoom/internal/domain"
	"github.com/dkeye/VibeRoom/internal/metrics"
)

type sessionEntry struct {
	Session core.Session
	Cancel  context.CancelFunc
	Client  string
	// Rooms maps each joined room to the identity used there.
	Rooms map[domain.RoomID]domain.Identity
}

// Registry is the gateway's connection table. It is the only place that
// resolves a connection to the identity it acts as.
type Registry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*sessionEntry
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[core.SessionID]*sessionEntry)}
}

func (r *Registry) Bind(sess core.Session, cancel context.CancelFunc, client string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sess.ID()] = &sessionEntry{
		Session: sess,
		Cancel:  cancel,
		Client:  client,
		Rooms:   make(map[domain.RoomID]domain.Identity),
	}
	metrics.WSConnections.Set(float64(len(r.sessions)))
	log.Info().Str("module", "app.registry").Str("sid", string(sess.ID())).Str("client", client).Msg("bound session")
}

func (r *Registry) GetSession(sid core.SessionID) (core.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[sid]; ok {
		return e.Session, true
	}
	return nil, false
}

// Unbind forgets sid and returns the memberships it still held.
func (r *Registry) Unbind(sid core.SessionID) map[domain.RoomID]domain.Identity {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return nil
	}
	delete(r.sessions, sid)
	metrics.WSConnections.Set(float64(len(r.sessions)))
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Int("rooms", len(e.Rooms)).Msg("unbind session")
	return e.Rooms
}

// AddMembership records that sid acts as who in room. It returns the
// identity previously used there, if any.
func (r *Registry) AddMembership(sid core.SessionID, room domain.RoomID, who domain.Identity) (domain.Identity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return "", false
	}
	prev := e.Rooms[room]
	e.Rooms[room] = who
	return prev, true
}

func (r *Registry) RemoveMembership(sid core.SessionID, room domain.RoomID) (domain.Identity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return "", false
	}
	who, ok := e.Rooms[room]
	delete(e.Rooms, room)
	return who, ok
}

// IdentityIn resolves the identity sid acts as in room.
func (r *Registry) IdentityIn(sid core.SessionID, room domain.RoomID) (domain.Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok {
		return "", false
	}
	who, ok := e.Rooms[room]
	return who, ok
}

func (r *Registry) RoomsOf(sid core.SessionID) map[domain.RoomID]domain.Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[sid]; ok {
		return maps.Clone(e.Rooms)
	}
	return nil
}

func (r *Registry) Client(sid core.SessionID) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[sid]; ok {
		return e.Client
	}
	return ""
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Cancel stops the connection's pumps. Cleanup follows through the
// adapter's disconnect path.
func (r *Registry) Cancel(sid core.SessionID) bool {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("canceled session")
	return true
}
