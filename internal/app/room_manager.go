package app

import (
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/VibeRoom/internal/core"
	"github.com/dkeye/VibeRoom/internal/domain"
	"github.com/dkeye/VibeRoom/internal/metrics"
)

type RoomManagerImpl struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]core.RoomService
	opts  core.RoomOptions
}

func NewRoomManager(opts core.RoomOptions) core.RoomManager {
	return &RoomManagerImpl{
		rooms: make(map[domain.RoomID]core.RoomService),
		opts:  opts,
	}
}

// GetOrCreate returns the live room for id. A closed room is replaced so the
// next joiner starts a fresh one.
func (f *RoomManagerImpl) GetOrCreate(id domain.RoomID) core.RoomService {
	f.mu.RLock()
	room, ok := f.rooms[id]
	f.mu.RUnlock()
	if ok && !room.Closed() {
		return room
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if room, ok = f.rooms[id]; ok && !room.Closed() {
		return room
	}
	room = core.NewRoomService(id, f.opts)
	f.rooms[id] = room
	log.Debug().Str("module", "app.rooms").Str("room_id", string(id)).Msg("room allocated")
	return room
}

func (f *RoomManagerImpl) Get(id domain.RoomID) (core.RoomService, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	room, ok := f.rooms[id]
	return room, ok
}

// Remove drops room only if it is still the registered instance for its id.
func (f *RoomManagerImpl) Remove(room core.RoomService) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cur, ok := f.rooms[room.ID()]; ok && cur == room {
		delete(f.rooms, room.ID())
		log.Debug().Str("module", "app.rooms").Str("room_id", string(room.ID())).Msg("room removed")
	}
}

func (f *RoomManagerImpl) Rooms() []core.RoomService {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]core.RoomService, 0, len(f.rooms))
	for _, r := range f.rooms {
		out = append(out, r)
	}
	return out
}

// List describes active rooms, sorted by id.
func (f *RoomManagerImpl) List() []core.RoomInfo {
	rooms := f.Rooms()
	out := make([]core.RoomInfo, 0, len(rooms))
	for _, r := range rooms {
		if !r.Active() {
			continue
		}
		snap := r.Snapshot()
		out = append(out, core.RoomInfo{
			ID:           snap.ID,
			Name:         snap.Name,
			HostIdentity: snap.HostIdentity,
			MemberCount:  len(snap.Members),
		})
	}
	slices.SortFunc(out, func(a, b core.RoomInfo) int { return strings.Compare(string(a.ID), string(b.ID)) })
	return out
}

// RefreshGauges publishes the number of active rooms and their members.
func (f *RoomManagerImpl) RefreshGauges() {
	active, members := 0, 0
	for _, r := range f.Rooms() {
		if !r.Active() {
			continue
		}
		active++
		members += r.MemberCount()
	}
	metrics.RoomsActive.Set(float64(active))
	metrics.Members.Set(float64(members))
}
