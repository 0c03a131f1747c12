package core

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/VibeRoom/internal/domain"
	"github.com/dkeye/VibeRoom/internal/vibe"
)

type roomState int32

const (
	// statePending: allocated by the manager, nobody joined yet.
	statePending roomState = iota
	stateActive
	// stateClosed: last member left; a new join needs a new room.
	stateClosed
)

// RoomOptions configures rooms built by a manager.
type RoomOptions struct {
	Publisher      Publisher
	Recorder       Recorder
	Clock          func() time.Time
	MessageHistory int
	VibeHistory    int
	DecayPerSecond float64
}

func (o RoomOptions) withDefaults() RoomOptions {
	if o.Publisher == nil {
		o.Publisher = PublisherFunc(func(Event) {})
	}
	if o.Recorder == nil {
		o.Recorder = nopRecorder{}
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.MessageHistory <= 0 {
		o.MessageHistory = 50
	}
	return o
}

type nopRecorder struct{}

func (nopRecorder) RoomChanged(domain.Room)       {}
func (nopRecorder) MessagePosted(domain.Message)  {}
func (nopRecorder) ReactionAdded(domain.Reaction) {}

// roomImpl is the single owner of one room's state.
// Every mutation runs under mu and publishes its events before unlocking.
type roomImpl struct {
	id   domain.RoomID
	opts RoomOptions

	mu        sync.Mutex
	state     roomState
	name      string
	createdAt time.Time
	host      domain.Identity
	members   []*domain.Member
	messages  []domain.Message

	meter    *vibe.Meter
	snap     atomic.Pointer[domain.Room]
	playback atomic.Pointer[domain.PlaybackState]
	history  atomic.Pointer[[]domain.Message]
	status   atomic.Int32
	count    atomic.Int32
}

func NewRoomService(id domain.RoomID, opts RoomOptions) RoomService {
	opts = opts.withDefaults()
	return &roomImpl{
		id:    id,
		opts:  opts,
		meter: vibe.NewMeter(opts.VibeHistory, opts.DecayPerSecond),
	}
}

func (r *roomImpl) ID() domain.RoomID { return r.id }

func (r *roomImpl) Snapshot() domain.Room {
	if s := r.snap.Load(); s != nil {
		return *s
	}
	return domain.Room{ID: r.id}
}

func (r *roomImpl) MemberCount() int { return int(r.count.Load()) }
func (r *roomImpl) Active() bool     { return roomState(r.status.Load()) == stateActive }
func (r *roomImpl) Closed() bool     { return roomState(r.status.Load()) == stateClosed }

func (r *roomImpl) Playback() (domain.PlaybackState, bool) {
	if p := r.playback.Load(); p != nil {
		return *p, true
	}
	return domain.PlaybackState{}, false
}

func (r *roomImpl) Messages() []domain.Message {
	if h := r.history.Load(); h != nil {
		return *h
	}
	return nil
}

func (r *roomImpl) Vibe(now time.Time) vibe.Reading {
	return r.meter.Evaluate(now, r.MemberCount())
}

func (r *roomImpl) Join(sid SessionID, req JoinRequest) (JoinResult, error) {
	now := r.opts.Clock()
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		res    JoinResult
		member *domain.Member
	)
	switch r.state {
	case stateClosed:
		return res, domain.ErrRoomClosed
	case statePending:
		// Creation and host assignment are one step: the room never has
		// members without a host.
		member = domain.NewMember(req.Identity, sid, req.Avatar, now)
		member.IsHost = true
		r.members = []*domain.Member{member}
		r.host = req.Identity
		r.createdAt = now
		r.name = strings.TrimSpace(req.Name)
		if r.name == "" {
			r.name = domain.DefaultRoomName(req.Identity)
		}
		r.setStateLocked(stateActive)
		res.Created = true
	default:
		if member = r.findLocked(req.Identity); member != nil {
			res.Reconnected = true
			res.PreviousConn = member.Conn
			member.Conn = sid
			if req.Avatar != "" {
				member.Avatar = domain.NormalizeAvatar(req.Avatar)
			}
		} else {
			member = domain.NewMember(req.Identity, sid, req.Avatar, now)
			r.members = append(r.members, member)
		}
	}

	res.IsHost = member.IsHost
	res.Room = r.refreshLocked()

	joined := RoomJoined{
		Room:         res.Room,
		IsHost:       member.IsHost,
		HostIdentity: r.host,
		Reconnected:  res.Reconnected,
		Messages:     r.Messages(),
		Vibe:         r.meter.Evaluate(now, len(r.members)),
	}
	if st, ok := r.Playback(); ok {
		v := ViewOf(st, now)
		joined.Playback = &v
	}
	r.publishLocked(EventRoomJoined, []SessionID{sid}, joined)
	r.publishLocked(EventUserJoined, r.recipientsLocked(sid), UserJoined{
		Identity:    member.Identity,
		Avatar:      member.Avatar,
		IsHost:      member.IsHost,
		Reconnected: res.Reconnected,
		Room:        res.Room,
	})
	r.opts.Recorder.RoomChanged(res.Room)

	log.Info().
		Str("module", "core.room").
		Str("room_id", string(r.id)).
		Str("identity", string(req.Identity)).
		Str("sid", string(sid)).
		Bool("host", member.IsHost).
		Bool("created", res.Created).
		Bool("reconnected", res.Reconnected).
		Msg("member joined")
	return res, nil
}

// Leave removes a member. A non-empty sid must match the member's current
// connection, so a connection replaced by a reconnect cannot evict the member.
func (r *roomImpl) Leave(who domain.Identity, sid SessionID) (LeaveResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res LeaveResult
	if r.state != stateActive {
		return res, domain.ErrUnknownRoom
	}
	idx := slices.IndexFunc(r.members, func(m *domain.Member) bool { return m.Identity == who })
	if idx < 0 {
		return res, domain.ErrUnknownMember
	}
	gone := r.members[idx]
	if sid != "" && gone.Conn != sid {
		return res, fmt.Errorf("%w: connection was replaced", domain.ErrUnknownMember)
	}
	r.members = slices.Delete(r.members, idx, idx+1)
	res.WasHost = gone.IsHost

	if len(r.members) == 0 {
		r.host = ""
		r.setStateLocked(stateClosed)
		res.Closed = true
		res.Room = r.refreshLocked()
		r.opts.Recorder.RoomChanged(res.Room)
		log.Info().Str("module", "core.room").Str("room_id", string(r.id)).Msg("room inactive")
		return res, nil
	}

	if gone.IsHost {
		next := r.electLocked()
		next.IsHost = true
		r.host = next.Identity
		res.NewHost = next.Identity
	}
	res.Room = r.refreshLocked()

	to := r.recipientsLocked("")
	r.publishLocked(EventUserLeft, to, UserLeft{
		Identity: who,
		Avatar:   gone.Avatar,
		IsHost:   res.WasHost,
		WasHost:  res.WasHost,
		Room:     res.Room,
	})
	if res.NewHost != "" {
		r.publishLocked(EventHostTransferred, to, HostTransferred{
			OldHost: who,
			NewHost: res.NewHost,
			Reason:  ReasonPreviousHostLeft,
		})
		log.Info().
			Str("module", "core.room").
			Str("room_id", string(r.id)).
			Str("old_host", string(who)).
			Str("new_host", string(res.NewHost)).
			Msg("host elected")
	}
	r.opts.Recorder.RoomChanged(res.Room)
	return res, nil
}

func (r *roomImpl) TransferHost(requester domain.Identity, sid SessionID, target domain.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != stateActive {
		return domain.ErrUnknownRoom
	}
	if !r.isHostLocked(requester, sid) {
		return domain.ErrNotHost
	}
	next := r.findLocked(target)
	if next == nil {
		return domain.ErrUnknownMember
	}
	if target == requester {
		return nil
	}
	for _, m := range r.members {
		m.IsHost = m == next
	}
	r.host = target
	snap := r.refreshLocked()

	r.publishLocked(EventHostTransferred, r.recipientsLocked(""), HostTransferred{
		OldHost: requester,
		NewHost: target,
		Reason:  ReasonExplicit,
	})
	r.opts.Recorder.RoomChanged(snap)
	log.Info().
		Str("module", "core.room").
		Str("room_id", string(r.id)).
		Str("old_host", string(requester)).
		Str("new_host", string(target)).
		Msg("host transferred")
	return nil
}

// Publish replaces the playback reference point. The host check runs under
// the room lock against the current host, never a cached one.
func (r *roomImpl) Publish(requester domain.Identity, sid SessionID, upd PlaybackUpdate) (domain.PlaybackState, error) {
	now := r.opts.Clock()
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != stateActive {
		return domain.PlaybackState{}, domain.ErrUnknownRoom
	}
	if !r.isHostLocked(requester, sid) {
		return domain.PlaybackState{}, domain.ErrNotHost
	}
	if err := domain.ValidatePlayback(upd.PositionSeconds, upd.DurationSeconds); err != nil {
		return domain.PlaybackState{}, err
	}
	st := domain.PlaybackState{
		Track:           upd.Track,
		IsPlaying:       upd.IsPlaying,
		PositionSeconds: upd.PositionSeconds,
		DurationSeconds: upd.DurationSeconds,
		PublishedAt:     now,
		PublishedBy:     requester,
	}
	r.playback.Store(&st)
	r.publishLocked(EventPlaybackUpdated, r.recipientsLocked(""), ViewOf(st, now))

	log.Debug().
		Str("module", "core.room").
		Str("room_id", string(r.id)).
		Bool("playing", st.IsPlaying).
		Float64("position", st.PositionSeconds).
		Msg("playback published")
	return st, nil
}

func (r *roomImpl) PostMessage(who domain.Identity, sid SessionID, text, emoji string) (domain.Message, error) {
	now := r.opts.Clock()
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkMemberLocked(who, sid); err != nil {
		return domain.Message{}, err
	}
	msg, err := domain.NewMessage(r.id, who, text, emoji, now)
	if err != nil {
		return domain.Message{}, err
	}
	r.messages = append(r.messages, msg)
	if over := len(r.messages) - r.opts.MessageHistory; over > 0 {
		r.messages = slices.Delete(r.messages, 0, over)
	}
	hist := slices.Clone(r.messages)
	r.history.Store(&hist)

	r.publishLocked(EventNewMessage, r.recipientsLocked(""), NewMessage{Message: msg})
	r.opts.Recorder.MessagePosted(msg)
	return msg, nil
}

func (r *roomImpl) React(who domain.Identity, sid SessionID, emoji string, pos *domain.ScreenPos) (domain.Reaction, error) {
	now := r.opts.Clock()
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkMemberLocked(who, sid); err != nil {
		return domain.Reaction{}, err
	}
	if strings.TrimSpace(emoji) == "" {
		return domain.Reaction{}, fmt.Errorf("%w: empty emoji", domain.ErrInvalidPayload)
	}
	rc := domain.NewReaction(r.id, who, emoji, pos, now)
	r.meter.Add(rc)

	to := r.recipientsLocked("")
	r.publishLocked(EventNewReaction, to, NewReaction{Reaction: rc})
	if rd, changed := r.meter.Tick(now, len(r.members)); changed {
		r.publishLocked(EventVibeUpdated, to, rd)
	}
	r.opts.Recorder.ReactionAdded(rc)
	return rc, nil
}

// TickVibe re-evaluates the meter so an idle room's score keeps decaying on
// every client.
func (r *roomImpl) TickVibe(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != stateActive {
		return
	}
	if rd, changed := r.meter.Tick(now, len(r.members)); changed {
		r.publishLocked(EventVibeUpdated, r.recipientsLocked(""), rd)
	}
}

// electLocked picks the longest-tenured member; ties go to identity order.
func (r *roomImpl) electLocked() *domain.Member {
	return slices.MinFunc(r.members, domain.Tenure)
}

func (r *roomImpl) findLocked(who domain.Identity) *domain.Member {
	for _, m := range r.members {
		if m.Identity == who {
			return m
		}
	}
	return nil
}

func (r *roomImpl) checkMemberLocked(who domain.Identity, sid SessionID) error {
	if r.state != stateActive {
		return domain.ErrUnknownRoom
	}
	m := r.findLocked(who)
	if m == nil || (sid != "" && m.Conn != sid) {
		return domain.ErrUnknownMember
	}
	return nil
}

func (r *roomImpl) isHostLocked(who domain.Identity, sid SessionID) bool {
	if who == "" || who != r.host {
		return false
	}
	m := r.findLocked(who)
	return m != nil && m.IsHost && (sid == "" || m.Conn == sid)
}

// recipientsLocked lists member connections, leaving out skip.
func (r *roomImpl) recipientsLocked(skip SessionID) []SessionID {
	out := make([]SessionID, 0, len(r.members))
	for _, m := range r.members {
		if m.Conn == "" || m.Conn == skip {
			continue
		}
		out = append(out, m.Conn)
	}
	return out
}

func (r *roomImpl) publishLocked(t EventType, to []SessionID, data any) {
	if len(to) == 0 {
		return
	}
	r.opts.Publisher.Publish(Event{Type: t, Room: r.id, To: to, Data: data})
}

func (r *roomImpl) setStateLocked(s roomState) {
	r.state = s
	r.status.Store(int32(s))
}

// refreshLocked publishes a new snapshot for lock-free readers before any
// event about the change goes out.
func (r *roomImpl) refreshLocked() domain.Room {
	snap := domain.Room{
		ID:           r.id,
		Name:         r.name,
		HostIdentity: r.host,
		Members:      make([]domain.Member, 0, len(r.members)),
		IsActive:     r.state == stateActive,
		CreatedAt:    r.createdAt,
	}
	for _, m := range r.members {
		snap.Members = append(snap.Members, *m)
	}
	r.snap.Store(&snap)
	r.count.Store(int32(len(r.members)))
	return snap
}
