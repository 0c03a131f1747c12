package app

import "github.com/dkeye/VibeRoom/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	KickMember
)

// Policy decides what happens to a connection whose send buffer is full.
type Policy interface {
	OnBackPressure(room core.RoomService, sess core.Session) BackpressureAction
}

// SimplePolicy disconnects slow consumers; a rejoin resyncs them.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(core.RoomService, core.Session) BackpressureAction {
	return KickMember
}

// LenientPolicy drops frames and keeps the connection.
type LenientPolicy struct{}

func (LenientPolicy) OnBackPressure(core.RoomService, core.Session) BackpressureAction {
	return DropFrame
}
