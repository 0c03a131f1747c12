package core

import "github.com/dkeye/VibeRoom/internal/domain"

// SessionID identifies one client connection. Rooms only keep it as an
// opaque routing token.
type SessionID = domain.ConnToken

// Session binds a connection id to its transport endpoint.
// Only the gateway holds sessions; rooms never do.
type Session interface {
	ID() SessionID
	Signal() SignalConnection
}
