package core

// session implements Session by pairing an id with its transport.
type session struct {
	id     SessionID
	signal SignalConnection
}

func NewSession(id SessionID, signal SignalConnection) Session {
	return &session{id: id, signal: signal}
}

func (s *session) ID() SessionID            { return s.id }
func (s *session) Signal() SignalConnection { return s.signal }
