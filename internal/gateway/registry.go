package gateway

import "sync"

// Registry maps a session_id to its Session, used to route inbound
// execution reports to the right client connection (§4.4) and to drive
// cancel-on-disconnect when a connection is torn down.
type Registry struct {
	mu       sync.Mutex
	sessions map[uint32]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[uint32]*Session)}
}

// Bind registers a session under its session_id once login succeeds.
func (r *Registry) Bind(sessionID uint32, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sessionID] = s
}

// Unbind removes a session, called once its connection is torn down.
func (r *Registry) Unbind(sessionID uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
}

// Lookup returns the session bound to sessionID, if any.
func (r *Registry) Lookup(sessionID uint32) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	return s, ok
}
