package relay

import "sync"

// Hub maps client identifiers to their live sessions so the playback
// control surface can reach a client's connection. Sessions register
// on connect and unregister on teardown.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{sessions: make(map[string]*Session)}
}

// Register installs a session under its client identifier. A newer
// connection for the same identifier displaces the older entry.
func (h *Hub) Register(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[s.ID()] = s
}

// Unregister removes the session, but only if it is still the
// registered one for its identifier.
func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.sessions[s.ID()]; ok && cur == s {
		delete(h.sessions, s.ID())
	}
}

// Get returns the session for a client identifier, or nil.
func (h *Hub) Get(clientID string) *Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sessions[clientID]
}

// Len returns the number of registered sessions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}
