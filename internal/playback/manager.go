package playback

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/voxstream/voice-relay/internal/observability"
)

// Handle identifies one playback session and carries its cancellation
// signal. The synthesis stream for the session is bound to Context();
// when the handle is cancelled the stream tears down promptly.
type Handle struct {
	id     uuid.UUID
	ctx    context.Context
	cancel context.CancelFunc
}

// Context returns the context cancelled when this session is
// superseded, stopped, or ended.
func (h *Handle) Context() context.Context {
	return h.ctx
}

// Done returns a channel closed on cancellation.
func (h *Handle) Done() <-chan struct{} {
	return h.ctx.Done()
}

// Cancelled reports whether the handle has been cancelled.
func (h *Handle) Cancelled() bool {
	return h.ctx.Err() != nil
}

// Manager is the per-client playback registry. It guarantees at most
// one live synthesis stream per client key: beginning a new session
// atomically cancels and replaces the prior one (barge-in). All access
// goes through Begin, End and Stop; the registry map is never mutated
// elsewhere.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Handle
	logger   zerolog.Logger
}

// NewManager creates an empty playback registry.
func NewManager(logger zerolog.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*Handle),
		logger:   logger,
	}
}

// Begin installs a fresh playback session for clientID, cancelling any
// session currently active for that key first. The returned handle is
// used to drive synthesis and to observe external cancellation.
func (m *Manager) Begin(clientID string) *Handle {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle{
		id:     uuid.New(),
		ctx:    ctx,
		cancel: cancel,
	}

	m.mu.Lock()
	if prev, ok := m.sessions[clientID]; ok {
		prev.cancel()
		m.logger.Debug().
			Str("client_id", clientID).
			Str("superseded", prev.id.String()).
			Msg("Playback session superseded")
		observability.RecordBargeIn()
	}
	m.sessions[clientID] = h
	m.mu.Unlock()

	return h
}

// End removes the session for clientID, but only if handle is still
// the registered one; a stale completion racing a newer Begin is a
// no-op for the registry. The handle itself is always cancelled.
// Idempotent.
func (m *Manager) End(clientID string, handle *Handle) {
	if handle == nil {
		return
	}

	m.mu.Lock()
	if cur, ok := m.sessions[clientID]; ok && cur.id == handle.id {
		delete(m.sessions, clientID)
	}
	m.mu.Unlock()

	handle.cancel()
}

// Stop cancels the active session for clientID, if any, without
// starting a new one. Reports whether a session was cancelled.
func (m *Manager) Stop(clientID string) bool {
	m.mu.Lock()
	h, ok := m.sessions[clientID]
	if ok {
		delete(m.sessions, clientID)
	}
	m.mu.Unlock()

	if !ok {
		return false
	}

	h.cancel()
	m.logger.Debug().Str("client_id", clientID).Msg("Playback session stopped")
	return true
}

// Active reports whether a playback session is registered for clientID.
func (m *Manager) Active(clientID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[clientID]
	return ok
}
