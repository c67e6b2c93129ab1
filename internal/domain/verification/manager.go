package verification

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Manager holds live sessions and expires idle ones. Sessions are keyed
// by id; ownership is enforced on lookup so one operator cannot touch
// another's session.
type Manager struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session

	idleTTL time.Duration
	done    chan struct{}
	once    sync.Once
}

// NewManager creates a session store expiring sessions idle for idleTTL
func NewManager(idleTTL time.Duration) *Manager {
	return &Manager{
		sessions: make(map[uuid.UUID]*Session),
		idleTTL:  idleTTL,
		done:     make(chan struct{}),
	}
}

func (m *Manager) add(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
}

// get returns the session if it exists and belongs to operatorID
func (m *Manager) get(operatorID, sessionID uuid.UUID) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok || s.OperatorID != operatorID {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (m *Manager) remove(sessionID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}

// Count returns the number of live sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// RunJanitor expires idle sessions until Stop is called. Meant to run as
// a goroutine from main.
func (m *Manager) RunJanitor(interval time.Duration, onExpire func(*Session)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.expireIdle(onExpire)
		}
	}
}

// Stop terminates the janitor
func (m *Manager) Stop() {
	m.once.Do(func() { close(m.done) })
}

func (m *Manager) expireIdle(onExpire func(*Session)) {
	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if s.IdleFor() > m.idleTTL {
			delete(m.sessions, id)
			expired = append(expired, s)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		log.Info().
			Str("session_id", s.ID.String()).
			Str("operator_id", s.OperatorID.String()).
			Msg("expiring idle verification session")
		if onExpire != nil {
			onExpire(s)
		}
	}
}
