// internal/service/session/manager.go

package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"mapnav/internal/metrics"
)

// ManagerConfig parameterizes session lifecycle.
type ManagerConfig struct {
	// TTL is how long a session may sit idle before the janitor reaps it.
	TTL time.Duration
	// JanitorInterval is how often idle sessions are swept.
	JanitorInterval time.Duration
}

// DefaultManagerConfig returns the production lifecycle settings.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		TTL:             30 * time.Minute,
		JanitorInterval: time.Minute,
	}
}

// Manager creates, looks up and reaps dashboard sessions.
type Manager struct {
	cfg     ManagerConfig
	deps    Deps
	metrics *metrics.Metrics
	log     zerolog.Logger

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a session manager.
func NewManager(cfg ManagerConfig, deps Deps, logger zerolog.Logger) *Manager {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultManagerConfig().TTL
	}
	if cfg.JanitorInterval <= 0 {
		cfg.JanitorInterval = DefaultManagerConfig().JanitorInterval
	}
	return &Manager{
		cfg:      cfg,
		deps:     deps,
		metrics:  deps.Metrics,
		log:      logger.With().Str("component", "sessions").Logger(),
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Start launches the idle-session janitor.
func (m *Manager) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.cfg.JanitorInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.reapIdle()
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// Stop halts the janitor and closes every session.
func (m *Manager) Stop(ctx context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	m.mu.Lock()
	for id, s := range m.sessions {
		s.Close()
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	m.metrics.SetSessionsActive(0)
	return nil
}

// Create builds a new session and starts its initial prefetch.
func (m *Manager) Create(ctx context.Context) *Session {
	s := New(m.deps)
	m.mu.Lock()
	m.sessions[s.ID] = s
	count := len(m.sessions)
	m.mu.Unlock()

	m.metrics.SetSessionsActive(count)
	m.log.Info().Str("session", s.ID.String()).Int("active", count).Msg("session created")
	s.Start(ctx)
	return s
}

// Get looks a session up by id.
func (m *Manager) Get(id uuid.UUID) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Remove closes and forgets a session.
func (m *Manager) Remove(id uuid.UUID) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	count := len(m.sessions)
	m.mu.Unlock()

	if ok {
		s.Close()
		m.metrics.SetSessionsActive(count)
		m.log.Info().Str("session", id.String()).Msg("session removed")
	}
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) reapIdle() {
	cutoff := time.Now().Add(-m.cfg.TTL)
	var reaped []*Session

	m.mu.Lock()
	for id, s := range m.sessions {
		if s.IdleSince().Before(cutoff) {
			delete(m.sessions, id)
			reaped = append(reaped, s)
		}
	}
	count := len(m.sessions)
	m.mu.Unlock()

	for _, s := range reaped {
		s.Close()
		m.log.Info().Str("session", s.ID.String()).Msg("idle session reaped")
	}
	if len(reaped) > 0 {
		m.metrics.SetSessionsActive(count)
	}
}
