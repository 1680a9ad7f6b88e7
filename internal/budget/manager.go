package budget

import (
	"context"
	"errors"
	"strings"
	"sync"

	"bilancio/internal/core"
	"bilancio/internal/log"
	"bilancio/internal/ports"
)

var ErrManagerClosed = errors.New("session manager closed")

// Manager owns one Session per user. Each session follows its user's
// category directory: a change reloads the month being edited.
type Manager struct {
	dir   ports.CategoryDirectory
	store ports.DocumentStore
	opts  []Option
	log   *log.Logger
	ctx   context.Context
	stop  context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*managedSession
	closed   bool
}

type managedSession struct {
	session *Session
	cancel  func()
}

func NewManager(dir ports.CategoryDirectory, store ports.DocumentStore, opts ...Option) *Manager {
	o := buildOptions(opts)
	ctx, stop := context.WithCancel(context.Background())
	return &Manager{
		dir:      dir,
		store:    store,
		opts:     opts,
		log:      o.logger.WithComponent(log.ComponentSession),
		ctx:      ctx,
		stop:     stop,
		sessions: make(map[string]*managedSession),
	}
}

// Session returns userID's session, creating and subscribing it on first use.
func (m *Manager) Session(userID string) (*Session, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, core.ErrEmptyUserID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrManagerClosed
	}
	if ms, ok := m.sessions[userID]; ok {
		return ms.session, nil
	}

	s := NewSession(userID, m.dir, m.store, m.opts...)
	cancel := m.dir.Subscribe(userID, func() {
		if err := s.Reload(m.ctx); err != nil && !errors.Is(err, ErrStaleLoad) {
			m.log.Warn("Reload after category change failed", log.FieldUserID, userID, log.FieldError, err)
		}
	})
	m.sessions[userID] = &managedSession{session: s, cancel: cancel}
	return s, nil
}

// Len reports how many sessions are open.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close cancels every directory subscription. Sessions already handed out
// keep working but no longer follow category changes.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	sessions := m.sessions
	m.sessions = map[string]*managedSession{}
	m.mu.Unlock()

	m.stop()
	for _, ms := range sessions {
		ms.cancel()
	}
	return nil
}
