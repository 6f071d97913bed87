package sessions

import (
	"sync"

	"github.com/anuragrao04/qr-attendance/models"
)

// entry serialises every operation on one session. Operations on
// different sessions only meet on the registry map lock.
type entry struct {
	mu      sync.Mutex
	session models.Session
}

// Registry is the in-process table of sessions that have not been
// finalized yet.
type Registry struct {
	mu   sync.RWMutex
	live map[string]*entry
}

func NewRegistry() *Registry {
	return &Registry{live: make(map[string]*entry)}
}

func (r *Registry) add(s models.Session) {
	r.mu.Lock()
	r.live[s.SessionID] = &entry{session: s}
	r.mu.Unlock()
}

func (r *Registry) lookup(sessionID string) (*entry, bool) {
	r.mu.RLock()
	e, ok := r.live[sessionID]
	r.mu.RUnlock()
	return e, ok
}

func (r *Registry) evict(sessionID string) {
	r.mu.Lock()
	delete(r.live, sessionID)
	r.mu.Unlock()
}

// Get returns a copy of the live session.
func (r *Registry) Get(sessionID string) (models.Session, error) {
	e, ok := r.lookup(sessionID)
	if !ok {
		return models.Session{}, ErrSessionNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session.Status == models.StatusFinalized {
		return models.Session{}, ErrSessionNotFound
	}
	return e.session, nil
}

// IsActive implements tokens.ActiveChecker.
func (r *Registry) IsActive(sessionID string) bool {
	s, err := r.Get(sessionID)
	return err == nil && s.Status == models.StatusActive
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.live)
}
