// Package notify fans engine events out to connected presenter clients.
// Delivery is at most once: a subscriber that falls behind loses events
// and is expected to re-fetch the attendance list.
package notify

import (
	"log/slog"
	"sync"

	"github.com/anuragrao04/qr-attendance/models"
)

const DefaultBuffer = 32

type Hub struct {
	logger *slog.Logger

	mu   sync.RWMutex
	subs map[*Subscriber]struct{}
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger: logger,
		subs:   make(map[*Subscriber]struct{}),
	}
}

// Subscriber receives events for one session, or for every session when
// its session ID is empty.
type Subscriber struct {
	hub       *Hub
	sessionID string
	events    chan models.Event
	once      sync.Once
}

func (h *Hub) Subscribe(sessionID string, buffer int) *Subscriber {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	sub := &Subscriber{
		hub:       h,
		sessionID: sessionID,
		events:    make(chan models.Event, buffer),
	}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

func (s *Subscriber) Events() <-chan models.Event {
	return s.events
}

// Close unregisters the subscriber and closes its channel. Safe to call
// more than once.
func (s *Subscriber) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s)
		close(s.events)
		s.hub.mu.Unlock()
	})
}

// Notify never blocks the caller.
func (h *Hub) Notify(ev models.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		if sub.sessionID != "" && sub.sessionID != ev.SessionID {
			continue
		}
		select {
		case sub.events <- ev:
		default:
			h.logger.Warn("dropped event for slow subscriber", "type", ev.Type, "session_id", ev.SessionID)
		}
	}
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
