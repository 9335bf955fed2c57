package journal

import (
	"sync"
	"time"
)

// Kind classifies a journal event.
type Kind string

const (
	KindJoin       Kind = "join"
	KindDisconnect Kind = "disconnect"
	KindDrop       Kind = "drop"
)

// Event records one signaling occurrence for operator visibility. Silent
// drops never surface to clients, so the journal is the only place they can
// be seen.
type Event struct {
	Kind     Kind      `json:"kind"`
	RoomID   string    `json:"room_id,omitempty"`
	Username string    `json:"username,omitempty"`
	Detail   string    `json:"detail,omitempty"`
	At       time.Time `json:"at"`
}

// Sink is the interface for journal backends.
type Sink interface {
	Record(e Event)
	Recent(n int) []Event
}

// Store keeps recent events in memory, capped at maxSize.
type Store struct {
	mu      sync.RWMutex
	events  []Event
	maxSize int
}

// NewStore creates a journal that retains up to maxSize events.
func NewStore(maxSize int) *Store {
	return &Store{maxSize: maxSize}
}

// Record appends an event, discarding the oldest once the cap is reached.
func (s *Store) Record(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	if len(s.events) > s.maxSize {
		s.events = s.events[len(s.events)-s.maxSize:]
	}
}

// Recent returns up to the last n events, oldest first. A non-positive n
// yields no events.
func (s *Store) Recent(n int) []Event {
	if n <= 0 {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n > len(s.events) {
		n = len(s.events)
	}
	out := make([]Event, n)
	copy(out, s.events[len(s.events)-n:])
	return out
}

// Count returns the number of retained events.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
