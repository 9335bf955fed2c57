package journal

import (
	"fmt"
	"testing"
	"time"
)

func event(kind Kind, username string) Event {
	return Event{
		Kind:     kind,
		RoomID:   "room1",
		Username: username,
		At:       time.Now(),
	}
}

func TestStoreRecordAndRecent(t *testing.T) {
	s := NewStore(100)
	s.Record(event(KindJoin, "alice"))
	s.Record(event(KindDrop, "bob"))

	recent := s.Recent(10)
	if len(recent) != 2 {
		t.Fatalf("expected 2 events, got %d", len(recent))
	}
	if recent[0].Username != "alice" || recent[1].Username != "bob" {
		t.Errorf("expected oldest-first order, got %v", recent)
	}
}

func TestStoreCap(t *testing.T) {
	s := NewStore(3)
	for i := 0; i < 5; i++ {
		s.Record(event(KindJoin, fmt.Sprintf("user-%d", i)))
	}

	if s.Count() != 3 {
		t.Fatalf("expected 3 retained events, got %d", s.Count())
	}
	recent := s.Recent(3)
	if recent[0].Username != "user-2" || recent[2].Username != "user-4" {
		t.Errorf("expected the newest 3 events, got %v", recent)
	}
}

func TestStoreRecentFewerThanAsked(t *testing.T) {
	s := NewStore(100)
	s.Record(event(KindJoin, "alice"))

	recent := s.Recent(50)
	if len(recent) != 1 {
		t.Fatalf("expected 1 event, got %d", len(recent))
	}
}

func TestStoreRecentNonPositive(t *testing.T) {
	s := NewStore(100)
	s.Record(event(KindJoin, "alice"))

	if recent := s.Recent(0); len(recent) != 0 {
		t.Errorf("expected no events for n=0, got %d", len(recent))
	}
	if recent := s.Recent(-5); len(recent) != 0 {
		t.Errorf("expected no events for negative n, got %d", len(recent))
	}
}

func TestStoreRecentEmpty(t *testing.T) {
	s := NewStore(100)
	if recent := s.Recent(10); len(recent) != 0 {
		t.Fatalf("expected no events, got %d", len(recent))
	}
}
