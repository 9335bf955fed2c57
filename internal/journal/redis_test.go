package journal

import (
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisSink(t *testing.T, maxSize int) *RedisSink {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisSink(client, maxSize)
}

func TestRedisSinkRecordAndRecent(t *testing.T) {
	s := newTestRedisSink(t, 100)
	s.Record(event(KindJoin, "alice"))
	s.Record(event(KindDisconnect, "alice"))

	recent := s.Recent(10)
	if len(recent) != 2 {
		t.Fatalf("expected 2 events, got %d", len(recent))
	}
	if recent[0].Kind != KindJoin || recent[1].Kind != KindDisconnect {
		t.Errorf("expected oldest-first order, got %v", recent)
	}
}

func TestRedisSinkCap(t *testing.T) {
	s := newTestRedisSink(t, 3)
	for i := 0; i < 5; i++ {
		s.Record(event(KindJoin, fmt.Sprintf("user-%d", i)))
	}

	recent := s.Recent(10)
	if len(recent) != 3 {
		t.Fatalf("expected 3 retained events, got %d", len(recent))
	}
	if recent[0].Username != "user-2" {
		t.Errorf("expected oldest retained to be user-2, got %q", recent[0].Username)
	}
}

func TestRedisSinkRecentNonPositive(t *testing.T) {
	s := newTestRedisSink(t, 100)
	s.Record(event(KindJoin, "alice"))

	if recent := s.Recent(0); len(recent) != 0 {
		t.Errorf("expected no events for n=0, got %d", len(recent))
	}
	if recent := s.Recent(-5); len(recent) != 0 {
		t.Errorf("expected no events for negative n, got %d", len(recent))
	}
}

func TestRedisSinkRecentEmpty(t *testing.T) {
	s := newTestRedisSink(t, 100)
	if recent := s.Recent(10); len(recent) != 0 {
		t.Fatalf("expected no events, got %d", len(recent))
	}
}
