package journal

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisKey is the Redis list holding the journal.
const redisKey = "signaling:events"

// RedisSink persists journal events in a capped Redis list so they survive
// relay restarts and can be inspected out of process.
type RedisSink struct {
	client  redis.Cmdable
	maxSize int64
}

// NewRedisSink creates a RedisSink that retains up to maxSize events.
func NewRedisSink(client redis.Cmdable, maxSize int) *RedisSink {
	return &RedisSink{
		client:  client,
		maxSize: int64(maxSize),
	}
}

// Record appends an event to the list, trimming to maxSize.
func (s *RedisSink) Record(e Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	data, err := json.Marshal(e)
	if err != nil {
		log.Printf("journal: failed to marshal event: %v", err)
		return
	}

	pipe := s.client.Pipeline()
	pipe.RPush(ctx, redisKey, data)
	pipe.LTrim(ctx, redisKey, -s.maxSize, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("journal: failed to append event: %v", err)
	}
}

// Recent returns up to the last n events, oldest first. A non-positive n
// yields no events.
func (s *RedisSink) Recent(n int) []Event {
	if n <= 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	vals, err := s.client.LRange(ctx, redisKey, int64(-n), -1).Result()
	if err != nil {
		log.Printf("journal: failed to read events: %v", err)
		return nil
	}

	events := make([]Event, 0, len(vals))
	for _, v := range vals {
		var e Event
		if err := json.Unmarshal([]byte(v), &e); err != nil {
			continue
		}
		events = append(events, e)
	}
	return events
}
