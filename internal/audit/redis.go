package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	eventRetention  = 30 * 24 * time.Hour
	seriesRetention = 90 * 24 * time.Hour
)

// RedisSink persists events to Redis for later inspection. Each event is
// stored under its own key for point lookups and appended to a per-day,
// per-type list so a whole class of events can be replayed.
//
// The sink never returns or surfaces errors. Losing an audit write must
// not affect the request that produced it.
type RedisSink struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisSink creates a RedisSink. prefix namespaces all keys and
// defaults to "ag" when empty.
func NewRedisSink(client redis.UniversalClient, prefix string) *RedisSink {
	if prefix == "" {
		prefix = "ag"
	}
	return &RedisSink{client: client, prefix: prefix}
}

// Emit implements Sink.
func (s *RedisSink) Emit(ctx context.Context, event Event) {
	if s == nil || s.client == nil {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return
	}

	eventKey := s.prefix + ":ev:" + event.ID
	seriesKey := s.prefix + ":evs:" + event.Timestamp.UTC().Format("2006-01-02") + ":" + event.EventType

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, eventKey, payload, eventRetention)
	pipe.RPush(ctx, seriesKey, event.ID)
	pipe.Expire(ctx, seriesKey, seriesRetention)
	_, _ = pipe.Exec(ctx)
}
