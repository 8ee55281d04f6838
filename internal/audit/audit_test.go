package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func sampleEvent(id, eventType string, severity Severity) Event {
	return Event{
		ID:          id,
		Timestamp:   time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
		EventType:   eventType,
		Severity:    severity,
		PrincipalID: "user1",
		SessionID:   "sess1",
		IP:          "203.0.113.7",
		Description: "test event",
		Success:     false,
	}
}

func TestSeverityString(t *testing.T) {
	cases := map[Severity]string{
		SeverityInfo:     "info",
		SeverityWarning:  "warning",
		SeverityError:    "error",
		SeverityCritical: "critical",
		Severity(9):      "unknown",
	}
	for sev, want := range cases {
		if got := sev.String(); got != want {
			t.Errorf("Severity(%d).String() = %q, want %q", sev, got, want)
		}
	}
}

func TestNilDispatcherSafe(t *testing.T) {
	var d *Dispatcher

	d.Emit(context.Background(), sampleEvent("e1", "login_failure", SeverityWarning))
	d.Close()

	if got := d.Dropped(); got != 0 {
		t.Errorf("Dropped() on nil dispatcher = %d, want 0", got)
	}
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false, BufferSize: 8}, NoOpSink{})
	if d != nil {
		t.Fatal("expected nil dispatcher when auditing disabled")
	}
}

func TestDispatcherDeliversAndDrainsOnClose(t *testing.T) {
	sink := NewChannelSink(16)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 16}, sink)

	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), sampleEvent("e", "token_issued", SeverityInfo))
	}
	d.Close()

	got := 0
	for {
		select {
		case <-sink.Events():
			got++
		default:
			if got != 5 {
				t.Fatalf("received %d events after Close, want 5", got)
			}
			return
		}
	}
}

func TestDispatcherDropIfFull(t *testing.T) {
	block := make(chan struct{})
	sink := sinkFunc(func(context.Context, Event) {
		<-block
	})
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	// First event occupies the goroutine, second fills the buffer, the
	// rest must be dropped without blocking.
	for i := 0; i < 6; i++ {
		d.Emit(context.Background(), sampleEvent("e", "rate_limited", SeverityWarning))
	}

	deadline := time.Now().Add(time.Second)
	for d.Dropped() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if d.Dropped() == 0 {
		t.Error("expected dropped events under backpressure")
	}

	close(block)
	d.Close()
}

type sinkFunc func(ctx context.Context, event Event)

func (f sinkFunc) Emit(ctx context.Context, event Event) { f(ctx, event) }

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	var mu sync.Mutex

	sink := NewJSONWriterSink(writerFunc(func(p []byte) (int, error) {
		mu.Lock()
		defer mu.Unlock()
		return buf.Write(p)
	}))

	sink.Emit(context.Background(), sampleEvent("e1", "account_locked", SeverityCritical))
	sink.Emit(context.Background(), sampleEvent("e2", "account_locked", SeverityCritical))

	mu.Lock()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	mu.Unlock()

	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}

	var ev Event
	if err := json.Unmarshal([]byte(lines[0]), &ev); err != nil {
		t.Fatalf("unmarshal line: %v", err)
	}
	if ev.ID != "e1" || ev.EventType != "account_locked" {
		t.Errorf("decoded event = %q/%q, want e1/account_locked", ev.ID, ev.EventType)
	}
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

func TestMultiSinkSkipsNil(t *testing.T) {
	var calls int
	sink := NewMultiSink(nil, sinkFunc(func(context.Context, Event) { calls++ }), nil)

	sink.Emit(context.Background(), sampleEvent("e1", "logout", SeverityInfo))

	if calls != 1 {
		t.Errorf("child sink called %d times, want 1", calls)
	}
}

func TestRedisSinkStoresEventAndSeries(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	sink := NewRedisSink(client, "ag")
	event := sampleEvent("ev-123", "refresh_reuse_detected", SeverityCritical)

	sink.Emit(context.Background(), event)

	raw, err := mr.Get("ag:ev:ev-123")
	if err != nil {
		t.Fatalf("event key missing: %v", err)
	}
	var stored Event
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		t.Fatalf("unmarshal stored event: %v", err)
	}
	if stored.PrincipalID != "user1" || stored.Severity != SeverityCritical {
		t.Errorf("stored event = %+v", stored)
	}

	seriesKey := "ag:evs:2026-03-14:refresh_reuse_detected"
	ids, err := mr.List(seriesKey)
	if err != nil {
		t.Fatalf("series key missing: %v", err)
	}
	if len(ids) != 1 || ids[0] != "ev-123" {
		t.Errorf("series = %v, want [ev-123]", ids)
	}

	if ttl := mr.TTL("ag:ev:ev-123"); ttl != eventRetention {
		t.Errorf("event TTL = %v, want %v", ttl, eventRetention)
	}
	if ttl := mr.TTL(seriesKey); ttl != seriesRetention {
		t.Errorf("series TTL = %v, want %v", ttl, seriesRetention)
	}
}

func TestRedisSinkSwallowsFailures(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	mr.Close()

	sink := NewRedisSink(client, "ag")

	// Must not panic or surface the connection error.
	sink.Emit(context.Background(), sampleEvent("ev-1", "login_failure", SeverityWarning))
}
