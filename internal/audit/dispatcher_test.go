package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

type blockingSink struct {
	release chan struct{}
	mu      sync.Mutex
	got     []Event
}

func (s *blockingSink) Emit(_ context.Context, e Event) {
	<-s.release
	s.mu.Lock()
	s.got = append(s.got, e)
	s.mu.Unlock()
}

func TestDispatcherDisabledIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), Event{EventType: "x"})
	d.Close()
	if d.Dropped() != 0 || d.Delivered() != 0 {
		t.Fatal("nil dispatcher counters must be zero")
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: "account_created"})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected some events to be dropped")
	}

	close(sink.release)
	d.Close()

	if got := d.Delivered() + d.Dropped(); got != 10 {
		t.Fatalf("delivered+dropped = %d, want 10", got)
	}
}

func TestDispatcherDrainsOnClose(t *testing.T) {
	sink := NewChannelSink(16)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 16}, sink)

	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), Event{EventType: "login_success", AccountID: "a1"})
	}
	d.Close()
	d.Emit(context.Background(), Event{EventType: "after_close"})

	if d.Delivered() != 5 {
		t.Fatalf("expected 5 delivered events, got %d", d.Delivered())
	}
	for i := 0; i < 5; i++ {
		select {
		case e := <-sink.Events():
			if e.EventType != "login_success" {
				t.Fatalf("unexpected event %q", e.EventType)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestJSONWriterSinkWritesLines(t *testing.T) {
	var buf bytes.Buffer
	s := NewJSONWriterSink(&buf)
	s.Emit(context.Background(), Event{EventType: "email_added", AccountID: "a1", Success: true})
	s.Emit(context.Background(), Event{EventType: "email_removed", AccountID: "a1", Error: "email_not_found"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var e Event
	if err := json.Unmarshal([]byte(lines[1]), &e); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if e.EventType != "email_removed" || e.Error != "email_not_found" {
		t.Fatalf("unexpected event %+v", e)
	}
}

func TestSlogSinkLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	s := NewSlogSink(logger)

	s.Emit(context.Background(), Event{EventType: "login_failure", Error: "incorrect_password", Metadata: map[string]string{"selector": "alice"}})

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rec["level"] != "WARN" || rec["event_type"] != "login_failure" {
		t.Fatalf("unexpected record %v", rec)
	}
	meta, ok := rec["metadata"].(map[string]any)
	if !ok || meta["selector"] != "alice" {
		t.Fatalf("expected metadata group, got %v", rec["metadata"])
	}
}
