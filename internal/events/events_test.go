package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mibridge/internal/global"
	"strings"
	"sync"
	"testing"
)

type recordingSink struct {
	mutex  sync.Mutex
	events []Event
	fail   bool
	closed bool
}

func (sink *recordingSink) Name() string { return "recording" }

func (sink *recordingSink) Write(ctx context.Context, event Event) (err error) {
	sink.mutex.Lock()
	defer sink.mutex.Unlock()
	if sink.fail {
		err = errors.New("sink unavailable")
		return
	}
	sink.events = append(sink.events, event)
	return
}

func (sink *recordingSink) Close() (err error) {
	sink.mutex.Lock()
	defer sink.mutex.Unlock()
	sink.closed = true
	return
}

func TestQueueSize(t *testing.T) {
	if size := QueueSize(42); size != 42 {
		t.Fatalf("configured size ignored, got %d", size)
	}
	size := QueueSize(0)
	if size < global.DefaultMinQueueSize || size > global.DefaultMaxQueueSize {
		t.Fatalf("derived size %d out of bounds", size)
	}
	if size&(size-1) != 0 {
		t.Fatalf("derived size %d is not a power of two", size)
	}
}

func TestDispatchFanOut(t *testing.T) {
	first := &recordingSink{}
	second := &recordingSink{}
	broken := &recordingSink{fail: true}
	dispatcher := New([]string{global.NSTest}, 16, first, broken, second)
	dispatcher.Start(context.Background())

	params := json.RawMessage(`{"v":1}`)
	if !dispatcher.Publish("10.0.0.5", "lumi.1", "motion", params) {
		t.Fatalf("expected event to be queued")
	}
	params[2] = 'x'
	if !dispatcher.Publish("10.0.0.5", "lumi.2", "click", nil) {
		t.Fatalf("expected event to be queued")
	}

	err := dispatcher.Shutdown(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, sink := range []*recordingSink{first, second} {
		if len(sink.events) != 2 {
			t.Fatalf("expected 2 events, got %d", len(sink.events))
		}
		event := sink.events[0]
		if event.Device != "10.0.0.5" || event.SourceID != "lumi.1" || event.Action != "motion" {
			t.Fatalf("unexpected event %+v", event)
		}
		if string(event.Params) != `{"v":1}` {
			t.Fatalf("params not copied on publish: %s", event.Params)
		}
		if event.ID == "" || event.ID == sink.events[1].ID {
			t.Fatalf("events need unique ids")
		}
		if !sink.closed {
			t.Fatalf("sink not closed on shutdown")
		}
	}

	if got := dispatcher.Metrics.Delivered.Load(); got != 4 {
		t.Fatalf("expected 4 deliveries, got %d", got)
	}
	if got := dispatcher.Metrics.SinkErrors.Load(); got != 2 {
		t.Fatalf("expected 2 sink errors, got %d", got)
	}

	if dispatcher.Publish("10.0.0.5", "lumi.1", "late", nil) {
		t.Fatalf("publish after shutdown must be rejected")
	}
	if err = dispatcher.Shutdown(context.Background()); err != nil {
		t.Fatalf("second shutdown must be a no-op, got %v", err)
	}
}

func TestDropWhenFull(t *testing.T) {
	dispatcher := New([]string{global.NSTest}, 2)

	results := []bool{
		dispatcher.Publish("a", "s", "x", nil),
		dispatcher.Publish("a", "s", "x", nil),
		dispatcher.Publish("a", "s", "x", nil),
	}
	if !results[0] || !results[1] || results[2] {
		t.Fatalf("unexpected queue results %v", results)
	}
	if dispatcher.Depth() != 2 {
		t.Fatalf("expected depth 2, got %d", dispatcher.Depth())
	}

	collection := dispatcher.CollectMetrics(0)
	values := make(map[string]uint64)
	for _, metric := range collection {
		values[metric.Name] = metric.Value.Raw.(uint64)
	}
	if values["received_events"] != 2 || values["dropped_events"] != 1 || values["queue_depth"] != 2 {
		t.Fatalf("unexpected metrics %v", values)
	}
}

func TestWriterSink(t *testing.T) {
	var out bytes.Buffer
	sink := NewWriterSink(&out)

	err := sink.Write(context.Background(), Event{ID: "abc", Device: "10.0.0.5", SourceID: "lumi.1", Action: "a<b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	line := out.String()
	if !strings.HasSuffix(line, "\n") || strings.Count(line, "\n") != 1 {
		t.Fatalf("expected one line, got %q", line)
	}
	if !strings.Contains(line, `"action":"a<b"`) || strings.Contains(line, "params") {
		t.Fatalf("unexpected encoding %q", line)
	}
}
