package beats

import (
	"context"
	"encoding/json"
	"mibridge/internal/events"
	"net"
	"testing"
	"time"

	"github.com/elastic/go-lumber/server/v2"
)

func TestNewOutputEmptyEndpoint(t *testing.T) {
	module, err := NewOutput("")
	if err != nil || module != nil {
		t.Fatalf("expected nil module without endpoint, got %v %v", module, err)
	}
	// Nil module is a silent no-op
	if err = module.Write(context.Background(), events.Event{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err = module.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFields(t *testing.T) {
	event := events.Event{
		ID:        "0f2c",
		Timestamp: time.Unix(1700000000, 0),
		Device:    "10.0.0.5",
		SourceID:  "lumi.158d00",
		Action:    "motion",
		Params:    json.RawMessage(`[1]`),
	}
	fields := Fields(event)
	if fields["message"] != "lumi.158d00 motion" {
		t.Fatalf("unexpected message %v", fields["message"])
	}
	if fields["event"].(map[string]interface{})["id"] != "0f2c" {
		t.Fatalf("event id missing")
	}
	if fields["miio"].(map[string]interface{})["params"] != "[1]" {
		t.Fatalf("params missing")
	}

	event.Params = nil
	if _, present := Fields(event)["miio"]; present {
		t.Fatalf("empty params must be omitted")
	}
}

func TestWriteToServer(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	srv, err := v2.NewWithListener(listener)
	if err != nil {
		t.Fatalf("failed to start lumberjack server: %v", err)
	}
	defer srv.Close()

	module, err := NewOutput(listener.Addr().String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer module.Close()

	done := make(chan error, 1)
	go func() {
		done <- module.Write(context.Background(), events.Event{ID: "1", SourceID: "lumi.1", Action: "click"})
	}()

	select {
	case batch := <-srv.ReceiveChan():
		if len(batch.Events) != 1 {
			t.Fatalf("expected 1 event, got %d", len(batch.Events))
		}
		doc := batch.Events[0].(map[string]interface{})
		if doc["message"] != "lumi.1 click" {
			t.Fatalf("unexpected document %v", doc)
		}
		batch.ACK()
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for batch")
	}

	if err = <-done; err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}
}
