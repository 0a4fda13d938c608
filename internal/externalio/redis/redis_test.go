package redis

import (
	"context"
	"mibridge/internal/events"
	"mibridge/internal/store"
	"net"
	"testing"
)

// Compile-time interface checks
var (
	_ store.Store = (*Module)(nil)
	_ events.Sink = (*Module)(nil)
)

func TestNewWithoutAddress(t *testing.T) {
	module, err := New(context.Background(), "", 0, "")
	if err != nil || module != nil {
		t.Fatalf("expected nil module without address, got %v %v", module, err)
	}
	if err = module.Close(); err != nil {
		t.Fatalf("unexpected error closing nil module: %v", err)
	}
	if err = module.Write(context.Background(), events.Event{}); err != nil {
		t.Fatalf("unexpected error writing to nil module: %v", err)
	}
}

func TestNewUnreachable(t *testing.T) {
	// Reserve a port, then free it so nothing listens there
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to reserve port: %v", err)
	}
	address := listener.Addr().String()
	listener.Close()

	module, err := New(context.Background(), address, 0, "events")
	if err == nil || module != nil {
		t.Fatalf("expected connection failure, got module %v", module)
	}
}

func TestKeys(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"request ids", requestIDKey(), "mibridge:request_ids"},
		{"scenes", scenesKey("10.0.0.5"), "mibridge:scenes:10.0.0.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, tt.got)
			}
		})
	}
}
