package network

import (
	"context"
	"net"
	"testing"
)

func TestLocalAddressFor(t *testing.T) {
	tests := []struct {
		name        string
		destination string
		expect      string
		expectErr   bool
	}{
		{name: "loopback", destination: "127.0.0.1", expect: "127.0.0.1"},
		{name: "bracketed", destination: "[127.0.0.1]", expect: "127.0.0.1"},
		{name: "invalid", destination: "not-an-ip", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			local, err := LocalAddressFor(tt.destination)
			if tt.expectErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if local.String() != tt.expect {
				t.Fatalf("expected %s, got %s", tt.expect, local)
			}
		})
	}
}

func TestListenUDPSharesPort(t *testing.T) {
	first, err := ListenUDP(context.Background(), "127.0.0.1", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer first.Close()

	port := first.LocalAddr().(*net.UDPAddr).Port
	if port == 0 {
		t.Fatalf("expected assigned port")
	}

	second, err := ListenUDP(context.Background(), "127.0.0.1", port)
	if err != nil {
		t.Fatalf("second listener on port %d: %v", port, err)
	}
	defer second.Close()
}
