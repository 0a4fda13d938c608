package network

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"
)

// Opens a UDP socket that can share its port with other listeners
// (the push server usually coexists with a local miIO client).
// Sets SO_REUSEADDR and SO_REUSEPORT.
func ListenUDP(ctx context.Context, address string, port int) (conn *net.UDPConn, err error) {
	cfg := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var sockErr error
			ctrlErr := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
				if sockErr != nil {
					return
				}
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			})
			if ctrlErr != nil {
				return ctrlErr
			}
			return sockErr
		},
	}

	pc, err := cfg.ListenPacket(ctx, "udp4", net.JoinHostPort(address, strconv.Itoa(port)))
	if err != nil {
		err = fmt.Errorf("failed to listen on %s:%d: %w", address, port, err)
		return
	}
	conn = pc.(*net.UDPConn)
	return
}
