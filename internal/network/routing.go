package network

import (
	"fmt"
	"net"
	"strings"
)

// Local source address the kernel would use to reach destination.
// No packets are sent.
func LocalAddressFor(destination string) (local net.IP, err error) {
	rawIP := strings.TrimSuffix(strings.TrimPrefix(destination, "["), "]")

	destAddr := net.ParseIP(rawIP)
	if destAddr == nil {
		err = fmt.Errorf("invalid destination address: %s", destination)
		return
	}

	conn, err := net.DialUDP("udp", nil, &net.UDPAddr{IP: destAddr, Port: 9})
	if err != nil {
		err = fmt.Errorf("failed to find route to %s: %w", destination, err)
		return
	}
	defer conn.Close()

	local = conn.LocalAddr().(*net.UDPAddr).IP
	return
}
