package device

import (
	"bytes"
	"context"
	"fmt"
	"mibridge/internal/crypto"
	"mibridge/internal/global"
	"mibridge/internal/logctx"
	"mibridge/pkg/protocol"
	"net"
	"strconv"
	"time"
)

// Broadcasts the hello probe and collects acknowledgements until timeout.
// Target may omit the port.
func Discover(ctx context.Context, target string, timeout time.Duration) (found []Discovered, err error) {
	ctx = logctx.AppendCtxTag(ctx, global.NSDevice)

	if _, _, splitErr := net.SplitHostPort(target); splitErr != nil {
		target = net.JoinHostPort(target, strconv.Itoa(global.DevicePort))
	}
	address, err := net.ResolveUDPAddr("udp4", target)
	if err != nil {
		err = fmt.Errorf("failed to resolve discovery target %q: %w", target, err)
		return
	}

	conn, err := net.ListenUDP("udp4", nil)
	if err != nil {
		err = fmt.Errorf("failed to open discovery socket: %w", err)
		return
	}
	defer conn.Close()

	_, err = conn.WriteToUDP(protocol.HelloProbe(), address)
	if err != nil {
		err = fmt.Errorf("failed to send discovery probe: %w", err)
		return
	}

	err = conn.SetReadDeadline(readDeadline(ctx, timeout))
	if err != nil {
		return
	}

	seen := make(map[string]bool)
	buf := make([]byte, global.MaxDatagramSize)
	for {
		n, peer, readErr := conn.ReadFromUDP(buf)
		if readErr != nil {
			if !isTimeout(readErr) {
				err = fmt.Errorf("discovery read failed: %w", readErr)
			}
			return
		}

		header, parseErr := protocol.ParseHeader(buf[:n])
		if parseErr != nil || !protocol.IsHello(int(header.Length)) || n < protocol.HelloLen || protocol.IsHelloProbe(buf[:n]) {
			continue
		}

		ip := peer.IP.String()
		if seen[ip] {
			continue
		}
		seen[ip] = true

		entry := Discovered{
			Address:  ip,
			DeviceID: header.DeviceID,
			Stamp:    header.Stamp,
		}

		// Unprovisioned devices answer with their token in the checksum field
		checksum := buf[protocol.HeaderLen:protocol.HelloLen]
		if !bytes.Equal(checksum, make([]byte, protocol.ChecksumLen)) && !bytes.Equal(checksum, bytes.Repeat([]byte{0xFF}, protocol.ChecksumLen)) {
			entry.Token = crypto.Token(bytes.Clone(checksum))
		}

		logctx.LogEvent(ctx, global.VerbosityProgress, global.InfoLog,
			"discovered device %d at %s\n", entry.DeviceID, ip)
		found = append(found, entry)
	}
}
