package device

import (
	"context"
	"encoding/json"
	"mibridge/internal/crypto"
	"mibridge/pkg/protocol"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

var testToken = crypto.Token([]byte("0123456789abcdef"))

const fakeDeviceID uint32 = 0x04A1B2C3

// Reply produced by a fake device handler
type fakeReply struct {
	drop   bool   // Do not answer
	result any    // Sent as {"id":..,"result":..}
	err    *protocol.ResponseError
	raw    []byte // Encrypted verbatim instead of a JSON document
	before []any  // Extra documents sent first (stale replies)
}

// Loopback stand-in for a miIO device
type fakeDevice struct {
	t           *testing.T
	conn        *net.UDPConn
	ignoreHello atomic.Bool
	dropHellos  atomic.Int32 // Leading probes left unanswered
	handler     func(command protocol.RawCommand) fakeReply

	mutex    sync.Mutex
	hellos   int
	commands []protocol.RawCommand
	wg       sync.WaitGroup
}

func newFakeDevice(t *testing.T, handler func(command protocol.RawCommand) fakeReply) (fake *fakeDevice) {
	t.Helper()

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("failed to open fake device socket: %v", err)
	}

	fake = &fakeDevice{t: t, conn: conn, handler: handler}
	fake.wg.Add(1)
	go fake.serve()
	t.Cleanup(func() {
		conn.Close()
		fake.wg.Wait()
	})
	return
}

func (fake *fakeDevice) port() int {
	return fake.conn.LocalAddr().(*net.UDPAddr).Port
}

func (fake *fakeDevice) session(t *testing.T, timeout time.Duration, retries int) (session *Session) {
	t.Helper()
	session, err := New(context.Background(), Config{
		Address: "127.0.0.1",
		Port:    fake.port(),
		Token:   testToken,
		Timeout: timeout,
		Retries: retries,
	})
	if err != nil {
		t.Fatalf("unexpected error creating session: %v", err)
	}
	t.Cleanup(func() { session.Close(context.Background()) })
	return
}

func (fake *fakeDevice) snapshot() (hellos int, commands []protocol.RawCommand) {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()
	return fake.hellos, append([]protocol.RawCommand(nil), fake.commands...)
}

func (fake *fakeDevice) serve() {
	defer fake.wg.Done()

	buf := make([]byte, 4096)
	for {
		n, peer, err := fake.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		data := append([]byte(nil), buf[:n]...)

		if protocol.IsHelloProbe(data) {
			fake.mutex.Lock()
			fake.hellos++
			fake.mutex.Unlock()
			if !fake.ignoreHello.Load() && fake.dropHellos.Add(-1) < 0 {
				fake.conn.WriteToUDP(protocol.HelloAck(fakeDeviceID, 1000), peer)
			}
			continue
		}

		packet, err := protocol.Unpack(context.Background(), data, testToken)
		if err != nil {
			continue
		}
		signed, ok := packet.(*protocol.Signed)
		if !ok || !signed.ChecksumValid {
			continue
		}

		var command protocol.RawCommand
		if err := signed.Payload.Unmarshal(&command); err != nil {
			continue
		}

		fake.mutex.Lock()
		fake.commands = append(fake.commands, command)
		fake.mutex.Unlock()

		reply := fake.handler(command)
		if reply.drop {
			continue
		}

		header := protocol.Header{DeviceID: fakeDeviceID, Stamp: 1001}
		for _, document := range reply.before {
			out, _ := protocol.Pack(header, testToken, document)
			fake.conn.WriteToUDP(out, peer)
		}

		var out []byte
		switch {
		case reply.raw != nil:
			out = packRaw(fake.t, header, reply.raw)
		case reply.err != nil:
			out, _ = protocol.Pack(header, testToken, protocol.Response{ID: command.ID, Error: reply.err})
		default:
			result, _ := json.Marshal(reply.result)
			out, _ = protocol.Pack(header, testToken, protocol.Response{ID: command.ID, Result: result})
		}
		fake.conn.WriteToUDP(out, peer)
	}
}

// Frames already serialized plaintext, bypassing JSON encoding
func packRaw(t *testing.T, header protocol.Header, plaintext []byte) (packet []byte) {
	ciphertext, err := crypto.Encrypt(plaintext, testToken)
	if err != nil {
		t.Errorf("failed to encrypt raw reply: %v", err)
		return
	}
	header.Magic = protocol.Magic
	header.Length = uint16(protocol.HelloLen + len(ciphertext))
	headerBytes, _ := header.MarshalBinary()

	packet = append(packet, headerBytes...)
	packet = append(packet, protocol.Checksum(headerBytes, testToken, ciphertext)...)
	packet = append(packet, ciphertext...)
	return
}

func okReply(command protocol.RawCommand) fakeReply {
	return fakeReply{result: protocol.OKResult}
}
