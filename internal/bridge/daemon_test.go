package bridge

import (
	"bytes"
	"context"
	"mibridge/internal/crypto"
	"mibridge/internal/global"
	"mibridge/internal/scene"
	"mibridge/pkg/protocol"
	"net"
	"strings"
	"sync"
	"testing"
	"time"
)

var gatewayToken = crypto.Token([]byte("0123456789abcdef"))

// Loopback gateway that accepts every command and can push events
type fakeGateway struct {
	t       *testing.T
	conn    *net.UDPConn
	mutex   sync.Mutex
	methods []string
	acks    chan protocol.Response
	wg      sync.WaitGroup
}

func newFakeGateway(t *testing.T) (gateway *fakeGateway) {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("failed to open gateway socket: %v", err)
	}
	gateway = &fakeGateway{t: t, conn: conn, acks: make(chan protocol.Response, 8)}
	gateway.wg.Add(1)
	go gateway.serve()
	t.Cleanup(func() {
		conn.Close()
		gateway.wg.Wait()
	})
	return
}

func (gateway *fakeGateway) port() int {
	return gateway.conn.LocalAddr().(*net.UDPAddr).Port
}

func (gateway *fakeGateway) serve() {
	defer gateway.wg.Done()
	buffer := make([]byte, global.MaxDatagramSize)
	for {
		n, remote, err := gateway.conn.ReadFromUDP(buffer)
		if err != nil {
			return
		}
		data := buffer[:n]

		if protocol.IsHelloProbe(data) {
			gateway.conn.WriteToUDP(protocol.HelloAck(0x0A0B0C0D, 500), remote)
			continue
		}

		packet, err := protocol.Unpack(context.Background(), data, gatewayToken)
		if err != nil {
			continue
		}
		signed, ok := packet.(*protocol.Signed)
		if !ok {
			continue
		}

		var command protocol.RawCommand
		if signed.Payload.Unmarshal(&command) != nil {
			continue
		}
		if command.Method == nil {
			// Acknowledgement of a pushed event
			var response protocol.Response
			if signed.Payload.Unmarshal(&response) == nil {
				gateway.acks <- response
			}
			continue
		}

		gateway.mutex.Lock()
		gateway.methods = append(gateway.methods, *command.Method)
		gateway.mutex.Unlock()

		response, _ := protocol.NewResult(command.ID, protocol.OKResult)
		reply, err := protocol.Pack(protocol.Header{DeviceID: 0x0A0B0C0D, Stamp: 501}, gatewayToken, response)
		if err != nil {
			continue
		}
		gateway.conn.WriteToUDP(reply, remote)
	}
}

func (gateway *fakeGateway) push(t *testing.T, serverPort int, method string) {
	t.Helper()
	packet, err := protocol.Pack(protocol.Header{DeviceID: 0x0A0B0C0D, Stamp: 600}, gatewayToken,
		protocol.Command{ID: 77, Method: method, Params: []any{}})
	if err != nil {
		t.Fatalf("failed to pack event: %v", err)
	}
	_, err = gateway.conn.WriteToUDP(packet, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: serverPort})
	if err != nil {
		t.Fatalf("failed to push event: %v", err)
	}
}

func (gateway *fakeGateway) seen() (methods []string) {
	gateway.mutex.Lock()
	defer gateway.mutex.Unlock()
	methods = append(methods, gateway.methods...)
	return
}

func freeUDPPort(t *testing.T) int {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("failed to reserve port: %v", err)
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).Port
}

// Buffer shared between the dispatcher goroutine and the test
type syncBuffer struct {
	mutex  sync.Mutex
	buffer bytes.Buffer
}

func (buf *syncBuffer) Write(p []byte) (int, error) {
	buf.mutex.Lock()
	defer buf.mutex.Unlock()
	return buf.buffer.Write(p)
}

func (buf *syncBuffer) String() string {
	buf.mutex.Lock()
	defer buf.mutex.Unlock()
	return buf.buffer.String()
}

func TestDaemonBridgesEvents(t *testing.T) {
	gateway := newFakeGateway(t)
	serverPort := freeUDPPort(t)
	output := &syncBuffer{}

	daemon := NewDaemon(Config{
		ListenIP:   "127.0.0.1",
		ListenPort: serverPort,
		Devices: []DeviceSpec{
			{
				Address: "127.0.0.1",
				Port:    gateway.port(),
				Token:   gatewayToken,
				Timeout: time.Second,
				Retries: 1,
				Events: []scene.EventInfo{
					{Action: "motion", SourceID: "lumi.158d000a1b2c3d", SourceModel: "lumi.sensor_motion.v2", Event: "motion"},
				},
			},
		},
		Stdout:         true,
		Output:         output,
		QueueSize:      8,
		MetricsEnabled: true,
	})

	err := daemon.Start(context.Background())
	if err != nil {
		t.Fatalf("unexpected error starting daemon: %v", err)
	}

	devices := daemon.DeviceEvents()
	if ids := devices["127.0.0.1"]; len(ids) != 1 || !strings.HasPrefix(ids[0], scene.EventIDPrefix) {
		daemon.Shutdown()
		t.Fatalf("expected one installed scene, got %v", devices)
	}
	stored, _ := daemon.Store.Scenes(context.Background(), "127.0.0.1")
	if len(stored) != 1 {
		daemon.Shutdown()
		t.Fatalf("expected scene to be persisted, got %v", stored)
	}

	gateway.push(t, serverPort, global.DefaultServerModel+".motion:lumi_158d000a1b2c3d")
	select {
	case ack := <-gateway.acks:
		if ack.ID != 77 || !protocol.IsOK(ack.Result) {
			t.Fatalf("unexpected acknowledgement %+v", ack)
		}
	case <-time.After(3 * time.Second):
		daemon.Shutdown()
		t.Fatalf("event was not acknowledged")
	}

	daemon.Shutdown()

	line := output.String()
	if !strings.Contains(line, `"source":"lumi.158d000a1b2c3d"`) || !strings.Contains(line, `"action":"motion"`) {
		t.Fatalf("event not delivered to sink: %q", line)
	}

	methods := gateway.seen()
	if len(methods) != 2 || methods[0] != "send_data_frame" || methods[1] != "miIO.xdel" {
		t.Fatalf("expected subscribe then cleanup, got %v", methods)
	}
	if len(daemon.PushServer.Devices()) != 0 {
		t.Fatalf("devices left registered after shutdown")
	}
}

func TestDaemonStartFailsOnBusyPort(t *testing.T) {
	// Without port reuse flags this socket blocks the push server from binding
	blocker, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("failed to open blocker: %v", err)
	}
	defer blocker.Close()

	daemon := NewDaemon(Config{
		ListenIP:   "127.0.0.1",
		ListenPort: blocker.LocalAddr().(*net.UDPAddr).Port,
	})
	err = daemon.Start(context.Background())
	if err == nil {
		daemon.Shutdown()
		t.Fatalf("expected bind failure")
	}
}
