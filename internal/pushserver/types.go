package pushserver

import (
	"context"
	"encoding/json"
	"errors"
	"mibridge/internal/crypto"
	"mibridge/internal/ebpf"
	"mibridge/internal/store"
	"mibridge/pkg/protocol"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrNotRegistered     = errors.New("device is not registered")
	ErrAlreadyRegistered = errors.New("device is already registered")
)

// Invoked synchronously from the receive loop, must return quickly
type Callback func(sourceID string, action string, params json.RawMessage)

// Handler for commands from unregistered peers
type MethodFunc func(command protocol.RawCommand) (result any, err error)

// Method table entry, either a constant result or a function
type Method struct {
	value any
	fn    MethodFunc
}

// Outbound command channel to a registered device
type Commander interface {
	Send(ctx context.Context, method string, params any) (result json.RawMessage, err error)
	Close(ctx context.Context) (err error)
}

// Opens a Commander for a newly registered device
type SessionFactory func(ctx context.Context, address string, token crypto.Token) (session Commander, err error)

type Config struct {
	Address      string // Listen address
	Port         int
	DeviceID     uint32 // Identity presented to peers
	Model        string
	Token        crypto.Token // Random when empty
	SourcePrefix string       // Prepended to source ids in the underscore method scheme
	KernelFilter bool
	Scenes       store.Scenes   // Optional subscription persistence
	NewSession   SessionFactory // Defaults to a device session
}

type registered struct {
	address  string
	token    crypto.Token
	callback Callback
	session  Commander
	events   []string
}

// Virtual miIO device receiving pushed events
type Server struct {
	Namespace []string
	cfg       Config
	startedAt time.Time

	conn    *net.UDPConn
	filter  *ebpf.Filter
	running atomic.Bool
	wg      sync.WaitGroup

	mutex   sync.Mutex // protects devices and methods
	devices map[string]*registered
	methods map[string]Method

	Metrics MetricStorage
}

type MetricStorage struct {
	BusyNs         atomic.Uint64 // sum of ns spent handling datagrams
	Hellos         atomic.Uint64 // hello probes answered
	DeviceMessages atomic.Uint64 // commands from registered devices
	ClientRequests atomic.Uint64 // commands from unregistered peers
	Callbacks      atomic.Uint64 // callbacks invoked
	Failures       atomic.Uint64 // datagrams that could not be handled
}
