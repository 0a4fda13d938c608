package bridge

import (
	"context"
	"io"
	"mibridge/internal/crypto"
	"mibridge/internal/events"
	"mibridge/internal/externalio/server"
	"mibridge/internal/pushserver"
	"mibridge/internal/scene"
	"mibridge/internal/store"
	"net/http"
	"sync"
	"time"
)

type Config struct {
	ConfigPath string // Re-read on reload, empty disables reload

	// Push server identity
	ListenIP     string
	ListenPort   int
	DeviceID     uint32
	Model        string
	Token        crypto.Token
	SourcePrefix string
	KernelFilter bool

	Devices []DeviceSpec

	// Sinks
	BeatsEndpoint string
	RedisAddress  string
	RedisDB       int
	RedisChannel  string
	Stdout        bool
	Output        io.Writer // Stdout sink destination, os.Stdout when nil
	QueueSize     int       // 0 sizes from free memory

	// Metrics
	MetricsEnabled           bool
	MetricIntervals          []time.Duration
	MetricMaxAge             time.Duration
	MetricQueryServerEnabled bool
	MetricQueryServerPort    int
}

// Device whose events are bridged
type DeviceSpec struct {
	Address string
	Port    int
	Token   crypto.Token
	Timeout time.Duration
	Retries int
	Events  []scene.EventInfo
}

type Daemon struct {
	cfg    Config
	ctx    context.Context
	cancel context.CancelFunc

	wg sync.WaitGroup

	mutex   sync.Mutex // protects devices
	devices map[string]DeviceSpec

	Store       store.Store
	PushServer  *pushserver.Server
	Dispatcher  *events.Dispatcher
	Hub         *server.Hub
	gatherer    *Gatherer
	QueryServer *http.Server
}
