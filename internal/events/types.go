package events

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Event pushed by a registered device, as handed to sinks
type Event struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Device    string          `json:"device"` // Address of the device that pushed it
	SourceID  string          `json:"source"`
	Action    string          `json:"action"`
	Params    json.RawMessage `json:"params,omitempty"`
}

// Destination for dispatched events
type Sink interface {
	Name() string
	Write(ctx context.Context, event Event) (err error)
	Close() (err error)
}

// Bounded fan-out from the push server receive loop to sinks
type Dispatcher struct {
	Namespace []string
	queue     chan Event
	sinks     []Sink

	mutex  sync.RWMutex // guards closed against concurrent Push
	closed bool
	wg     sync.WaitGroup

	Metrics MetricStorage
}

type MetricStorage struct {
	Received   atomic.Uint64 // events accepted into the queue
	Dropped    atomic.Uint64 // events discarded because the queue was full
	Delivered  atomic.Uint64 // successful sink writes
	SinkErrors atomic.Uint64 // failed sink writes
}
