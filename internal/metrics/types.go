package metrics

import (
	"sync"
	"time"
)

type Registry struct {
	mu      sync.RWMutex
	metrics map[time.Time]map[string]map[string]Metric // key0=timestamp, key1=namespace, key2=name
}

// Anything that reports its counters on each polling interval
type Collector interface {
	CollectMetrics(interval time.Duration) []Metric
}

type MetricType string

const (
	Counter MetricType = "counter" // always increasing
	Gauge   MetricType = "gauge"   // can go up/down
	Summary MetricType = "summary" // avg/min/max
)

// Container for a metric and associated data
type Metric struct {
	Name        string // e.g. callbacks, busy_time
	Description string
	Namespace   []string // e.g. "PushServer/Listener"
	Value       MetricValue
	Type        MetricType
	Timestamp   time.Time // time when the metric was recorded
}

// Specific value of a metric
type MetricValue struct {
	Raw      any           // uint64, float64
	Unit     string        // e.g., "ns", "bytes", "count"
	Interval time.Duration // measurement window
}

// JSON version served by the query server
type JMetric struct {
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Namespace   string       `json:"namespace"`
	Value       JMetricValue `json:"value"`
	Type        string       `json:"type"`
	Timestamp   string       `json:"timestamp,omitempty"` // Empty for discovery results
}

type JMetricValue struct {
	Raw      any    `json:"raw,omitempty"`
	Unit     string `json:"unit"`
	Interval string `json:"interval,omitempty"`
}
