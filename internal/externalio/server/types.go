package server

import (
	"context"
	"mibridge/internal/events"
	metricGlb "mibridge/internal/metrics"
	"sync"

	"github.com/gorilla/websocket"
)

type httpLogWriter struct {
	ctx context.Context
}

type Jerror struct {
	Msg string `json:"error"`
}

type DataSearcher func(query metricGlb.Query) []metricGlb.Metric
type Discoverer func(query metricGlb.Query) []metricGlb.Metric

// Registered device addresses mapped to their active event ids
type DeviceLister func() map[string][]string

// Websocket fan-out of live events
type Hub struct {
	Namespace []string
	upgrader  websocket.Upgrader

	mutex   sync.RWMutex
	clients map[*wsClient]struct{}
	closed  bool
}

type wsClient struct {
	conn      *websocket.Conn
	send      chan events.Event
	source    string // Only forward events from this source id when set
	action    string // Only forward this action when set
	closeOnce sync.Once
	done      chan struct{}
}
