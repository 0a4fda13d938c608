package pushserver

import (
	"mibridge/internal/metrics"
	"time"
)

func (server *Server) CollectMetrics(interval time.Duration) (collection []metrics.Metric) {
	// Read and clear
	busyNs := server.Metrics.BusyNs.Swap(0)
	hellos := server.Metrics.Hellos.Swap(0)
	deviceMsgs := server.Metrics.DeviceMessages.Swap(0)
	clientReqs := server.Metrics.ClientRequests.Swap(0)
	callbacks := server.Metrics.Callbacks.Swap(0)
	failures := server.Metrics.Failures.Swap(0)

	server.mutex.Lock()
	devices := uint64(len(server.devices))
	server.mutex.Unlock()

	recordTime := time.Now()

	counter := func(name string, description string, raw uint64, unit string) metrics.Metric {
		return metrics.Metric{
			Name:        name,
			Description: description,
			Namespace:   server.Namespace,
			Value: metrics.MetricValue{
				Raw:      raw,
				Unit:     unit,
				Interval: interval,
			},
			Type:      metrics.Counter,
			Timestamp: recordTime,
		}
	}

	collection = []metrics.Metric{
		counter("busy_time_ns", "Time spent handling datagrams in the interval", busyNs, "ns"),
		counter("hellos_total", "Hello probes answered in the interval", hellos, "count"),
		counter("device_messages_total", "Commands received from registered devices", deviceMsgs, "count"),
		counter("client_requests_total", "Commands received from unregistered peers", clientReqs, "count"),
		counter("callbacks_total", "Event callbacks invoked", callbacks, "count"),
		counter("failures_total", "Datagrams dropped as undecodable or unexpected", failures, "count"),
		{
			Name:        "registered_devices",
			Description: "Devices currently registered",
			Namespace:   server.Namespace,
			Value: metrics.MetricValue{
				Raw:      devices,
				Unit:     "count",
				Interval: interval,
			},
			Type:      metrics.Gauge,
			Timestamp: recordTime,
		},
	}
	return
}
