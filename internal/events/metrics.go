package events

import (
	"mibridge/internal/metrics"
	"time"
)

func (dispatcher *Dispatcher) CollectMetrics(interval time.Duration) (collection []metrics.Metric) {
	// Read and clear
	received := dispatcher.Metrics.Received.Swap(0)
	dropped := dispatcher.Metrics.Dropped.Swap(0)
	delivered := dispatcher.Metrics.Delivered.Swap(0)
	sinkErrors := dispatcher.Metrics.SinkErrors.Swap(0)
	depth := uint64(dispatcher.Depth())

	recordTime := time.Now()

	collection = []metrics.Metric{
		{
			Name:        "received_events",
			Description: "Events accepted into the dispatch queue",
			Namespace:   dispatcher.Namespace,
			Value:       metrics.MetricValue{Raw: received, Unit: "count", Interval: interval},
			Type:        metrics.Counter,
			Timestamp:   recordTime,
		},
		{
			Name:        "dropped_events",
			Description: "Events discarded because the queue was full",
			Namespace:   dispatcher.Namespace,
			Value:       metrics.MetricValue{Raw: dropped, Unit: "count", Interval: interval},
			Type:        metrics.Counter,
			Timestamp:   recordTime,
		},
		{
			Name:        "delivered_events",
			Description: "Successful writes across all sinks",
			Namespace:   dispatcher.Namespace,
			Value:       metrics.MetricValue{Raw: delivered, Unit: "count", Interval: interval},
			Type:        metrics.Counter,
			Timestamp:   recordTime,
		},
		{
			Name:        "sink_errors",
			Description: "Failed writes across all sinks",
			Namespace:   dispatcher.Namespace,
			Value:       metrics.MetricValue{Raw: sinkErrors, Unit: "count", Interval: interval},
			Type:        metrics.Counter,
			Timestamp:   recordTime,
		},
		{
			Name:        "queue_depth",
			Description: "Events waiting for delivery",
			Namespace:   dispatcher.Namespace,
			Value:       metrics.MetricValue{Raw: depth, Unit: "count", Interval: interval},
			Type:        metrics.Gauge,
			Timestamp:   recordTime,
		},
	}
	return
}
