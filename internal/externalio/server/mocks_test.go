package server

import "mibridge/internal/metrics"

// Records the last query so tests can check request parsing
type queryRecorder struct {
	last    metrics.Query
	calls   int
	results []metrics.Metric
}

func (recorder *queryRecorder) search(query metrics.Query) []metrics.Metric {
	recorder.last = query
	recorder.calls++
	return recorder.results
}

func mockDiscoverer(results []metrics.Metric) Discoverer {
	recorder := &queryRecorder{results: results}
	return recorder.search
}

func mockDataSearcher(results []metrics.Metric) DataSearcher {
	recorder := &queryRecorder{results: results}
	return recorder.search
}

func mockDeviceLister(devices map[string][]string) DeviceLister {
	return func() map[string][]string {
		return devices
	}
}
