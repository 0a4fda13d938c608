package metrics

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

type staticCollector []Metric

func (collector staticCollector) CollectMetrics(interval time.Duration) []Metric {
	return collector
}

func sample(name string, namespace []string, raw uint64, ts time.Time) Metric {
	return Metric{
		Name:      name,
		Namespace: namespace,
		Value:     MetricValue{Raw: raw, Unit: "count", Interval: time.Minute},
		Type:      Counter,
		Timestamp: ts,
	}
}

func TestCollectAndSearch(t *testing.T) {
	registry := New()
	base := time.Date(2026, 3, 1, 12, 0, 30, 0, time.UTC)

	push := staticCollector{
		sample("hello_requests", []string{"PushServer", "Listener"}, 3, base),
		sample("callbacks", []string{"PushServer", "Listener"}, 7, base),
	}
	events := staticCollector{
		sample("dropped", []string{"Events"}, 1, base),
	}

	slice := registry.Collect(base, time.Minute, push, events)
	if !slice.Equal(base.Truncate(time.Minute)) {
		t.Fatalf("expected slice truncated to interval, got %v", slice)
	}

	tests := []struct {
		name      string
		query     string
		namespace []string
		expect    int
	}{
		{name: "all", expect: 3},
		{name: "namespace prefix", namespace: []string{"PushServer"}, expect: 2},
		{name: "name filter", query: "callbacks", expect: 1},
		{name: "name and namespace", query: "dropped", namespace: []string{"PushServer"}, expect: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := registry.Search(Query{Name: tt.query, Namespace: tt.namespace})
			if len(results) != tt.expect {
				t.Fatalf("expected %d results, got %d", tt.expect, len(results))
			}
		})
	}

	window := registry.Search(Query{Start: base.Add(time.Minute)})
	if len(window) != 0 {
		t.Fatalf("expected start filter to exclude slice, got %d", len(window))
	}
}

func TestPrune(t *testing.T) {
	registry := New()
	old := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	recent := old.Add(2 * time.Hour)

	registry.Add(registry.NewTimeSlice(old, time.Minute), []Metric{sample("a", []string{"X"}, 1, old)})
	registry.Add(registry.NewTimeSlice(recent, time.Minute), []Metric{sample("a", []string{"X"}, 2, recent)})

	registry.Prune(recent, time.Hour)

	results := registry.Search(Query{Name: "a"})
	if len(results) != 1 || results[0].Value.Raw != uint64(2) {
		t.Fatalf("expected only recent metric, got %+v", results)
	}
}

func TestDiscover(t *testing.T) {
	registry := New()
	now := time.Now()
	for i := 0; i < 3; i++ {
		ts := now.Add(time.Duration(i) * time.Minute)
		registry.Add(registry.NewTimeSlice(ts, time.Minute), []Metric{
			sample("callbacks", []string{"PushServer", "Listener"}, uint64(i), ts),
			sample("dropped", []string{"Events"}, uint64(i), ts),
		})
	}

	found := registry.Discover(Query{})
	if len(found) != 2 {
		t.Fatalf("expected 2 distinct metrics, got %d", len(found))
	}
	if found[0].Name != "callbacks" || !found[0].Timestamp.IsZero() || found[0].Value.Raw != nil {
		t.Fatalf("unexpected discovery output %+v", found[0])
	}

	tests := []struct {
		name   string
		query  Query
		expect int
	}{
		{"Substring", Query{Name: "call"}, 1},
		{"Namespace", Query{Namespace: []string{"Events"}}, 1},
		{"Unit", Query{Unit: "ns"}, 0},
		{"Type", Query{Type: Counter}, 2},
		{"Gauge", Query{Type: Gauge}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := registry.Discover(tt.query)
			if len(got) != tt.expect {
				t.Fatalf("expected %d results, got %+v", tt.expect, got)
			}
		})
	}
}

func TestSearchLatest(t *testing.T) {
	registry := New()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		ts := base.Add(time.Duration(i) * time.Minute)
		registry.Add(registry.NewTimeSlice(ts, time.Minute), []Metric{
			sample("callbacks", []string{"PushServer", "Listener"}, uint64(i), ts),
		})
	}

	series := registry.Search(Query{Name: "callbacks"})
	if len(series) != 3 || series[0].Value.Raw != uint64(0) {
		t.Fatalf("expected full series oldest first, got %+v", series)
	}

	latest := registry.Search(Query{Name: "callbacks", Latest: true})
	if len(latest) != 1 || latest[0].Value.Raw != uint64(2) {
		t.Fatalf("expected newest value only, got %+v", latest)
	}
}

func TestConvert(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	out := sample("callbacks", []string{"PushServer", "Listener"}, 42, ts).Convert()
	if out.Namespace != "PushServer/Listener" || out.Value.Raw != uint64(42) || out.Value.Interval != "1m0s" || out.Type != "counter" {
		t.Fatalf("unexpected conversion %+v", out)
	}
	if out.Timestamp != "2026-03-01T12:00:00Z" {
		t.Fatalf("unexpected timestamp %s", out.Timestamp)
	}

	encoded, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(encoded), `"raw":42`) {
		t.Fatalf("expected numeric raw value, got %s", encoded)
	}

	discovered := Metric{Name: "callbacks", Namespace: []string{"PushServer"}, Type: Counter}.Convert()
	if discovered.Timestamp != "" || discovered.Value.Interval != "" {
		t.Fatalf("expected empty time fields for discovery output, got %+v", discovered)
	}
}
