package metrics

import (
	"slices"
	"sort"
	"strings"
	"time"
)

// Filters shared by data and discovery lookups. Zero fields match everything.
type Query struct {
	Name        string   // Exact match for data, substring for discovery
	Description string   // Substring, discovery only
	Namespace   []string // Prefix, e.g. ["PushServer"] matches PushServer/Listener
	Unit        string
	Type        MetricType
	Start       time.Time // Data only
	End         time.Time // Data only
	Latest      bool      // Data only: newest value of each metric instead of the full series
}

func (query Query) matchesNamespace(namespace []string) bool {
	if len(namespace) < len(query.Namespace) {
		return false
	}
	return slices.Equal(namespace[:len(query.Namespace)], query.Namespace)
}

func (query Query) matchesMetric(metric Metric, exactName bool) bool {
	if query.Name != "" {
		if exactName && metric.Name != query.Name {
			return false
		}
		if !exactName && !strings.Contains(metric.Name, query.Name) {
			return false
		}
	}
	if query.Description != "" && !strings.Contains(metric.Description, query.Description) {
		return false
	}
	if query.Unit != "" && metric.Value.Unit != query.Unit {
		return false
	}
	if query.Type != "" && metric.Type != query.Type {
		return false
	}
	return true
}

func (query Query) inWindow(timeSlice time.Time) bool {
	if !query.Start.IsZero() && timeSlice.Before(query.Start) {
		return false
	}
	if !query.End.IsZero() && timeSlice.After(query.End) {
		return false
	}
	return true
}

// Identifies one series regardless of time slice
func seriesKey(namespace string, metric Metric) string {
	return strings.Join([]string{namespace, metric.Name, string(metric.Type), metric.Value.Unit}, "|")
}

// Returns matching values oldest first. Within a slice, results are ordered by
// namespace then name.
func (registry *Registry) Search(query Query) (results []Metric) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	var timeSlices []time.Time
	for timeSlice := range registry.metrics {
		if query.inWindow(timeSlice) {
			timeSlices = append(timeSlices, timeSlice)
		}
	}
	sort.Slice(timeSlices, func(i, j int) bool {
		return timeSlices[i].Before(timeSlices[j])
	})

	latest := make(map[string]int) // series key -> index in results
	for _, timeSlice := range timeSlices {
		sliceStart := len(results)
		for namespace, byName := range registry.metrics[timeSlice] {
			if !query.matchesNamespace(strings.Split(namespace, "/")) {
				continue
			}
			for _, metric := range byName {
				if !query.matchesMetric(metric, true) {
					continue
				}
				if query.Latest {
					key := seriesKey(namespace, metric)
					if index, seen := latest[key]; seen {
						results[index] = metric
						continue
					}
					latest[key] = len(results)
				}
				results = append(results, metric)
			}
		}
		sortByIdentity(results[sliceStart:])
	}
	return
}

// Lists distinct metrics (no values or timestamps) across all retained slices
func (registry *Registry) Discover(query Query) (results []Metric) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	seen := make(map[string]bool)
	for _, byNamespace := range registry.metrics {
		for namespace, byName := range byNamespace {
			if !query.matchesNamespace(strings.Split(namespace, "/")) {
				continue
			}
			for _, metric := range byName {
				if !query.matchesMetric(metric, false) {
					continue
				}
				key := seriesKey(namespace, metric)
				if seen[key] {
					continue
				}
				seen[key] = true

				results = append(results, Metric{
					Name:        metric.Name,
					Description: metric.Description,
					Namespace:   metric.Namespace,
					Type:        metric.Type,
					Value:       MetricValue{Unit: metric.Value.Unit},
				})
			}
		}
	}

	sortByIdentity(results)
	return
}

func sortByIdentity(list []Metric) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Name != list[j].Name {
			return list[i].Name < list[j].Name
		}
		return strings.Join(list[i].Namespace, "/") < strings.Join(list[j].Namespace, "/")
	})
}
