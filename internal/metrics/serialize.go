package metrics

import (
	"strings"
	"time"
)

// Converts internal metric type to export (JSON) metric.
// Numeric values stay numbers, anything else is passed through as-is.
func (inMetric Metric) Convert() (outMetric JMetric) {
	outMetric = JMetric{
		Name:        inMetric.Name,
		Description: inMetric.Description,
		Namespace:   strings.Join(inMetric.Namespace, "/"),
		Type:        string(inMetric.Type),
		Value: JMetricValue{
			Raw:  inMetric.Value.Raw,
			Unit: inMetric.Value.Unit,
		},
	}
	if inMetric.Value.Interval > 0 {
		outMetric.Value.Interval = inMetric.Value.Interval.String()
	}
	if !inMetric.Timestamp.IsZero() {
		outMetric.Timestamp = inMetric.Timestamp.UTC().Format(time.RFC3339Nano)
	}
	return
}

func ConvertAll(inMetrics []Metric) (outMetrics []JMetric) {
	outMetrics = make([]JMetric, 0, len(inMetrics))
	for _, metric := range inMetrics {
		outMetrics = append(outMetrics, metric.Convert())
	}
	return
}
