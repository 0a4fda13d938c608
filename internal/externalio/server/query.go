package server

import (
	"context"
	"fmt"
	"mibridge/internal/global"
	"mibridge/internal/metrics"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const defaultDataWindow = time.Minute

// Trailing path below prefix as a namespace, nil when empty
func namespaceFromPath(path string, prefix string) (namespace []string) {
	raw := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if raw == "" {
		return
	}
	namespace = strings.Split(raw, "/")
	return
}

// Accepts RFC3339 or a signed duration relative to now ("-5m").
// Relative times may not point into the future.
func parseQueryTime(raw string, now time.Time) (parsed time.Time, err error) {
	if raw[0] == '-' || raw[0] == '+' {
		var offset time.Duration
		offset, err = time.ParseDuration(raw)
		if err != nil {
			err = fmt.Errorf("invalid relative time %q: %w", raw, err)
			return
		}
		if offset > 0 {
			err = fmt.Errorf("relative time %q is in the future", raw)
			return
		}
		parsed = now.Add(offset)
		return
	}

	parsed, err = time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		err = fmt.Errorf("invalid time %q: %w", raw, err)
	}
	return
}

func parseMetricType(raw string) (metricType metrics.MetricType, err error) {
	switch metrics.MetricType(strings.ToLower(raw)) {
	case "":
	case metrics.Counter:
		metricType = metrics.Counter
	case metrics.Gauge:
		metricType = metrics.Gauge
	case metrics.Summary:
		metricType = metrics.Summary
	default:
		err = fmt.Errorf("unknown metric type %q", raw)
	}
	return
}

// Builds a registry query from /data/<namespace>?name=&starttime=&endtime=&latest=
func parseDataQuery(clientRequest *http.Request, now time.Time) (query metrics.Query, err error) {
	query.Namespace = namespaceFromPath(clientRequest.URL.Path, global.DataPath)
	query.Name = clientRequest.FormValue("name")

	query.Start = now.Add(-defaultDataWindow)
	if raw := clientRequest.FormValue("starttime"); raw != "" {
		query.Start, err = parseQueryTime(raw, now)
		if err != nil {
			return
		}
	}

	query.End = now
	if raw := clientRequest.FormValue("endtime"); raw != "" && raw != "now" {
		query.End, err = parseQueryTime(raw, now)
		if err != nil {
			return
		}
	}
	if query.End.Before(query.Start) {
		err = fmt.Errorf("end time is before start time")
		return
	}

	if raw := clientRequest.FormValue("latest"); raw != "" {
		query.Latest, err = strconv.ParseBool(raw)
		if err != nil {
			err = fmt.Errorf("invalid latest flag %q", raw)
			return
		}
	}
	return
}

// Builds a registry query from /discover/<namespace>?name=&description=&unit=&type=
func parseDiscoveryQuery(clientRequest *http.Request) (query metrics.Query, err error) {
	query.Namespace = namespaceFromPath(clientRequest.URL.Path, global.DiscoveryPath)
	query.Name = clientRequest.FormValue("name")
	query.Description = clientRequest.FormValue("description")
	query.Unit = clientRequest.FormValue("unit")
	query.Type, err = parseMetricType(clientRequest.FormValue("type"))
	return
}

// Handles metric search requests based on time for data
func handleData(baseCtx context.Context, search DataSearcher, serverResponder http.ResponseWriter, clientRequest *http.Request) {
	query, err := parseDataQuery(clientRequest, time.Now())
	if err != nil {
		jResp(baseCtx, serverResponder, http.StatusBadRequest, Jerror{Msg: err.Error()})
		return
	}
	respondMetrics(baseCtx, serverResponder, search(query))
}

// Handles metric search to discover metrics (returns no actual data, only one entry per series)
func handleDiscovery(baseCtx context.Context, discover Discoverer, serverResponder http.ResponseWriter, clientRequest *http.Request) {
	query, err := parseDiscoveryQuery(clientRequest)
	if err != nil {
		jResp(baseCtx, serverResponder, http.StatusBadRequest, Jerror{Msg: err.Error()})
		return
	}
	respondMetrics(baseCtx, serverResponder, discover(query))
}

func respondMetrics(baseCtx context.Context, serverResponder http.ResponseWriter, found []metrics.Metric) {
	if len(found) == 0 {
		jResp(baseCtx, serverResponder, http.StatusOK, Jerror{Msg: "Search returned no results"})
		return
	}
	jResp(baseCtx, serverResponder, http.StatusOK, metrics.ConvertAll(found))
}
