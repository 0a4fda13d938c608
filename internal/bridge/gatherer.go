package bridge

import (
	"context"
	"mibridge/internal/global"
	"mibridge/internal/logctx"
	"mibridge/internal/metrics"
	"runtime/debug"
	"slices"
	"time"
)

// Gathers component metrics into the central registry on every polling interval
type Gatherer struct {
	Registry   *metrics.Registry
	Intervals  []time.Duration
	Retention  time.Duration
	collectors []metrics.Collector
}

func NewGatherer(intervals []time.Duration, maximumMetricAge time.Duration, collectors ...metrics.Collector) (new *Gatherer) {
	new = &Gatherer{
		Registry:   metrics.New(),
		Intervals:  intervals,
		Retention:  maximumMetricAge,
		collectors: collectors,
	}
	return
}

func (gatherer *Gatherer) Run(ctx context.Context) {
	ctx = logctx.AppendCtxTag(ctx, global.NSMetric)

	if len(gatherer.Intervals) == 0 {
		return
	}

	// Track last run times for each interval
	lastRun := make(map[time.Duration]time.Time)
	start := time.Now()
	for _, interval := range gatherer.Intervals {
		lastRun[interval] = start
	}

	// Use polling interval half of shortest record interval
	ticker := time.NewTicker(slices.Min(gatherer.Intervals) / 2)
	defer ticker.Stop()

	// Counter to track how many ticks have passed (for retention)
	var tickCount int

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, interval := range gatherer.Intervals {
				if now.Sub(lastRun[interval]) < interval {
					continue
				}
				lastRun[interval] = now
				gatherer.runIntervalTasks(ctx, now, interval)
			}

			// Conduct old metric evaluations and cleanup
			tickCount++
			if tickCount >= 30 {
				gatherer.Registry.Prune(now, gatherer.Retention)
				tickCount = 0
			}
		}
	}
}

// Collects every component once for the interval
func (gatherer *Gatherer) runIntervalTasks(ctx context.Context, now time.Time, interval time.Duration) {
	// Record panics and continue on next interval
	defer func() {
		if fatalError := recover(); fatalError != nil {
			stack := debug.Stack()
			logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog,
				"panic in metric collector thread: %v\n%s", fatalError, stack)
		}
	}()

	gatherer.Registry.Collect(now, interval, gatherer.collectors...)
}
