// Daemon bridging events pushed by registered devices to the configured sinks
package bridge

import (
	"context"
	"fmt"
	"mibridge/internal/events"
	"mibridge/internal/externalio/beats"
	"mibridge/internal/externalio/redis"
	"mibridge/internal/externalio/server"
	"mibridge/internal/global"
	"mibridge/internal/logctx"
	"mibridge/internal/metrics"
	"mibridge/internal/pushserver"
	"mibridge/internal/store"
	"os"
	"time"
)

// Create new bridge daemon instance
func NewDaemon(cfg Config) (new *Daemon) {
	ctx, cancel := context.WithCancel(context.Background())
	new = &Daemon{
		cfg:     cfg,
		ctx:     ctx,
		cancel:  cancel,
		devices: make(map[string]DeviceSpec),
	}
	return
}

// Starts sinks, the push server and device subscriptions in background.
// Gracefully shuts down if a startup error is encountered.
func (daemon *Daemon) Start(globalCtx context.Context) (err error) {
	// New context for the daemon
	daemon.ctx, daemon.cancel = context.WithCancel(context.Background())
	daemon.ctx = context.WithValue(daemon.ctx, global.LoggerKey, logctx.GetLogger(globalCtx))

	// Top level tag for daemon logs
	daemon.ctx = logctx.AppendCtxTag(daemon.ctx, global.NSBridge)

	logctx.LogEvent(daemon.ctx, global.VerbosityStandard, global.InfoLog, "Starting...\n")

	daemon.cfg.setDefaults()

	global.Hostname, err = os.Hostname()
	if err != nil {
		err = fmt.Errorf("failed to determine local hostname: %w", err)
		return
	}
	global.PID = os.Getpid()

	// Persistence, redis doubles as a sink when a channel is set
	var sinks []events.Sink
	redisMod, err := redis.New(daemon.ctx, daemon.cfg.RedisAddress, daemon.cfg.RedisDB, daemon.cfg.RedisChannel)
	if err != nil {
		return
	}
	if redisMod != nil {
		daemon.Store = redisMod
		sinks = append(sinks, redisMod)
	} else {
		daemon.Store = store.NewMemory()
	}

	// Sinks
	beatsMod, err := beats.NewOutput(daemon.cfg.BeatsEndpoint)
	if err != nil {
		daemon.Shutdown()
		return
	}
	if beatsMod != nil {
		sinks = append(sinks, beatsMod)
	}
	if daemon.cfg.Stdout {
		output := daemon.cfg.Output
		if output == nil {
			output = os.Stdout
		}
		sinks = append(sinks, events.NewWriterSink(output))
	}
	if daemon.cfg.MetricQueryServerEnabled {
		daemon.Hub = server.NewHub([]string{global.NSBridge})
		sinks = append(sinks, daemon.Hub)
	}

	queueSize := events.QueueSize(daemon.cfg.QueueSize)
	daemon.Dispatcher = events.New([]string{global.NSBridge}, queueSize, sinks...)
	daemon.Dispatcher.Start(daemon.ctx)
	logctx.LogEvent(daemon.ctx, global.VerbosityProgress, global.InfoLog,
		"event queue holds %d events across %d sinks\n", queueSize, len(sinks))

	// Push server
	daemon.PushServer, err = pushserver.New([]string{global.NSBridge}, pushserver.Config{
		Address:      daemon.cfg.ListenIP,
		Port:         daemon.cfg.ListenPort,
		DeviceID:     daemon.cfg.DeviceID,
		Model:        daemon.cfg.Model,
		Token:        daemon.cfg.Token,
		SourcePrefix: daemon.cfg.SourcePrefix,
		KernelFilter: daemon.cfg.KernelFilter,
		Scenes:       daemon.Store,
		NewSession:   daemon.newSession,
	})
	if err != nil {
		err = fmt.Errorf("failed creating push server: %w", err)
		daemon.Shutdown()
		return
	}
	err = daemon.PushServer.Start(daemon.ctx)
	if err != nil {
		err = fmt.Errorf("failed starting push server: %w", err)
		daemon.Shutdown()
		return
	}

	// Devices and their subscriptions
	daemon.syncDevices(daemon.ctx, daemon.cfg.Devices)

	// Metrics Collector
	if daemon.cfg.MetricsEnabled {
		daemon.gatherer = NewGatherer(daemon.cfg.MetricIntervals, daemon.cfg.MetricMaxAge,
			daemon.PushServer, daemon.Dispatcher)
		workerCtx := daemon.ctx
		daemon.wg.Add(1)
		go func() {
			defer daemon.wg.Done()
			daemon.gatherer.Run(workerCtx)
		}()
	}

	// Query Server
	if daemon.cfg.MetricQueryServerEnabled {
		// Top level tag for query server logs (copy so return doesn't strip ns tags)
		serverCtx := logctx.AppendCtxTag(daemon.ctx, global.NSMetricSrv)

		var search server.DataSearcher
		var discover server.Discoverer
		if daemon.gatherer != nil {
			search = daemon.gatherer.Registry.Search
			discover = daemon.gatherer.Registry.Discover
		}

		daemon.QueryServer = server.SetupListener(serverCtx,
			daemon.cfg.MetricQueryServerPort,
			search,
			discover,
			daemon.DeviceEvents,
			daemon.Hub)
		daemon.wg.Add(1)
		go func() {
			defer daemon.wg.Done()
			server.Start(serverCtx, daemon.QueryServer)
		}()
	}

	logctx.LogEvent(daemon.ctx, global.VerbosityStandard, global.InfoLog, "Startup complete.\n")
	return
}

// Blocking daemon waiter
func (daemon *Daemon) Run() {
	<-daemon.ctx.Done()
}

// Re-reads the config file and re-syncs the device list
func (daemon *Daemon) Reload(ctx context.Context) (err error) {
	if daemon.cfg.ConfigPath == "" {
		err = fmt.Errorf("no config file to reload from")
		return
	}

	jsonCfg, err := LoadConfig(daemon.cfg.ConfigPath)
	if err != nil {
		return
	}
	newCfg, err := NewDaemonConf(jsonCfg)
	if err != nil {
		return
	}
	newCfg.ConfigPath = daemon.cfg.ConfigPath
	newCfg.setDefaults()

	logctx.LogEvent(daemon.ctx, global.VerbosityStandard, global.InfoLog,
		"Reloading device list (%d devices)\n", len(newCfg.Devices))
	daemon.syncDevices(daemon.ctx, newCfg.Devices)
	daemon.cfg.Devices = newCfg.Devices
	return
}

// Gracefully stops the push server (removing installed scenes), drains sinks and
// stops background workers. Errors are printed to program log buffer.
func (daemon *Daemon) Shutdown() {
	logctx.LogEvent(daemon.ctx, global.VerbosityStandard, global.InfoLog, "Shutting down...\n")

	// Stop ingesting first so nothing new reaches the dispatcher
	if daemon.PushServer != nil {
		err := daemon.PushServer.Stop(daemon.ctx)
		if err != nil {
			logctx.LogEvent(daemon.ctx, global.VerbosityStandard, global.WarnLog, "%v\n", err)
		}
	}

	if daemon.QueryServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), global.HTTPWriteTimeout)
		err := daemon.QueryServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			logctx.LogEvent(daemon.ctx, global.VerbosityStandard, global.WarnLog, "query server shutdown: %v\n", err)
		}
	}

	// Delivers queued events, then closes every sink
	if daemon.Dispatcher != nil {
		err := daemon.Dispatcher.Shutdown(daemon.ctx)
		if err != nil {
			logctx.LogEvent(daemon.ctx, global.VerbosityStandard, global.WarnLog, "%v\n", err)
		}
	}

	if daemon.Store != nil {
		err := daemon.Store.Close()
		if err != nil {
			logctx.LogEvent(daemon.ctx, global.VerbosityStandard, global.WarnLog, "failed to close store: %v\n", err)
		}
	}

	// Stop the run loop after components are drained and stopped
	daemon.cancel()

	// Wait for all workers to finish (with timeout)
	done := make(chan struct{})
	go func() {
		daemon.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logctx.LogEvent(daemon.ctx, global.VerbosityStandard, global.InfoLog,
			"Daemon shutdown completed successfully\n")
	case <-time.After(global.ServeShutdownTimeout):
		logctx.LogEvent(daemon.ctx, global.VerbosityStandard, global.InfoLog,
			"Timeout: bridge daemon did not shutdown within %v seconds\n",
			global.ServeShutdownTimeout.Seconds())
	}
}

// Metric registry, nil when metrics are disabled
func (daemon *Daemon) Registry() *metrics.Registry {
	if daemon.gatherer == nil {
		return nil
	}
	return daemon.gatherer.Registry
}
