// Moves device events out of the receive loop and delivers them to every sink
package events

import (
	"context"
	"encoding/json"
	"mibridge/internal/global"
	"mibridge/internal/logctx"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/pbnjay/memory"
)

// Rough in-memory footprint of a queued event
const estimatedEventSize = 1024

// Picks a queue capacity. A positive configured size wins, otherwise it is
// derived from free memory and clamped to the default bounds.
func QueueSize(configured int) (size int) {
	if configured > 0 {
		size = configured
		return
	}

	size = global.DefaultMinQueueSize
	availMem := memory.FreeMemory()
	if availMem == 0 {
		// Unknown on this platform
		return
	}

	// Never let the queue claim more than 1/1024 of free memory
	budget := availMem / 1024 / estimatedEventSize
	for size < global.DefaultMaxQueueSize && uint64(size*2) <= budget {
		size *= 2
	}
	return
}

func New(namespace []string, queueSize int, sinks ...Sink) (dispatcher *Dispatcher) {
	if queueSize <= 0 {
		queueSize = global.DefaultMinQueueSize
	}
	dispatcher = &Dispatcher{
		Namespace: append(namespace, global.NSEvents),
		queue:     make(chan Event, queueSize),
		sinks:     sinks,
	}
	return
}

// Builds and queues an event. Never blocks, a full queue drops the event.
func (dispatcher *Dispatcher) Publish(device string, sourceID string, action string, params json.RawMessage) (queued bool) {
	event := Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Device:    device,
		SourceID:  sourceID,
		Action:    action,
		Params:    append(json.RawMessage(nil), params...),
	}
	queued = dispatcher.Push(event)
	return
}

func (dispatcher *Dispatcher) Push(event Event) (queued bool) {
	dispatcher.mutex.RLock()
	defer dispatcher.mutex.RUnlock()

	if dispatcher.closed {
		dispatcher.Metrics.Dropped.Add(1)
		return
	}

	select {
	case dispatcher.queue <- event:
		dispatcher.Metrics.Received.Add(1)
		queued = true
	default:
		dispatcher.Metrics.Dropped.Add(1)
	}
	return
}

// Number of events waiting for delivery
func (dispatcher *Dispatcher) Depth() int {
	return len(dispatcher.queue)
}

// Starts the delivery worker
func (dispatcher *Dispatcher) Start(ctx context.Context) {
	ctx = logctx.OverwriteCtxTag(ctx, dispatcher.Namespace)

	dispatcher.wg.Add(1)
	go func() {
		defer dispatcher.wg.Done()
		dispatcher.run(ctx)
	}()
}

func (dispatcher *Dispatcher) run(ctx context.Context) {
	for event := range dispatcher.queue {
		dispatcher.deliver(ctx, event)
	}
}

// Writes one event to all sinks. Sink failures are logged and counted.
func (dispatcher *Dispatcher) deliver(ctx context.Context, event Event) {
	for _, sink := range dispatcher.sinks {
		func() {
			defer func() {
				if fatalError := recover(); fatalError != nil {
					dispatcher.Metrics.SinkErrors.Add(1)
					stack := debug.Stack()
					logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog,
						"panic in %s sink: %v\n%s", sink.Name(), fatalError, stack)
				}
			}()

			err := sink.Write(ctx, event)
			if err != nil {
				dispatcher.Metrics.SinkErrors.Add(1)
				logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog,
					"failed to write event %s to %s sink: %v\n", event.ID, sink.Name(), err)
				return
			}
			dispatcher.Metrics.Delivered.Add(1)
		}()
	}
}

// Stops accepting events, delivers what is queued, then closes every sink
func (dispatcher *Dispatcher) Shutdown(ctx context.Context) (err error) {
	ctx = logctx.OverwriteCtxTag(ctx, dispatcher.Namespace)

	dispatcher.mutex.Lock()
	if dispatcher.closed {
		dispatcher.mutex.Unlock()
		return
	}
	dispatcher.closed = true
	close(dispatcher.queue)
	dispatcher.mutex.Unlock()

	dispatcher.wg.Wait()

	for _, sink := range dispatcher.sinks {
		closeErr := sink.Close()
		if closeErr != nil {
			logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog,
				"failed to close %s sink: %v\n", sink.Name(), closeErr)
			if err == nil {
				err = closeErr
			}
		}
	}
	return
}
