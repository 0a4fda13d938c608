package logctx

import (
	"fmt"
	"io"
	"mibridge/internal/global"
	"strings"
	"time"
)

const (
	dedupWindow      = 5 * time.Second
	minRepeats       = 10
	suppressCooldown = 1 * time.Minute
)

// Starts a go routine that reads events and writes formatted output to io.Writer.
// Stops when logger.Done is closed and the queue is drained.
func StartWatcher(logger *Logger, output io.Writer) {
	logger.wg.Add(1)

	go func() {
		defer logger.wg.Done()

		var dedup dedupState
		for {
			event, ok := logger.next()
			if !ok {
				return
			}

			now := time.Now()
			if dedup.repeated(event, now) {
				if dedup.repeatCount >= minRepeats && now.Sub(dedup.lastSuppressTime) >= suppressCooldown {
					fmt.Fprintf(output,
						"[%s] [%s] [%s] Suppressed %d repeated messages: %s\n",
						padTimestamp(event.Timestamp),
						strings.Join(event.Tags, "/"),
						global.InfoLog,
						dedup.repeatCount,
						strings.TrimSuffix(dedup.lastMsg, "\n"))

					dedup.lastSuppressTime = now
					dedup.repeatCount = 0
				}
				continue
			}

			fmt.Fprintf(output, "%s", event.Format())
		}
	}()
}

// Blocks until an event is queued. Returns false once done and empty.
func (logger *Logger) next() (event Event, ok bool) {
	logger.mutex.Lock()
	defer logger.mutex.Unlock()

	for len(logger.queue) == 0 {
		select {
		case <-logger.Done:
			return
		default:
			logger.cond.Wait()
		}
	}

	event = logger.queue[0]
	logger.queue = logger.queue[1:]
	ok = true
	return
}

// Duplicate events older than the window are not considered duplicates
func (dedup *dedupState) repeated(event Event, now time.Time) (skip bool) {
	if event.Message != "" && event.Message == dedup.lastMsg && now.Sub(event.Timestamp) <= dedupWindow {
		dedup.repeatCount++
		skip = true
		return
	}
	dedup.lastMsg = event.Message
	dedup.repeatCount = 1
	return
}
