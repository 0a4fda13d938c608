package logctx

import (
	"mibridge/internal/global"
	"time"
)

// Queues the event unless it is above the print level. Errors always pass.
func (logger *Logger) log(eventLevel int, eventSeverity string, tags []string, peer string, fullMessage string) {
	event := Event{
		Timestamp: time.Now(),
		Tags:      tags,
		Peer:      peer,
		Severity:  eventSeverity,
		Message:   fullMessage,
	}

	logger.mutex.Lock()
	defer logger.mutex.Unlock()

	if eventLevel > logger.PrintLevel && eventSeverity != global.ErrorLog {
		return
	}
	logger.queue = append(logger.queue, event)
	logger.cond.Signal() // Notify watcher that new event is available
}
