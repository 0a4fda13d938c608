package beats

import (
	"context"
	"fmt"
	"mibridge/internal/events"
	"mibridge/internal/global"
	"os"
)

// Beats document for one event
func Fields(event events.Event) (fields map[string]interface{}) {
	fields = map[string]interface{}{
		// Minimum required fields
		"@timestamp": event.Timestamp,
		"message":    fmt.Sprintf("%s %s", event.SourceID, event.Action),

		"event": map[string]interface{}{
			"id":     event.ID,
			"action": event.Action,
			"kind":   "event",
		},
		"observer": map[string]interface{}{
			"ip": event.Device,
		},
		"source": map[string]interface{}{
			"id": event.SourceID,
		},
		"agent": map[string]interface{}{
			"name":    global.Hostname,
			"program": global.ProgBaseName,
			"version": global.ProgVersion,
			"type":    "filebeat",
			"pid":     os.Getpid(),
		},
	}
	if len(event.Params) > 0 {
		fields["miio"] = map[string]interface{}{
			"params": string(event.Params),
		}
	}
	return
}

// Writes event to configured beats server
func (mod *OutModule) Write(ctx context.Context, event events.Event) (err error) {
	if mod == nil {
		return
	}

	sent, err := mod.sink.Send([]interface{}{Fields(event)})
	if err != nil {
		err = fmt.Errorf("failed sending to %s: %w", mod.endpoint, err)
		return
	}
	if sent != 1 {
		err = fmt.Errorf("beats server %s acknowledged %d of 1 events", mod.endpoint, sent)
	}
	return
}
