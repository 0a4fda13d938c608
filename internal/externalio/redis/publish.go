package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"mibridge/internal/events"
)

// Publishes the event as JSON on the configured channel
func (module *Module) Write(ctx context.Context, event events.Event) (err error) {
	if module == nil || module.channel == "" {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		err = fmt.Errorf("failed to serialize event: %w", err)
		return
	}

	err = module.client.Publish(ctx, module.channel, payload).Err()
	if err != nil {
		err = fmt.Errorf("failed to publish to %s: %w", module.channel, err)
	}
	return
}
