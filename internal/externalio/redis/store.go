package redis

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"

	goredis "github.com/redis/go-redis/v9"
)

func (module *Module) LoadRequestID(ctx context.Context, device string) (id int, found bool, err error) {
	raw, err := module.client.HGet(ctx, requestIDKey(), device).Result()
	if errors.Is(err, goredis.Nil) {
		err = nil
		return
	}
	if err != nil {
		err = fmt.Errorf("failed to load request id for %s: %w", device, err)
		return
	}

	id, err = strconv.Atoi(raw)
	if err != nil {
		err = fmt.Errorf("invalid stored request id %q for %s: %w", raw, device, err)
		return
	}
	found = true
	return
}

func (module *Module) SaveRequestID(ctx context.Context, device string, id int) (err error) {
	err = module.client.HSet(ctx, requestIDKey(), device, id).Err()
	if err != nil {
		err = fmt.Errorf("failed to save request id for %s: %w", device, err)
	}
	return
}

func (module *Module) AddScene(ctx context.Context, device string, eventID string) (err error) {
	err = module.client.SAdd(ctx, scenesKey(device), eventID).Err()
	if err != nil {
		err = fmt.Errorf("failed to record scene %s: %w", eventID, err)
	}
	return
}

func (module *Module) RemoveScene(ctx context.Context, device string, eventID string) (err error) {
	err = module.client.SRem(ctx, scenesKey(device), eventID).Err()
	if err != nil {
		err = fmt.Errorf("failed to remove scene %s: %w", eventID, err)
	}
	return
}

// Scenes recorded for a device, sorted
func (module *Module) Scenes(ctx context.Context, device string) (eventIDs []string, err error) {
	eventIDs, err = module.client.SMembers(ctx, scenesKey(device)).Result()
	if err != nil {
		err = fmt.Errorf("failed to list scenes for %s: %w", device, err)
		return
	}
	slices.Sort(eventIDs)
	return
}
