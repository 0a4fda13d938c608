// Redis backed persistence (request ids, installed scenes) and event publishing
package redis

import (
	"context"
	"fmt"
	"mibridge/internal/global"
	"sync"

	goredis "github.com/redis/go-redis/v9"
)

const keyPrefix = "mibridge:"

type Module struct {
	client    *goredis.Client
	channel   string // Pub/sub channel for events, publishing disabled when empty
	closeOnce sync.Once
	closeErr  error
}

// Connects and verifies the server is reachable. Returns nil nil if no address.
func New(ctx context.Context, address string, db int, channel string) (module *Module, err error) {
	if address == "" {
		return
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:        address,
		DB:          db,
		DialTimeout: global.SinkDialTimeout,
	})

	err = client.Ping(ctx).Err()
	if err != nil {
		client.Close()
		err = fmt.Errorf("failed connection to redis server %s: %w", address, err)
		return
	}

	module = &Module{
		client:  client,
		channel: channel,
	}
	return
}

func requestIDKey() string {
	return keyPrefix + "request_ids"
}

func scenesKey(device string) string {
	return keyPrefix + "scenes:" + device
}

func (module *Module) Name() string {
	return "redis"
}

// Safe to call from both the store and the sink owner
func (module *Module) Close() (err error) {
	if module == nil {
		return
	}
	module.closeOnce.Do(func() {
		module.closeErr = module.client.Close()
	})
	err = module.closeErr
	return
}
