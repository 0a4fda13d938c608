package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"mibridge/internal/crypto"
	"mibridge/internal/device"
	"mibridge/internal/global"
	"mibridge/internal/logctx"
	"mibridge/internal/pushserver"
	"reflect"
)

// Opens the outbound session for a registered device using its configured transport settings
func (daemon *Daemon) newSession(ctx context.Context, address string, token crypto.Token) (session pushserver.Commander, err error) {
	daemon.mutex.Lock()
	spec, exists := daemon.devices[address]
	daemon.mutex.Unlock()
	if !exists {
		spec = DeviceSpec{Address: address, Timeout: global.DefaultTimeout, Retries: global.DefaultRetries}
	}

	deviceSession, err := device.New(ctx, device.Config{
		Address: address,
		Port:    spec.Port,
		Token:   token,
		Timeout: spec.Timeout,
		Retries: spec.Retries,
		IDs:     daemon.Store,
	})
	if err != nil {
		return
	}
	session = deviceSession
	return
}

// Registers the device, removes scenes left by a previous run, then installs its events
func (daemon *Daemon) addDevice(ctx context.Context, spec DeviceSpec) (err error) {
	ctx = logctx.WithPeer(logctx.AppendCtxTag(ctx, global.NSDevice), spec.Address)

	daemon.mutex.Lock()
	daemon.devices[spec.Address] = spec
	daemon.mutex.Unlock()

	address := spec.Address
	err = daemon.PushServer.Register(ctx, address, spec.Token, func(sourceID string, action string, params json.RawMessage) {
		queued := daemon.Dispatcher.Publish(address, sourceID, action, params)
		if !queued {
			logctx.LogEvent(ctx, global.VerbosityProgress, global.WarnLog,
				"event queue full, dropped %s from %s\n", action, sourceID)
		}
	})
	if err != nil {
		daemon.mutex.Lock()
		delete(daemon.devices, spec.Address)
		daemon.mutex.Unlock()
		err = fmt.Errorf("failed to register %s: %w", address, err)
		return
	}

	daemon.removeStaleScenes(ctx, address)

	var installed int
	for _, info := range spec.Events {
		_, ok := daemon.PushServer.Subscribe(ctx, address, info)
		if ok {
			installed++
		}
	}
	logctx.LogEvent(ctx, global.VerbosityStandard, global.InfoLog,
		"bridging %d of %d events from %s\n", installed, len(spec.Events), address)
	return
}

// Scenes persisted by an earlier run still point at this server
func (daemon *Daemon) removeStaleScenes(ctx context.Context, address string) {
	stale, err := daemon.Store.Scenes(ctx, address)
	if err != nil {
		logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog, "failed to list old scenes for %s: %v\n", address, err)
		return
	}
	for _, eventID := range stale {
		err = daemon.PushServer.Unsubscribe(ctx, address, eventID)
		if err != nil {
			logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog,
				"failed to remove old scene %s from %s: %v\n", eventID, address, err)
			continue
		}
		logctx.LogEvent(ctx, global.VerbosityProgress, global.InfoLog, "removed old scene %s from %s\n", eventID, address)
	}
}

func (daemon *Daemon) removeDevice(ctx context.Context, address string) {
	ctx = logctx.WithPeer(logctx.AppendCtxTag(ctx, global.NSDevice), address)

	err := daemon.PushServer.Unregister(ctx, address)
	if err != nil {
		logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog, "failed to unregister %s: %v\n", address, err)
	}

	daemon.mutex.Lock()
	delete(daemon.devices, address)
	daemon.mutex.Unlock()
}

// Brings the registry in line with the wanted device list
func (daemon *Daemon) syncDevices(ctx context.Context, wanted []DeviceSpec) {
	wantedByAddr := make(map[string]DeviceSpec)
	for _, spec := range wanted {
		wantedByAddr[spec.Address] = spec
	}

	daemon.mutex.Lock()
	current := make(map[string]DeviceSpec, len(daemon.devices))
	for address, spec := range daemon.devices {
		current[address] = spec
	}
	daemon.mutex.Unlock()

	for address, spec := range current {
		newSpec, keep := wantedByAddr[address]
		if keep && reflect.DeepEqual(spec, newSpec) {
			continue
		}
		daemon.removeDevice(ctx, address)
	}

	for _, spec := range wanted {
		oldSpec, exists := current[spec.Address]
		if exists && reflect.DeepEqual(oldSpec, spec) {
			continue
		}
		err := daemon.addDevice(ctx, spec)
		if err != nil {
			logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog, "%v\n", err)
		}
	}
}

// Registered devices with their active event ids
func (daemon *Daemon) DeviceEvents() (devices map[string][]string) {
	devices = make(map[string][]string)
	for _, address := range daemon.PushServer.Devices() {
		devices[address] = append([]string{}, daemon.PushServer.Events(address)...)
	}
	return
}
