package pushserver

import (
	"context"
	"fmt"
	"mibridge/internal/global"
	"mibridge/internal/logctx"
	"mibridge/internal/network"
	"mibridge/internal/scene"
	"mibridge/pkg/protocol"
	"net"
	"slices"
)

// Asks a registered device to forward an event to this server.
// Failure is logged and reported as ok=false.
func (server *Server) Subscribe(ctx context.Context, address string, info scene.EventInfo) (eventID string, ok bool) {
	ctx = logctx.AppendCtxTag(logctx.OverwriteCtxTag(ctx, server.Namespace), global.NSScene)

	entry, exists := server.lookup(address)
	if !exists {
		logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog,
			"cannot subscribe %s on unregistered device %s\n", info.Action, address)
		return
	}

	serverIP, err := server.addressFor(address)
	if err != nil {
		logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog, "cannot subscribe %s: %v\n", info.Action, err)
		return
	}

	candidate := scene.NextEventID()
	descriptor, err := scene.Build(ctx, candidate, info, scene.Target{
		DeviceID: server.cfg.DeviceID,
		Model:    server.cfg.Model,
		IP:       serverIP,
		Token:    server.cfg.Token.String(),
	})
	if err != nil {
		logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog, "failed to build scene: %v\n", err)
		return
	}

	frame, err := descriptor.Frame()
	if err != nil {
		logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog, "failed to build scene: %v\n", err)
		return
	}

	result, err := entry.session.Send(ctx, "send_data_frame", frame)
	if err != nil {
		logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog,
			"failed to install scene %s on %s: %v\n", candidate, address, err)
		return
	}
	if !protocol.IsOK(result) {
		logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog,
			"device %s rejected scene %s: %s\n", address, candidate, result)
		return
	}

	server.mutex.Lock()
	dev, stillRegistered := server.devices[address]
	if stillRegistered {
		dev.events = append(dev.events, candidate)
	}
	server.mutex.Unlock()

	if server.cfg.Scenes != nil {
		err = server.cfg.Scenes.AddScene(ctx, address, candidate)
		if err != nil {
			logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog, "failed to persist scene %s: %v\n", candidate, err)
		}
	}

	logctx.LogEvent(ctx, global.VerbosityProgress, global.InfoLog,
		"subscribed %s on %s as %s\n", info.Action, address, candidate)
	eventID, ok = candidate, true
	return
}

// Deletes a scene from the device. State is kept when the device does not confirm.
func (server *Server) Unsubscribe(ctx context.Context, address string, eventID string) (err error) {
	ctx = logctx.AppendCtxTag(logctx.OverwriteCtxTag(ctx, server.Namespace), global.NSScene)

	entry, exists := server.lookup(address)
	if !exists {
		err = fmt.Errorf("%w: %s", ErrNotRegistered, address)
		return
	}

	result, err := entry.session.Send(ctx, "miIO.xdel", []string{eventID})
	if err != nil {
		err = fmt.Errorf("failed to delete scene %s: %w", eventID, err)
		return
	}
	if !protocol.IsOK(result) {
		err = fmt.Errorf("device did not confirm deletion of %s: %s", eventID, result)
		return
	}

	server.mutex.Lock()
	if dev, ok := server.devices[address]; ok {
		dev.events = slices.DeleteFunc(dev.events, func(id string) bool { return id == eventID })
	}
	server.mutex.Unlock()

	if server.cfg.Scenes != nil {
		storeErr := server.cfg.Scenes.RemoveScene(ctx, address, eventID)
		if storeErr != nil {
			logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog, "failed to forget scene %s: %v\n", eventID, storeErr)
		}
	}

	logctx.LogEvent(ctx, global.VerbosityProgress, global.InfoLog, "unsubscribed %s on %s\n", eventID, address)
	return
}

// IP the device should send events to
func (server *Server) addressFor(deviceAddress string) (ip string, err error) {
	listen := net.ParseIP(server.cfg.Address)
	if listen != nil && !listen.IsUnspecified() {
		ip = listen.String()
		return
	}
	local, err := network.LocalAddressFor(deviceAddress)
	if err != nil {
		return
	}
	ip = local.String()
	return
}
