package pushserver

import (
	"context"
	"fmt"
	"mibridge/internal/crypto"
	"mibridge/internal/global"
	"mibridge/internal/logctx"
	"slices"
)

// Starts accepting events from address, decrypted with token
func (server *Server) Register(ctx context.Context, address string, token crypto.Token, callback Callback) (err error) {
	ctx = logctx.OverwriteCtxTag(ctx, server.Namespace)

	err = token.Validate()
	if err != nil {
		return
	}

	server.mutex.Lock()
	_, exists := server.devices[address]
	server.mutex.Unlock()
	if exists {
		err = fmt.Errorf("%w: %s", ErrAlreadyRegistered, address)
		return
	}

	session, err := server.cfg.NewSession(ctx, address, token)
	if err != nil {
		err = fmt.Errorf("failed to open session to %s: %w", address, err)
		return
	}

	server.mutex.Lock()
	defer server.mutex.Unlock()
	if _, exists = server.devices[address]; exists {
		session.Close(ctx)
		err = fmt.Errorf("%w: %s", ErrAlreadyRegistered, address)
		return
	}
	server.devices[address] = &registered{
		address:  address,
		token:    token,
		callback: callback,
		session:  session,
	}

	logctx.LogEvent(ctx, global.VerbosityProgress, global.InfoLog, "registered device %s\n", address)
	return
}

// Best-effort unsubscribes every event of the device, then forgets it
func (server *Server) Unregister(ctx context.Context, address string) (err error) {
	ctx = logctx.OverwriteCtxTag(ctx, server.Namespace)

	for _, eventID := range server.Events(address) {
		unsubErr := server.Unsubscribe(ctx, address, eventID)
		if unsubErr != nil {
			logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog,
				"failed to remove %s from %s: %v\n", eventID, address, unsubErr)
		}
	}

	server.mutex.Lock()
	entry, exists := server.devices[address]
	delete(server.devices, address)
	server.mutex.Unlock()

	if !exists {
		err = fmt.Errorf("%w: %s", ErrNotRegistered, address)
		return
	}

	err = entry.session.Close(ctx)
	if err != nil {
		logctx.LogEvent(ctx, global.VerbosityProgress, global.WarnLog, "failed closing session to %s: %v\n", address, err)
		err = nil
	}

	logctx.LogEvent(ctx, global.VerbosityProgress, global.InfoLog, "unregistered device %s\n", address)
	return
}

// Registered device addresses, sorted
func (server *Server) Devices() (addresses []string) {
	server.mutex.Lock()
	defer server.mutex.Unlock()
	for address := range server.devices {
		addresses = append(addresses, address)
	}
	slices.Sort(addresses)
	return
}

// Active event ids for a registered device
func (server *Server) Events(address string) (eventIDs []string) {
	server.mutex.Lock()
	defer server.mutex.Unlock()
	entry, exists := server.devices[address]
	if !exists {
		return
	}
	eventIDs = slices.Clone(entry.events)
	return
}

func (server *Server) lookup(address string) (entry registered, exists bool) {
	server.mutex.Lock()
	defer server.mutex.Unlock()
	dev, exists := server.devices[address]
	if exists {
		entry = *dev
		entry.events = slices.Clone(dev.events)
	}
	return
}
