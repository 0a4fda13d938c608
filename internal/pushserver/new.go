// Virtual device that answers hello probes, receives events from registered
// devices, and serves a method table to everyone else
package pushserver

import (
	"context"
	"fmt"
	"mibridge/internal/crypto"
	"mibridge/internal/crypto/random"
	"mibridge/internal/device"
	"mibridge/internal/ebpf"
	"mibridge/internal/global"
	"mibridge/internal/logctx"
	"mibridge/internal/network"
	"net"
	"slices"
	"time"
)

func New(namespace []string, cfg Config) (server *Server, err error) {
	if cfg.Address == "" {
		cfg.Address = global.DefaultServerAddress
	}
	if cfg.Port == 0 {
		cfg.Port = global.DevicePort
	}
	if cfg.DeviceID == 0 {
		cfg.DeviceID = global.DefaultServerDeviceID
	}
	if cfg.Model == "" {
		cfg.Model = global.DefaultServerModel
	}
	if cfg.SourcePrefix == "" {
		cfg.SourcePrefix = global.DefaultSourcePrefix
	}
	if cfg.NewSession == nil {
		cfg.NewSession = newDeviceSession
	}

	token := slices.Clone([]byte(cfg.Token))
	if len(token) == 0 {
		err = random.PopulateEmptySlice(&token, crypto.TokenSize)
		if err != nil {
			err = fmt.Errorf("failed to generate server token: %w", err)
			return
		}
	}
	cfg.Token = crypto.Token(token)
	err = cfg.Token.Validate()
	if err != nil {
		return
	}

	server = &Server{
		Namespace: append(namespace, global.NSPush),
		cfg:       cfg,
		devices:   make(map[string]*registered),
		methods:   make(map[string]Method),
	}
	server.addDefaultMethods()
	return
}

func newDeviceSession(ctx context.Context, address string, token crypto.Token) (session Commander, err error) {
	deviceSession, err := device.New(ctx, device.Config{
		Address: address,
		Token:   token,
		Timeout: global.DefaultTimeout,
		Retries: global.DefaultRetries,
	})
	if err != nil {
		return
	}
	session = deviceSession
	return
}

// Binds the socket and launches the receive loop
func (server *Server) Start(ctx context.Context) (err error) {
	ctx = logctx.OverwriteCtxTag(ctx, server.Namespace)

	server.conn, err = network.ListenUDP(ctx, server.cfg.Address, server.cfg.Port)
	if err != nil {
		return
	}

	if server.cfg.KernelFilter {
		server.filter, err = ebpf.Attach(server.conn)
		if err != nil {
			logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog,
				"continuing without kernel packet filter: %v\n", err)
			err = nil
		}
	}

	server.startedAt = time.Now()
	server.running.Store(true)

	server.wg.Add(1)
	go func() {
		defer server.wg.Done()
		server.run(ctx)
	}()

	logctx.LogEvent(ctx, global.VerbosityStandard, global.InfoLog,
		"push server listening on %s as %s (device id %d)\n", server.conn.LocalAddr(), server.cfg.Model, server.cfg.DeviceID)
	return
}

// Unregisters every device (best-effort unsubscribe), then releases the socket
func (server *Server) Stop(ctx context.Context) (err error) {
	ctx = logctx.OverwriteCtxTag(ctx, server.Namespace)

	for _, address := range server.Devices() {
		unregErr := server.Unregister(ctx, address)
		if unregErr != nil {
			logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog,
				"failed to unregister %s: %v\n", address, unregErr)
		}
	}

	if !server.running.Swap(false) {
		return
	}

	detachErr := server.filter.Detach()
	if detachErr != nil {
		logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog, "%v\n", detachErr)
	}

	err = server.conn.Close()
	server.wg.Wait()
	if err != nil {
		err = fmt.Errorf("failed to close push server socket: %w", err)
	}
	return
}

// Bound address, nil before Start
func (server *Server) LocalPort() (port int) {
	if server.conn == nil {
		return
	}
	port = server.conn.LocalAddr().(*net.UDPAddr).Port
	return
}

func (server *Server) Token() crypto.Token {
	return server.cfg.Token
}
