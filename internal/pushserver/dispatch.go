package pushserver

import (
	"context"
	"encoding/json"
	"fmt"
	"mibridge/internal/global"
	"mibridge/internal/logctx"
	"mibridge/pkg/protocol"
	"net"
	"runtime/debug"
	"strings"
	"time"
)

// Builds the reply for one inbound datagram, nil when nothing should be sent.
// Depends only on the datagram and the current registry.
func (server *Server) HandleDatagram(ctx context.Context, remoteAddr *net.UDPAddr, data []byte) (reply []byte) {
	ctx = logctx.WithPeer(logctx.AppendCtxTag(ctx, global.NSDispatch), remoteAddr.String())

	if protocol.IsHelloProbe(data) {
		server.Metrics.Hellos.Add(1)
		logctx.LogEvent(ctx, global.VerbosityData, global.InfoLog, "hello from %s\n", remoteAddr)
		reply = protocol.HelloAck(server.cfg.DeviceID, server.stamp())
		return
	}

	address := remoteAddr.IP.String()

	server.mutex.Lock()
	dev, known := server.devices[address]
	var entry registered
	if known {
		entry = *dev
	}
	server.mutex.Unlock()

	var err error
	if known {
		server.Metrics.DeviceMessages.Add(1)
		reply, err = server.handleDevice(ctx, entry, data)
	} else {
		server.Metrics.ClientRequests.Add(1)
		reply, err = server.handleClient(ctx, data)
	}
	if err != nil {
		server.Metrics.Failures.Add(1)
		logctx.LogEvent(ctx, global.VerbosityProgress, global.WarnLog, "dropping datagram from %s: %v\n", remoteAddr, err)
		reply = nil
	}
	return
}

// Event pushed by a registered device. Acknowledged whatever the callback does.
func (server *Server) handleDevice(ctx context.Context, entry registered, data []byte) (reply []byte, err error) {
	command, err := server.readCommand(ctx, data, entry.token)
	if err != nil {
		return
	}
	if command.Method == nil {
		err = fmt.Errorf("event without method from %s", entry.address)
		return
	}

	action, sourceID, ok := server.SplitMethod(*command.Method)
	if !ok {
		logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog,
			"unrecognized event method %q from %s\n", *command.Method, entry.address)
	} else {
		logctx.LogEvent(ctx, global.VerbosityData, global.InfoLog,
			"event %s from %s via %s\n", action, sourceID, entry.address)
		server.invoke(ctx, entry.callback, sourceID, action, command.Params)
	}

	response, err := protocol.NewResult(command.ID, protocol.OKResult)
	if err != nil {
		return
	}
	reply, err = server.pack(entry.token, response)
	return
}

// Request from an unregistered peer, answered from the method table
func (server *Server) handleClient(ctx context.Context, data []byte) (reply []byte, err error) {
	command, err := server.readCommand(ctx, data, server.cfg.Token)
	if err != nil {
		return
	}

	var response protocol.Response
	if command.Method == nil {
		response = protocol.NewError(command.ID, protocol.ErrCodeInvalidRequest, "invalid request")
	} else {
		server.mutex.Lock()
		method, found := server.methods[*command.Method]
		server.mutex.Unlock()

		if !found {
			response = protocol.NewError(command.ID, protocol.ErrCodeUnsupportedMethod, "unsupported method")
		} else {
			response = server.execute(ctx, method, command)
		}
	}

	reply, err = server.pack(server.cfg.Token, response)
	return
}

func (server *Server) execute(ctx context.Context, method Method, command protocol.RawCommand) (response protocol.Response) {
	var result any
	var err error

	func() {
		defer func() {
			if fatalError := recover(); fatalError != nil {
				err = fmt.Errorf("%v", fatalError)
				logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog,
					"panic in method %s: %v\n%s", *command.Method, fatalError, debug.Stack())
			}
		}()
		result, err = method.call(command)
	}()
	if err != nil {
		response = protocol.NewError(command.ID, protocol.ErrCodeExecutionFailed, err.Error())
		return
	}

	response, err = protocol.NewResult(command.ID, result)
	if err != nil {
		response = protocol.NewError(command.ID, protocol.ErrCodeExecutionFailed, err.Error())
	}
	return
}

// Runs a device callback, containing any panic
func (server *Server) invoke(ctx context.Context, callback Callback, sourceID string, action string, params json.RawMessage) {
	if callback == nil {
		return
	}
	defer func() {
		if fatalError := recover(); fatalError != nil {
			logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog,
				"panic in callback for %s %s: %v\n%s", sourceID, action, fatalError, debug.Stack())
		}
	}()
	server.Metrics.Callbacks.Add(1)
	callback(sourceID, action, params)
}

func (server *Server) readCommand(ctx context.Context, data []byte, token []byte) (command protocol.RawCommand, err error) {
	packet, err := protocol.Unpack(ctx, data, token)
	if err != nil {
		return
	}
	signed, ok := packet.(*protocol.Signed)
	if !ok {
		err = fmt.Errorf("unexpected hello packet")
		return
	}
	if !signed.ChecksumValid {
		logctx.LogEvent(ctx, global.VerbosityData, global.WarnLog, "checksum mismatch, decoding anyway\n")
	}
	err = signed.Payload.Unmarshal(&command)
	return
}

func (server *Server) pack(token []byte, response protocol.Response) (packet []byte, err error) {
	header := protocol.Header{DeviceID: server.cfg.DeviceID, Stamp: server.stamp()}
	packet, err = protocol.Pack(header, token, response)
	return
}

// Seconds since start, like a real device uptime counter
func (server *Server) stamp() uint32 {
	if server.startedAt.IsZero() {
		return 0
	}
	return uint32(time.Since(server.startedAt) / time.Second)
}

// Splits an event method into action and source id.
// Supports "<action>:<source with underscores>" and "<action>_<source suffix>".
func (server *Server) SplitMethod(method string) (action string, sourceID string, ok bool) {
	if idx := strings.LastIndex(method, ":"); idx > 0 && idx < len(method)-1 {
		action = strings.TrimPrefix(method[:idx], server.cfg.Model+".")
		sourceID = strings.ReplaceAll(method[idx+1:], "_", ".")
		ok = true
		return
	}
	if idx := strings.LastIndex(method, "_"); idx > 0 && idx < len(method)-1 {
		action = method[:idx]
		sourceID = method[idx+1:]
		if !strings.Contains(sourceID, ".") {
			sourceID = server.cfg.SourcePrefix + sourceID
		}
		ok = true
	}
	return
}
