package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mibridge/internal/global"
	"mibridge/internal/logctx"
	"mibridge/pkg/protocol"
	"net"
	"time"
)

// Sends the hello probe and records the device id and clock reference
func (session *Session) Handshake(ctx context.Context) (identity Identity, err error) {
	session.mutex.Lock()
	defer session.mutex.Unlock()

	ctx = logctx.WithPeer(logctx.AppendCtxTag(ctx, global.NSDevice), session.key)

	err = session.ensureConn()
	if err != nil {
		return
	}

	for attempt := 0; attempt <= session.retries; attempt++ {
		identity, err = session.handshake(ctx, session.timeout)
		if err == nil || !errors.Is(err, ErrHandshakeTimeout) {
			return
		}
	}
	return
}

// Single probe cycle. Caller holds the session mutex.
func (session *Session) handshake(ctx context.Context, timeout time.Duration) (identity Identity, err error) {
	err = ctx.Err()
	if err != nil {
		return
	}

	_, err = session.conn.Write(protocol.HelloProbe())
	if err != nil {
		err = fmt.Errorf("failed to send hello probe: %w", err)
		return
	}

	err = session.conn.SetReadDeadline(readDeadline(ctx, timeout))
	if err != nil {
		return
	}

	buf := make([]byte, global.MaxDatagramSize)
	for {
		var n int
		n, err = session.conn.Read(buf)
		if err != nil {
			if isTimeout(err) {
				err = fmt.Errorf("%w: %s after %s", ErrHandshakeTimeout, session.address, timeout)
				logctx.LogEvent(ctx, global.VerbosityProgress, global.WarnLog, "%v\n", err)
			}
			return
		}

		var packet protocol.Packet
		packet, err = protocol.Unpack(ctx, buf[:n], session.token)
		if err != nil {
			logctx.LogEvent(ctx, global.VerbosityData, global.WarnLog,
				"discarding unreadable datagram during handshake: %v\n", err)
			continue
		}

		hello, ok := packet.(*protocol.Hello)
		if !ok || hello.IsProbe() {
			continue
		}

		identity = Identity{
			DeviceID:  hello.DeviceID,
			Stamp:     hello.Stamp,
			LearnedAt: time.Now(),
		}
		session.identity = identity
		session.state = Identified

		logctx.LogEvent(ctx, global.VerbosityProgress, global.InfoLog,
			"handshake with %s: device id %d, stamp %d\n", session.address, identity.DeviceID, identity.Stamp)
		return
	}
}

// Sends a command with the session's retry budget and timeout
func (session *Session) Send(ctx context.Context, method string, params any) (result json.RawMessage, err error) {
	result, err = session.SendWith(ctx, method, params, session.retries, session.timeout)
	return
}

// Sends a command and waits for the reply carrying the same id.
// Each attempt uses a fresh id. A timed out attempt forces a new handshake.
func (session *Session) SendWith(ctx context.Context, method string, params any, retries int, timeout time.Duration) (result json.RawMessage, err error) {
	session.mutex.Lock()
	defer session.mutex.Unlock()

	ctx = logctx.WithPeer(logctx.AppendCtxTag(ctx, global.NSDevice), session.key)

	err = session.ensureConn()
	if err != nil {
		return
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		err = ctx.Err()
		if err != nil {
			return
		}

		if session.state == Unidentified {
			_, err = session.handshake(ctx, timeout)
			if err != nil {
				if !errors.Is(err, ErrHandshakeTimeout) {
					return
				}
				lastErr = err
				continue
			}
		}

		jump := 1
		if attempt > 0 {
			jump = global.RetryRequestIDJump
		}
		id := session.nextID(jump)

		var response protocol.Response
		response, err = session.exchange(ctx, id, method, params, timeout)
		if errors.Is(err, errAttemptTimeout) {
			logctx.LogEvent(ctx, global.VerbosityProgress, global.WarnLog,
				"no reply from %s to %s (id %d), attempt %d of %d\n", session.address, method, id, attempt+1, retries+1)
			session.state = Unidentified
			lastErr = err
			continue
		}
		if err != nil {
			return
		}

		if response.Error != nil {
			err = &DeviceError{
				Method:  method,
				Code:    response.Error.Code,
				Message: response.Error.Message,
			}
			return
		}

		result = response.Result
		return
	}

	err = fmt.Errorf("%w: %s to %s after %d attempts: %w", ErrCommandTimeout, method, session.address, retries+1, lastErr)
	return
}

// One request/response round trip. Caller holds the session mutex.
func (session *Session) exchange(ctx context.Context, id int, method string, params any, timeout time.Duration) (response protocol.Response, err error) {
	header := protocol.Header{
		DeviceID: session.identity.DeviceID,
		Stamp:    session.identity.StampAt(time.Now()),
	}
	command := protocol.NewRequest(id, method, params)

	packet, err := protocol.Pack(header, session.token, command)
	if err != nil {
		err = fmt.Errorf("failed to pack %s: %w", method, err)
		return
	}

	logctx.LogEvent(ctx, global.VerbosityData, global.InfoLog, "-> %s id=%d method=%s\n", session.address, id, method)

	_, err = session.conn.Write(packet)
	if err != nil {
		err = fmt.Errorf("failed to send %s: %w", method, err)
		return
	}

	err = session.conn.SetReadDeadline(readDeadline(ctx, timeout))
	if err != nil {
		return
	}

	buf := make([]byte, global.MaxDatagramSize)
	for {
		var n int
		n, err = session.conn.Read(buf)
		if err != nil {
			if isTimeout(err) {
				err = errAttemptTimeout
			}
			return
		}

		var reply protocol.Packet
		reply, err = protocol.Unpack(ctx, buf[:n], session.token)
		if err != nil {
			logctx.LogEvent(ctx, global.VerbosityData, global.WarnLog, "discarding unreadable reply: %v\n", err)
			continue
		}

		signed, ok := reply.(*protocol.Signed)
		if !ok {
			continue
		}
		if !signed.ChecksumValid {
			logctx.LogEvent(ctx, global.VerbosityDebug, global.WarnLog, "reply from %s has an invalid checksum\n", session.address)
		}

		var candidate protocol.Response
		err = signed.Payload.Unmarshal(&candidate)
		if err != nil {
			logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog, "discarding reply: %v\n", err)
			continue
		}
		if candidate.ID != id {
			logctx.LogEvent(ctx, global.VerbosityData, global.InfoLog,
				"skipping stale reply id %d while waiting for %d\n", candidate.ID, id)
			continue
		}

		session.identity.Stamp = signed.Stamp
		session.identity.LearnedAt = time.Now()

		logctx.LogEvent(ctx, global.VerbosityFullData, global.InfoLog, "<- %s %s\n", session.address, signed.Payload.JSON)
		response = candidate
		err = nil
		return
	}
}

// Earlier of the attempt timeout and the context deadline
func readDeadline(ctx context.Context, timeout time.Duration) (deadline time.Time) {
	deadline = time.Now().Add(timeout)
	ctxDeadline, ok := ctx.Deadline()
	if ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	return
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
