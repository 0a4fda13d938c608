package pushserver

import (
	"context"
	"errors"
	"mibridge/internal/global"
	"mibridge/internal/logctx"
	"net"
	"runtime/debug"
	"time"
)

// Receive loop. A bad datagram is logged and never stops the loop.
func (server *Server) run(ctx context.Context) {
	ctx = logctx.AppendCtxTag(ctx, global.NSListen)
	buffer := make([]byte, global.MaxDatagramSize)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		stop := func() (stop bool) {
			defer func() {
				if fatalError := recover(); fatalError != nil {
					server.Metrics.Failures.Add(1)
					stack := debug.Stack()
					logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog,
						"panic handling datagram: %v\n%s", fatalError, stack)
				}
			}()

			// Blocks until data or the socket is closed by Stop
			n, remoteAddr, err := server.conn.ReadFromUDP(buffer)
			start := time.Now()
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
					stop = true
					return
				}
				logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog, "failed reading from socket: %v\n", err)
				return
			}
			defer func() {
				server.Metrics.BusyNs.Add(uint64(time.Since(start)))
			}()

			data := append([]byte(nil), buffer[:n]...)
			reply := server.HandleDatagram(ctx, remoteAddr, data)
			if reply == nil {
				return
			}

			_, err = server.conn.WriteToUDP(reply, remoteAddr)
			if err != nil {
				logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog,
					"failed to reply to %s: %v\n", remoteAddr, err)
			}
			return
		}()
		if stop {
			return
		}
	}
}
