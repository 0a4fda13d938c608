package server

import (
	"context"
	"mibridge/internal/events"
	"mibridge/internal/global"
	"mibridge/internal/logctx"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

func NewHub(namespace []string) (hub *Hub) {
	hub = &Hub{
		Namespace: append(namespace, global.NSoSocket),
		upgrader: websocket.Upgrader{
			// Served on localhost only
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		clients: make(map[*wsClient]struct{}),
	}
	return
}

// Upgrades the request and streams events until the peer goes away.
// Optional query filters: source, action.
func (hub *Hub) handleEvents(baseCtx context.Context, serverResponder http.ResponseWriter, clientRequest *http.Request) {
	ctx := logctx.OverwriteCtxTag(baseCtx, hub.Namespace)

	conn, err := hub.upgrader.Upgrade(serverResponder, clientRequest, nil)
	if err != nil {
		logctx.LogEvent(ctx, global.VerbosityProgress, global.WarnLog, "failed websocket upgrade from %s: %v\n", clientRequest.RemoteAddr, err)
		return
	}

	client := &wsClient{
		conn:   conn,
		send:   make(chan events.Event, global.WSClientBuffer),
		source: clientRequest.FormValue("source"),
		action: clientRequest.FormValue("action"),
		done:   make(chan struct{}),
	}

	hub.mutex.Lock()
	if hub.closed {
		hub.mutex.Unlock()
		conn.Close()
		return
	}
	hub.clients[client] = struct{}{}
	active := len(hub.clients)
	hub.mutex.Unlock()

	logctx.LogEvent(ctx, global.VerbosityProgress, global.InfoLog,
		"event feed client connected: remote=%s active=%d\n", clientRequest.RemoteAddr, active)

	go hub.writeLoop(ctx, client)
	hub.readLoop(client)

	hub.remove(client)
	logctx.LogEvent(ctx, global.VerbosityProgress, global.InfoLog, "event feed client %s disconnected\n", clientRequest.RemoteAddr)
}

// Discards inbound messages, returns once the connection fails
func (hub *Hub) readLoop(client *wsClient) {
	for {
		_, _, err := client.conn.ReadMessage()
		if err != nil {
			return
		}
	}
}

func (hub *Hub) writeLoop(ctx context.Context, client *wsClient) {
	for {
		select {
		case <-client.done:
			return
		case event := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(global.WSWriteTimeout))
			err := client.conn.WriteJSON(event)
			if err != nil {
				logctx.LogEvent(ctx, global.VerbosityProgress, global.WarnLog, "failed writing to event feed client: %v\n", err)
				client.close()
				return
			}
		}
	}
}

func (client *wsClient) close() {
	client.closeOnce.Do(func() {
		close(client.done)
		client.conn.Close()
	})
}

func (client *wsClient) wants(event events.Event) bool {
	if client.source != "" && client.source != event.SourceID {
		return false
	}
	if client.action != "" && client.action != event.Action {
		return false
	}
	return true
}

func (hub *Hub) remove(client *wsClient) {
	hub.mutex.Lock()
	delete(hub.clients, client)
	hub.mutex.Unlock()
	client.close()
}

// Number of connected feed clients
func (hub *Hub) Clients() int {
	hub.mutex.RLock()
	defer hub.mutex.RUnlock()
	return len(hub.clients)
}

func (hub *Hub) Name() string {
	return "websocket"
}

// Queues the event for every interested client. Slow clients are disconnected.
func (hub *Hub) Write(ctx context.Context, event events.Event) (err error) {
	hub.mutex.RLock()
	defer hub.mutex.RUnlock()

	for client := range hub.clients {
		if !client.wants(event) {
			continue
		}
		select {
		case client.send <- event:
		case <-client.done:
		default:
			logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog,
				"event feed client %s too slow, disconnecting\n", client.conn.RemoteAddr())
			client.close()
		}
	}
	return
}

// Disconnects every client and refuses new ones
func (hub *Hub) Close() (err error) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	hub.closed = true
	for client := range hub.clients {
		client.close()
	}
	return
}
