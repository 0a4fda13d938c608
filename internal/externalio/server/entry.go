// HTTP server exposing metric queries, registered devices and a live event
// feed to other programs on the local system
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"mibridge/internal/global"
	"mibridge/internal/logctx"
	"net/http"
	"strconv"
	"strings"
)

// Sets up HTTP listener configuration. Nil collaborators leave their routes unregistered.
func SetupListener(ctx context.Context, port int, search DataSearcher, discover Discoverer, devices DeviceLister, hub *Hub) (server *http.Server) {
	requestMultiplexer := http.NewServeMux()

	routes := map[string]string{}

	if discover != nil {
		routes["discover"] = global.DiscoveryPath
		requestMultiplexer.HandleFunc(global.DiscoveryPath, func(serverResponder http.ResponseWriter, clientRequest *http.Request) {
			if clientRequest.Method != http.MethodGet {
				serverResponder.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			handleDiscovery(ctx, discover, serverResponder, clientRequest)
		})
	}

	if search != nil {
		routes["data"] = global.DataPath
		requestMultiplexer.HandleFunc(global.DataPath, func(serverResponder http.ResponseWriter, clientRequest *http.Request) {
			if clientRequest.Method != http.MethodGet {
				serverResponder.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			handleData(ctx, search, serverResponder, clientRequest)
		})
	}

	if devices != nil {
		routes["devices"] = global.DevicesPath
		requestMultiplexer.HandleFunc(global.DevicesPath, func(serverResponder http.ResponseWriter, clientRequest *http.Request) {
			if clientRequest.Method != http.MethodGet {
				serverResponder.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			jResp(ctx, serverResponder, http.StatusOK, devices())
		})
	}

	if hub != nil {
		routes["events"] = global.EventsPath
		requestMultiplexer.HandleFunc(global.EventsPath, func(serverResponder http.ResponseWriter, clientRequest *http.Request) {
			if clientRequest.Method != http.MethodGet {
				serverResponder.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			hub.handleEvents(ctx, serverResponder, clientRequest)
		})
	}

	// Root lists available routes
	requestMultiplexer.HandleFunc("/", func(serverResponder http.ResponseWriter, clientRequest *http.Request) {
		if clientRequest.Method != http.MethodGet {
			serverResponder.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if clientRequest.URL.Path != "/" {
			serverResponder.WriteHeader(http.StatusNotFound)
			return
		}
		jResp(ctx, serverResponder, http.StatusOK, map[string]any{
			"program": global.ProgBaseName,
			"version": global.ProgVersion,
			"routes":  routes,
		})
	})

	// Server configuration
	server = &http.Server{
		Addr:         global.HTTPListenAddr + ":" + strconv.Itoa(port),
		Handler:      requestMultiplexer,
		ReadTimeout:  global.HTTPReadTimeout,
		WriteTimeout: global.HTTPWriteTimeout,
		IdleTimeout:  global.HTTPIdleTimeout,
		ErrorLog:     log.New(httpLogWriter{ctx: ctx}, "", 0),
	}
	return
}

// Starts the HTTP server and waits for requests
func Start(ctx context.Context, server *http.Server) {
	logctx.LogEvent(ctx, global.VerbosityStandard, global.InfoLog, "Query server starting on %s (http://%s/)\n",
		server.Addr,
		server.Addr,
	)
	err := server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog, "Query server failed to start: %v\n", err)
	}
}

// Encodes JSON and sends as response body
func jResp(ctx context.Context, serverResponder http.ResponseWriter, status int, content any) {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(content); err != nil {
		serverResponder.WriteHeader(http.StatusInternalServerError)
		logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog, "Failed marshaling results: %v\n", err)
		return
	}
	serverResponder.Header().Set("Content-Type", "application/json")
	serverResponder.WriteHeader(status)
	serverResponder.Write(buf.Bytes())
}

// Logs HTTP server errors to internal program buffer (via context logger)
func (logWriter httpLogWriter) Write(p []byte) (n int, err error) {
	n = len(p)
	if n == 0 {
		return
	}
	logctx.LogEvent(
		logWriter.ctx,
		global.VerbosityStandard,
		global.ErrorLog,
		"%s\n", strings.TrimSpace(string(p)),
	)
	return
}
