package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/placesbridge/internal/core/usecases"
	"github.com/samirrijal/placesbridge/internal/pkg/logging"
	"github.com/samirrijal/placesbridge/internal/pkg/metrics"
)

// wsRequest is a bridge call sent by the client.
// {"id":"7","action":"getNearbyPointsOfInterest","args":[{"latitude":1,"longitude":2},5]}
type wsRequest struct {
	ID     string            `json:"id"`
	Action string            `json:"action"`
	Args   []json.RawMessage `json:"args"`
}

// wsEvent relays a Places event published on NATS.
type wsEvent struct {
	Event   string          `json:"event"`
	Subject string          `json:"subject"`
	Data    json.RawMessage `json:"data"`
}

// WebSocketHandler returns a handler that runs bridge calls over a WebSocket.
// Replies carry the request id and may arrive in any order. When NATS is
// configured, Places events are pushed to the client as they happen.
func WebSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		logger := slog.Default().With("component", "ws", "conn_id", uuid.NewString(), "remote", c.RemoteAddr().String())
		ctx := logging.WithLogger(context.Background(), logger)
		logger.Info("ws client connected")

		var mu sync.Mutex
		closed := false
		writeJSON := func(v interface{}) {
			data, err := json.Marshal(v)
			if err != nil {
				logger.Error("ws encode failed", "error", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if closed {
				return
			}
			if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Debug("ws write failed", "error", err)
			}
		}

		if deps.NATS != nil && deps.EventsSubject != "" {
			sub, err := deps.NATS.Subscribe(deps.EventsSubject, func(msg *nats.Msg) {
				writeJSON(wsEvent{Event: "places", Subject: msg.Subject, Data: json.RawMessage(msg.Data)})
			})
			if err != nil {
				logger.Warn("ws event relay unavailable", "error", err)
			} else {
				defer func() { _ = sub.Unsubscribe() }()
			}
		}

		// Keep-alive ping
		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var req wsRequest
			if err := json.Unmarshal(msg, &req); err != nil {
				writeJSON(usecases.ErrorEnvelope("invalid JSON"))
				continue
			}
			if req.Args == nil {
				req.Args = []json.RawMessage{}
			}

			id := req.ID
			sink := usecases.SinkFuncs{
				OnSuccess: func(payload string) {
					env := usecases.OKEnvelope(payload)
					env.ID = id
					writeJSON(env)
				},
				OnError: func(message string) {
					env := usecases.ErrorEnvelope(message)
					env.ID = id
					writeJSON(env)
				},
			}
			if !deps.Bridge.Dispatch(ctx, req.Action, req.Args, sink) {
				env := usecases.UnhandledEnvelope(req.Action)
				env.ID = id
				writeJSON(env)
			}
		}

		close(done)
		mu.Lock()
		closed = true
		mu.Unlock()
		logger.Info("ws client disconnected")
	}
}
