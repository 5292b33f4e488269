package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/placesbridge/internal/core/ports"
	"github.com/samirrijal/placesbridge/internal/core/usecases"
	"github.com/samirrijal/placesbridge/internal/pkg/logging"
)

// QueueGroup spreads bridge requests across service instances.
const QueueGroup = "placesbridge"

// Dispatcher is the subset of usecases.Dispatcher the Responder needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, action string, args []json.RawMessage, sink ports.ResultSink) bool
}

// Responder serves bridge actions over NATS request/reply on
// "<prefix>.bridge.<action>". Request data is the JSON argument array.
type Responder struct {
	conn       *nats.Conn
	dispatcher Dispatcher
	prefix     string
	logger     *slog.Logger
	sub        *nats.Subscription
}

// NewResponder creates a Responder on an existing connection.
func NewResponder(conn *nats.Conn, d Dispatcher, prefix string) *Responder {
	return &Responder{
		conn:       conn,
		dispatcher: d,
		prefix:     prefix,
		logger:     slog.Default().With("component", "nats-bridge"),
	}
}

// Start subscribes to the bridge subjects. ctx becomes the parent of every
// dispatched action.
func (r *Responder) Start(ctx context.Context) error {
	ctx = logging.WithLogger(ctx, r.logger)
	sub, err := r.conn.QueueSubscribe(r.prefix+".bridge.*", QueueGroup, func(msg *nats.Msg) {
		if msg.Reply == "" {
			r.logger.Warn("bridge request without reply subject", "subject", msg.Subject)
			return
		}
		r.serve(ctx, msg.Subject, msg.Data, msg.Respond)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s.bridge.*: %w", r.prefix, err)
	}
	r.sub = sub
	r.logger.Info("bridge responder started", "subject", r.prefix+".bridge.*", "queue", QueueGroup)
	return nil
}

// serve handles one request and calls respond exactly once.
func (r *Responder) serve(ctx context.Context, subject string, data []byte, respond func([]byte) error) {
	send := func(env usecases.Envelope) {
		b, err := json.Marshal(env)
		if err == nil {
			err = respond(b)
		}
		if err != nil {
			r.logger.Error("bridge reply failed", "subject", subject, "error", err)
		}
	}

	action := strings.TrimPrefix(subject, r.prefix+".bridge.")
	args, err := usecases.DecodeArgs(data)
	if err != nil {
		send(usecases.ErrorEnvelope(err.Error()))
		return
	}

	sink := usecases.SinkFuncs{
		OnSuccess: func(payload string) { send(usecases.OKEnvelope(payload)) },
		OnError:   func(message string) { send(usecases.ErrorEnvelope(message)) },
	}
	if !r.dispatcher.Dispatch(ctx, action, args, sink) {
		send(usecases.UnhandledEnvelope(action))
	}
}

// Close unsubscribes. The connection is owned by the caller.
func (r *Responder) Close() {
	if r.sub != nil {
		_ = r.sub.Drain()
	}
}
