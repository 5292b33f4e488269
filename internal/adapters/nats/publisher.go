package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/placesbridge/internal/core/domain"
)

// EventsStream is the JetStream stream holding geofence and authorization events.
const EventsStream = "PLACES_EVENTS"

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	prefix string
}

// NewPublisher connects to NATS and ensures the events stream exists.
// Subjects are rooted at prefix, e.g. "places.events.geofence.<requestId>".
func NewPublisher(url, prefix string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	cfg := nats.StreamConfig{
		Name:      EventsStream,
		Subjects:  []string{prefix + ".events.>"},
		Retention: nats.InterestPolicy,
		MaxAge:    24 * time.Hour,
		Storage:   nats.FileStorage,
	}
	if _, err := js.AddStream(&cfg); err != nil {
		// Stream may already exist, try update
		if _, err := js.UpdateStream(&cfg); err != nil {
			conn.Close()
			return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}

	return &Publisher{conn: conn, js: js, prefix: prefix}, nil
}

func (p *Publisher) PublishGeofenceEvent(ctx context.Context, event *domain.GeofenceEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("%s.events.geofence.%s", p.prefix, SubjectToken(event.Geofence.RequestID))
	_, err = p.js.Publish(subject, data, nats.Context(ctx))
	return err
}

func (p *Publisher) PublishAuthorizationEvent(ctx context.Context, event *domain.AuthorizationEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(p.prefix+".events.authorization", data, nats.Context(ctx))
	return err
}

// Conn exposes the underlying connection so the Responder can share it.
func (p *Publisher) Conn() *nats.Conn {
	return p.conn
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection with the service reconnect policy.
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}

// SubjectToken makes s safe to use as a single subject token.
func SubjectToken(s string) string {
	b := []byte(s)
	for i, c := range b {
		switch c {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			b[i] = '_'
		}
	}
	if len(b) == 0 {
		return "_"
	}
	return string(b)
}
