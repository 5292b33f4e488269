package http

import (
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/placesbridge/internal/adapters/postgres"
	"github.com/samirrijal/placesbridge/internal/adapters/valkey"
	"github.com/samirrijal/placesbridge/internal/core/usecases"
)

// Dependencies holds everything the HTTP handlers need.
type Dependencies struct {
	Bridge        *usecases.Dispatcher
	ReplyTimeout  time.Duration // how long a request waits for the bridge reply
	EventsSubject string        // NATS subject relayed to WebSocket clients, e.g. "places.events.>"
	NATS          *nats.Conn
	DB            *postgres.DB
	Cache         *valkey.Cache
}

func (d *Dependencies) replyTimeout() time.Duration {
	if d.ReplyTimeout <= 0 {
		return 15 * time.Second
	}
	return d.ReplyTimeout
}
