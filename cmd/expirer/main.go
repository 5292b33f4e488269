package main

import (
	"context"
	"log"
	"log/slog"

	"go.temporal.io/sdk/client"
	temporallog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/samirrijal/placesbridge/internal/adapters/nats"
	"github.com/samirrijal/placesbridge/internal/adapters/postgres"
	"github.com/samirrijal/placesbridge/internal/pkg/config"
	"github.com/samirrijal/placesbridge/internal/pkg/logging"
	"github.com/samirrijal/placesbridge/internal/workflows"
)

func main() {
	cfg, err := config.Load("placesbridge-expirer")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()

	db, err := postgres.New(ctx, cfg.Database.DSN(), 4)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	activities := &workflows.GeofenceActivities{Geofences: postgres.NewGeofenceRepo(db)}

	publisher, err := natsadapter.NewPublisher(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
	if err != nil {
		slog.Warn("nats unavailable, expired events will not be published", "error", err)
	} else {
		defer publisher.Close()
		activities.Publisher = publisher
	}

	// Connect to Temporal
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    temporallog.NewStructuredLogger(slog.Default()),
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	// Register workflow & activities
	w.RegisterWorkflow(workflows.GeofenceExpiryWorkflow)
	w.RegisterActivity(activities)

	slog.Info("geofence expiry worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
