package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"go.temporal.io/sdk/client"
	temporallog "go.temporal.io/sdk/log"

	"github.com/samirrijal/placesbridge/internal/adapters/http"
	natsadapter "github.com/samirrijal/placesbridge/internal/adapters/nats"
	"github.com/samirrijal/placesbridge/internal/adapters/places"
	"github.com/samirrijal/placesbridge/internal/adapters/postgres"
	temporaladapter "github.com/samirrijal/placesbridge/internal/adapters/temporal"
	"github.com/samirrijal/placesbridge/internal/adapters/valkey"
	"github.com/samirrijal/placesbridge/internal/core/ports"
	"github.com/samirrijal/placesbridge/internal/core/usecases"
	"github.com/samirrijal/placesbridge/internal/pkg/config"
	"github.com/samirrijal/placesbridge/internal/pkg/logging"
	"github.com/samirrijal/placesbridge/internal/pkg/metrics"
	"github.com/samirrijal/placesbridge/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("placesbridge-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN(), 0)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	go reportPoolStats(ctx, db)

	// Cache. Without Valkey the engine keeps state in memory.
	var state ports.CacheService
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable, keeping places state in memory", "error", err)
	} else {
		defer cache.Close()
		state = cache
	}

	// NATS
	var events ports.EventPublisher
	publisher, err := natsadapter.NewPublisher(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
	if err != nil {
		slog.Warn("nats unavailable, places events disabled", "error", err)
	} else {
		defer publisher.Close()
		events = publisher
	}

	// Temporal
	var scheduler ports.GeofenceScheduler
	if cfg.Temporal.Enabled {
		tc, err := client.Dial(client.Options{
			HostPort:  cfg.Temporal.HostPort,
			Namespace: cfg.Temporal.Namespace,
			Logger:    temporallog.NewStructuredLogger(slog.Default()),
		})
		if err != nil {
			slog.Warn("temporal unavailable, geofences will not expire", "error", err)
		} else {
			defer tc.Close()
			scheduler = temporaladapter.NewScheduler(tc, cfg.Temporal.TaskQueue)
		}
	}

	engine := places.NewEngine(
		postgres.NewPOIRepo(db),
		postgres.NewGeofenceRepo(db),
		state,
		events,
		scheduler,
		places.Options{
			ExtensionVersion: cfg.Places.ExtensionVersion,
			KeyPrefix:        cfg.Places.KeyPrefix,
			StateTTL:         cfg.Places.StateTTL,
			MaxNearby:        cfg.Places.MaxNearby,
		},
	)

	bridge := usecases.NewDispatcher(engine, usecases.DispatcherOptions{
		Workers:     cfg.Bridge.Workers,
		CallTimeout: time.Duration(cfg.Bridge.CallTimeout) * time.Second,
	})

	deps := &http.Dependencies{
		Bridge:       bridge,
		ReplyTimeout: time.Duration(cfg.Bridge.ReplyTimeout) * time.Second,
		DB:           db,
		Cache:        cache,
	}

	// NATS request/reply bridge and WebSocket event relay share the publisher's connection.
	var responder *natsadapter.Responder
	if publisher != nil {
		deps.NATS = publisher.Conn()
		deps.EventsSubject = cfg.NATS.SubjectPrefix + ".events.>"

		responder = natsadapter.NewResponder(publisher.Conn(), bridge, cfg.NATS.SubjectPrefix)
		if err := responder.Start(ctx); err != nil {
			slog.Warn("nats bridge responder not started", "error", err)
			responder = nil
		}
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "Places Bridge API",
	})
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Request-ID",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if responder != nil {
		responder.Close()
	}
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}
	// Let accepted actions deliver their replies before the adapters close.
	if err := bridge.Shutdown(shutdownCtx); err != nil {
		slog.Error("bridge did not drain", "error", err)
	}

	slog.Info("server stopped")
}

// reportPoolStats refreshes the database pool gauges until ctx is done.
func reportPoolStats(ctx context.Context, db *postgres.DB) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		metrics.UpdateDBPoolMetrics(db.Pool.Stat())
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
