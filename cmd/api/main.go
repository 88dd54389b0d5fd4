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
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/gertjana/fietsrouteapp/internal/adapters/file"
	"github.com/gertjana/fietsrouteapp/internal/adapters/http"
	natsadapter "github.com/gertjana/fietsrouteapp/internal/adapters/nats"
	"github.com/gertjana/fietsrouteapp/internal/adapters/postgres"
	"github.com/gertjana/fietsrouteapp/internal/adapters/valkey"
	"github.com/gertjana/fietsrouteapp/internal/core/domain"
	"github.com/gertjana/fietsrouteapp/internal/core/ports"
	"github.com/gertjana/fietsrouteapp/internal/core/usecases"
	"github.com/gertjana/fietsrouteapp/internal/pkg/config"
	"github.com/gertjana/fietsrouteapp/internal/pkg/logging"
	"github.com/gertjana/fietsrouteapp/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("fietsroute-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup("fietsroute-api", logLevel, "json")

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

	// Node backing store: file snapshot or postgres
	var (
		source ports.NodeSource
		tiles  ports.TileSource
	)
	switch cfg.Storage.Backend {
	case "postgres":
		db, err := postgres.New(ctx, cfg.Database.DSN())
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
		source = postgres.NewNodeRepo(db)
		// no tile partition in the database backend, every query
		// takes the full-scan path
	default:
		store := file.NewSource(cfg.Storage.DataDir)
		source = store
		tiles = store
	}

	// Cache
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable, serving without response cache", "error", err)
		cache = nil
	} else {
		defer cache.Close()
	}

	// Raw NATS connection for the WebSocket relay and cache
	// invalidation events
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
	}

	// Use cases
	nodeSvc := usecases.NewNodeService(source, tiles,
		time.Duration(cfg.Storage.CacheTTLHours)*time.Hour,
		time.Duration(cfg.Storage.LoadTimeoutSeconds)*time.Second)
	clusterSvc := usecases.NewClusterService(nodeSvc)

	// Refresh events drop the in-process caches so the next query
	// picks up the new snapshot.
	if cfg.NATS.URL != "" {
		sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
		if err != nil {
			slog.Warn("refresh subscriber unavailable", "error", err)
		} else {
			defer sub.Close()
			err = sub.SubscribeDatasetRefreshed(ctx, func(ctx context.Context, ev *domain.DatasetRefreshed) error {
				slog.Info("dataset refreshed, dropping caches",
					"nodes", ev.NodeCount, "tiles", ev.TileCount)
				nodeSvc.InvalidateCache()
				if cache != nil {
					if err := cache.FlushPrefix(ctx, "clusters:"); err != nil {
						slog.Warn("flush cluster cache", "error", err)
					}
				}
				return nil
			})
			if err != nil {
				slog.Warn("subscribe refresh events", "error", err)
			}
		}
	}

	deps := &http.Dependencies{
		Nodes:    nodeSvc,
		Clusters: clusterSvc,
		NATS:     natsConn,
		Cache:    cache,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "Fietsroute API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173, https://*.fietsroute.app",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "backend", cfg.Storage.Backend)
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

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
