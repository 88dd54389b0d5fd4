package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/gertjana/fietsrouteapp/internal/adapters/file"
	natsadapter "github.com/gertjana/fietsrouteapp/internal/adapters/nats"
	"github.com/gertjana/fietsrouteapp/internal/adapters/overpass"
	"github.com/gertjana/fietsrouteapp/internal/adapters/postgres"
	"github.com/gertjana/fietsrouteapp/internal/core/domain"
	"github.com/gertjana/fietsrouteapp/internal/core/ports"
	"github.com/gertjana/fietsrouteapp/internal/core/usecases"
	"github.com/gertjana/fietsrouteapp/internal/pkg/config"
	"github.com/gertjana/fietsrouteapp/internal/pkg/logging"
)

// One-shot ingestion: download the junction node set from Overpass,
// write the file snapshot with its tile partition, optionally mirror
// into postgres, and announce the refresh over NATS.
func main() {
	cfg, err := config.Load("fietsroute-ingestor")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup("fietsroute-ingestor", logLevel, "text")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	coverage := domain.BoundingBox{
		South: cfg.Storage.Coverage.South,
		West:  cfg.Storage.Coverage.West,
		North: cfg.Storage.Coverage.North,
		East:  cfg.Storage.Coverage.East,
	}

	fetcher := overpass.NewClient(cfg.Storage.SourceURL, coverage)
	store := file.NewSource(cfg.Storage.DataDir)

	// Database mirror only when the postgres backend is configured
	var repo ports.NodeRepository
	if cfg.Storage.Backend == "postgres" {
		db, err := postgres.New(ctx, cfg.Database.DSN())
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
		repo = postgres.NewNodeRepo(db)
	}

	var events ports.EventPublisher
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, refresh will go unannounced", "error", err)
	} else {
		defer pub.Close()
		events = pub
	}

	svc := usecases.NewRefreshService(fetcher, store, repo, events, coverage, cfg.Storage.GridSize)

	nodeCount, tileCount, err := svc.Refresh(ctx, "overpass")
	if err != nil {
		log.Fatalf("refresh: %v", err)
	}

	slog.Info("ingestion complete",
		"nodes", nodeCount,
		"tiles", tileCount,
		"data_dir", cfg.Storage.DataDir)
}
