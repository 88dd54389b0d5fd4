package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/gertjana/fietsrouteapp/internal/adapters/nats"
	"github.com/gertjana/fietsrouteapp/internal/adapters/overpass"
	"github.com/gertjana/fietsrouteapp/internal/adapters/postgres"
	"github.com/gertjana/fietsrouteapp/internal/core/domain"
	"github.com/gertjana/fietsrouteapp/internal/core/ports"
	"github.com/gertjana/fietsrouteapp/internal/pkg/config"
	"github.com/gertjana/fietsrouteapp/internal/pkg/logging"
	"github.com/gertjana/fietsrouteapp/internal/workflows"
)

// Refresher runs the scheduled dataset refresh: a Temporal worker for
// the refresh workflow plus a nightly cron trigger.
func main() {
	cfg, err := config.Load("fietsroute-refresher")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup("fietsroute-refresher", logLevel, "json")

	ctx := context.Background()

	coverage := domain.BoundingBox{
		South: cfg.Storage.Coverage.South,
		West:  cfg.Storage.Coverage.West,
		North: cfg.Storage.Coverage.North,
		East:  cfg.Storage.Coverage.East,
	}

	// Activity dependencies
	var repo ports.NodeRepository
	mirror := cfg.Storage.Backend == "postgres"
	if mirror {
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
		slog.Warn("nats unavailable, refreshes will go unannounced", "error", err)
	} else {
		defer pub.Close()
		events = pub
	}

	// Connect to Temporal
	c, err := client.Dial(client.Options{
		HostPort: "localhost:7233",
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, "refresh-queue", worker.Options{})

	w.RegisterWorkflow(workflows.RefreshWorkflow)
	w.RegisterActivity(&workflows.RefreshActivities{
		Fetcher:   overpass.NewClient(cfg.Storage.SourceURL, coverage),
		Repo:      repo,
		Publisher: events,
		DataDir:   cfg.Storage.DataDir,
		Coverage:  coverage,
		GridSize:  cfg.Storage.GridSize,
	})

	// Nightly refresh at 03:00; an existing cron workflow with the
	// same id is left alone.
	_, err = c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:           "dataset-refresh-cron",
		TaskQueue:    "refresh-queue",
		CronSchedule: "0 3 * * *",
	}, workflows.RefreshWorkflow, workflows.RefreshInput{
		Source:     "overpass",
		MirrorToDB: mirror,
	})
	if err != nil {
		slog.Warn("cron schedule not started", "error", err)
	}

	slog.Info("refresh worker started", "queue", "refresh-queue")
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
