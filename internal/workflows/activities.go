package workflows

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gertjana/fietsrouteapp/internal/adapters/file"
	"github.com/gertjana/fietsrouteapp/internal/core/domain"
	"github.com/gertjana/fietsrouteapp/internal/core/ports"
	"github.com/gertjana/fietsrouteapp/internal/core/usecases"
)

// RefreshActivities holds the activity implementations for the
// dataset refresh workflow.
type RefreshActivities struct {
	Fetcher   ports.NodeFetcher
	Repo      ports.NodeRepository // nil when the database mirror is off
	Publisher ports.EventPublisher
	DataDir   string
	Coverage  domain.BoundingBox
	GridSize  int
}

// DownloadResult carries the fetched node set between activities.
type DownloadResult struct {
	Nodes     []domain.Node
	NodeCount int
}

// SnapshotResult describes the snapshot that was written and where the
// previous one was parked for rollback.
type SnapshotResult struct {
	NodeCount int
	TileCount int
	BackupDir string
}

// DownloadNodes fetches the current node set from upstream. An empty
// result fails the activity: never replace a working snapshot with
// nothing.
func (a *RefreshActivities) DownloadNodes(ctx context.Context) (*DownloadResult, error) {
	nodes, err := a.Fetcher.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("download nodes: %w", err)
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("upstream returned zero nodes")
	}
	return &DownloadResult{Nodes: nodes, NodeCount: len(nodes)}, nil
}

// WriteSnapshot parks the current snapshot in a backup dir, then
// writes the new dataset and its tile partition.
func (a *RefreshActivities) WriteSnapshot(ctx context.Context, in *DownloadResult) (*SnapshotResult, error) {
	backupDir := filepath.Join(a.DataDir, fmt.Sprintf("backup-%d", time.Now().Unix()))
	if err := a.parkCurrent(backupDir); err != nil {
		return nil, fmt.Errorf("park current snapshot: %w", err)
	}

	store := file.NewSource(a.DataDir)
	part := usecases.PartitionTiles(in.Nodes, a.Coverage, a.GridSize, "overpass")

	ds := &domain.Dataset{
		Nodes:       in.Nodes,
		Source:      "overpass",
		LastUpdated: time.Now().UTC(),
	}
	if err := store.WriteDataset(ds); err != nil {
		return nil, fmt.Errorf("write dataset: %w", err)
	}
	if err := store.WriteTiles(part.Index, part.Subsets); err != nil {
		return nil, fmt.Errorf("write tiles: %w", err)
	}

	return &SnapshotResult{
		NodeCount: len(in.Nodes),
		TileCount: len(part.Index.Tiles),
		BackupDir: backupDir,
	}, nil
}

// UpsertDatabase mirrors the node set into postgres.
func (a *RefreshActivities) UpsertDatabase(ctx context.Context, in *DownloadResult) error {
	if a.Repo == nil {
		return fmt.Errorf("no database repository configured")
	}
	if err := a.Repo.UpsertBatch(ctx, in.Nodes); err != nil {
		return fmt.Errorf("upsert %d nodes: %w", len(in.Nodes), err)
	}
	return nil
}

// RestoreSnapshot rolls the file snapshot back to the parked backup
// (saga compensation after a failed database mirror).
func (a *RefreshActivities) RestoreSnapshot(ctx context.Context, backupDir string) error {
	if backupDir == "" {
		return nil
	}
	// Drop the freshly written files, then move the backup into place.
	_ = os.Remove(filepath.Join(a.DataDir, "nodes.json"))
	_ = os.RemoveAll(filepath.Join(a.DataDir, "tiles"))

	for _, name := range []string{"nodes.json", "tiles"} {
		src := filepath.Join(backupDir, name)
		if _, err := os.Stat(src); err != nil {
			continue // there was nothing to back up
		}
		if err := os.Rename(src, filepath.Join(a.DataDir, name)); err != nil {
			return fmt.Errorf("restore %s: %w", name, err)
		}
	}
	slog.Info("snapshot restored from backup", "dir", backupDir)
	return nil
}

// AnnounceRefresh publishes the dataset refresh event.
func (a *RefreshActivities) AnnounceRefresh(ctx context.Context, in *SnapshotResult) error {
	if a.Publisher == nil {
		slog.Info("refresh complete (no publisher)",
			"nodes", in.NodeCount, "tiles", in.TileCount)
		return nil
	}
	return a.Publisher.PublishDatasetRefreshed(ctx, in.NodeCount, in.TileCount, "overpass")
}

func (a *RefreshActivities) parkCurrent(backupDir string) error {
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return err
	}
	for _, name := range []string{"nodes.json", "tiles"} {
		src := filepath.Join(a.DataDir, name)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		if err := os.Rename(src, filepath.Join(backupDir, name)); err != nil {
			return err
		}
	}
	return nil
}
