package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gertjana/fietsrouteapp/internal/core/domain"
	"github.com/gertjana/fietsrouteapp/internal/core/ports"
)

// TilePartition is a fixed grid partition of a node set: the index
// describing every tile's bounds, plus each tile's node subset.
type TilePartition struct {
	Index   *domain.TileIndex
	Subsets map[string][]domain.Node
}

// PartitionTiles splits nodes over a grid×grid tile layout covering
// the coverage box. Assignment goes by grid cell index, so tiles are
// disjoint even on shared edges; nodes outside the coverage box are
// clamped into the nearest edge tile rather than dropped.
func PartitionTiles(nodes []domain.Node, coverage domain.BoundingBox, grid int, source string) *TilePartition {
	if grid < 1 {
		grid = 1
	}

	latStep := (coverage.North - coverage.South) / float64(grid)
	lngStep := (coverage.East - coverage.West) / float64(grid)

	cell := func(v, origin, step float64) int {
		i := int((v - origin) / step)
		if i < 0 {
			i = 0
		}
		if i >= grid {
			i = grid - 1
		}
		return i
	}

	subsets := make(map[string][]domain.Node)
	for _, n := range nodes {
		row := cell(n.Lat, coverage.South, latStep)
		col := cell(n.Lng, coverage.West, lngStep)
		id := fmt.Sprintf("t-%d-%d", row, col)
		subsets[id] = append(subsets[id], n)
	}

	idx := &domain.TileIndex{
		Source:      source,
		LastUpdated: time.Now().UTC(),
	}
	for row := 0; row < grid; row++ {
		for col := 0; col < grid; col++ {
			id := fmt.Sprintf("t-%d-%d", row, col)
			if len(subsets[id]) == 0 {
				continue // empty tiles stay out of the index
			}
			idx.Tiles = append(idx.Tiles, domain.TileRef{
				ID: id,
				Bounds: domain.BoundingBox{
					South: coverage.South + float64(row)*latStep,
					West:  coverage.West + float64(col)*lngStep,
					North: coverage.South + float64(row+1)*latStep,
					East:  coverage.West + float64(col+1)*lngStep,
				},
			})
		}
	}

	return &TilePartition{Index: idx, Subsets: subsets}
}

// SnapshotWriter persists a full dataset snapshot plus its tile
// partition. The file adapter implements this.
type SnapshotWriter interface {
	WriteDataset(ds *domain.Dataset) error
	WriteTiles(idx *domain.TileIndex, subsets map[string][]domain.Node) error
}

// RefreshService runs one dataset refresh: fetch from upstream,
// partition, persist, optionally mirror into the database, and
// announce the new snapshot.
type RefreshService struct {
	fetcher   ports.NodeFetcher
	snapshots SnapshotWriter
	repo      ports.NodeRepository  // nil when no database mirror
	events    ports.EventPublisher  // nil when refreshes go unannounced
	coverage  domain.BoundingBox
	grid      int
}

func NewRefreshService(fetcher ports.NodeFetcher, snapshots SnapshotWriter,
	repo ports.NodeRepository, events ports.EventPublisher,
	coverage domain.BoundingBox, grid int) *RefreshService {
	return &RefreshService{
		fetcher:   fetcher,
		snapshots: snapshots,
		repo:      repo,
		events:    events,
		coverage:  coverage,
		grid:      grid,
	}
}

// Refresh performs a complete refresh cycle. An empty upstream result
// aborts the refresh: serving yesterday's nodes beats serving none.
func (s *RefreshService) Refresh(ctx context.Context, source string) (nodeCount, tileCount int, err error) {
	nodes, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("fetch nodes: %w", err)
	}
	if len(nodes) == 0 {
		return 0, 0, fmt.Errorf("upstream returned zero nodes, keeping current snapshot")
	}

	part := PartitionTiles(nodes, s.coverage, s.grid, source)

	ds := &domain.Dataset{
		Nodes:       nodes,
		Source:      source,
		LastUpdated: time.Now().UTC(),
	}
	if err := s.snapshots.WriteDataset(ds); err != nil {
		return 0, 0, fmt.Errorf("write dataset: %w", err)
	}
	if err := s.snapshots.WriteTiles(part.Index, part.Subsets); err != nil {
		return 0, 0, fmt.Errorf("write tiles: %w", err)
	}

	if s.repo != nil {
		if err := s.repo.UpsertBatch(ctx, nodes); err != nil {
			return 0, 0, fmt.Errorf("mirror to database: %w", err)
		}
	}

	if s.events != nil {
		if err := s.events.PublishDatasetRefreshed(ctx, len(nodes), len(part.Index.Tiles), source); err != nil {
			// serving already switched to the new snapshot, a lost
			// announcement only delays cache invalidation
			slog.Warn("publish refresh event failed", "error", err)
		}
	}

	slog.Info("dataset refresh complete",
		"nodes", len(nodes),
		"tiles", len(part.Index.Tiles),
		"source", source)

	return len(nodes), len(part.Index.Tiles), nil
}
