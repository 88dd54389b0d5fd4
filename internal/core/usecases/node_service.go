package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gertjana/fietsrouteapp/internal/core/domain"
	"github.com/gertjana/fietsrouteapp/internal/core/ports"
	"github.com/gertjana/fietsrouteapp/internal/pkg/metrics"
	"github.com/gertjana/fietsrouteapp/internal/pkg/ttlcache"
)

// Query sources reported to clients.
const (
	SourceTiles = "tiles"
	SourceFull  = "full"
)

// NodeService answers bounded node queries: given a viewport, return
// every node inside it without scanning the whole dataset when a tile
// partition is available. Dataset and tile subsets are held in
// read-through TTL caches; the store itself is read-only at serving
// time.
type NodeService struct {
	source ports.NodeSource
	tiles  ports.TileSource

	datasets  *ttlcache.Cache[*domain.Dataset]
	indexes   *ttlcache.Cache[*domain.TileIndex]
	tileNodes *ttlcache.Cache[[]domain.Node]

	loadTimeout time.Duration
}

// NewNodeService creates a NodeService. tiles may be nil when the
// backing store has no tile partition; every query then takes the
// full-scan path.
func NewNodeService(source ports.NodeSource, tiles ports.TileSource, cacheTTL, loadTimeout time.Duration) *NodeService {
	if loadTimeout <= 0 {
		loadTimeout = 10 * time.Second
	}
	return &NodeService{
		source:      source,
		tiles:       tiles,
		datasets:    ttlcache.New[*domain.Dataset](cacheTTL),
		indexes:     ttlcache.New[*domain.TileIndex](cacheTTL),
		tileNodes:   ttlcache.New[[]domain.Node](cacheTTL),
		loadTimeout: loadTimeout,
	}
}

// QueryBounds returns all nodes inside the box, bounds inclusive,
// plus the source label ("tiles" or "full") of the path taken.
//
// The tiled path intersects the box with the tile grid and loads only
// the overlapping tiles. A missing tile index downgrades to the
// full-scan path rather than failing the request; a failed tile or
// dataset load is a real error, never silently treated as zero nodes.
func (s *NodeService) QueryBounds(ctx context.Context, box domain.BoundingBox) ([]domain.Node, string, error) {
	if s.tiles != nil {
		idx, err := s.loadIndex(ctx)
		switch {
		case err == nil:
			nodes, err := s.queryTiles(ctx, idx, box)
			if err != nil {
				return nil, "", err
			}
			return nodes, SourceTiles, nil
		default:
			slog.Warn("tile index unavailable, falling back to full scan", "error", err)
		}
	}

	ds, err := s.loadDataset(ctx)
	if err != nil {
		return nil, "", err
	}

	var nodes []domain.Node
	for _, n := range ds.Nodes {
		if box.Contains(n.Lat, n.Lng) {
			nodes = append(nodes, n)
		}
	}
	return nodes, SourceFull, nil
}

func (s *NodeService) queryTiles(ctx context.Context, idx *domain.TileIndex, box domain.BoundingBox) ([]domain.Node, error) {
	var nodes []domain.Node
	for _, tile := range idx.Tiles {
		if !tile.Bounds.Intersects(box) {
			continue
		}
		subset, err := s.loadTile(ctx, tile.ID)
		if err != nil {
			return nil, fmt.Errorf("load tile %s: %w", tile.ID, err)
		}
		// Tiles are disjoint, so no cross-tile dedup is needed.
		for _, n := range subset {
			if box.Contains(n.Lat, n.Lng) {
				nodes = append(nodes, n)
			}
		}
	}
	return nodes, nil
}

// GetByExternalID returns a single node by its globally unique id.
func (s *NodeService) GetByExternalID(ctx context.Context, externalID string) (*domain.Node, error) {
	ds, err := s.loadDataset(ctx)
	if err != nil {
		return nil, err
	}
	for i := range ds.Nodes {
		if ds.Nodes[i].ExternalID == externalID {
			return &ds.Nodes[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

// Stats reports what is currently being served.
func (s *NodeService) Stats(ctx context.Context) (*domain.DatasetStats, error) {
	ds, err := s.loadDataset(ctx)
	if err != nil {
		return nil, err
	}

	stats := &domain.DatasetStats{
		NodeCount:   len(ds.Nodes),
		Source:      ds.Source,
		LastUpdated: ds.LastUpdated,
	}
	if s.tiles != nil {
		if idx, err := s.loadIndex(ctx); err == nil {
			stats.TileCount = len(idx.Tiles)
		}
	}

	metrics.DatasetAge.Set(time.Since(ds.LastUpdated).Seconds())
	return stats, nil
}

// InvalidateCache drops the in-process dataset, index, and tile caches
// so the next query reloads from backing storage.
func (s *NodeService) InvalidateCache() {
	s.datasets.Invalidate()
	s.indexes.Invalidate()
	s.tileNodes.Invalidate()
	slog.Info("node caches invalidated")
}

func (s *NodeService) loadDataset(ctx context.Context) (*domain.Dataset, error) {
	return s.datasets.GetOrLoad(ctx, "all", func(ctx context.Context) (*domain.Dataset, error) {
		ctx, cancel := context.WithTimeout(ctx, s.loadTimeout)
		defer cancel()

		ds, err := s.source.LoadAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("load dataset: %w", err)
		}
		metrics.DatasetLoads.Inc()
		slog.Info("dataset loaded", "nodes", len(ds.Nodes), "source", ds.Source)
		return ds, nil
	})
}

func (s *NodeService) loadIndex(ctx context.Context) (*domain.TileIndex, error) {
	return s.indexes.GetOrLoad(ctx, "index", func(ctx context.Context) (*domain.TileIndex, error) {
		ctx, cancel := context.WithTimeout(ctx, s.loadTimeout)
		defer cancel()
		return s.tiles.Index(ctx)
	})
}

func (s *NodeService) loadTile(ctx context.Context, id string) ([]domain.Node, error) {
	return s.tileNodes.GetOrLoad(ctx, id, func(ctx context.Context) ([]domain.Node, error) {
		ctx, cancel := context.WithTimeout(ctx, s.loadTimeout)
		defer cancel()

		nodes, err := s.tiles.LoadTile(ctx, id)
		if err != nil {
			return nil, err
		}
		metrics.TileLoads.Inc()
		return nodes, nil
	})
}
