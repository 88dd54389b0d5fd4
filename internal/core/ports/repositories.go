package ports

import (
	"context"

	"github.com/gertjana/fietsrouteapp/internal/core/domain"
)

// NodeSource loads the full node dataset from a backing store. The
// store is opaque: file, database, anything that can hand back every
// known node.
type NodeSource interface {
	LoadAll(ctx context.Context) (*domain.Dataset, error)
}

// TileSource loads the tile partition of the dataset: the index with
// tile bounds, and individual tile subsets by id. Implementations may
// legitimately have no index (Index returns domain.ErrNoTileIndex), in
// which case callers fall back to NodeSource.
type TileSource interface {
	Index(ctx context.Context) (*domain.TileIndex, error)
	LoadTile(ctx context.Context, id string) ([]domain.Node, error)
}

// NodeFetcher pulls the current node set from an upstream data
// provider. Used by the ingestion pipeline only.
type NodeFetcher interface {
	Fetch(ctx context.Context) ([]domain.Node, error)
}

// NodeRepository persists nodes. Only the ingestion pipeline writes.
type NodeRepository interface {
	UpsertBatch(ctx context.Context, nodes []domain.Node) error
	FindInBounds(ctx context.Context, box domain.BoundingBox) ([]domain.Node, error)
	GetByExternalID(ctx context.Context, externalID string) (*domain.Node, error)
	Count(ctx context.Context) (int, error)
}
