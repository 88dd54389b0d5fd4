// Package file implements the node backing store as plain JSON files:
// <data_dir>/nodes.json for the full dataset and <data_dir>/tiles/
// for the partition grid (index.json plus one file per tile).
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gertjana/fietsrouteapp/internal/core/domain"
)

const (
	datasetFile = "nodes.json"
	tilesDir    = "tiles"
	indexFile   = "index.json"
)

// Source reads node data from a data directory. It satisfies both
// ports.NodeSource and ports.TileSource.
type Source struct {
	dir string
}

// NewSource creates a Source rooted at dir.
func NewSource(dir string) *Source {
	return &Source{dir: dir}
}

// LoadAll reads the full dataset.
func (s *Source) LoadAll(ctx context.Context) (*domain.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(s.dir, datasetFile))
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}

	var ds domain.Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("parse dataset: %w", err)
	}
	return &ds, nil
}

// Index reads the tile index. A missing index file is reported as
// domain.ErrNoTileIndex so callers can fall back to a full scan.
func (s *Source) Index(ctx context.Context) (*domain.TileIndex, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(s.dir, tilesDir, indexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrNoTileIndex
		}
		return nil, fmt.Errorf("read tile index: %w", err)
	}

	var idx domain.TileIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("parse tile index: %w", err)
	}
	return &idx, nil
}

// LoadTile reads one tile's node subset.
func (s *Source) LoadTile(ctx context.Context, id string) ([]domain.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(s.dir, tilesDir, id+".json"))
	if err != nil {
		return nil, fmt.Errorf("read tile %s: %w", id, err)
	}

	var nodes []domain.Node
	if err := json.Unmarshal(data, &nodes); err != nil {
		return nil, fmt.Errorf("parse tile %s: %w", id, err)
	}
	return nodes, nil
}

// WriteDataset writes the full dataset atomically (write-then-rename,
// so a serving process never sees a half-written file).
func (s *Source) WriteDataset(ds *domain.Dataset) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	return writeJSON(filepath.Join(s.dir, datasetFile), ds)
}

// WriteTiles writes the tile index and every tile subset.
func (s *Source) WriteTiles(idx *domain.TileIndex, subsets map[string][]domain.Node) error {
	dir := filepath.Join(s.dir, tilesDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create tiles dir: %w", err)
	}

	for id, nodes := range subsets {
		if err := writeJSON(filepath.Join(dir, id+".json"), nodes); err != nil {
			return err
		}
	}
	// Index last: readers that see the index can see every tile.
	return writeJSON(filepath.Join(dir, indexFile), idx)
}

func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}
