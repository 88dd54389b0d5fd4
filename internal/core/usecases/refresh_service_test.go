package usecases

import (
	"context"
	"errors"
	"testing"

	"github.com/gertjana/fietsrouteapp/internal/core/domain"
)

var testCoverage = domain.BoundingBox{South: 50.0, West: 4.0, North: 54.0, East: 8.0}

func TestPartitionTiles_Disjoint(t *testing.T) {
	nodes := []domain.Node{
		{ID: "1", ExternalID: "a", Lat: 50.5, Lng: 4.5},
		{ID: "2", ExternalID: "b", Lat: 52.0, Lng: 6.0}, // exactly on the 2×2 grid seam
		{ID: "3", ExternalID: "c", Lat: 53.9, Lng: 7.9},
		{ID: "4", ExternalID: "d", Lat: 49.0, Lng: 3.0}, // outside coverage, clamps to edge tile
	}

	part := PartitionTiles(nodes, testCoverage, 2, "test")

	total := 0
	seen := map[string]bool{}
	for id, subset := range part.Subsets {
		total += len(subset)
		for _, n := range subset {
			if seen[n.ExternalID] {
				t.Errorf("node %s assigned to more than one tile (%s)", n.ExternalID, id)
			}
			seen[n.ExternalID] = true
		}
	}
	if total != len(nodes) {
		t.Errorf("partition lost nodes: %d in, %d out", len(nodes), total)
	}

	// Seam node must land in exactly one tile, by cell index
	if len(part.Subsets["t-1-1"]) == 0 {
		t.Error("seam node should land in the upper-right tile")
	}
}

func TestPartitionTiles_IndexCoversSubsets(t *testing.T) {
	nodes := []domain.Node{
		{ID: "1", ExternalID: "a", Lat: 50.5, Lng: 4.5},
		{ID: "2", ExternalID: "b", Lat: 53.5, Lng: 7.5},
	}
	part := PartitionTiles(nodes, testCoverage, 4, "test")

	if len(part.Index.Tiles) != 2 {
		t.Fatalf("expected 2 non-empty tiles in index, got %d", len(part.Index.Tiles))
	}
	for _, ref := range part.Index.Tiles {
		subset := part.Subsets[ref.ID]
		if len(subset) == 0 {
			t.Errorf("tile %s indexed but empty", ref.ID)
		}
		for _, n := range subset {
			if !ref.Bounds.Contains(n.Lat, n.Lng) {
				t.Errorf("node %s outside its tile bounds %+v", n.ExternalID, ref.Bounds)
			}
		}
	}
}

type mockFetcher struct {
	fetchFn func(ctx context.Context) ([]domain.Node, error)
}

func (m *mockFetcher) Fetch(ctx context.Context) ([]domain.Node, error) { return m.fetchFn(ctx) }

type mockSnapshots struct {
	datasets int
	tiles    int
	failTile bool
}

func (m *mockSnapshots) WriteDataset(ds *domain.Dataset) error {
	m.datasets++
	return nil
}

func (m *mockSnapshots) WriteTiles(idx *domain.TileIndex, subsets map[string][]domain.Node) error {
	if m.failTile {
		return errors.New("disk full")
	}
	m.tiles++
	return nil
}

func TestRefresh_HappyPath(t *testing.T) {
	fetcher := &mockFetcher{fetchFn: func(ctx context.Context) ([]domain.Node, error) {
		return []domain.Node{
			{ID: "1", ExternalID: "a", Lat: 51.0, Lng: 5.0},
			{ID: "2", ExternalID: "b", Lat: 52.0, Lng: 6.0},
		}, nil
	}}
	snaps := &mockSnapshots{}

	svc := NewRefreshService(fetcher, snaps, nil, nil, testCoverage, 2)
	nodeCount, tileCount, err := svc.Refresh(context.Background(), "overpass")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if nodeCount != 2 || tileCount == 0 {
		t.Errorf("unexpected counts: nodes=%d tiles=%d", nodeCount, tileCount)
	}
	if snaps.datasets != 1 || snaps.tiles != 1 {
		t.Errorf("snapshot writes: datasets=%d tiles=%d", snaps.datasets, snaps.tiles)
	}
}

func TestRefresh_RefusesEmptyUpstream(t *testing.T) {
	fetcher := &mockFetcher{fetchFn: func(ctx context.Context) ([]domain.Node, error) {
		return nil, nil
	}}
	snaps := &mockSnapshots{}

	svc := NewRefreshService(fetcher, snaps, nil, nil, testCoverage, 2)
	if _, _, err := svc.Refresh(context.Background(), "overpass"); err == nil {
		t.Fatal("expected error for empty upstream result")
	}
	if snaps.datasets != 0 {
		t.Error("empty result must not overwrite the snapshot")
	}
}

func TestRefresh_WriteFailureSurfaces(t *testing.T) {
	fetcher := &mockFetcher{fetchFn: func(ctx context.Context) ([]domain.Node, error) {
		return []domain.Node{{ID: "1", ExternalID: "a", Lat: 51.0, Lng: 5.0}}, nil
	}}
	snaps := &mockSnapshots{failTile: true}

	svc := NewRefreshService(fetcher, snaps, nil, nil, testCoverage, 2)
	if _, _, err := svc.Refresh(context.Background(), "overpass"); err == nil {
		t.Fatal("expected tile write failure to surface")
	}
}
