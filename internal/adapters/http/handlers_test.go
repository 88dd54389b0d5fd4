package http_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	handler "github.com/gertjana/fietsrouteapp/internal/adapters/http"
	"github.com/gertjana/fietsrouteapp/internal/core/domain"
	"github.com/gertjana/fietsrouteapp/internal/core/usecases"
)

// ---- Mock sources ----

type mockNodeSource struct {
	loadAllFn func(ctx context.Context) (*domain.Dataset, error)
}

func (m *mockNodeSource) LoadAll(ctx context.Context) (*domain.Dataset, error) {
	if m.loadAllFn != nil {
		return m.loadAllFn(ctx)
	}
	return &domain.Dataset{Source: "file", LastUpdated: time.Now()}, nil
}

type mockTileSource struct {
	indexFn    func(ctx context.Context) (*domain.TileIndex, error)
	loadTileFn func(ctx context.Context, id string) ([]domain.Node, error)
}

func (m *mockTileSource) Index(ctx context.Context) (*domain.TileIndex, error) {
	if m.indexFn != nil {
		return m.indexFn(ctx)
	}
	return nil, domain.ErrNoTileIndex
}

func (m *mockTileSource) LoadTile(ctx context.Context, id string) ([]domain.Node, error) {
	if m.loadTileFn != nil {
		return m.loadTileFn(ctx, id)
	}
	return nil, nil
}

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return app
}

func makeDeps(source *mockNodeSource, tiles *mockTileSource) *handler.Dependencies {
	var nodes *usecases.NodeService
	if tiles == nil {
		// a typed nil would dodge the service's nil check
		nodes = usecases.NewNodeService(source, nil, time.Hour, 5*time.Second)
	} else {
		nodes = usecases.NewNodeService(source, tiles, time.Hour, 5*time.Second)
	}
	return &handler.Dependencies{
		Nodes:    nodes,
		Clusters: usecases.NewClusterService(nodes),
	}
}

func readBody(t *testing.T, body io.Reader) []byte {
	t.Helper()
	b, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return b
}

func datasetOf(nodes ...domain.Node) *mockNodeSource {
	return &mockNodeSource{
		loadAllFn: func(ctx context.Context) (*domain.Dataset, error) {
			return &domain.Dataset{Nodes: nodes, Source: "file", LastUpdated: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}, nil
		},
	}
}

func node(id, ext string, lat, lng float64) domain.Node {
	return domain.Node{ID: id, ExternalID: ext, Lat: lat, Lng: lng, Name: "Knooppunt " + id}
}

// ---- /v1/nodes ----

func TestNodes_MissingBounds(t *testing.T) {
	app := setupApp(makeDeps(datasetOf(), nil))

	req := httptest.NewRequest("GET", "/v1/nodes?south=52&west=5&north=53", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestNodes_NonFiniteBounds(t *testing.T) {
	app := setupApp(makeDeps(datasetOf(), nil))

	for _, q := range []string{
		"south=NaN&west=5&north=53&east=6",
		"south=52&west=+Inf&north=53&east=6",
		"south=52&west=5&north=abc&east=6",
	} {
		req := httptest.NewRequest("GET", "/v1/nodes?"+q, nil)
		resp, _ := app.Test(req, -1)
		if resp.StatusCode != 400 {
			t.Errorf("query %q: expected 400, got %d", q, resp.StatusCode)
		}
	}
}

func TestNodes_EmptyViewport(t *testing.T) {
	app := setupApp(makeDeps(datasetOf(node("10", "osm-1", 52.0, 5.0)), nil))

	// Viewport in the North Sea, far from the only node
	req := httptest.NewRequest("GET", "/v1/nodes?south=54.0&west=2.0&north=54.5&east=2.5&zoom=8", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var out struct {
		Clusters           []json.RawMessage `json:"clusters"`
		Count              int               `json:"count"`
		OriginalPointCount int               `json:"originalPointCount"`
	}
	if err := json.Unmarshal(readBody(t, resp.Body), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Count != 0 || out.OriginalPointCount != 0 {
		t.Errorf("expected empty result, got count=%d original=%d", out.Count, out.OriginalPointCount)
	}
	if out.Clusters == nil {
		t.Error("clusters should be an empty array, not null")
	}
}

func TestNodes_GroupsAndSingletons(t *testing.T) {
	app := setupApp(makeDeps(datasetOf(
		node("10", "osm-1", 52.000, 5.000),
		node("11", "osm-2", 52.001, 5.001),
		node("12", "osm-3", 52.500, 5.500),
	), nil))

	req := httptest.NewRequest("GET", "/v1/nodes?south=51&west=4&north=53&east=6&zoom=5", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var out struct {
		Clusters []struct {
			Type  string `json:"type"`
			ID    string `json:"id"`
			Count int    `json:"count"`
			Nodes []struct {
				ID         string `json:"id"`
				ExternalID string `json:"externalId"`
			} `json:"nodes"`
		} `json:"clusters"`
		Count              int     `json:"count"`
		Zoom               int     `json:"zoom"`
		ClusterDistanceKm  float64 `json:"clusterDistanceKm"`
		OriginalPointCount int     `json:"originalPointCount"`
		GroupCount         int     `json:"groupCount"`
		SingletonCount     int     `json:"singletonCount"`
		Source             string  `json:"source"`
	}
	if err := json.Unmarshal(readBody(t, resp.Body), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if out.Count != 2 || out.GroupCount != 1 || out.SingletonCount != 1 {
		t.Fatalf("expected 1 group + 1 singleton, got count=%d groups=%d singletons=%d",
			out.Count, out.GroupCount, out.SingletonCount)
	}
	if out.Zoom != 5 || out.ClusterDistanceKm != 50.0 {
		t.Errorf("expected zoom 5 radius 50, got zoom=%d radius=%v", out.Zoom, out.ClusterDistanceKm)
	}
	if out.OriginalPointCount != 3 {
		t.Errorf("expected 3 original points, got %d", out.OriginalPointCount)
	}
	if out.Source != "full" {
		t.Errorf("expected source full without a tile index, got %q", out.Source)
	}

	var group, single int
	for _, m := range out.Clusters {
		switch m.Type {
		case "cluster":
			group++
			if m.Count != 2 || len(m.Nodes) != 2 {
				t.Errorf("group should have 2 members, got count=%d nodes=%d", m.Count, len(m.Nodes))
			}
			if m.ID != "cluster-1" {
				t.Errorf("expected synthetic id cluster-1, got %q", m.ID)
			}
		case "node":
			single++
			if m.Count != 1 {
				t.Errorf("node marker count should be 1, got %d", m.Count)
			}
		default:
			t.Errorf("unknown marker type %q", m.Type)
		}
	}
	if group != 1 || single != 1 {
		t.Errorf("marker type tally mismatch: groups=%d singles=%d", group, single)
	}
}

func TestNodes_DetailZoomDisablesGrouping(t *testing.T) {
	app := setupApp(makeDeps(datasetOf(
		node("10", "osm-1", 52.000, 5.000),
		node("11", "osm-2", 52.0001, 5.0001),
	), nil))

	req := httptest.NewRequest("GET", "/v1/nodes?south=51&west=4&north=53&east=6&zoom=14", nil)
	resp, _ := app.Test(req, -1)

	var out struct {
		Count             int     `json:"count"`
		GroupCount        int     `json:"groupCount"`
		ClusterDistanceKm float64 `json:"clusterDistanceKm"`
	}
	if err := json.Unmarshal(readBody(t, resp.Body), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Count != 2 || out.GroupCount != 0 {
		t.Errorf("at detail zoom every node is its own marker: count=%d groups=%d", out.Count, out.GroupCount)
	}
	if out.ClusterDistanceKm != 0 {
		t.Errorf("detail zoom radius should be 0, got %v", out.ClusterDistanceKm)
	}
}

func TestNodes_InfersZoomFromArea(t *testing.T) {
	app := setupApp(makeDeps(datasetOf(node("10", "osm-1", 52.0, 5.0)), nil))

	// Whole-country viewport, area ≈ 12.3 deg² → zoom 5
	req := httptest.NewRequest("GET", "/v1/nodes?south=50.7&west=3.2&north=53.7&east=7.3", nil)
	resp, _ := app.Test(req, -1)

	var out struct {
		Zoom int `json:"zoom"`
	}
	if err := json.Unmarshal(readBody(t, resp.Body), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Zoom != 5 {
		t.Errorf("expected inferred zoom 5 for a country-sized viewport, got %d", out.Zoom)
	}
}

func TestNodes_BadZoom(t *testing.T) {
	app := setupApp(makeDeps(datasetOf(), nil))

	req := httptest.NewRequest("GET", "/v1/nodes?south=52&west=5&north=53&east=6&zoom=high", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestNodes_StorageError(t *testing.T) {
	app := setupApp(makeDeps(&mockNodeSource{
		loadAllFn: func(ctx context.Context) (*domain.Dataset, error) {
			return nil, context.DeadlineExceeded
		},
	}, nil))

	req := httptest.NewRequest("GET", "/v1/nodes?south=52&west=5&north=53&east=6", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 503 {
		t.Fatalf("expected 503 on storage failure, got %d", resp.StatusCode)
	}
}

func TestNodes_TiledSource(t *testing.T) {
	grid := &domain.TileIndex{
		Tiles: []domain.TileRef{
			{ID: "t-0-0", Bounds: domain.BoundingBox{South: 50, West: 4, North: 52, East: 6}},
			{ID: "t-0-1", Bounds: domain.BoundingBox{South: 52, West: 4, North: 54, East: 6}},
		},
		Source:      "file",
		LastUpdated: time.Now(),
	}
	tiles := &mockTileSource{
		indexFn: func(ctx context.Context) (*domain.TileIndex, error) { return grid, nil },
		loadTileFn: func(ctx context.Context, id string) ([]domain.Node, error) {
			if id == "t-0-0" {
				return []domain.Node{node("10", "osm-1", 51.0, 5.0)}, nil
			}
			return nil, nil
		},
	}
	app := setupApp(makeDeps(datasetOf(), tiles))

	req := httptest.NewRequest("GET", "/v1/nodes?south=50.5&west=4.5&north=51.5&east=5.5&zoom=9", nil)
	resp, _ := app.Test(req, -1)

	var out struct {
		Source             string `json:"source"`
		OriginalPointCount int    `json:"originalPointCount"`
	}
	if err := json.Unmarshal(readBody(t, resp.Body), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Source != "tiles" {
		t.Errorf("expected tiled path, got source %q", out.Source)
	}
	if out.OriginalPointCount != 1 {
		t.Errorf("expected 1 node from tile, got %d", out.OriginalPointCount)
	}
}

// ---- /v1/nodes/raw ----

func TestRawNodes_Pagination(t *testing.T) {
	nodes := make([]domain.Node, 0, 5)
	for i := 0; i < 5; i++ {
		nodes = append(nodes, node(string(rune('a'+i)), "osm-"+string(rune('a'+i)), 52.0+float64(i)*0.01, 5.0))
	}
	app := setupApp(makeDeps(datasetOf(nodes...), nil))

	req := httptest.NewRequest("GET", "/v1/nodes/raw?south=51&west=4&north=53&east=6&offset=2&limit=2", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var out struct {
		Data       []domain.Node      `json:"data"`
		Pagination handler.Pagination `json:"pagination"`
	}
	if err := json.Unmarshal(readBody(t, resp.Body), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out.Data) != 2 || out.Pagination.Total != 5 || out.Pagination.Offset != 2 {
		t.Errorf("pagination mismatch: len=%d total=%d offset=%d",
			len(out.Data), out.Pagination.Total, out.Pagination.Offset)
	}
	if resp.Header.Get("Link") == "" {
		t.Error("expected Link header on paginated response")
	}
}

func TestRawNodes_BadBounds(t *testing.T) {
	app := setupApp(makeDeps(datasetOf(), nil))

	req := httptest.NewRequest("GET", "/v1/nodes/raw?south=52&west=5", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

// ---- /v1/nodes/:externalId ----

func TestGetNode_Success(t *testing.T) {
	app := setupApp(makeDeps(datasetOf(node("23", "osm-4451", 52.1, 5.2)), nil))

	req := httptest.NewRequest("GET", "/v1/nodes/osm-4451", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var n domain.Node
	if err := json.Unmarshal(readBody(t, resp.Body), &n); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if n.ID != "23" || n.ExternalID != "osm-4451" {
		t.Errorf("wrong node returned: %+v", n)
	}
}

func TestGetNode_NotFound(t *testing.T) {
	app := setupApp(makeDeps(datasetOf(node("23", "osm-4451", 52.1, 5.2)), nil))

	req := httptest.NewRequest("GET", "/v1/nodes/osm-missing", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

// ---- /v1/dataset/status ----

func TestDatasetStatus(t *testing.T) {
	app := setupApp(makeDeps(datasetOf(
		node("10", "osm-1", 52.0, 5.0),
		node("11", "osm-2", 52.1, 5.1),
	), nil))

	req := httptest.NewRequest("GET", "/v1/dataset/status", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var out struct {
		NodeCount int    `json:"node_count"`
		Source    string `json:"source"`
	}
	if err := json.Unmarshal(readBody(t, resp.Body), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.NodeCount != 2 || out.Source != "file" {
		t.Errorf("unexpected status: %+v", out)
	}
}

// ---- /v1/cache/clear ----

func TestCacheClear_ForcesReload(t *testing.T) {
	loads := 0
	source := &mockNodeSource{
		loadAllFn: func(ctx context.Context) (*domain.Dataset, error) {
			loads++
			return &domain.Dataset{Source: "file", LastUpdated: time.Now()}, nil
		},
	}
	app := setupApp(makeDeps(source, nil))

	get := httptest.NewRequest("GET", "/v1/nodes?south=52&west=5&north=53&east=6&zoom=8", nil)
	app.Test(get, -1)
	app.Test(httptest.NewRequest("GET", "/v1/nodes?south=52&west=5&north=53&east=6&zoom=8", nil), -1)
	if loads != 1 {
		t.Fatalf("expected cached dataset after first query, loads=%d", loads)
	}

	clear := httptest.NewRequest("POST", "/v1/cache/clear", nil)
	resp, _ := app.Test(clear, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	app.Test(httptest.NewRequest("GET", "/v1/nodes?south=52&west=5&north=53&east=6&zoom=8", nil), -1)
	if loads != 2 {
		t.Errorf("expected a reload after cache clear, loads=%d", loads)
	}
}

// ---- health ----

func TestHealth(t *testing.T) {
	app := setupApp(makeDeps(datasetOf(), nil))

	req := httptest.NewRequest("GET", "/v1/health", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestReady_WithWorkingStore(t *testing.T) {
	app := setupApp(makeDeps(datasetOf(node("10", "osm-1", 52.0, 5.0)), nil))

	req := httptest.NewRequest("GET", "/v1/ready", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200 when the node store answers, got %d", resp.StatusCode)
	}
}

func TestReady_StoreDown(t *testing.T) {
	app := setupApp(makeDeps(&mockNodeSource{
		loadAllFn: func(ctx context.Context) (*domain.Dataset, error) {
			return nil, context.DeadlineExceeded
		},
	}, nil))

	req := httptest.NewRequest("GET", "/v1/ready", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 503 {
		t.Fatalf("expected 503 when the node store fails, got %d", resp.StatusCode)
	}
}

// ---- GraphQL ----

func TestGraphQL_DatasetStatus(t *testing.T) {
	app := setupApp(makeDeps(datasetOf(node("10", "osm-1", 52.0, 5.0)), nil))

	body := `{"query":"{ datasetStatus { node_count source } }"}`
	req := httptest.NewRequest("POST", "/graphql", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var out struct {
		Data struct {
			DatasetStatus struct {
				NodeCount int    `json:"node_count"`
				Source    string `json:"source"`
			} `json:"datasetStatus"`
		} `json:"data"`
	}
	if err := json.Unmarshal(readBody(t, resp.Body), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Data.DatasetStatus.NodeCount != 1 || out.Data.DatasetStatus.Source != "file" {
		t.Errorf("unexpected graphql status: %+v", out.Data.DatasetStatus)
	}
}

func TestGraphQL_Clusters(t *testing.T) {
	app := setupApp(makeDeps(datasetOf(
		node("10", "osm-1", 52.000, 5.000),
		node("11", "osm-2", 52.001, 5.001),
	), nil))

	body := `{"query":"{ clusters(south: 51, west: 4, north: 53, east: 6, zoom: 5) { group_count singleton_count markers { size } } }"}`
	req := httptest.NewRequest("POST", "/graphql", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)

	var out struct {
		Data struct {
			Clusters struct {
				GroupCount     int `json:"group_count"`
				SingletonCount int `json:"singleton_count"`
				Markers        []struct {
					Size int `json:"size"`
				} `json:"markers"`
			} `json:"clusters"`
		} `json:"data"`
	}
	if err := json.Unmarshal(readBody(t, resp.Body), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Data.Clusters.GroupCount != 1 || out.Data.Clusters.SingletonCount != 0 {
		t.Errorf("expected one group, got %+v", out.Data.Clusters)
	}
	if len(out.Data.Clusters.Markers) != 1 || out.Data.Clusters.Markers[0].Size != 2 {
		t.Errorf("expected one marker of size 2, got %+v", out.Data.Clusters.Markers)
	}
}
