package overpass

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gertjana/fietsrouteapp/internal/core/domain"
)

// nodeQuery selects every cycling junction node (rcn_ref) inside the
// coverage box. Overpass wants (south,west,north,east).
const nodeQuery = `[out:json][timeout:120];
node["rcn_ref"](%f,%f,%f,%f);
out body;`

// Client downloads junction nodes from an Overpass API endpoint.
type Client struct {
	endpoint string
	coverage domain.BoundingBox
	http     *http.Client
}

// NewClient creates a Client for the given Overpass endpoint. The
// coverage box bounds the query; Overpass rejects unbounded node
// queries on public instances.
func NewClient(endpoint string, coverage domain.BoundingBox) *Client {
	return &Client{
		endpoint: endpoint,
		coverage: coverage,
		http: &http.Client{
			Timeout: 3 * time.Minute,
		},
	}
}

// overpassResponse is the subset of the Overpass JSON output we read.
type overpassResponse struct {
	Elements []struct {
		Type string            `json:"type"`
		ID   int64             `json:"id"`
		Lat  float64           `json:"lat"`
		Lon  float64           `json:"lon"`
		Tags map[string]string `json:"tags"`
	} `json:"elements"`
}

// Fetch runs the junction node query and maps the result to domain
// nodes. Elements without an rcn_ref tag are skipped; the ref repeats
// across the country, so the OSM element id becomes the external id.
func (c *Client) Fetch(ctx context.Context) ([]domain.Node, error) {
	query := fmt.Sprintf(nodeQuery, c.coverage.South, c.coverage.West, c.coverage.North, c.coverage.East)

	form := url.Values{"data": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint,
		bytes.NewBufferString(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build overpass request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("overpass request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("overpass returned %d: %s", resp.StatusCode, string(body))
	}

	var out overpassResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode overpass response: %w", err)
	}

	nodes := make([]domain.Node, 0, len(out.Elements))
	skipped := 0
	for _, el := range out.Elements {
		if el.Type != "node" {
			continue
		}
		ref := el.Tags["rcn_ref"]
		if ref == "" {
			skipped++
			continue
		}
		nodes = append(nodes, domain.Node{
			ID:         ref,
			ExternalID: strconv.FormatInt(el.ID, 10),
			Lat:        el.Lat,
			Lng:        el.Lon,
			Name:       el.Tags["name"],
			Network:    el.Tags["network"],
			Operator:   el.Tags["operator"],
			Place:      el.Tags["place"],
			Tags:       el.Tags,
		})
	}

	slog.Info("overpass fetch complete",
		"nodes", len(nodes),
		"skipped", skipped,
		"took", time.Since(start).String())

	return nodes, nil
}
