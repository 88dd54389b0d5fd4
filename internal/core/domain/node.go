package domain

import (
	"time"
)

// Node is a single junction node of the cycling network, as extracted
// from OpenStreetMap. Nodes are read-only at serving time; only the
// ingestion pipeline writes them.
type Node struct {
	// ID is the junction reference number painted on the signposts
	// (e.g. "23"). It is reused all over the country, so it must never
	// be used alone for identity-sensitive operations.
	ID string `json:"id"`
	// ExternalID is the OSM element id. Globally unique; the real
	// identity key for dedup and lookups.
	ExternalID string  `json:"externalId"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	Name       string  `json:"name,omitempty"`
	// Network is the cycling network tag (e.g. "rwn", "rcn").
	Network  string `json:"network,omitempty"`
	Operator string `json:"operator,omitempty"`
	// Place holds administrative hints (municipality, province).
	Place string `json:"place,omitempty"`
	// Tags carries any remaining source attributes unchanged. The
	// reduction engine never interprets them.
	Tags map[string]string `json:"tags,omitempty"`
}

// Dataset is the full node collection as loaded from the backing store.
type Dataset struct {
	Nodes       []Node    `json:"nodes"`
	Source      string    `json:"source"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// TileRef describes one tile of the fixed partition grid: its id and
// rectangular bounds. Tiles are spatially disjoint by construction.
type TileRef struct {
	ID     string      `json:"id"`
	Bounds BoundingBox `json:"bounds"`
}

// TileIndex maps the coverage area to its tiles.
type TileIndex struct {
	Tiles       []TileRef `json:"tiles"`
	Source      string    `json:"source"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// DatasetStats summarises the currently served dataset.
type DatasetStats struct {
	NodeCount   int       `json:"node_count"`
	TileCount   int       `json:"tile_count"`
	Source      string    `json:"source"`
	LastUpdated time.Time `json:"last_updated"`
}
