package domain

import "time"

// DatasetRefreshed announces that the ingestion pipeline wrote a new
// dataset; serving processes drop their caches and map clients reload.
type DatasetRefreshed struct {
	NodeCount int       `json:"node_count"`
	TileCount int       `json:"tile_count"`
	Source    string    `json:"source"`
	At        time.Time `json:"at"`
}
