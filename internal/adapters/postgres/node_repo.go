package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gertjana/fietsrouteapp/internal/core/domain"
)

// NodeRepo implements ports.NodeRepository and ports.NodeSource with
// pgx. Plain lat/lng columns are enough here; per-request viewports are
// served from the tile files, the database is the ingestion sink and
// the alternative full-dataset source.
type NodeRepo struct {
	db *DB
}

// NewNodeRepo creates a new NodeRepo.
func NewNodeRepo(db *DB) *NodeRepo {
	return &NodeRepo{db: db}
}

// UpsertBatch inserts or updates nodes keyed by external_id using
// pgx.Batch.
func (r *NodeRepo) UpsertBatch(ctx context.Context, nodes []domain.Node) error {
	if len(nodes) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, n := range nodes {
		batch.Queue(`
			INSERT INTO nodes (external_id, ref, name, lat, lng, network, operator, place, tags)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (external_id) DO UPDATE
			SET ref = EXCLUDED.ref, name = EXCLUDED.name,
			    lat = EXCLUDED.lat, lng = EXCLUDED.lng,
			    network = EXCLUDED.network, operator = EXCLUDED.operator,
			    place = EXCLUDED.place, tags = EXCLUDED.tags,
			    updated_at = now()
		`, n.ExternalID, n.ID, n.Name, n.Lat, n.Lng, n.Network, n.Operator, n.Place, n.Tags)
	}

	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range nodes {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

// FindInBounds returns nodes inside the box, bounds inclusive.
func (r *NodeRepo) FindInBounds(ctx context.Context, box domain.BoundingBox) ([]domain.Node, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT external_id, ref, COALESCE(name, ''), lat, lng,
		       COALESCE(network, ''), COALESCE(operator, ''), COALESCE(place, ''), COALESCE(tags, '{}')
		FROM nodes
		WHERE lat BETWEEN $1 AND $2 AND lng BETWEEN $3 AND $4
	`, box.South, box.North, box.West, box.East)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanNodes(rows)
}

// GetByExternalID returns a single node.
func (r *NodeRepo) GetByExternalID(ctx context.Context, externalID string) (*domain.Node, error) {
	var n domain.Node
	err := r.db.Pool.QueryRow(ctx, `
		SELECT external_id, ref, COALESCE(name, ''), lat, lng,
		       COALESCE(network, ''), COALESCE(operator, ''), COALESCE(place, ''), COALESCE(tags, '{}')
		FROM nodes WHERE external_id = $1
	`, externalID).Scan(
		&n.ExternalID, &n.ID, &n.Name, &n.Lat, &n.Lng,
		&n.Network, &n.Operator, &n.Place, &n.Tags,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &n, nil
}

// Count returns the total node count.
func (r *NodeRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.Pool.QueryRow(ctx, `SELECT count(*) FROM nodes`).Scan(&count)
	return count, err
}

// LoadAll returns every node as a dataset, so the repo can stand in
// for the file source when storage.backend is postgres.
func (r *NodeRepo) LoadAll(ctx context.Context) (*domain.Dataset, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT external_id, ref, COALESCE(name, ''), lat, lng,
		       COALESCE(network, ''), COALESCE(operator, ''), COALESCE(place, ''), COALESCE(tags, '{}')
		FROM nodes ORDER BY external_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	nodes, err := scanNodes(rows)
	if err != nil {
		return nil, err
	}

	var last *time.Time
	if err := r.db.Pool.QueryRow(ctx, `SELECT max(updated_at) FROM nodes`).Scan(&last); err != nil {
		return nil, err
	}

	ds := &domain.Dataset{Nodes: nodes, Source: "postgres"}
	if last != nil {
		ds.LastUpdated = *last
	}
	return ds, nil
}

func scanNodes(rows pgx.Rows) ([]domain.Node, error) {
	var nodes []domain.Node
	for rows.Next() {
		var n domain.Node
		if err := rows.Scan(
			&n.ExternalID, &n.ID, &n.Name, &n.Lat, &n.Lng,
			&n.Network, &n.Operator, &n.Place, &n.Tags,
		); err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}
