package usecases

import (
	"context"
	"time"

	"github.com/gertjana/fietsrouteapp/internal/core/cluster"
	"github.com/gertjana/fietsrouteapp/internal/core/domain"
	"github.com/gertjana/fietsrouteapp/internal/pkg/metrics"
)

// ClusterOutcome is the result of reducing one viewport.
type ClusterOutcome struct {
	Bounds domain.BoundingBox
	Result cluster.Result
	// Source is the query path that produced the input nodes.
	Source string
}

// ClusterService glues the bounded node query to the reduction engine.
type ClusterService struct {
	nodes *NodeService
}

// NewClusterService creates a ClusterService.
func NewClusterService(nodes *NodeService) *ClusterService {
	return &ClusterService{nodes: nodes}
}

// ClustersInBounds fetches all nodes inside the box and reduces them
// for the given zoom. When zoom is nil it is inferred from the box
// area. Markers are built fresh on every call; cluster identity does
// not persist across requests.
func (s *ClusterService) ClustersInBounds(ctx context.Context, box domain.BoundingBox, zoom *int) (*ClusterOutcome, error) {
	resolved := 0
	if zoom != nil {
		resolved = *zoom
	} else {
		resolved = cluster.InferredZoom(box)
	}

	nodes, source, err := s.nodes.QueryBounds(ctx, box)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result := cluster.Reduce(nodes, resolved)
	metrics.ClusterComputeDuration.Observe(time.Since(start).Seconds())
	metrics.NodesReduced.Add(float64(result.InputCount))

	return &ClusterOutcome{Bounds: box, Result: result, Source: source}, nil
}
