// Package cluster reduces a set of map nodes to a smaller set of visual
// markers for a given zoom level. It is a single-pass greedy reduction,
// not a hierarchical clustering: deterministic for a fixed input order,
// pure, and free of I/O.
package cluster

import (
	"github.com/gertjana/fietsrouteapp/internal/core/domain"
	"github.com/gertjana/fietsrouteapp/internal/pkg/geospatial"
)

// DetailZoom is the zoom level at or above which no grouping happens:
// the client is close enough that individual markers are legible.
const DetailZoom = 11

// radiusSteps maps a zoom breakpoint to a grouping radius in km. For a
// given zoom the entry with the largest key <= zoom applies.
var radiusSteps = []struct {
	zoom     int
	radiusKm float64
}{
	{0, 100},
	{3, 75},
	{5, 50},
	{7, 30},
	{9, 15},
	{10, 10},
}

// Marker is one output unit of the reduction: either a Singleton
// wrapping exactly one node, or a Group of two or more.
type Marker interface {
	// Centroid returns the marker's display coordinates.
	Centroid() (lat, lng float64)
	// Size returns the number of member nodes.
	Size() int
}

// Singleton wraps a single node at its own coordinates.
type Singleton struct {
	Node domain.Node
}

func (s Singleton) Centroid() (float64, float64) { return s.Node.Lat, s.Node.Lng }
func (s Singleton) Size() int                    { return 1 }

// Group merges two or more nodes. Lat/Lng is the arithmetic mean of the
// final membership; Members keeps the full list for downstream use.
type Group struct {
	Lat     float64
	Lng     float64
	Members []domain.Node
}

func (g Group) Centroid() (float64, float64) { return g.Lat, g.Lng }
func (g Group) Size() int                    { return len(g.Members) }

// Result is the outcome of one reduction. Everything besides Markers is
// derived and informational.
type Result struct {
	Markers    []Marker
	InputCount int
	Zoom       int
	RadiusKm   float64
	Groups     int
	Singletons int
}

// InferredZoom derives an ordinal zoom level from the rectangular area
// of a bounding box in degrees². A coarse heuristic, not a
// projection-aware zoom computation: larger viewports map to lower
// zoom.
func InferredZoom(b domain.BoundingBox) int {
	area := b.Area()
	switch {
	case area > 100:
		return 0
	case area > 25:
		return 3
	case area > 4:
		return 5
	case area > 1:
		return 7
	case area > 0.25:
		return 9
	case area > 0.1:
		return 10
	default:
		return DetailZoom
	}
}

// RadiusForZoom returns the grouping radius in km for a zoom level.
// Zoom levels at or above DetailZoom get radius 0 (no grouping).
func RadiusForZoom(zoom int) float64 {
	if zoom >= DetailZoom {
		return 0
	}
	radius := 50.0 // unreachable for zoom >= 0, the 0 step always matches
	for _, step := range radiusSteps {
		if step.zoom <= zoom {
			radius = step.radiusKm
		}
	}
	return radius
}

// Reduce groups nodes that fall within the zoom level's radius of each
// other into Group markers and leaves the rest as Singletons.
//
// The grouping is greedy over the input order: each unconsumed node
// seeds a group, and every later unconsumed node within the radius of
// the group's current centroid joins it, with the centroid recomputed
// after every admission. Because the centroid drifts while scanning, a
// node rejected early might have been admitted later; this
// order-dependence is accepted, the result is reproducible for a fixed
// input order. O(n²) worst case; callers bound n via viewport
// prefiltering.
//
// Every input node appears in exactly one output marker. Malformed
// coordinates (NaN, out of range) are passed through untouched.
func Reduce(nodes []domain.Node, zoom int) Result {
	res := Result{
		InputCount: len(nodes),
		Zoom:       zoom,
		RadiusKm:   RadiusForZoom(zoom),
	}

	if res.RadiusKm == 0 {
		res.Markers = make([]Marker, len(nodes))
		for i, n := range nodes {
			res.Markers[i] = Singleton{Node: n}
		}
		res.Singletons = len(nodes)
		return res
	}

	consumed := make([]bool, len(nodes))
	for i, seed := range nodes {
		if consumed[i] {
			continue
		}
		consumed[i] = true

		members := []domain.Node{seed}
		lat, lng := seed.Lat, seed.Lng

		for j := i + 1; j < len(nodes); j++ {
			if consumed[j] {
				continue
			}
			cand := nodes[j]
			if geospatial.DistanceKm(lat, lng, cand.Lat, cand.Lng) > res.RadiusKm {
				continue
			}
			consumed[j] = true
			members = append(members, cand)
			lat, lng = meanCoordinates(members)
		}

		if len(members) == 1 {
			res.Markers = append(res.Markers, Singleton{Node: seed})
			res.Singletons++
		} else {
			res.Markers = append(res.Markers, Group{Lat: lat, Lng: lng, Members: members})
			res.Groups++
		}
	}

	return res
}

func meanCoordinates(nodes []domain.Node) (lat, lng float64) {
	for _, n := range nodes {
		lat += n.Lat
		lng += n.Lng
	}
	return lat / float64(len(nodes)), lng / float64(len(nodes))
}
