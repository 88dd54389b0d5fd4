package http

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/gertjana/fietsrouteapp/internal/core/cluster"
	"github.com/gertjana/fietsrouteapp/internal/core/domain"
)

// markerNode serializes a Singleton: the node's own payload plus a
// count of 1.
type markerNode struct {
	Type       string            `json:"type"`
	ID         string            `json:"id"`
	Lat        float64           `json:"lat"`
	Lng        float64           `json:"lng"`
	ExternalID string            `json:"externalId"`
	Name       string            `json:"name,omitempty"`
	Network    string            `json:"network,omitempty"`
	Operator   string            `json:"operator,omitempty"`
	Place      string            `json:"place,omitempty"`
	Tags       map[string]string `json:"tags,omitempty"`
	Count      int               `json:"count"`
}

// markerCluster serializes a Group: a synthetic id, the centroid, and a
// membership summary (not the full payload, to bound response size).
type markerCluster struct {
	Type  string          `json:"type"`
	ID    string          `json:"id"`
	Lat   float64         `json:"lat"`
	Lng   float64         `json:"lng"`
	Count int             `json:"count"`
	Nodes []memberSummary `json:"nodes"`
}

type memberSummary struct {
	ID         string `json:"id"`
	Name       string `json:"name,omitempty"`
	ExternalID string `json:"externalId"`
}

// clustersResponse is the envelope for the main viewport endpoint.
type clustersResponse struct {
	Bounds             domain.BoundingBox `json:"bounds"`
	Clusters           []any              `json:"clusters"`
	Count              int                `json:"count"`
	Zoom               int                `json:"zoom"`
	ClusterDistanceKm  float64            `json:"clusterDistanceKm"`
	OriginalPointCount int                `json:"originalPointCount"`
	GroupCount         int                `json:"groupCount"`
	SingletonCount     int                `json:"singletonCount"`
	Source             string             `json:"source"`
}

// parseBounds reads the four bounding-box query parameters. Every
// value must parse as a finite number; anything else rejects the
// request before any storage access.
func parseBounds(c *fiber.Ctx) (domain.BoundingBox, bool) {
	var box domain.BoundingBox
	for _, p := range []struct {
		name string
		dst  *float64
	}{
		{"south", &box.South},
		{"west", &box.West},
		{"north", &box.North},
		{"east", &box.East},
	} {
		raw := c.Query(p.name)
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return box, false
		}
		*p.dst = v
	}
	return box, true
}

func serializeMarkers(result cluster.Result) []any {
	clusters := make([]any, 0, len(result.Markers))
	clusterSeq := 0
	for _, m := range result.Markers {
		switch v := m.(type) {
		case cluster.Singleton:
			n := v.Node
			clusters = append(clusters, markerNode{
				Type:       "node",
				ID:         n.ID,
				Lat:        n.Lat,
				Lng:        n.Lng,
				ExternalID: n.ExternalID,
				Name:       n.Name,
				Network:    n.Network,
				Operator:   n.Operator,
				Place:      n.Place,
				Tags:       n.Tags,
				Count:      1,
			})
		case cluster.Group:
			clusterSeq++
			members := make([]memberSummary, 0, len(v.Members))
			for _, n := range v.Members {
				members = append(members, memberSummary{ID: n.ID, Name: n.Name, ExternalID: n.ExternalID})
			}
			clusters = append(clusters, markerCluster{
				Type:  "cluster",
				ID:    "cluster-" + strconv.Itoa(clusterSeq),
				Lat:   v.Lat,
				Lng:   v.Lng,
				Count: len(v.Members),
				Nodes: members,
			})
		}
	}
	return clusters
}

// NodesHandler is the main viewport endpoint: fetch every node inside
// the box and reduce them to markers for the (explicit or inferred)
// zoom level. GET /v1/nodes?south=&west=&north=&east=[&zoom=]
func NodesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		box, ok := parseBounds(c)
		if !ok {
			return errBadRequest(c, "south, west, north and east must be finite numbers")
		}

		var zoom *int
		if raw := c.Query("zoom"); raw != "" {
			z, err := strconv.Atoi(raw)
			if err != nil {
				return errBadRequest(c, "zoom must be an integer")
			}
			zoom = &z
		}

		cacheKey := "clusters:" + string(c.Request().URI().QueryString())
		if deps.Cache != nil {
			if data, err := deps.Cache.Get(c.Context(), cacheKey); err == nil {
				cacheHit(c, "clusters")
				c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
				return c.Send(data)
			}
			cacheMiss("clusters")
		}

		out, err := deps.Clusters.ClustersInBounds(c.Context(), box, zoom)
		if err != nil {
			return errUnavailable(c, err.Error())
		}

		resp := clustersResponse{
			Bounds:             out.Bounds,
			Clusters:           serializeMarkers(out.Result),
			Count:              len(out.Result.Markers),
			Zoom:               out.Result.Zoom,
			ClusterDistanceKm:  out.Result.RadiusKm,
			OriginalPointCount: out.Result.InputCount,
			GroupCount:         out.Result.Groups,
			SingletonCount:     out.Result.Singletons,
			Source:             out.Source,
		}

		if deps.Cache != nil {
			if data, err := json.Marshal(resp); err == nil {
				// 5 minutes: derived results, cheap to recompute
				_ = deps.Cache.Set(c.Context(), cacheKey, data, 300)
			}
		}

		return c.JSON(resp)
	}
}

// RawNodesHandler lists the unreduced nodes inside a box, paginated.
// GET /v1/nodes/raw?south=&west=&north=&east=&offset=&limit=
func RawNodesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		box, ok := parseBounds(c)
		if !ok {
			return errBadRequest(c, "south, west, north and east must be finite numbers")
		}

		nodes, _, err := deps.Nodes.QueryBounds(c.Context(), box)
		if err != nil {
			return errUnavailable(c, err.Error())
		}

		offset := c.QueryInt("offset", 0)
		limit := c.QueryInt("limit", 100)
		if offset < 0 {
			offset = 0
		}
		if limit <= 0 || limit > 500 {
			limit = 100
		}

		total := len(nodes)
		if offset >= total {
			nodes = nil
		} else {
			end := offset + limit
			if end > total {
				end = total
			}
			nodes = nodes[offset:end]
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: nodes, Pagination: pg})
	}
}

// GetNodeHandler returns a single node by its globally unique external
// id. The reference number is not a usable lookup key, it repeats
// across the country.
func GetNodeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("externalId")
		if id == "" {
			return errBadRequest(c, "external id is required")
		}

		node, err := deps.Nodes.GetByExternalID(c.Context(), id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return errNotFound(c, "node not found")
			}
			return errUnavailable(c, err.Error())
		}
		return c.JSON(node)
	}
}

// DatasetStatusHandler reports what is currently being served.
func DatasetStatusHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		stats, err := deps.Nodes.Stats(c.Context())
		if err != nil {
			return errUnavailable(c, err.Error())
		}
		c.Set("Cache-Control", "public, max-age=60")
		return c.JSON(stats)
	}
}

// CacheClearHandler drops the in-process node caches and the derived
// cluster responses, forcing reloads from backing storage.
func CacheClearHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		deps.Nodes.InvalidateCache()
		if deps.Cache != nil {
			if err := deps.Cache.FlushPrefix(c.Context(), "clusters:"); err != nil {
				return errInternal(c, err.Error())
			}
		}
		return c.JSON(fiber.Map{"status": "cleared"})
	}
}
