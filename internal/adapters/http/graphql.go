package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/gertjana/fietsrouteapp/internal/core/cluster"
	"github.com/gertjana/fietsrouteapp/internal/core/domain"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	nodeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Node",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.String},
			"external_id": &graphql.Field{Type: graphql.String},
			"lat":         &graphql.Field{Type: graphql.Float},
			"lng":         &graphql.Field{Type: graphql.Float},
			"name":        &graphql.Field{Type: graphql.String},
			"network":     &graphql.Field{Type: graphql.String},
			"operator":    &graphql.Field{Type: graphql.String},
			"place":       &graphql.Field{Type: graphql.String},
		},
	})

	// Groups and singletons share one shape: node is null for groups.
	markerType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Marker",
		Fields: graphql.Fields{
			"lat":  &graphql.Field{Type: graphql.Float},
			"lng":  &graphql.Field{Type: graphql.Float},
			"size": &graphql.Field{Type: graphql.Int},
			"node": &graphql.Field{Type: nodeType},
		},
	})

	clusterResultType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ClusterResult",
		Fields: graphql.Fields{
			"zoom":                 &graphql.Field{Type: graphql.Int},
			"cluster_distance_km":  &graphql.Field{Type: graphql.Float},
			"original_point_count": &graphql.Field{Type: graphql.Int},
			"group_count":          &graphql.Field{Type: graphql.Int},
			"singleton_count":      &graphql.Field{Type: graphql.Int},
			"source":               &graphql.Field{Type: graphql.String},
			"markers":              &graphql.Field{Type: graphql.NewList(markerType)},
		},
	})

	datasetStatusType := graphql.NewObject(graphql.ObjectConfig{
		Name: "DatasetStatus",
		Fields: graphql.Fields{
			"node_count":   &graphql.Field{Type: graphql.Int},
			"source":       &graphql.Field{Type: graphql.String},
			"last_updated": &graphql.Field{Type: graphql.String},
			"tile_count":   &graphql.Field{Type: graphql.Int},
		},
	})

	boundsArgs := graphql.FieldConfigArgument{
		"south": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
		"west":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
		"north": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
		"east":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
	}

	boxFromArgs := func(p graphql.ResolveParams) domain.BoundingBox {
		return domain.BoundingBox{
			South: p.Args["south"].(float64),
			West:  p.Args["west"].(float64),
			North: p.Args["north"].(float64),
			East:  p.Args["east"].(float64),
		}
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"nodesInBounds": &graphql.Field{
				Type:        graphql.NewList(nodeType),
				Description: "Raw junction nodes inside a viewport",
				Args:        boundsArgs,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					nodes, _, err := deps.Nodes.QueryBounds(p.Context, boxFromArgs(p))
					return nodes, err
				},
			},
			"clusters": &graphql.Field{
				Type:        clusterResultType,
				Description: "Clustered markers for a viewport at a zoom level",
				Args: mergeArgs(boundsArgs, graphql.FieldConfigArgument{
					"zoom": &graphql.ArgumentConfig{Type: graphql.Int},
				}),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					var zoom *int
					if z, ok := p.Args["zoom"].(int); ok {
						zoom = &z
					}
					out, err := deps.Clusters.ClustersInBounds(p.Context, boxFromArgs(p), zoom)
					if err != nil {
						return nil, err
					}

					markers := make([]map[string]interface{}, 0, len(out.Result.Markers))
					for _, m := range out.Result.Markers {
						lat, lng := m.Centroid()
						entry := map[string]interface{}{
							"lat":  lat,
							"lng":  lng,
							"size": m.Size(),
						}
						if s, ok := m.(cluster.Singleton); ok {
							entry["node"] = s.Node
						}
						markers = append(markers, entry)
					}

					return map[string]interface{}{
						"zoom":                 out.Result.Zoom,
						"cluster_distance_km":  out.Result.RadiusKm,
						"original_point_count": out.Result.InputCount,
						"group_count":          out.Result.Groups,
						"singleton_count":      out.Result.Singletons,
						"source":               out.Source,
						"markers":              markers,
					}, nil
				},
			},
			"node": &graphql.Field{
				Type:        nodeType,
				Description: "Get a junction node by its OSM external ID",
				Args: graphql.FieldConfigArgument{
					"external_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Nodes.GetByExternalID(p.Context, p.Args["external_id"].(string))
				},
			},
			"datasetStatus": &graphql.Field{
				Type:        datasetStatusType,
				Description: "Dataset size, source, and freshness",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					stats, err := deps.Nodes.Stats(p.Context)
					if err != nil {
						return nil, err
					}
					return map[string]interface{}{
						"node_count":   stats.NodeCount,
						"source":       stats.Source,
						"last_updated": stats.LastUpdated.Format("2006-01-02T15:04:05Z07:00"),
						"tile_count":   stats.TileCount,
					}, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

func mergeArgs(base, extra graphql.FieldConfigArgument) graphql.FieldConfigArgument {
	out := make(graphql.FieldConfigArgument, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.Context(),
		})

		return c.JSON(result)
	}
}
