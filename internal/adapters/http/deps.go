package http

import (
	"github.com/nats-io/nats.go"

	"github.com/gertjana/fietsrouteapp/internal/adapters/valkey"
	"github.com/gertjana/fietsrouteapp/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Nodes    *usecases.NodeService
	Clusters *usecases.ClusterService
	NATS     *nats.Conn
	Cache    *valkey.Cache
}
