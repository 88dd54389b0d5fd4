package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/gertjana/fietsrouteapp/internal/pkg/metrics"
)

func cacheHit(c *fiber.Ctx, op string) {
	metrics.CacheHits.WithLabelValues(op).Inc()
	c.Set("X-Cache", "HIT")
}

func cacheMiss(op string) {
	metrics.CacheMisses.WithLabelValues(op).Inc()
}
