package ports

import "context"

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishDatasetRefreshed(ctx context.Context, nodeCount, tileCount int, source string) error
	PublishBroadcast(ctx context.Context, data []byte) error
}

// CacheService provides read-through caching of derived results.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
