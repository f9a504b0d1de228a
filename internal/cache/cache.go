// Package cache provides the result-cache backing the discovery engine's
// discover() call: an in-process map by default, or Redis for multi-process
// deployments.
package cache

import (
	"context"
	"time"
)

// Cache stores serialized ExtractionResult bytes keyed by the discovery
// engine's cache key format (url|methods|depth|crawling).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}
