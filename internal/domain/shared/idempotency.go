package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers processed delivery ids (webhook ids) so a
// redelivered event is applied once.
type IdempotencyStore interface {
	// MarkProcessed records id for ttl. It reports false when id was already recorded.
	MarkProcessed(ctx context.Context, id string, ttl time.Duration) (bool, error)
	IsProcessed(ctx context.Context, id string) (bool, error)
	Close() error
}

// IdempotencyConfig controls webhook deduplication
type IdempotencyConfig struct {
	// TTL is how long a delivery id is remembered
	TTL     time.Duration
	Enabled bool
}

// DefaultIdempotencyConfig remembers deliveries for 48 hours, the platform's
// redelivery window.
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{TTL: 48 * time.Hour, Enabled: true}
}
