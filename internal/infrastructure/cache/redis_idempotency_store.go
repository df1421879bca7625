package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/erp/shopsync/internal/domain/shared"
)

// DefaultKeyPrefix namespaces webhook delivery ids in Redis
const DefaultKeyPrefix = "shopsync:webhook:"

// RedisIdempotencyStore shares processed webhook ids between replicas.
type RedisIdempotencyStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisIdempotencyStore wraps an existing client
func NewRedisIdempotencyStore(client redis.UniversalClient, keyPrefix string) *RedisIdempotencyStore {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &RedisIdempotencyStore{client: client, keyPrefix: keyPrefix}
}

func (s *RedisIdempotencyStore) key(id string) string {
	return s.keyPrefix + id
}

// MarkProcessed sets the key with SET NX and a TTL; false means it already existed
func (s *RedisIdempotencyStore) MarkProcessed(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.key(id), time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("mark webhook %s processed: %w", id, err)
	}
	return ok, nil
}

// IsProcessed checks for the key
func (s *RedisIdempotencyStore) IsProcessed(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(id)).Result()
	if err != nil {
		return false, fmt.Errorf("check webhook %s: %w", id, err)
	}
	return n > 0, nil
}

// Ping checks the connection; used by the health endpoint
func (s *RedisIdempotencyStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (s *RedisIdempotencyStore) Close() error {
	return s.client.Close()
}

var _ shared.IdempotencyStore = (*RedisIdempotencyStore)(nil)
