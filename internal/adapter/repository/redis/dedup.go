package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// DedupStore implements usecase.DedupStore with SET NX claims.
type DedupStore struct {
	client *redis.Client
	prefix string
}

// NewDedupStore creates a new DedupStore.
func NewDedupStore(client *redis.Client) *DedupStore {
	return &DedupStore{
		client: client,
		prefix: "dedup:",
	}
}

// Claim sets the key if absent. It returns false when another caller holds it.
func (s *DedupStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, s.prefix+key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
}

// Release drops a claim so the key can be retried.
func (s *DedupStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}
