package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/frahmantamala/event-permission/internal"
	goredis "github.com/redis/go-redis/v9"
)

const keyPrefix = "session:revoked:"

// Cmdable is the subset of the go-redis client used for revocations.
type Cmdable interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.StatusCmd
	Exists(ctx context.Context, keys ...string) *goredis.IntCmd
}

// RevocationStore stores revoked session ids with a TTL matching the
// token's remaining lifetime, so entries disappear on their own.
type RevocationStore struct {
	client Cmdable
}

func NewRevocationStore(client Cmdable) *RevocationStore {
	return &RevocationStore{client: client}
}

// NewClient returns a configured Redis client after a ping.
func NewClient(ctx context.Context, cfg internal.RedisConfig) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return client, nil
}

func (s *RevocationStore) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, keyPrefix+tokenID, 1, ttl).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func (s *RevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.client.Exists(ctx, keyPrefix+tokenID).Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return false, fmt.Errorf("check session revocation: %w", err)
	}
	return n > 0, nil
}
