package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/projectbilling/internal/domain/shared"
	"github.com/redis/go-redis/v9"
)

const defaultClaimKeyPrefix = "billing:claim:"

// RedisClaimStore implements ClaimStore using Redis.
// Claims are shared by every instance pointed at the same Redis.
type RedisClaimStore struct {
	client    *redis.Client
	keyPrefix string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisClaimStore creates a new Redis-based claim store and checks the connection
func NewRedisClaimStore(cfg RedisConfig) (*RedisClaimStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisClaimStore{
		client:    client,
		keyPrefix: defaultClaimKeyPrefix,
	}, nil
}

// NewRedisClaimStoreWithClient creates a store with an existing Redis client
func NewRedisClaimStoreWithClient(client *redis.Client, keyPrefix string) *RedisClaimStore {
	if keyPrefix == "" {
		keyPrefix = defaultClaimKeyPrefix
	}
	return &RedisClaimStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Claim takes key for ttl with SETNX.
// Returns true if the claim is new, false if the key is already held.
func (s *RedisClaimStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.keyPrefix+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim %s: %w", key, err)
	}
	return ok, nil
}

// Release drops a claim
func (s *RedisClaimStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to release %s: %w", key, err)
	}
	return nil
}

// Close closes the Redis client
func (s *RedisClaimStore) Close() error {
	return s.client.Close()
}

var _ shared.ClaimStore = (*RedisClaimStore)(nil)
