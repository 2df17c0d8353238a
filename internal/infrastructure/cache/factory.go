package cache

import (
	"fmt"

	"github.com/erp/projectbilling/internal/domain/shared"
	"github.com/erp/projectbilling/internal/infrastructure/config"
	"go.uber.org/zap"
)

// ClaimStoreFactory creates claim stores based on configuration
type ClaimStoreFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// ClaimStoreFactoryOption is a functional option for configuring the factory
type ClaimStoreFactoryOption func(*ClaimStoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) ClaimStoreFactoryOption {
	return func(f *ClaimStoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to an in-memory store when Redis is unavailable.
// Default is true.
func WithInMemoryFallback(allow bool) ClaimStoreFactoryOption {
	return func(f *ClaimStoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewClaimStoreFactory creates a new factory
func NewClaimStoreFactory(cfg config.RedisConfig, opts ...ClaimStoreFactoryOption) *ClaimStoreFactory {
	f := &ClaimStoreFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// CreateStore returns a Redis claim store, or an in-memory one when Redis is
// not configured or unreachable and fallback is allowed.
func (f *ClaimStoreFactory) CreateStore() (shared.ClaimStore, error) {
	if f.redisConfig.Host == "" {
		f.logger.Info("redis not configured, using in-memory claim store")
		return NewInMemoryClaimStore(), nil
	}

	store, err := NewRedisClaimStore(RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})
	if err == nil {
		f.logger.Info("using Redis claim store")
		return store, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required for claim store but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory claim store. "+
		"Ledger sync sweeps will not be throttled across instances.",
		zap.Error(err),
	)
	return NewInMemoryClaimStore(), nil
}
