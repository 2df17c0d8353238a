package cache

import (
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/erp/projectbilling/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestClaimStoreFactory_CreateStore(t *testing.T) {
	t.Run("no redis host uses in-memory store", func(t *testing.T) {
		store, err := NewClaimStoreFactory(config.RedisConfig{}).CreateStore()
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &InMemoryClaimStore{}, store)
	})

	t.Run("reachable redis uses redis store", func(t *testing.T) {
		mr := miniredis.RunT(t)
		port, err := strconv.Atoi(mr.Port())
		require.NoError(t, err)

		store, err := NewClaimStoreFactory(
			config.RedisConfig{Host: mr.Host(), Port: port},
			WithLogger(zap.NewNop()),
		).CreateStore()
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &RedisClaimStore{}, store)
	})

	t.Run("unreachable redis falls back to in-memory", func(t *testing.T) {
		store, err := NewClaimStoreFactory(config.RedisConfig{Host: "127.0.0.1", Port: 1}).CreateStore()
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &InMemoryClaimStore{}, store)
	})

	t.Run("unreachable redis without fallback fails", func(t *testing.T) {
		_, err := NewClaimStoreFactory(
			config.RedisConfig{Host: "127.0.0.1", Port: 1},
			WithInMemoryFallback(false),
		).CreateStore()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "redis required")
	})
}
