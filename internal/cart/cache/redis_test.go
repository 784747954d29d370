package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeseias/djezyas/internal/cart/domain"
)

func setupTestRedis(t *testing.T) *RedisCache {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisCache(client)
}

func TestRedisCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	cache := setupTestRedis(t)

	cart := domain.NewCart("user-1")
	cart.AddItem("prod-1", 3)

	require.NoError(t, cache.Set(ctx, "user-1", cart))

	got, err := cache.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.UserID)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "prod-1", got.Items[0].ProductID)
	assert.Equal(t, 3, got.Items[0].Quantity)
}

func TestRedisCacheMiss(t *testing.T) {
	ctx := context.Background()
	cache := setupTestRedis(t)

	_, err := cache.Get(ctx, "nobody")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCacheConfiguredTTL(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	base := 30 * time.Minute
	cache := NewRedisCacheTTL(client, base)

	require.NoError(t, cache.Set(ctx, "user-1", domain.NewCart("user-1")))

	ttl := mr.TTL(key("user-1"))
	assert.GreaterOrEqual(t, ttl, base)
	assert.Less(t, ttl, base+base/3)
}

func TestRedisCacheDelete(t *testing.T) {
	ctx := context.Background()
	cache := setupTestRedis(t)

	cart := domain.NewCart("user-1")
	require.NoError(t, cache.Set(ctx, "user-1", cart))
	require.NoError(t, cache.Delete(ctx, "user-1"))

	_, err := cache.Get(ctx, "user-1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}
