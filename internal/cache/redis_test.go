package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trainbites/trainbites/internal/domain"
)

// setupTestRedis creates a miniredis server and returns a RedisCache instance
func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis, func()) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cache := NewRedisCache(client)

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return cache, mr, cleanup
}

func TestGet_Success(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	customerID := "cust-1"

	cart := &domain.Cart{
		CustomerID: customerID,
		Items: []domain.CartItem{
			{ProductID: "biryani", Quantity: 2, UnitPrice: 12000},
			{ProductID: "thali", Quantity: 1, UnitPrice: 34000},
		},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	cartJSON, _ := json.Marshal(cart)
	mr.Set(cacheKey(customerID), string(cartJSON))

	result, err := cache.Get(ctx, customerID)
	require.NoError(t, err)
	assert.Equal(t, customerID, result.CustomerID)
	assert.Len(t, result.Items, 2)
	assert.Equal(t, "biryani", result.Items[0].ProductID)
	assert.Equal(t, int64(12000), result.Items[0].UnitPrice)
}

func TestGet_CacheMiss(t *testing.T) {
	cache, _, cleanup := setupTestRedis(t)
	defer cleanup()

	result, err := cache.Get(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Nil(t, result)
}

func TestGet_InvalidJSON(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	mr.Set(cacheKey("cust-1"), "{not json")

	result, err := cache.Get(context.Background(), "cust-1")
	assert.Error(t, err)
	assert.Nil(t, result)
}

func TestSet_RoundTrip(t *testing.T) {
	cache, _, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	cart := &domain.Cart{
		CustomerID: "cust-1",
		Items:      []domain.CartItem{{ProductID: "dosa", Quantity: 3, UnitPrice: 8000}},
	}

	require.NoError(t, cache.Set(ctx, "cust-1", cart))

	result, err := cache.Get(ctx, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, "cust-1", result.CustomerID)
	require.Len(t, result.Items, 1)
	assert.Equal(t, 3, result.Items[0].Quantity)
}

func TestSet_AppliesJitteredTTL(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	require.NoError(t, cache.Set(context.Background(), "cust-1", &domain.Cart{CustomerID: "cust-1"}))

	ttl := mr.TTL(cacheKey("cust-1"))
	assert.GreaterOrEqual(t, ttl, 15*time.Minute)
	assert.LessOrEqual(t, ttl, 20*time.Minute)
}

func TestDelete(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	mr.Set(cacheKey("cust-1"), "{}")

	require.NoError(t, cache.Delete(ctx, "cust-1"))
	assert.False(t, mr.Exists(cacheKey("cust-1")))

	// Deleting a missing key is not an error
	require.NoError(t, cache.Delete(ctx, "cust-1"))
}
