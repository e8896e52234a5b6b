package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheRoundTripAndExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache()
	c.now = func() time.Time { return now }

	require.NoError(t, c.SetWithTTL(ctx, LatestRateKey("VND"), "25000.5", time.Minute))

	var got string
	found, err := c.Get(ctx, LatestRateKey("VND"), &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "25000.5", got)

	now = now.Add(2 * time.Minute)
	found, err = c.Get(ctx, LatestRateKey("VND"), &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryCacheDelete(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	require.NoError(t, c.SetWithTTL(ctx, WalletsKey("u1"), []int{1, 2}, 0))
	require.NoError(t, c.Delete(ctx, WalletsKey("u1")))

	var got []int
	found, err := c.Get(ctx, WalletsKey("u1"), &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "rate:latest:EUR", LatestRateKey("EUR"))
	assert.Equal(t, "wallets:user:abc", WalletsKey("abc"))
}
