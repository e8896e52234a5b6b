package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

var (
	_ Cache = (*CacheService)(nil)
	_ Cache = (*MemoryCache)(nil)
)

func TestCacheServiceReportsUnreachableRedis(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	svc := NewCacheService(client)
	defer svc.Close()
	ctx := context.Background()

	assert.ErrorContains(t, svc.Ping(ctx), "redis connection failed")
	assert.Error(t, svc.SetWithTTL(ctx, WalletsKey("user-1"), []string{"a"}, time.Minute))

	var dest []string
	found, err := svc.Get(ctx, WalletsKey("user-1"), &dest)
	assert.False(t, found)
	assert.Error(t, err)
	assert.NoError(t, svc.Delete(ctx))
}
