package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMemoryCache 测试内存缓存的基本功能
func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	config := Config{
		Type:            "memory",
		DefaultTTL:      time.Second * 2,
		CleanupInterval: time.Second,
	}
	cache, err := NewMemoryCache(config)
	require.NoError(t, err)

	// Set和Get
	require.NoError(t, cache.Set(ctx, "key1", "value1", 0)) // 使用默认TTL

	val, found, err := cache.Get(ctx, "key1")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "value1", val)

	// 不存在的键
	val, found, err = cache.Get(ctx, "non-existent")
	assert.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, val)

	// 过期
	require.NoError(t, cache.Set(ctx, "expire-soon", "temp-value", time.Millisecond*500))
	time.Sleep(time.Second)

	_, found, err = cache.Get(ctx, "expire-soon")
	assert.NoError(t, err)
	assert.False(t, found)

	// 删除
	require.NoError(t, cache.Set(ctx, "to-delete", "delete-me", 0))
	require.NoError(t, cache.Delete(ctx, "to-delete"))

	_, found, err = cache.Get(ctx, "to-delete")
	assert.NoError(t, err)
	assert.False(t, found)

	// 清空
	require.NoError(t, cache.Set(ctx, "key2", "value2", 0))
	require.NoError(t, cache.Clear(ctx))

	_, found, err = cache.Get(ctx, "key2")
	assert.NoError(t, err)
	assert.False(t, found)
}

// TestRedisCache 测试Redis缓存，使用miniredis模拟服务端
func TestRedisCache(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	cache, err := NewRedisCache(Config{
		Type:       "redis",
		RedisAddr:  mr.Addr(),
		DefaultTTL: time.Second * 2,
	})
	require.NoError(t, err)

	// Set和Get
	require.NoError(t, cache.Set(ctx, "redis-key1", "redis-value1", 0))

	val, found, err := cache.Get(ctx, "redis-key1")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "redis-value1", val)

	// 不存在的键
	_, found, err = cache.Get(ctx, "redis-non-existent")
	assert.NoError(t, err)
	assert.False(t, found)

	// 过期，miniredis通过FastForward推进时钟
	require.NoError(t, cache.Set(ctx, "redis-expire-soon", "redis-temp-value", time.Second))
	mr.FastForward(time.Second * 2)

	_, found, err = cache.Get(ctx, "redis-expire-soon")
	assert.NoError(t, err)
	assert.False(t, found)

	// 删除
	require.NoError(t, cache.Set(ctx, "redis-to-delete", "redis-delete-me", 0))
	require.NoError(t, cache.Delete(ctx, "redis-to-delete"))

	_, found, err = cache.Get(ctx, "redis-to-delete")
	assert.NoError(t, err)
	assert.False(t, found)

	// 清空
	require.NoError(t, cache.Set(ctx, "redis-key2", "value", 0))
	require.NoError(t, cache.Clear(ctx))

	_, found, err = cache.Get(ctx, "redis-key2")
	assert.NoError(t, err)
	assert.False(t, found)

	// 已取消的context直接返回错误
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = cache.Get(cancelled, "redis-key1")
	assert.Error(t, err)
}

// TestObjectHelpers 测试JSON对象的缓存读写
func TestObjectHelpers(t *testing.T) {
	type answer struct {
		Text  string   `json:"text"`
		Hits  []string `json:"hits"`
		Score float32  `json:"score"`
	}

	ctx := context.Background()
	cache, err := NewMemoryCache(DefaultConfig())
	require.NoError(t, err)

	stored := answer{Text: "cached answer", Hits: []string{"a.pdf:pdf:page_1:chunk_0"}, Score: 0.92}
	require.NoError(t, SetObject(ctx, cache, "qa:5:question", stored, 0))

	var loaded answer
	found, err := GetObject(ctx, cache, "qa:5:question", &loaded)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, stored, loaded)

	// 未命中
	found, err = GetObject(ctx, cache, "qa:5:other", &loaded)
	require.NoError(t, err)
	assert.False(t, found)

	// 内容损坏视为未命中，不返回错误
	require.NoError(t, cache.Set(ctx, "qa:5:broken", "{not json", 0))
	found, err = GetObject(ctx, cache, "qa:5:broken", &loaded)
	require.NoError(t, err)
	assert.False(t, found)
}

// TestCacheFactory 测试缓存工厂函数
func TestCacheFactory(t *testing.T) {
	// 内存缓存
	memCache, err := NewCache(DefaultConfig())
	assert.NoError(t, err)
	assert.NotNil(t, memCache)

	// Redis缓存
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	redisCache, err := NewCache(Config{
		Type:      "redis",
		RedisAddr: mr.Addr(),
	})
	assert.NoError(t, err)
	assert.NotNil(t, redisCache)

	// 未知缓存类型应该返回默认内存缓存
	unknownCache, err := NewCache(Config{Type: "unknown-type"})
	assert.NoError(t, err)
	assert.NotNil(t, unknownCache)
}

// TestGenerateCacheKey 测试缓存键生成
func TestGenerateCacheKey(t *testing.T) {
	assert.Equal(t, "prefix", GenerateCacheKey("prefix"))
	assert.Equal(t, "prefix:part1", GenerateCacheKey("prefix", "part1"))
	assert.Equal(t, "prefix:part1:part2:part3", GenerateCacheKey("prefix", "part1", "part2", "part3"))
}
