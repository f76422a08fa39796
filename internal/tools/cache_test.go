package tools

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func exerciseCache(t *testing.T, c Cache) {
	t.Helper()
	ctx := context.Background()
	key := cacheKey(fmt.Sprintf("https://example.test/search?query=%s&n=%d", t.Name(), time.Now().UnixNano()))

	if _, ok, err := c.Get(ctx, key); err != nil || ok {
		t.Fatalf("Get on empty cache = ok %v, err %v", ok, err)
	}
	if err := c.Set(ctx, key, []byte(`{"ok":true}`), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	body, ok, err := c.Get(ctx, key)
	if err != nil || !ok || string(body) != `{"ok":true}` {
		t.Fatalf("Get = %q, %v, %v", body, ok, err)
	}
}

func TestMemoryCache(t *testing.T) {
	exerciseCache(t, NewMemoryCache(time.Minute))
}

func TestMemoryCacheExpires(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	ctx := context.Background()
	_ = c.Set(ctx, "k", []byte("v"), 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Fatalf("expected entry to expire")
	}
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("RYOKOU_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("RYOKOU_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })

	exerciseCache(t, NewRedisCache(client))
}

func TestCacheKeyHidesURL(t *testing.T) {
	key := cacheKey("https://api.geoapify.com/v2/places?apiKey=secret")
	if len(key) != len(cacheKeyPrefix)+64 {
		t.Fatalf("unexpected key %q", key)
	}
	if key != cacheKey("https://api.geoapify.com/v2/places?apiKey=secret") {
		t.Fatalf("cache key not stable")
	}
}
