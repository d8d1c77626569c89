package cache

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"dish-recommender/internal/infrastructure/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "tomato,onion")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Add(ctx, "tomato,onion", []byte(`[{"calories":10}]`)))
	require.NoError(t, s.Add(ctx, "tomato,onion", []byte(`[{"calories":99}]`)))

	v, ok, err := s.Get(ctx, "tomato,onion")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `[{"calories":10}]`, string(v))

	require.NoError(t, s.Add(ctx, "rice", []byte(`[]`)))
	v, ok, err = s.Get(ctx, "rice")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[]`, string(v))

	stats := s.Stats()
	assert.Equal(t, 2, stats.Size)
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	exerciseStore(t, s)

	require.NoError(t, s.Close())
	_, ok, err := s.Get(context.Background(), "rice")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_ReturnedValueIsCopy(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Add(ctx, "k", []byte("abc")))

	v, _, _ := s.Get(ctx, "k")
	v[0] = 'x'

	again, _, _ := s.Get(ctx, "k")
	assert.Equal(t, "abc", string(again))
}

func TestMemoryStore_ConcurrentAdd(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Add(ctx, "same", []byte("v"))
			_, _, _ = s.Get(ctx, "same")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, s.Stats().Size)
}

func TestNew_SelectsBackend(t *testing.T) {
	cfg := &config.Config{}
	cfg.Cache.Backend = "memory"

	s, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	cfg.Cache.Backend = "disk"
	_, err = New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	s, err := NewRedisStore(context.Background(), config.RedisConfig{Addr: addr}, time.Minute)
	require.NoError(t, err)
	exerciseStore(t, s)
	require.NoError(t, s.Close())
}

func TestRedisStore_HitRefreshesTTL(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	ctx := context.Background()
	s, err := NewRedisStore(ctx, config.RedisConfig{Addr: addr}, time.Hour)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Add(ctx, "rice", []byte(`[]`)))

	// 模擬長時間沒有寫入，TTL 快到期
	require.NoError(t, s.client.Expire(ctx, s.key, 5*time.Second).Err())

	_, ok, err := s.Get(ctx, "rice")
	require.NoError(t, err)
	require.True(t, ok)

	ttl, err := s.client.TTL(ctx, s.key).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Minute)
}
