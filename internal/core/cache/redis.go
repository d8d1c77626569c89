package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"dish-recommender/internal/infrastructure/config"
	"dish-recommender/internal/pkg/common"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisStore 以 Redis hash 保存一個會話的快取
//
// 每個會話使用獨立的 hash，Close 時刪除；TTL 只是程式異常結束時的保險，
// 每次寫入與命中都會重新計時，會話仍在使用時不會過期。
type RedisStore struct {
	client  *redis.Client
	key     string
	ttl     time.Duration
	hits    int64
	misses  int64
	errors  int64
	entries int64
}

// NewRedisStore 創建 Redis 快取並測試連線
func NewRedisStore(ctx context.Context, cfg config.RedisConfig, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// 測試連接
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	s := newRedisStore(client, ttl)
	common.LogInfo("營養快取已初始化",
		zap.String("backend", "redis"),
		zap.String("addr", cfg.Addr),
		zap.String("session", s.key),
	)
	return s, nil
}

func newRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		key:    fmt.Sprintf("dish:nutrition:%s", common.GenerateUUID()),
		ttl:    ttl,
	}
}

// Get 獲取緩存
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.HGet(ctx, s.key, s.field(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			atomic.AddInt64(&s.misses, 1)
			common.LogCacheMiss("nutrition", key)
			return nil, false, nil
		}
		atomic.AddInt64(&s.errors, 1)
		return nil, false, fmt.Errorf("failed to get cache: %w", err)
	}

	atomic.AddInt64(&s.hits, 1)
	common.LogCacheHit("nutrition", key)
	s.touch(ctx)
	return data, true, nil
}

// Add 以 HSETNX 寫入，已存在的欄位不覆蓋
func (s *RedisStore) Add(ctx context.Context, key string, value []byte) error {
	added, err := s.client.HSetNX(ctx, s.key, s.field(key), value).Result()
	if err != nil {
		atomic.AddInt64(&s.errors, 1)
		return fmt.Errorf("failed to set cache: %w", err)
	}
	if !added {
		return nil
	}

	atomic.AddInt64(&s.entries, 1)
	s.touch(ctx)
	return nil
}

// touch 重設會話 hash 的 TTL
func (s *RedisStore) touch(ctx context.Context) {
	if s.ttl <= 0 {
		return
	}
	if err := s.client.Expire(ctx, s.key, s.ttl).Err(); err != nil {
		common.LogWarn("設定快取 TTL 失敗", zap.Error(err), zap.String("session", s.key))
	}
}

// Stats 統計資訊
func (s *RedisStore) Stats() Stats {
	hits := atomic.LoadInt64(&s.hits)
	misses := atomic.LoadInt64(&s.misses)
	return Stats{
		Backend: "redis",
		Size:    int(atomic.LoadInt64(&s.entries)),
		Hits:    hits,
		Misses:  misses,
		Errors:  atomic.LoadInt64(&s.errors),
		HitRate: hitRate(hits, misses),
	}
}

// Close 刪除會話 hash 並關閉連線
func (s *RedisStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		common.LogWarn("刪除會話快取失敗", zap.Error(err), zap.String("session", s.key))
	}
	return s.client.Close()
}

// field 以雜湊作為 hash 欄位，避免過長的食材字串
func (s *RedisStore) field(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}
