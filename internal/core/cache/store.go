// Package cache 營養查詢的會話快取
//
// 每個條目在會話內寫入一次後不再變動，也不會過期；會話結束時整個丟棄。
package cache

import (
	"context"
	"fmt"

	"dish-recommender/internal/infrastructure/config"
)

// Store 快取介面
type Store interface {
	// Get 取值，ok 為 false 表示未命中
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Add 只在鍵不存在時寫入，已存在的值保持不變
	Add(ctx context.Context, key string, value []byte) error

	// Stats 統計資訊
	Stats() Stats

	// Close 結束會話並丟棄內容
	Close() error
}

// Stats 快取統計
type Stats struct {
	Backend string  `json:"backend"`
	Size    int     `json:"size"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Errors  int64   `json:"errors"`
	HitRate float64 `json:"hit_ratio"`
}

func hitRate(hits, misses int64) float64 {
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}

// New 依設定建立快取
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Cache.Backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		return NewRedisStore(ctx, cfg.Redis, cfg.Cache.SessionTTL)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}
