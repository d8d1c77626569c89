package cache

import (
	"context"
	"sync"

	"dish-recommender/internal/pkg/common"

	"go.uber.org/zap"
)

// MemoryStore 行程內快取
type MemoryStore struct {
	mu    sync.RWMutex
	store map[string][]byte
	stats cacheStats
}

// cacheStats 緩存統計
type cacheStats struct {
	hits   int64
	misses int64
}

// NewMemoryStore 創建記憶體快取
func NewMemoryStore() *MemoryStore {
	common.LogInfo("營養快取已初始化", zap.String("backend", "memory"))
	return &MemoryStore{
		store: make(map[string][]byte),
	}
}

// Get 獲取緩存值
func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.store[key]
	if !exists {
		m.stats.misses++
		common.LogCacheMiss("nutrition", key)
		return nil, false, nil
	}

	m.stats.hits++
	common.LogCacheHit("nutrition", key)
	return append([]byte(nil), entry...), true, nil
}

// Add 設置緩存值，第一次寫入為準
func (m *MemoryStore) Add(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.store[key]; exists {
		return nil
	}
	m.store[key] = append([]byte(nil), value...)

	common.LogDebug("快取已儲存", zap.String("key", key))
	return nil
}

// Stats 獲取緩存統計信息
func (m *MemoryStore) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Stats{
		Backend: "memory",
		Size:    len(m.store),
		Hits:    m.stats.hits,
		Misses:  m.stats.misses,
		HitRate: hitRate(m.stats.hits, m.stats.misses),
	}
}

// Close 清空快取
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.store = make(map[string][]byte)
	common.LogInfo("營養快取已關閉",
		zap.Int64("命中次數", m.stats.hits),
		zap.Int64("未命中次數", m.stats.misses),
	)
	return nil
}
