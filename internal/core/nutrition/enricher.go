package nutrition

import (
	"context"
	"errors"
	"fmt"

	"dish-recommender/internal/core/cache"
	"dish-recommender/internal/core/dish"
	"dish-recommender/internal/core/metrics"
	"dish-recommender/internal/core/retry"
	"dish-recommender/internal/pkg/common"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrNoMatch 查詢字串為空或服務沒有對應紀錄
var ErrNoMatch = errors.New("no nutrition match")

// Result 一道菜的營養補充結果
type Result struct {
	Query      string
	Nutrients  dish.NutrientVector
	Normalized *dish.NutrientVector // 總和為 0 時為 nil
}

// Enricher 以清理後的食材字串查詢營養，結果寫入會話快取
type Enricher struct {
	lookup  Lookuper
	store   cache.Store
	policy  retry.Policy
	metrics *metrics.Metrics
	group   singleflight.Group
}

// NewEnricher 創建營養補充器
func NewEnricher(lookup Lookuper, store cache.Store, policy retry.Policy, m *metrics.Metrics) *Enricher {
	return &Enricher{
		lookup:  lookup,
		store:   store,
		policy:  policy,
		metrics: m,
	}
}

// Enrich 將食材文字轉成營養向量
//
// 失敗時回傳 ErrNoMatch、ErrMalformedPayload 或 ErrUpstreamRequestFailed，呼叫端一律視為沒有營養資料。
func (e *Enricher) Enrich(ctx context.Context, rawIngredients string) (Result, error) {
	query := Clean(rawIngredients)
	if query == "" {
		return Result{}, ErrNoMatch
	}

	payload, err := e.payload(ctx, query)
	if err != nil {
		return Result{Query: query}, err
	}

	items, err := ParseItems(payload)
	if err != nil {
		return Result{Query: query}, err
	}
	if len(items) == 0 {
		return Result{Query: query}, ErrNoMatch
	}

	vec, err := vectorOf(items[0])
	if err != nil {
		return Result{Query: query}, err
	}

	res := Result{Query: query, Nutrients: vec}
	if n, ok := vec.Normalize(); ok {
		res.Normalized = &n
	}
	return res, nil
}

// payload 先查快取，未命中時合併相同查詢，只打一次網路
func (e *Enricher) payload(ctx context.Context, query string) ([]byte, error) {
	if cached, ok := e.cached(ctx, query); ok {
		e.metrics.NutritionLookup(metrics.SourceCache)
		return cached, nil
	}

	v, err, shared := e.group.Do(query, func() (interface{}, error) {
		// 前一個查詢可能剛寫入
		if cached, ok := e.cached(ctx, query); ok {
			e.metrics.NutritionLookup(metrics.SourceCache)
			return cached, nil
		}

		e.metrics.NutritionLookup(metrics.SourceNetwork)
		body, err := retry.DoValue(ctx, e.policy, func(ctx context.Context) ([]byte, error) {
			body, err := e.lookup.Lookup(ctx, query)
			if err != nil && !common.IsRetryable(err) {
				return nil, retry.Permanent(err)
			}
			return body, err
		})
		if err != nil {
			return nil, err
		}

		if err := e.store.Add(ctx, query, body); err != nil {
			common.LogWarn("寫入營養快取失敗", zap.Error(err), zap.String("query", query))
		}
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		e.metrics.NutritionLookup(metrics.SourceShared)
	}
	return v.([]byte), nil
}

func (e *Enricher) cached(ctx context.Context, query string) ([]byte, bool) {
	payload, ok, err := e.store.Get(ctx, query)
	if err != nil {
		common.LogWarn("讀取營養快取失敗", zap.Error(err), zap.String("query", query))
		return nil, false
	}
	return payload, ok
}

// vectorOf 取出 {熱量, 蛋白質, 脂肪, 碳水}，任一欄位缺值即視為格式異常
func vectorOf(item Item) (dish.NutrientVector, error) {
	fields := []struct {
		name string
		m    Measure
	}{
		{"calories", item.Calories},
		{"protein_g", item.ProteinG},
		{"fat_total_g", item.FatTotalG},
		{"carbohydrates_total_g", item.CarbohydrateG},
	}

	var vec dish.NutrientVector
	for i, f := range fields {
		if !f.m.Valid {
			return vec, common.Wrap(common.ErrMalformedPayload, fmt.Errorf("nutrition field %s missing", f.name))
		}
		vec[i] = f.m.Value
	}
	return vec, nil
}
