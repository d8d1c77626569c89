// Package nutrition 營養查詢與菜色營養補充
package nutrition

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dish-recommender/internal/infrastructure/config"
	"dish-recommender/internal/pkg/common"

	"github.com/go-resty/resty/v2"
)

// Measure 營養數值；免費方案會以文字佔位，這時 Valid 為 false
type Measure struct {
	Value float64
	Valid bool
}

// UnmarshalJSON 接受數字、數字字串，其他字串與 null 視為缺值
func (m *Measure) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*m = Measure{}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			*m = Measure{Value: v, Valid: true}
		}
		return nil
	}

	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*m = Measure{Value: v, Valid: true}
	return nil
}

// Item 營養查詢結果的一筆紀錄
type Item struct {
	Name          string  `json:"name"`
	Calories      Measure `json:"calories"`
	ServingSizeG  Measure `json:"serving_size_g"`
	FatTotalG     Measure `json:"fat_total_g"`
	ProteinG      Measure `json:"protein_g"`
	CarbohydrateG Measure `json:"carbohydrates_total_g"`
	FiberG        Measure `json:"fiber_g"`
	SugarG        Measure `json:"sugar_g"`
}

// Lookuper 營養查詢介面，回傳原始 payload
type Lookuper interface {
	Lookup(ctx context.Context, query string) ([]byte, error)
}

// Client 營養查詢服務客戶端
type Client struct {
	client *resty.Client
}

// NewClient 創建營養查詢客戶端
func NewClient(cfg config.NutritionConfig) *Client {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("X-Api-Key", cfg.APIKey).
		SetHeader("Accept", "application/json").
		SetTimeout(cfg.Timeout)

	return &Client{client: client}
}

// Lookup 單次查詢，不重試
//
// 網路錯誤與非 2xx 回傳 ErrUpstreamRequestFailed；回應不是紀錄陣列時回傳 ErrMalformedPayload。
func (c *Client) Lookup(ctx context.Context, query string) ([]byte, error) {
	start := time.Now()
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("query", query).
		Get("/nutrition")
	if err != nil {
		common.LogUpstreamCall("nutrition", time.Since(start), err)
		return nil, common.Wrap(common.ErrUpstreamRequestFailed, fmt.Errorf("failed to send nutrition request: %w", err))
	}

	if resp.StatusCode() != http.StatusOK {
		err := fmt.Errorf("nutrition service returned status %d: %s", resp.StatusCode(), common.Truncate(resp.String(), 200))
		common.LogUpstreamCall("nutrition", time.Since(start), err)
		return nil, common.Wrap(common.ErrUpstreamRequestFailed, err)
	}
	common.LogUpstreamCall("nutrition", time.Since(start), nil)

	body := resp.Body()
	if _, err := ParseItems(body); err != nil {
		return nil, err
	}
	return body, nil
}

// ParseItems 解析 payload
func ParseItems(payload []byte) ([]Item, error) {
	var items []Item
	if err := common.ParseJSONBytes(payload, &items); err != nil {
		return nil, common.Wrap(common.ErrMalformedPayload, fmt.Errorf("failed to parse nutrition response: %w", err))
	}
	return items, nil
}
