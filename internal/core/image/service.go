// Package image 依菜名查詢展示用圖片
package image

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"dish-recommender/internal/infrastructure/config"
	"dish-recommender/internal/pkg/common"

	"github.com/go-resty/resty/v2"
)

// ErrNoImage 查無圖片
var ErrNoImage = errors.New("no image found")

// Finder 圖片查詢介面
type Finder interface {
	Find(ctx context.Context, dishName string) (string, error)
}

// searchResponse 搜尋回應，只取需要的欄位
type searchResponse struct {
	Results []struct {
		URLs struct {
			Small   string `json:"small"`
			Regular string `json:"regular"`
		} `json:"urls"`
	} `json:"results"`
}

// Service 圖片查詢服務
type Service struct {
	client    *resty.Client
	accessKey string
}

// NewService 創建圖片查詢服務
func NewService(cfg config.ImageConfig) *Service {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Accept-Version", "v1").
		SetTimeout(cfg.Timeout)

	return &Service{
		client:    client,
		accessKey: cfg.AccessKey,
	}
}

// Find 以菜名搜尋，回傳第一筆結果的 small 尺寸網址
func (s *Service) Find(ctx context.Context, dishName string) (string, error) {
	dishName = strings.TrimSpace(dishName)
	if dishName == "" {
		return "", ErrNoImage
	}

	start := time.Now()
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"page":      "1",
			"query":     dishName,
			"client_id": s.accessKey,
		}).
		Get("/search/photos")
	if err != nil {
		common.LogUpstreamCall("image", time.Since(start), err)
		return "", common.Wrap(common.ErrUpstreamRequestFailed, fmt.Errorf("failed to search image: %w", err))
	}

	if resp.StatusCode() != http.StatusOK {
		err := fmt.Errorf("image service returned status %d", resp.StatusCode())
		common.LogUpstreamCall("image", time.Since(start), err)
		return "", common.Wrap(common.ErrUpstreamRequestFailed, err)
	}
	common.LogUpstreamCall("image", time.Since(start), nil)

	var result searchResponse
	if err := common.ParseJSONBytes(resp.Body(), &result); err != nil {
		return "", common.Wrap(common.ErrMalformedPayload, fmt.Errorf("failed to parse image response: %w", err))
	}
	if len(result.Results) == 0 || result.Results[0].URLs.Small == "" {
		return "", ErrNoImage
	}

	return result.Results[0].URLs.Small, nil
}
