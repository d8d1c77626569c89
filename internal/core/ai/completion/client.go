// Package completion 對話補全服務客戶端（OpenAI 相容介面）
package completion

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"dish-recommender/internal/core/retry"
	"dish-recommender/internal/infrastructure/config"
	"dish-recommender/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Message 表示與模型的對話消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request 表示 API 請求
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

// Response 補全響應
type Response struct {
	ID      string    `json:"id"`
	Choices []Choice  `json:"choices"`
	Usage   UsageInfo `json:"usage"`
}

// Choice 選擇結構
type Choice struct {
	Message Message `json:"message"`
}

// UsageInfo 使用量信息
type UsageInfo struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Client 補全服務客戶端
type Client struct {
	client    *resty.Client
	model     string
	maxTokens int
	temp      float64
	dishCount int
	policy    retry.Policy
}

// NewClient 創建補全客戶端
func NewClient(cfg config.CompletionConfig) *Client {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Authorization", fmt.Sprintf("Bearer %s", cfg.APIKey)).
		SetHeader("Content-Type", "application/json").
		SetTimeout(cfg.Timeout)

	return &Client{
		client:    client,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		temp:      cfg.Temperature,
		dishCount: cfg.DishCount,
		policy: retry.Policy{
			MaxRetries:   cfg.MaxRetries,
			InitialDelay: cfg.RetryBackoff,
		},
	}
}

// Complete 發送補全請求，網路錯誤以指數退避重試，格式錯誤不重試
func (c *Client) Complete(ctx context.Context, ingredients string) (string, error) {
	req := &Request{
		Model:       c.model,
		Messages:    BuildMessages(ingredients, c.dishCount),
		MaxTokens:   c.maxTokens,
		Temperature: c.temp,
	}

	var content string
	err := retry.DoNotify(ctx, c.policy, func(ctx context.Context) error {
		var err error
		content, err = c.send(ctx, req)
		if err != nil && !common.IsRetryable(err) {
			return retry.Permanent(err)
		}
		return err
	}, func(err error, attempt int, wait time.Duration) {
		common.LogWarn("補全請求失敗，準備重試",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
		)
	})
	if err != nil {
		return "", err
	}
	return content, nil
}

func (c *Client) send(ctx context.Context, req *Request) (string, error) {
	start := time.Now()
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		Post("/chat/completions")
	if err != nil {
		common.LogUpstreamCall("completion", time.Since(start), err)
		return "", common.Wrap(common.ErrUpstreamRequestFailed, fmt.Errorf("failed to send completion request: %w", err))
	}

	if resp.StatusCode() != http.StatusOK {
		err := fmt.Errorf("completion service returned status %d: %s", resp.StatusCode(), common.Truncate(resp.String(), 300))
		common.LogUpstreamCall("completion", time.Since(start), err)
		return "", common.Wrap(common.ErrUpstreamRequestFailed, err)
	}
	common.LogUpstreamCall("completion", time.Since(start), nil)

	var result Response
	if err := common.ParseJSONBytes(resp.Body(), &result); err != nil {
		return "", common.Wrap(common.ErrMalformedPayload, fmt.Errorf("failed to parse completion response: %w", err))
	}
	if len(result.Choices) == 0 {
		return "", common.Wrap(common.ErrMalformedPayload, fmt.Errorf("no choices in completion response"))
	}

	common.LogDebug("補全回覆",
		zap.String("model", c.model),
		zap.Int("content_length", len(result.Choices[0].Message.Content)),
		zap.Int("total_tokens", result.Usage.TotalTokens),
	)

	return result.Choices[0].Message.Content, nil
}
