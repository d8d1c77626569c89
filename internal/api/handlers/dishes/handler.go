// Package dishes 推薦流程的 HTTP 介面
package dishes

import (
	"context"
	"errors"
	"net/http"

	"dish-recommender/internal/core/dish"
	"dish-recommender/internal/core/recommend"
	"dish-recommender/internal/pkg/common"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Recommender 處理器需要的協調器功能
type Recommender interface {
	SubmitAsync(ctx context.Context, ingredients string) (string, error)
	Snapshot() recommend.Snapshot
	Subscribe() (<-chan recommend.Snapshot, func())
}

// SubmitRequest 提交食材
type SubmitRequest struct {
	Ingredients string `json:"ingredients"`
}

// SubmitResponse 提交結果
type SubmitResponse struct {
	SubmissionID string `json:"submission_id"`
	Status       string `json:"status"`
}

// ChartView 單道菜的營養圖表資料
type ChartView struct {
	Title    string              `json:"title"`
	Segments []dish.ChartSegment `json:"segments"`
}

// DishView 菜色加上圖表
type DishView struct {
	dish.Record
	Chart *ChartView `json:"chart,omitempty"`
}

// StateResponse 展示層使用的狀態
type StateResponse struct {
	recommend.Snapshot
	Dishes []DishView `json:"dishes"`
}

// Handler 菜色推薦處理器
type Handler struct {
	recommender Recommender
}

// NewHandler 創建處理器
func NewHandler(r Recommender) *Handler {
	return &Handler{recommender: r}
}

// HandleSubmit POST /api/v1/dishes
func (h *Handler) HandleSubmit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.WriteError(c, common.ErrInvalidRequest, err.Error())
		return
	}

	id, err := h.recommender.SubmitAsync(c.Request.Context(), req.Ingredients)
	switch {
	case err == nil:
	case errors.Is(err, recommend.ErrBlankIngredients):
		common.WriteError(c, common.ErrInvalidRequest, err.Error())
		return
	case errors.Is(err, recommend.ErrSubmissionInProgress):
		common.WriteError(c, common.ErrConflict, err.Error())
		return
	default:
		common.LogError("提交失敗", zap.Error(err), zap.String("request_id", requestid.Get(c)))
		common.WriteError(c, common.ErrInternalError, "")
		return
	}

	c.JSON(http.StatusAccepted, SubmitResponse{SubmissionID: id, Status: "accepted"})
}

// HandleState GET /api/v1/dishes
func (h *Handler) HandleState(c *gin.Context) {
	c.JSON(http.StatusOK, NewStateResponse(h.recommender.Snapshot()))
}

// HandleStream GET /api/v1/dishes/stream，每次狀態變化送出一個 snapshot 事件
func (h *Handler) HandleStream(c *gin.Context) {
	updates, cancel := h.recommender.Subscribe()
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			c.SSEvent("snapshot", NewStateResponse(snap))
			c.Writer.Flush()
		}
	}
}

// NewStateResponse 將快照轉成展示用資料
func NewStateResponse(s recommend.Snapshot) StateResponse {
	views := make([]DishView, len(s.Dishes))
	for i, d := range s.Dishes {
		views[i] = DishView{Record: d}
		if d.Normalized != nil {
			views[i].Chart = &ChartView{
				Title:    d.Normalized.Breakdown(),
				Segments: d.Normalized.Segments(),
			}
		}
	}
	return StateResponse{Snapshot: s, Dishes: views}
}
