package health

import (
	"net/http"
	"runtime"
	"time"

	"dish-recommender/internal/core/cache"

	"github.com/gin-gonic/gin"
)

// HealthResponse 健康檢查響應
type HealthResponse struct {
	Status     string                 `json:"status"`
	Timestamp  time.Time              `json:"timestamp"`
	Version    string                 `json:"version"`
	Uptime     string                 `json:"uptime"`
	InProgress bool                   `json:"submission_in_progress"`
	Cache      *cache.Stats           `json:"cache,omitempty"`
	Runtime    map[string]interface{} `json:"runtime"`
}

// Handler 健康檢查
type Handler struct {
	version    string
	store      cache.Store
	inProgress func() bool
	started    time.Time
}

// NewHandler 創建健康檢查處理器，store 與 inProgress 可為 nil
func NewHandler(version string, store cache.Store, inProgress func() bool) *Handler {
	return &Handler{
		version:    version,
		store:      store,
		inProgress: inProgress,
		started:    time.Now(),
	}
}

// HealthCheck 健康檢查處理器
func (h *Handler) HealthCheck(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   h.version,
		Uptime:    time.Since(h.started).Round(time.Second).String(),
		Runtime: map[string]interface{}{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]interface{}{
				"alloc":       m.Alloc,
				"total_alloc": m.TotalAlloc,
				"sys":         m.Sys,
				"num_gc":      m.NumGC,
			},
		},
	}
	if h.inProgress != nil {
		response.InProgress = h.inProgress()
	}
	if h.store != nil {
		stats := h.store.Stats()
		response.Cache = &stats
	}

	c.JSON(http.StatusOK, response)
}

// ReadinessCheck 就緒檢查處理器
func (h *Handler) ReadinessCheck(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// LivenessCheck 存活檢查處理器
func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}
