package middleware

import (
	"fmt"
	"net/http"

	"dish-recommender/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BodySizeLimit 限制請求體大小
func BodySizeLimit(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxSize {
			common.LogWarn("Request body too large",
				zap.Int64("content_length", c.Request.ContentLength),
				zap.Int64("max_size", maxSize),
				zap.String("path", c.Request.URL.Path),
			)
			abortTooLarge(c, maxSize)
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// abortTooLarge 回應 413；沒有 Content-Length 的請求在讀取時才會超過上限
func abortTooLarge(c *gin.Context, maxSize int64) {
	c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, common.ErrorResponse{
		Code:    common.ErrCodeInvalidRequest,
		Message: "請求體過大",
		Details: fmt.Sprintf("max %d bytes", maxSize),
	})
}
