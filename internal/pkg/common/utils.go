package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// GenerateUUID 生成 UUID
func GenerateUUID() string {
	return uuid.New().String()
}

// WriteError 以統一格式寫入錯誤響應
func WriteError(c *gin.Context, err *CustomError, details string) {
	status := err.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		Code:    err.Code,
		Message: err.Message,
		Details: details,
	})
}
