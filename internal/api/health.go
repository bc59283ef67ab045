package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"disklink/internal/model"
	"disklink/internal/pkg/database"
	"disklink/internal/pkg/redis"
)

// HealthHandler 健康检查处理器
type HealthHandler struct {
	startTime time.Time
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{
		startTime: time.Now(),
	}
}

// Health 健康检查接口
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, model.Success(gin.H{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
		"uptime": time.Since(h.startTime).String(),
	}))
}

// Ping 简单ping接口
func (h *HealthHandler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
	})
}

// Ready 就绪检查 (检查依赖服务是否可用)
func (h *HealthHandler) Ready(c *gin.Context) {
	checks := make(map[string]string)
	ready := true

	// 检查MySQL连接
	if db := database.GetDB(); db != nil {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.Ping()
		}
		if err != nil {
			checks["mysql"] = "error: " + err.Error()
			ready = false
		} else {
			checks["mysql"] = "ok"
		}
	} else {
		checks["mysql"] = "not initialized"
		ready = false
	}

	// 检查Redis连接(可选依赖)
	if client := redis.GetClient(); client != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			checks["redis"] = "error: " + err.Error()
		} else {
			checks["redis"] = "ok"
		}
	} else {
		checks["redis"] = "disabled"
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, model.Success(checks))
}
