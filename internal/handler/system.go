package handlers

import (
	"net/http"

	"SafeStack/internal/models"
	"SafeStack/pkg/middleware"
	"SafeStack/pkg/response"

	"github.com/gin-gonic/gin"
)

func (h *Handlers) GetRateLimiterConfig(c *gin.Context) {
	if h.opts.Limiter == nil {
		response.Abort(c, http.StatusServiceUnavailable, "rate limiter disabled")
		return
	}
	response.Success(c, h.opts.Limiter.Config())
}

// UpdateRateLimiterConfig 更新限流配置
func (h *Handlers) UpdateRateLimiterConfig(c *gin.Context) {
	if h.opts.Limiter == nil {
		response.Abort(c, http.StatusServiceUnavailable, "rate limiter disabled")
		return
	}
	var config middleware.RateLimiterConfig
	if err := c.ShouldBindJSON(&config); err != nil {
		response.Fail(c, "invalid request")
		return
	}
	if config.Rate == "" {
		response.Fail(c, "rate is required")
		return
	}

	h.opts.Limiter.UpdateConfig(config)
	response.Success(c, h.opts.Limiter.Config())
}

// HealthCheck 健康检查接口
func (h *Handlers) HealthCheck(c *gin.Context) {
	// 检查数据库连接
	sqlDB, err := h.db.DB()
	if err != nil {
		response.Abort(c, http.StatusInternalServerError, "database connection failed")
		return
	}
	if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		response.Abort(c, http.StatusInternalServerError, err.Error())
		return
	}

	response.Success(c, gin.H{"status": "healthy", "database": h.opts.DatabaseLabel})
}

func (h *Handlers) GetStats(c *gin.Context) {
	stats, err := models.GetStats(h.db.WithContext(c.Request.Context()))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, stats)
}
