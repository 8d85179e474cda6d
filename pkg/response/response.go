package response

import (
	"net/http"

	"SafeStack/pkg/errors"
	"SafeStack/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Success 直接输出数据本身，不再包一层 envelope
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// Created 用于 POST 创建资源
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}

// Fail 参数类错误，400
func Fail(c *gin.Context, msg string) {
	Abort(c, http.StatusBadRequest, msg)
}

// NotFound 404
func NotFound(c *gin.Context, msg string) {
	Abort(c, http.StatusNotFound, msg)
}

// Abort writes {"detail": msg} with status and stops the handler chain.
func Abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": msg})
}

// Error maps a coded error to its status. Uncoded errors become 500.
func Error(c *gin.Context, err error) {
	status := errors.GetCode(err)
	if status < 400 || status > 599 {
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	Abort(c, status, err.Error())
}
