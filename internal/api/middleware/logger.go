package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// 探活与指标抓取不记访问日志
var quietPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// Logger 访问日志（zap 结构化）
// 5xx 记 Error，4xx 记 Warn，其余记 Info
func Logger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := quietPaths[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Int("bytes", c.Writer.Size()),
			zap.String("ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
		}
		if actor := c.GetString("email"); actor != "" {
			fields = append(fields, zap.String("actor", actor))
		}
		if errs := c.Errors.ByType(gin.ErrorTypePrivate); len(errs) > 0 {
			fields = append(fields, zap.String("errors", errs.String()))
		}

		switch {
		case status >= 500:
			logger.Error("请求处理失败", fields...)
		case status >= 400:
			logger.Warn("请求被拒绝", fields...)
		default:
			logger.Info("请求完成", fields...)
		}
	}
}
