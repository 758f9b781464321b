package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"budget-control/backend/pkg/redis"
	"budget-control/backend/pkg/response"
)

// RateLimit 写接口限流（Redis 滑动窗口）
// 已认证请求按操作人邮箱计数，登录等匿名接口按 IP 计数
// rdb 为 nil 或 Redis 出错时降级放行
func RateLimit(rdb *redis.Client, limit int, window time.Duration, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb == nil || limit <= 0 {
			c.Next()
			return
		}

		subject := c.GetString("email")
		if subject == "" {
			subject = c.ClientIP()
		}
		key := "rate_limit:" + subject + ":" + c.Request.Method + ":" + c.FullPath()

		allowed, err := rdb.CheckRateLimit(c.Request.Context(), key, limit, window)
		if err != nil {
			logger.Warn("限流检查失败，放行请求", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}

		if !allowed {
			response.Error(c, http.StatusTooManyRequests, 10004, "请求过于频繁，请稍后再试")
			c.Abort()
			return
		}

		c.Next()
	}
}
