package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"budget-control/backend/pkg/metrics"
)

// Metrics 记录请求数与耗时，按路由模板聚合避免路径参数导致标签爆炸
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
