package middleware

import (
	"github.com/gin-gonic/gin"
)

// SecurityHeaders 安全响应头
// 服务只返回 JSON 与 xlsx 附件，不承载页面
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		h.Set("Cache-Control", "no-store")

		c.Next()
	}
}
