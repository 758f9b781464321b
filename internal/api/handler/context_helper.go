package handler

import (
	"github.com/gin-gonic/gin"

	"budget-control/backend/internal/service"
	"budget-control/backend/pkg/jwt"
	"budget-control/backend/pkg/response"
)

// 与 middleware.JWTAuth 注入的键保持一致
const (
	ctxUserID = "user_id"
	ctxEmail  = "email"
	ctxRole   = "role"
	ctxClaims = "claims"
)

// MustGetUserID 从 Gin 上下文中安全提取 user_id。
// 如果 JWT 中间件未正确注入 user_id，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetUserID(c *gin.Context) (string, bool) {
	return mustGetString(c, ctxUserID)
}

// MustGetRole 从 Gin 上下文中安全提取 role。
func MustGetRole(c *gin.Context) (string, bool) {
	return mustGetString(c, ctxRole)
}

// MustGetActor 当前操作人：Token 中的邮箱 + 客户端 IP
func MustGetActor(c *gin.Context) (service.Actor, bool) {
	email, ok := mustGetString(c, ctxEmail)
	if !ok {
		return service.Actor{}, false
	}
	return service.Actor{Email: email, IP: c.ClientIP()}, true
}

// MustGetClaims 当前 Access Token 的声明（登出时写黑名单用）
func MustGetClaims(c *gin.Context) (*jwt.Claims, bool) {
	v, exists := c.Get(ctxClaims)
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return nil, false
	}
	claims, ok := v.(*jwt.Claims)
	if !ok || claims == nil {
		response.Unauthorized(c, 10002, "未认证")
		return nil, false
	}
	return claims, true
}

func mustGetString(c *gin.Context, key string) (string, bool) {
	v, exists := c.Get(key)
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}
