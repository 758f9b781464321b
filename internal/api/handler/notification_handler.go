package handler

import (
	"github.com/gin-gonic/gin"

	"budget-control/backend/internal/dto"
	"budget-control/backend/internal/service"
	"budget-control/backend/pkg/response"
)

// NotificationHandler 站内通知 HTTP 处理器
type NotificationHandler struct {
	notificationSvc service.NotificationService
}

// NewNotificationHandler 创建 NotificationHandler
func NewNotificationHandler(notificationSvc service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationSvc: notificationSvc}
}

// ListMine 我的通知
// GET /api/v1/notifications?unread_only=true
func (h *NotificationHandler) ListMine(c *gin.Context) {
	var req dto.NotificationListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, err)
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	list, total, err := h.notificationSvc.ListMine(c.Request.Context(), actor.Email, &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// UnreadCount 未读数量
// GET /api/v1/notifications/unread-count
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	n, err := h.notificationSvc.UnreadCount(c.Request.Context(), actor.Email)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, gin.H{"unread": n})
}

// MarkAllRead 全部标记已读
// POST /api/v1/notifications/read-all
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	n, err := h.notificationSvc.MarkAllRead(c.Request.Context(), actor.Email)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, gin.H{"updated": n})
}
