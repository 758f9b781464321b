package handler

import (
	"github.com/gin-gonic/gin"

	"budget-control/backend/internal/dto"
	"budget-control/backend/internal/service"
	"budget-control/backend/pkg/response"
)

// AuditHandler 审计日志 HTTP 处理器（只读）
type AuditHandler struct {
	auditSvc service.AuditService
}

// NewAuditHandler 创建 AuditHandler
func NewAuditHandler(auditSvc service.AuditService) *AuditHandler {
	return &AuditHandler{auditSvc: auditSvc}
}

// Query 审计日志查询，附带统计
// GET /api/v1/audit?module=&action=&actor=&resource_id=&page=&page_size=
func (h *AuditHandler) Query(c *gin.Context) {
	var req dto.AuditQueryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, err)
		return
	}

	result, err := h.auditSvc.Query(c.Request.Context(), &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, result)
}

// Stats 审计统计
// GET /api/v1/audit/stats
func (h *AuditHandler) Stats(c *gin.Context) {
	stats, err := h.auditSvc.Stats(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.OK(c, stats)
}
