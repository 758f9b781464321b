package handler

import (
	"github.com/gin-gonic/gin"

	"budget-control/backend/internal/dto"
	"budget-control/backend/internal/service"
	"budget-control/backend/pkg/response"
)

// ReconciliationHandler 预算与实发对账 HTTP 处理器
type ReconciliationHandler struct {
	reconciliationSvc service.ReconciliationService
}

// NewReconciliationHandler 创建 ReconciliationHandler
func NewReconciliationHandler(reconciliationSvc service.ReconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{reconciliationSvc: reconciliationSvc}
}

// Reconcile 对账
// GET /api/v1/reconciliation?source=live&period=2025-03
// source 省略时以当前预算为基准，否则为快照 ID
func (h *ReconciliationHandler) Reconcile(c *gin.Context) {
	var req dto.ReconcileRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, err)
		return
	}

	report, err := h.reconciliationSvc.Reconcile(c.Request.Context(), req.Source, req.Period)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, report)
}
