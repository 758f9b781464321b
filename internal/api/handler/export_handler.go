package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"budget-control/backend/internal/dto"
	"budget-control/backend/internal/service"
	"budget-control/backend/pkg/response"
)

// ExportHandler Excel 导出 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportReconciliation 导出对账报告
// GET /api/v1/reconciliation/export?source=&period=2025-03
func (h *ExportHandler) ExportReconciliation(c *gin.Context) {
	var req dto.ReconcileRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, err)
		return
	}

	buf, filename, err := h.exportSvc.ExportReconciliation(c.Request.Context(), req.Source, req.Period)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	sendXLSX(c, buf, filename)
}

// ExportComparison 导出快照对比
// GET /api/v1/snapshots/:id/compare/export?year=2025
func (h *ExportHandler) ExportComparison(c *gin.Context) {
	var req dto.CompareRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, err)
		return
	}

	buf, filename, err := h.exportSvc.ExportComparison(c.Request.Context(), c.Param("id"), req.Year)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	sendXLSX(c, buf, filename)
}

// PayrollTemplate 下载工资导入模板
// GET /api/v1/payroll/template
func (h *ExportHandler) PayrollTemplate(c *gin.Context) {
	buf, filename, err := h.exportSvc.PayrollTemplate()
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	sendXLSX(c, buf, filename)
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrExportGenerateFail) {
		response.InternalError(c)
		return
	}
	handleServiceError(c, err)
}
