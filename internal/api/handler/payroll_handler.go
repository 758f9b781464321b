package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"budget-control/backend/internal/dto"
	"budget-control/backend/internal/service"
	"budget-control/backend/pkg/response"
)

// PayrollHandler 实发工资导入 HTTP 处理器
type PayrollHandler struct {
	payrollSvc service.PayrollService
	logger     *zap.Logger
}

// NewPayrollHandler 创建 PayrollHandler
func NewPayrollHandler(payrollSvc service.PayrollService, logger *zap.Logger) *PayrollHandler {
	return &PayrollHandler{payrollSvc: payrollSvc, logger: logger}
}

// Import 上传某期间的工资 xlsx，整体替换该期间已有数据
// POST /api/v1/payroll/import  (multipart: period, file)
func (h *PayrollHandler) Import(c *gin.Context) {
	var req dto.PayrollImportRequest
	if err := c.ShouldBind(&req); err != nil {
		bindFailed(c, err)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, codeValidation, "请上传 Excel 文件（字段名 file）")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		h.logger.Error("打开上传文件失败", zap.String("filename", fileHeader.Filename), zap.Error(err))
		response.InternalError(c)
		return
	}
	defer file.Close()

	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	result, err := h.payrollSvc.Import(c.Request.Context(), req.Period, file, actor)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Created(c, result)
}

// Summary 已导入期间汇总
// GET /api/v1/payroll/periods
func (h *PayrollHandler) Summary(c *gin.Context) {
	list, err := h.payrollSvc.Summary(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.OK(c, gin.H{"list": list})
}

// DeletePeriod 删除某期间的全部工资数据
// DELETE /api/v1/payroll/periods/:period
func (h *PayrollHandler) DeletePeriod(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	deleted, err := h.payrollSvc.DeletePeriod(c.Request.Context(), c.Param("period"), actor)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, gin.H{"deleted": deleted})
}
