package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"budget-control/backend/internal/dto"
	"budget-control/backend/internal/service"
	"budget-control/backend/pkg/response"
)

// TrancheHandler 预算分段 HTTP 处理器
// 写接口仅对管理员开放，编辑通过变更申请修改分段
type TrancheHandler struct {
	trancheSvc service.TrancheService
}

// NewTrancheHandler 创建 TrancheHandler
func NewTrancheHandler(trancheSvc service.TrancheService) *TrancheHandler {
	return &TrancheHandler{trancheSvc: trancheSvc}
}

// ListTranches 分段列表
// GET /api/v1/tranches?worker_id=&project=&active_on=&q=
func (h *TrancheHandler) ListTranches(c *gin.Context) {
	var req dto.TrancheListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, err)
		return
	}

	list, total, err := h.trancheSvc.List(c.Request.Context(), &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// GetTranche 分段详情
// GET /api/v1/tranches/:id
func (h *TrancheHandler) GetTranche(c *gin.Context) {
	tranche, err := h.trancheSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.OK(c, tranche)
}

// CreateTranche 直接新增分段
// POST /api/v1/tranches
// 存在未确认的重叠时返回 409 与重叠提示，确认后以 allow_overlap=true 重试
func (h *TrancheHandler) CreateTranche(c *gin.Context) {
	var req dto.TrancheRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	result, err := h.trancheSvc.Create(c.Request.Context(), &req, actor)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Created(c, result)
}

// UpdateTranche 直接修改分段
// PUT /api/v1/tranches/:id
func (h *TrancheHandler) UpdateTranche(c *gin.Context) {
	var req dto.TrancheRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	result, err := h.trancheSvc.Update(c.Request.Context(), c.Param("id"), &req, actor)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, result)
}

// DeleteTranche 直接删除分段
// DELETE /api/v1/tranches/:id
func (h *TrancheHandler) DeleteTranche(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	if err := h.trancheSvc.Delete(c.Request.Context(), c.Param("id"), actor); err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, nil)
}

// CheckOverlap 重叠预检（表单提交前提示）
// GET /api/v1/tranches/overlap-check?worker_id=&start_date=&end_date=&exclude_id=
func (h *TrancheHandler) CheckOverlap(c *gin.Context) {
	var req dto.OverlapCheckRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, err)
		return
	}

	// 格式已由 binding 校验
	start, _ := time.Parse(dto.DateLayout, req.StartDate)
	end, _ := time.Parse(dto.DateLayout, req.EndDate)
	if end.Before(start) {
		response.BadRequest(c, codeValidation, "结束日期不能早于开始日期")
		return
	}

	result, err := h.trancheSvc.ValidateOverlap(c.Request.Context(), req.WorkerID, start, end, req.ExcludeID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, dto.OverlapCheckResponse{Overlap: result.Overlap, Warning: result.Warning()})
}

// ListOverlaps 全部员工的重叠分段
// GET /api/v1/tranches/overlaps
func (h *TrancheHandler) ListOverlaps(c *gin.Context) {
	pairs, err := h.trancheSvc.ListOverlaps(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.OK(c, gin.H{"list": pairs})
}
