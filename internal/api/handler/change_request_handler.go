package handler

import (
	"github.com/gin-gonic/gin"

	"budget-control/backend/internal/dto"
	"budget-control/backend/internal/service"
	"budget-control/backend/pkg/response"
)

// ChangeRequestHandler 变更申请 HTTP 处理器
type ChangeRequestHandler struct {
	crSvc service.ChangeRequestService
}

// NewChangeRequestHandler 创建 ChangeRequestHandler
func NewChangeRequestHandler(crSvc service.ChangeRequestService) *ChangeRequestHandler {
	return &ChangeRequestHandler{crSvc: crSvc}
}

// Submit 提交变更申请
// POST /api/v1/change-requests
func (h *ChangeRequestHandler) Submit(c *gin.Context) {
	var req dto.SubmitChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	result, err := h.crSvc.Submit(c.Request.Context(), &req, actor)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Created(c, result)
}

// List 变更申请列表
// GET /api/v1/change-requests?status=&requested_by=&worker_id=&month=&q=
func (h *ChangeRequestHandler) List(c *gin.Context) {
	var req dto.ChangeRequestListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, err)
		return
	}

	list, total, err := h.crSvc.List(c.Request.Context(), &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// Counts 各状态数量
// GET /api/v1/change-requests/counts
func (h *ChangeRequestHandler) Counts(c *gin.Context) {
	counts, err := h.crSvc.Counts(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.OK(c, counts)
}

// PendingByWorker 员工名下待审批的申请
// GET /api/v1/change-requests/pending/:worker_id
func (h *ChangeRequestHandler) PendingByWorker(c *gin.Context) {
	list, err := h.crSvc.ListPendingByWorker(c.Request.Context(), c.Param("worker_id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.OK(c, gin.H{"list": list})
}

// Get 申请详情（含字段差异）
// GET /api/v1/change-requests/:id
func (h *ChangeRequestHandler) Get(c *gin.Context) {
	cr, err := h.crSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.OK(c, cr)
}

// Approve 审批通过
// POST /api/v1/change-requests/:id/approve
func (h *ChangeRequestHandler) Approve(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	result, err := h.crSvc.Approve(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, result)
}

// Reject 驳回
// POST /api/v1/change-requests/:id/reject
func (h *ChangeRequestHandler) Reject(c *gin.Context) {
	var req dto.RejectChangeRequest
	// 驳回理由可选，空请求体视为无理由
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			bindFailed(c, err)
			return
		}
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	cr, err := h.crSvc.Reject(c.Request.Context(), c.Param("id"), actor, req.Reason)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, cr)
}
