package handler

import (
	"github.com/gin-gonic/gin"

	"budget-control/backend/internal/dto"
	"budget-control/backend/internal/service"
	"budget-control/backend/pkg/response"
)

// SnapshotHandler 预算快照 HTTP 处理器
type SnapshotHandler struct {
	snapshotSvc service.SnapshotService
}

// NewSnapshotHandler 创建 SnapshotHandler
func NewSnapshotHandler(snapshotSvc service.SnapshotService) *SnapshotHandler {
	return &SnapshotHandler{snapshotSvc: snapshotSvc}
}

// Freeze 冻结当前预算
// POST /api/v1/snapshots
func (h *SnapshotHandler) Freeze(c *gin.Context) {
	var req dto.FreezeSnapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	snap, err := h.snapshotSvc.Freeze(c.Request.Context(), &req, actor)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Created(c, snap)
}

// List 快照列表（最新在前）
// GET /api/v1/snapshots
func (h *SnapshotHandler) List(c *gin.Context) {
	list, err := h.snapshotSvc.List(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.OK(c, gin.H{"list": list})
}

// Get 快照详情（含冻结的分段）
// GET /api/v1/snapshots/:id
func (h *SnapshotHandler) Get(c *gin.Context) {
	snap, err := h.snapshotSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.OK(c, snap)
}

// Delete 删除快照
// DELETE /api/v1/snapshots/:id
func (h *SnapshotHandler) Delete(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	if err := h.snapshotSvc.Delete(c.Request.Context(), c.Param("id"), actor); err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, nil)
}

// Compare 快照与当前预算的年度对比
// GET /api/v1/snapshots/:id/compare?year=2025
func (h *SnapshotHandler) Compare(c *gin.Context) {
	var req dto.CompareRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, err)
		return
	}

	report, err := h.snapshotSvc.Compare(c.Request.Context(), c.Param("id"), req.Year)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, report)
}
