package handler

import (
	"github.com/gin-gonic/gin"

	"budget-control/backend/internal/dto"
	"budget-control/backend/internal/service"
	"budget-control/backend/pkg/response"
)

// UserHandler 用户管理 HTTP 处理器（仅管理员）
type UserHandler struct {
	userSvc service.UserService
}

// NewUserHandler 创建 UserHandler
func NewUserHandler(userSvc service.UserService) *UserHandler {
	return &UserHandler{userSvc: userSvc}
}

// ListUsers 用户列表
// GET /api/v1/users
func (h *UserHandler) ListUsers(c *gin.Context) {
	var req dto.PaginationRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, err)
		return
	}

	list, total, err := h.userSvc.List(c.Request.Context(), &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// GetUser 用户详情
// GET /api/v1/users/:id
func (h *UserHandler) GetUser(c *gin.Context) {
	user, err := h.userSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.OK(c, user)
}

// CreateUser 创建用户
// POST /api/v1/users
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req dto.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	user, err := h.userSvc.Create(c.Request.Context(), &req, actor)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Created(c, user)
}

// UpdateRole 修改用户角色
// PUT /api/v1/users/:id/role
func (h *UserHandler) UpdateRole(c *gin.Context) {
	var req dto.UpdateUserRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	user, err := h.userSvc.UpdateRole(c.Request.Context(), c.Param("id"), &req, callerID, actor)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, user)
}
