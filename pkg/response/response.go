package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 统一响应信封 {code, message, data, details}
// code 为 0 表示成功，其余为业务错误码
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Details string      `json:"details,omitempty"`
}

// Pagination 分页元数据
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// PageData 分页响应数据
type PageData struct {
	List       interface{} `json:"list"`
	Pagination Pagination  `json:"pagination"`
}

const defaultPageSize = 20

func write(c *gin.Context, status, code int, message string, data interface{}, details string) {
	c.JSON(status, Response{Code: code, Message: message, Data: data, Details: details})
}

// ── 成功 ──

// OK 200
func OK(c *gin.Context, data interface{}) {
	write(c, http.StatusOK, 0, "success", data, "")
}

// Created 201
func Created(c *gin.Context, data interface{}) {
	write(c, http.StatusCreated, 0, "success", data, "")
}

// OKPage 200 分页列表
func OKPage(c *gin.Context, list interface{}, total int64, page, pageSize int) {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	write(c, http.StatusOK, 0, "success", PageData{
		List: list,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: int((total + int64(pageSize) - 1) / int64(pageSize)),
		},
	}, "")
}

// ── 错误 ──

// Error 通用错误响应
func Error(c *gin.Context, httpStatus int, code int, message string) {
	write(c, httpStatus, code, message, nil, "")
}

// ErrorWithDetails 带详情的错误响应（如参数绑定失败的字段信息）
func ErrorWithDetails(c *gin.Context, httpStatus int, code int, message, details string) {
	write(c, httpStatus, code, message, nil, details)
}

// BadRequest 400
func BadRequest(c *gin.Context, code int, message string) {
	Error(c, http.StatusBadRequest, code, message)
}

// Unauthorized 401
func Unauthorized(c *gin.Context, code int, message string) {
	Error(c, http.StatusUnauthorized, code, message)
}

// Forbidden 403
func Forbidden(c *gin.Context, code int, message string) {
	Error(c, http.StatusForbidden, code, message)
}

// NotFound 404
func NotFound(c *gin.Context, code int, message string) {
	Error(c, http.StatusNotFound, code, message)
}

// Conflict 409
func Conflict(c *gin.Context, code int, message string) {
	Error(c, http.StatusConflict, code, message)
}

// ConflictWithData 409，data 携带冲突详情（如重叠分段）
func ConflictWithData(c *gin.Context, code int, message string, data interface{}) {
	write(c, http.StatusConflict, code, message, data, "")
}

// InternalError 500，不向客户端暴露内部错误
func InternalError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, 50000, "服务器内部错误")
}
