package handler

import (
	"bytes"
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"budget-control/backend/internal/service"
	pkgerrors "budget-control/backend/pkg/errors"
	"budget-control/backend/pkg/response"
)

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth           *AuthHandler
	User           *UserHandler
	Tranche        *TrancheHandler
	ChangeRequest  *ChangeRequestHandler
	Snapshot       *SnapshotHandler
	Reconciliation *ReconciliationHandler
	Payroll        *PayrollHandler
	Audit          *AuditHandler
	Notification   *NotificationHandler
	Export         *ExportHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service, logger *zap.Logger) *Handler {
	return &Handler{
		Auth:           NewAuthHandler(svc.Auth),
		User:           NewUserHandler(svc.User),
		Tranche:        NewTrancheHandler(svc.Tranche),
		ChangeRequest:  NewChangeRequestHandler(svc.ChangeRequest),
		Snapshot:       NewSnapshotHandler(svc.Snapshot),
		Reconciliation: NewReconciliationHandler(svc.Reconciliation),
		Payroll:        NewPayrollHandler(svc.Payroll, logger),
		Audit:          NewAuditHandler(svc.Audit),
		Notification:   NewNotificationHandler(svc.Notification),
		Export:         NewExportHandler(svc.Export),
	}
}

// ── 业务错误码 ──
const (
	codeValidation     = 10001
	codeNotFound       = 10006
	codeInvalidState   = 10007
	codeOverlap        = 10008
	codeOptimisticLock = 10009

	codeInvalidCredentials = 11001
	codeInvalidToken       = 11002
)

// handleServiceError 按错误类别映射 HTTP 状态码
// 业务哨兵错误的文案直接作为 message 返回
func handleServiceError(c *gin.Context, err error) {
	var overlapErr *service.OverlapError
	switch {
	case errors.As(err, &overlapErr):
		response.ConflictWithData(c, codeOverlap, overlapErr.Error(), overlapErr.Warning)
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Unauthorized(c, codeInvalidCredentials, "邮箱或密码错误")
	case errors.Is(err, service.ErrInvalidToken):
		response.Unauthorized(c, codeInvalidToken, "Token 无效或已失效")
	case errors.Is(err, pkgerrors.ErrValidation):
		response.BadRequest(c, codeValidation, err.Error())
	case errors.Is(err, pkgerrors.ErrNotFound):
		response.NotFound(c, codeNotFound, err.Error())
	case errors.Is(err, pkgerrors.ErrInvalidState):
		response.Conflict(c, codeInvalidState, err.Error())
	case errors.Is(err, pkgerrors.ErrOptimisticLock):
		response.Conflict(c, codeOptimisticLock, err.Error())
	default:
		_ = c.Error(err)
		response.InternalError(c)
	}
}

// bindFailed 参数绑定失败统一响应
func bindFailed(c *gin.Context, err error) {
	response.ErrorWithDetails(c, http.StatusBadRequest, codeValidation, "参数校验失败", err.Error())
}

// sendXLSX 以附件形式下发 Excel 文件
func sendXLSX(c *gin.Context, buf *bytes.Buffer, filename string) {
	const contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.QueryEscape(filename))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}
