package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"budget-control/backend/internal/dto"
	"budget-control/backend/internal/model"
	"budget-control/backend/internal/repository"
)

// NotificationService 通知业务接口
type NotificationService interface {
	ListMine(ctx context.Context, email string, req *dto.NotificationListRequest) ([]dto.NotificationResponse, int64, error)
	UnreadCount(ctx context.Context, email string) (int64, error)
	MarkAllRead(ctx context.Context, email string) (int64, error)
}

type notificationService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewNotificationService 创建 NotificationService 实例
func NewNotificationService(repo *repository.Repository, logger *zap.Logger) NotificationService {
	return &notificationService{repo: repo, logger: logger}
}

func (s *notificationService) ListMine(ctx context.Context, email string, req *dto.NotificationListRequest) ([]dto.NotificationResponse, int64, error) {
	items, total, err := s.repo.Notification.ListByRecipient(ctx, email, req.UnreadOnly, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询通知失败", zap.String("email", email), zap.Error(err))
		return nil, 0, err
	}

	list := make([]dto.NotificationResponse, 0, len(items))
	for i := range items {
		n := &items[i]
		resp := dto.NotificationResponse{
			ID:        n.NotificationID,
			Type:      n.Type,
			Title:     n.Title,
			Content:   n.Content,
			IsRead:    n.IsRead,
			CreatedAt: n.CreatedAt.Format(dto.TimeLayout),
		}
		if n.RelatedID != nil {
			resp.RelatedID = *n.RelatedID
		}
		list = append(list, resp)
	}
	return list, total, nil
}

func (s *notificationService) UnreadCount(ctx context.Context, email string) (int64, error) {
	n, err := s.repo.Notification.CountUnread(ctx, email)
	if err != nil {
		s.logger.Error("统计未读通知失败", zap.String("email", email), zap.Error(err))
		return 0, err
	}
	return n, nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, email string) (int64, error) {
	n, err := s.repo.Notification.MarkAllRead(ctx, email)
	if err != nil {
		s.logger.Error("标记通知已读失败", zap.String("email", email), zap.Error(err))
		return 0, err
	}
	return n, nil
}

// notifyRequester 向申请人发送审批结果通知
func notifyRequester(ctx context.Context, repo *repository.Repository, cr *model.ChangeRequest, at time.Time) error {
	n := &model.Notification{
		NotificationID: uuid.NewString(),
		RecipientEmail: cr.RequestedBy,
		RelatedID:      &cr.RequestID,
		CreatedAt:      at.UTC(),
	}

	if cr.Status == model.RequestStatusApproved {
		n.Type = model.NotificationSuccess
		n.Title = "变更申请已通过"
		n.Content = fmt.Sprintf("您对员工 %s 的 %s 申请已由 %s 审批通过。",
			cr.WorkerID, cr.Kind, derefString(cr.ResolvedBy))
	} else {
		n.Type = model.NotificationError
		n.Title = "变更申请被驳回"
		n.Content = fmt.Sprintf("您对员工 %s 的 %s 申请已被 %s 驳回。",
			cr.WorkerID, cr.Kind, derefString(cr.ResolvedBy))
		if cr.RejectReason != "" {
			n.Content += "原因：" + cr.RejectReason
		}
	}

	return repo.Notification.Create(ctx, n)
}

func derefString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
