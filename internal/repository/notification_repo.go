package repository

import (
	"context"

	"gorm.io/gorm"

	"budget-control/backend/internal/model"
)

// NotificationRepository 通知数据访问接口
type NotificationRepository interface {
	Create(ctx context.Context, n *model.Notification) error
	ListByRecipient(ctx context.Context, email string, unreadOnly bool, offset, limit int) ([]model.Notification, int64, error)
	CountUnread(ctx context.Context, email string) (int64, error)
	MarkAllRead(ctx context.Context, email string) (int64, error)
}

type notificationRepo struct {
	db *gorm.DB
}

// NewNotificationRepo 创建 NotificationRepository 实例
func NewNotificationRepo(db *gorm.DB) NotificationRepository {
	return &notificationRepo{db: db}
}

func (r *notificationRepo) Create(ctx context.Context, n *model.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *notificationRepo) ListByRecipient(ctx context.Context, email string, unreadOnly bool, offset, limit int) ([]model.Notification, int64, error) {
	var list []model.Notification
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Notification{}).
		Where("recipient_email = ?", email)
	if unreadOnly {
		db = db.Where("is_read = ?", false)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Offset(offset).Limit(limit).
		Order("created_at DESC").
		Find(&list).Error; err != nil {
		return nil, 0, err
	}

	return list, total, nil
}

func (r *notificationRepo) CountUnread(ctx context.Context, email string) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.Notification{}).
		Where("recipient_email = ? AND is_read = ?", email, false).
		Count(&total).Error
	return total, err
}

func (r *notificationRepo) MarkAllRead(ctx context.Context, email string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Notification{}).
		Where("recipient_email = ? AND is_read = ?", email, false).
		Update("is_read", true)
	return result.RowsAffected, result.Error
}
