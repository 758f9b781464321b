package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"budget-control/backend/internal/model"
)

// AuditFilter 审计日志筛选条件
type AuditFilter struct {
	Module     string
	Action     string
	Actor      string // 操作人邮箱子串
	ResourceID string
}

// AuditRepository 审计日志数据访问接口
// 仅追加：不提供更新与删除
type AuditRepository interface {
	Create(ctx context.Context, entry *model.AuditEntry) error
	List(ctx context.Context, filter AuditFilter, offset, limit int) ([]model.AuditEntry, int64, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
	TopModuleSince(ctx context.Context, since time.Time) (*model.AuditCount, error)
	TopActorSince(ctx context.Context, since time.Time) (*model.AuditCount, error)
}

type auditRepo struct {
	db *gorm.DB
}

// NewAuditRepo 创建 AuditRepository 实例
func NewAuditRepo(db *gorm.DB) AuditRepository {
	return &auditRepo{db: db}
}

func (r *auditRepo) Create(ctx context.Context, entry *model.AuditEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *auditRepo) List(ctx context.Context, filter AuditFilter, offset, limit int) ([]model.AuditEntry, int64, error) {
	var entries []model.AuditEntry
	var total int64

	db := r.db.WithContext(ctx).Model(&model.AuditEntry{})
	if filter.Module != "" {
		db = db.Where("module = ?", filter.Module)
	}
	if filter.Action != "" {
		db = db.Where("action = ?", filter.Action)
	}
	if filter.Actor != "" {
		db = db.Where("actor_email ILIKE ?", "%"+filter.Actor+"%")
	}
	if filter.ResourceID != "" {
		db = db.Where("resource_id = ?", filter.ResourceID)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Offset(offset).Limit(limit).
		Order("timestamp DESC, entry_id ASC").
		Find(&entries).Error; err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

func (r *auditRepo) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.AuditEntry{}).
		Where("timestamp >= ?", since).
		Count(&total).Error
	return total, err
}

func (r *auditRepo) TopModuleSince(ctx context.Context, since time.Time) (*model.AuditCount, error) {
	return r.topSince(ctx, "module", since)
}

func (r *auditRepo) TopActorSince(ctx context.Context, since time.Time) (*model.AuditCount, error) {
	return r.topSince(ctx, "actor_email", since)
}

// topSince 返回 since 之后出现次数最多的取值，无记录时返回 nil
func (r *auditRepo) topSince(ctx context.Context, column string, since time.Time) (*model.AuditCount, error) {
	var rows []model.AuditCount
	err := r.db.WithContext(ctx).
		Model(&model.AuditEntry{}).
		Select(column+" AS key, COUNT(*) AS count").
		Where("timestamp >= ?", since).
		Group(column).
		Order("count DESC, key ASC").
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}
