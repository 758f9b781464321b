package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"budget-control/backend/internal/model"
	pkgerrors "budget-control/backend/pkg/errors"
)

// ChangeRequestFilter 变更申请列表筛选条件
type ChangeRequestFilter struct {
	Status      string
	RequestedBy string
	WorkerID    string
	MonthStart  *time.Time // 提交月份起（含）
	MonthEnd    *time.Time // 提交月份止（不含）
	Query       string     // 员工编号/申请人/目标分段模糊匹配
}

// ChangeRequestRepository 变更申请数据访问接口
type ChangeRequestRepository interface {
	Create(ctx context.Context, req *model.ChangeRequest) error
	GetByID(ctx context.Context, id string) (*model.ChangeRequest, error)
	Resolve(ctx context.Context, req *model.ChangeRequest) error
	List(ctx context.Context, filter ChangeRequestFilter, offset, limit int) ([]model.ChangeRequest, int64, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
	ListPendingByWorker(ctx context.Context, workerID string) ([]model.ChangeRequest, error)
}

type changeRequestRepo struct {
	db *gorm.DB
}

// NewChangeRequestRepo 创建 ChangeRequestRepository 实例
func NewChangeRequestRepo(db *gorm.DB) ChangeRequestRepository {
	return &changeRequestRepo{db: db}
}

func (r *changeRequestRepo) Create(ctx context.Context, req *model.ChangeRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *changeRequestRepo) GetByID(ctx context.Context, id string) (*model.ChangeRequest, error) {
	var req model.ChangeRequest
	err := r.db.WithContext(ctx).
		Where("request_id = ?", id).
		First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// Resolve 以 CAS 方式写入审批结果
// 仅当记录仍为 PENDING 且版本一致时生效，否则返回 ErrOptimisticLock
func (r *changeRequestRepo) Resolve(ctx context.Context, req *model.ChangeRequest) error {
	oldVersion := req.Version
	result := r.db.WithContext(ctx).
		Model(&model.ChangeRequest{}).
		Where("request_id = ? AND status = ? AND version = ?",
			req.RequestID, model.RequestStatusPending, oldVersion).
		Updates(map[string]interface{}{
			"status":            req.Status,
			"resolved_by":       req.ResolvedBy,
			"resolved_at":       req.ResolvedAt,
			"reject_reason":     req.RejectReason,
			"overlap_warning":   req.OverlapWarning,
			"target_tranche_id": req.TargetTrancheID,
			"version":           oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	req.Version = oldVersion + 1
	return nil
}

func (r *changeRequestRepo) List(ctx context.Context, filter ChangeRequestFilter, offset, limit int) ([]model.ChangeRequest, int64, error) {
	var reqs []model.ChangeRequest
	var total int64

	db := r.db.WithContext(ctx).Model(&model.ChangeRequest{})
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.RequestedBy != "" {
		db = db.Where("requested_by = ?", filter.RequestedBy)
	}
	if filter.WorkerID != "" {
		db = db.Where("worker_id = ?", filter.WorkerID)
	}
	if filter.MonthStart != nil {
		db = db.Where("requested_at >= ?", *filter.MonthStart)
	}
	if filter.MonthEnd != nil {
		db = db.Where("requested_at < ?", *filter.MonthEnd)
	}
	if filter.Query != "" {
		like := "%" + filter.Query + "%"
		db = db.Where("worker_id ILIKE ? OR requested_by ILIKE ? OR CAST(target_tranche_id AS TEXT) ILIKE ?",
			like, like, like)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Offset(offset).Limit(limit).
		Order("requested_at DESC").
		Find(&reqs).Error; err != nil {
		return nil, 0, err
	}

	return reqs, total, nil
}

func (r *changeRequestRepo) CountByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := r.db.WithContext(ctx).
		Model(&model.ChangeRequest{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := map[string]int64{
		model.RequestStatusPending:  0,
		model.RequestStatusApproved: 0,
		model.RequestStatusRejected: 0,
	}
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func (r *changeRequestRepo) ListPendingByWorker(ctx context.Context, workerID string) ([]model.ChangeRequest, error) {
	var reqs []model.ChangeRequest
	err := r.db.WithContext(ctx).
		Where("worker_id = ? AND status = ?", workerID, model.RequestStatusPending).
		Order("requested_at ASC").
		Find(&reqs).Error
	return reqs, err
}
