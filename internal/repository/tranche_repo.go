package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"budget-control/backend/internal/model"
	pkgerrors "budget-control/backend/pkg/errors"
)

// TrancheFilter 分段列表筛选条件
type TrancheFilter struct {
	WorkerID string
	Project  string
	ActiveOn *time.Time // 仅返回覆盖该日期的分段
	Query    string     // 按员工编号/姓名模糊匹配
}

// TrancheRepository 预算分段数据访问接口
type TrancheRepository interface {
	Create(ctx context.Context, tranche *model.Tranche) error
	GetByID(ctx context.Context, id string) (*model.Tranche, error)
	Update(ctx context.Context, tranche *model.Tranche) error
	Delete(ctx context.Context, id string, deletedBy string) error
	ListByWorker(ctx context.Context, workerID string) ([]model.Tranche, error)
	ListAll(ctx context.Context) ([]model.Tranche, error)
	List(ctx context.Context, filter TrancheFilter, offset, limit int) ([]model.Tranche, int64, error)
}

type trancheRepo struct {
	db *gorm.DB
}

// NewTrancheRepo 创建 TrancheRepository 实例
func NewTrancheRepo(db *gorm.DB) TrancheRepository {
	return &trancheRepo{db: db}
}

func (r *trancheRepo) Create(ctx context.Context, tranche *model.Tranche) error {
	return r.db.WithContext(ctx).Create(tranche).Error
}

func (r *trancheRepo) GetByID(ctx context.Context, id string) (*model.Tranche, error) {
	var tranche model.Tranche
	err := r.db.WithContext(ctx).
		Where("tranche_id = ?", id).
		First(&tranche).Error
	if err != nil {
		return nil, err
	}
	return &tranche, nil
}

func (r *trancheRepo) Update(ctx context.Context, tranche *model.Tranche) error {
	oldVersion := tranche.Version
	result := r.db.WithContext(ctx).
		Model(&model.Tranche{}).
		Where("tranche_id = ? AND version = ?", tranche.TrancheID, oldVersion).
		Updates(map[string]interface{}{
			"worker_id":     tranche.WorkerID,
			"worker_name":   tranche.WorkerName,
			"start_date":    tranche.StartDate,
			"end_date":      tranche.EndDate,
			"base_salary":   tranche.BaseSalary,
			"total_salary":  tranche.TotalSalary,
			"project":       tranche.Project,
			"source":        tranche.Source,
			"component":     tranche.Component,
			"sub_component": tranche.SubComponent,
			"category":      tranche.Category,
			"responsible":   tranche.Responsible,
			"budget_line":   tranche.BudgetLine,
			"updated_by":    tranche.UpdatedBy,
			"version":       oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	tranche.Version = oldVersion + 1
	return nil
}

// Delete 软删除，同时记录删除人
func (r *trancheRepo) Delete(ctx context.Context, id string, deletedBy string) error {
	db := r.db.WithContext(ctx)
	if err := db.Model(&model.Tranche{}).
		Where("tranche_id = ?", id).
		Update("deleted_by", deletedBy).Error; err != nil {
		return err
	}
	result := db.Where("tranche_id = ?", id).Delete(&model.Tranche{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *trancheRepo) ListByWorker(ctx context.Context, workerID string) ([]model.Tranche, error) {
	var tranches []model.Tranche
	err := r.db.WithContext(ctx).
		Where("worker_id = ?", workerID).
		Order("start_date ASC, tranche_id ASC").
		Find(&tranches).Error
	return tranches, err
}

func (r *trancheRepo) ListAll(ctx context.Context) ([]model.Tranche, error) {
	var tranches []model.Tranche
	err := r.db.WithContext(ctx).
		Order("worker_id ASC, start_date ASC, tranche_id ASC").
		Find(&tranches).Error
	return tranches, err
}

func (r *trancheRepo) List(ctx context.Context, filter TrancheFilter, offset, limit int) ([]model.Tranche, int64, error) {
	var tranches []model.Tranche
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Tranche{})
	if filter.WorkerID != "" {
		db = db.Where("worker_id = ?", filter.WorkerID)
	}
	if filter.Project != "" {
		db = db.Where("project = ?", filter.Project)
	}
	if filter.ActiveOn != nil {
		db = db.Where("start_date <= ? AND end_date >= ?", *filter.ActiveOn, *filter.ActiveOn)
	}
	if filter.Query != "" {
		like := "%" + filter.Query + "%"
		db = db.Where("worker_id ILIKE ? OR worker_name ILIKE ?", like, like)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Offset(offset).Limit(limit).
		Order("worker_id ASC, start_date ASC").
		Find(&tranches).Error; err != nil {
		return nil, 0, err
	}

	return tranches, total, nil
}
