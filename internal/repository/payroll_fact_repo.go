package repository

import (
	"context"

	"gorm.io/gorm"

	"budget-control/backend/internal/model"
)

const payrollBatchSize = 1000

// PayrollFactRepository 实发工资数据访问接口
type PayrollFactRepository interface {
	BatchCreate(ctx context.Context, facts []model.PayrollFact) error
	DeleteByPeriod(ctx context.Context, period string) (int64, error)
	ListByPeriod(ctx context.Context, period string) ([]model.PayrollFact, error)
	Summary(ctx context.Context) ([]model.PayrollPeriodSummary, error)
}

type payrollFactRepo struct {
	db *gorm.DB
}

// NewPayrollFactRepo 创建 PayrollFactRepository 实例
func NewPayrollFactRepo(db *gorm.DB) PayrollFactRepository {
	return &payrollFactRepo{db: db}
}

func (r *payrollFactRepo) BatchCreate(ctx context.Context, facts []model.PayrollFact) error {
	if len(facts) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(&facts, payrollBatchSize).Error
}

func (r *payrollFactRepo) DeleteByPeriod(ctx context.Context, period string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("period = ?", period).
		Delete(&model.PayrollFact{})
	return result.RowsAffected, result.Error
}

func (r *payrollFactRepo) ListByPeriod(ctx context.Context, period string) ([]model.PayrollFact, error) {
	var facts []model.PayrollFact
	err := r.db.WithContext(ctx).
		Where("period = ?", period).
		Order("worker_id ASC, project ASC").
		Find(&facts).Error
	return facts, err
}

func (r *payrollFactRepo) Summary(ctx context.Context) ([]model.PayrollPeriodSummary, error) {
	var rows []model.PayrollPeriodSummary
	err := r.db.WithContext(ctx).
		Model(&model.PayrollFact{}).
		Select("period, COUNT(*) AS rows, COALESCE(SUM(amount_paid), 0) AS total, MAX(loaded_at) AS last_loaded").
		Group("period").
		Order("period DESC").
		Scan(&rows).Error
	return rows, err
}
