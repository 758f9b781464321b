package repository

import (
	"context"

	"gorm.io/gorm"

	"budget-control/backend/internal/model"
)

// snapshotBatchSize 快照明细批量写入大小
const snapshotBatchSize = 500

// SnapshotRepository 快照数据访问接口
// 快照只支持创建、读取与整体删除
type SnapshotRepository interface {
	Create(ctx context.Context, snapshot *model.Snapshot) error
	BatchCreateTranches(ctx context.Context, rows []model.SnapshotTranche) error
	GetByID(ctx context.Context, id string) (*model.Snapshot, error)
	ListTranches(ctx context.Context, snapshotID string) ([]model.SnapshotTranche, error)
	List(ctx context.Context) ([]model.Snapshot, error)
	Delete(ctx context.Context, id string) error
}

type snapshotRepo struct {
	db *gorm.DB
}

// NewSnapshotRepo 创建 SnapshotRepository 实例
func NewSnapshotRepo(db *gorm.DB) SnapshotRepository {
	return &snapshotRepo{db: db}
}

// Create 仅写入快照头，明细通过 BatchCreateTranches 写入
func (r *snapshotRepo) Create(ctx context.Context, snapshot *model.Snapshot) error {
	return r.db.WithContext(ctx).Omit("Tranches").Create(snapshot).Error
}

func (r *snapshotRepo) BatchCreateTranches(ctx context.Context, rows []model.SnapshotTranche) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(&rows, snapshotBatchSize).Error
}

func (r *snapshotRepo) GetByID(ctx context.Context, id string) (*model.Snapshot, error) {
	var snapshot model.Snapshot
	err := r.db.WithContext(ctx).
		Where("snapshot_id = ?", id).
		First(&snapshot).Error
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (r *snapshotRepo) ListTranches(ctx context.Context, snapshotID string) ([]model.SnapshotTranche, error) {
	var rows []model.SnapshotTranche
	err := r.db.WithContext(ctx).
		Where("snapshot_id = ?", snapshotID).
		Order("seq ASC").
		Find(&rows).Error
	return rows, err
}

func (r *snapshotRepo) List(ctx context.Context) ([]model.Snapshot, error) {
	var snapshots []model.Snapshot
	err := r.db.WithContext(ctx).
		Order("created_at DESC, snapshot_id ASC").
		Find(&snapshots).Error
	return snapshots, err
}

// Delete 删除快照头与全部明细，调用方负责包裹事务
func (r *snapshotRepo) Delete(ctx context.Context, id string) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("snapshot_id = ?", id).Delete(&model.SnapshotTranche{}).Error; err != nil {
		return err
	}
	result := db.Where("snapshot_id = ?", id).Delete(&model.Snapshot{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
