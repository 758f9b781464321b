package service

import (
	"context"

	"go.uber.org/zap"

	"budget-control/backend/config"
	"budget-control/backend/internal/repository"
	"budget-control/backend/pkg/jwt"
	"budget-control/backend/pkg/redis"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Auth           AuthService
	User           UserService
	Tranche        TrancheService
	ChangeRequest  ChangeRequestService
	Snapshot       SnapshotService
	Reconciliation ReconciliationService
	Payroll        PayrollService
	Audit          AuditService
	Notification   NotificationService
	Export         ExportService
}

// NewService 创建 Service 聚合
// rdb 可为 nil（Redis 不可用时降级，登出不写黑名单）
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	rdb *redis.Client,
	logger *zap.Logger,
) *Service {
	projector := NewBase30Projector()
	snapshot := NewSnapshotService(repo, projector, logger)
	reconciliation := NewReconciliationService(repo, projector, logger)

	return &Service{
		Auth:           NewAuthService(cfg, repo, jwtMgr, rdb, logger),
		User:           NewUserService(repo, logger),
		Tranche:        NewTrancheService(repo, logger),
		ChangeRequest:  NewChangeRequestService(cfg, repo, logger),
		Snapshot:       snapshot,
		Reconciliation: reconciliation,
		Payroll:        NewPayrollService(repo, logger),
		Audit:          NewAuditService(cfg, repo, logger),
		Notification:   NewNotificationService(repo, logger),
		Export:         NewExportService(reconciliation, snapshot, logger),
	}
}

// Actor 操作人：邮箱 + 来源 IP
type Actor struct {
	Email string
	IP    string
}

// runInTx 在事务中执行 fn
// 单元测试中 Repository 未绑定数据库，BeginTx 返回 nil，此时直接在原 Repository 上执行
func runInTx(ctx context.Context, repo *repository.Repository, logger *zap.Logger, fn func(txRepo *repository.Repository) error) error {
	tx, err := repo.BeginTx(ctx)
	if err != nil {
		logger.Error("开启事务失败", zap.Error(err))
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			if tx != nil {
				tx.Rollback()
			}
			panic(r)
		}
	}()

	if err := fn(repo.WithTx(tx)); err != nil {
		if tx != nil {
			tx.Rollback()
		}
		return err
	}

	if tx != nil {
		if err := tx.Commit().Error; err != nil {
			logger.Error("提交事务失败", zap.Error(err))
			return err
		}
	}
	return nil
}
