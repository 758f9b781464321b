package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"budget-control/backend/internal/dto"
	"budget-control/backend/internal/model"
	"budget-control/backend/internal/repository"
	pkgerrors "budget-control/backend/pkg/errors"
)

// ── 分段模块业务错误 ──

var (
	ErrTrancheNotFound = fmt.Errorf("%w: 分段不存在", pkgerrors.ErrNotFound)
)

// validationError 构造参数校验错误
func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", pkgerrors.ErrValidation, fmt.Sprintf(format, args...))
}

// OverlapError 直接写入时存在未确认的区间重叠
// 携带重叠提示，调用方确认后以 allow_overlap=true 重试
type OverlapError struct {
	Warning *dto.OverlapWarning
}

func (e *OverlapError) Error() string {
	return e.Warning.Message
}

// Unwrap 归类为 ErrOverlap
func (e *OverlapError) Unwrap() error {
	return pkgerrors.ErrOverlap
}

// OverlapResult 重叠检查结果
type OverlapResult struct {
	Overlap  bool
	Conflict *model.Tranche
}

// TrancheService 预算分段业务接口
type TrancheService interface {
	Create(ctx context.Context, req *dto.TrancheRequest, actor Actor) (*dto.TrancheResultResponse, error)
	Update(ctx context.Context, id string, req *dto.TrancheRequest, actor Actor) (*dto.TrancheResultResponse, error)
	Delete(ctx context.Context, id string, actor Actor) error
	GetByID(ctx context.Context, id string) (*dto.TrancheResponse, error)
	List(ctx context.Context, req *dto.TrancheListRequest) ([]dto.TrancheResponse, int64, error)
	// ValidateOverlap 检查员工在 [start, end] 内是否已有其他分段
	ValidateOverlap(ctx context.Context, workerID string, start, end time.Time, excludeID string) (*OverlapResult, error)
	// ListOverlaps 列出全部员工的重叠分段对
	ListOverlaps(ctx context.Context) ([]dto.OverlapPairResponse, error)
}

type trancheService struct {
	repo   *repository.Repository
	now    func() time.Time
	logger *zap.Logger
}

// NewTrancheService 创建 TrancheService 实例
func NewTrancheService(repo *repository.Repository, logger *zap.Logger) TrancheService {
	return &trancheService{repo: repo, now: time.Now, logger: logger}
}

// ════════════════════════════════════════════════════════════
// Create
// ════════════════════════════════════════════════════════════

func (s *trancheService) Create(ctx context.Context, req *dto.TrancheRequest, actor Actor) (*dto.TrancheResultResponse, error) {
	var data model.TrancheData
	if err := buildTrancheData(&data, req.Fields()); err != nil {
		return nil, err
	}

	conflict, err := findOverlap(ctx, s.repo, data.WorkerID, data.StartDate, data.EndDate, "")
	if err != nil {
		s.logger.Error("检查分段重叠失败", zap.String("worker_id", data.WorkerID), zap.Error(err))
		return nil, err
	}
	warning := overlapWarning(conflict)
	if warning != nil && !req.AllowOverlap {
		return nil, &OverlapError{Warning: warning}
	}

	var tranche *model.Tranche
	err = runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		var err error
		tranche, err = createTranche(ctx, txRepo, data, actor)
		if err != nil {
			return err
		}
		return writeAudit(ctx, txRepo, AuditRecord{
			Module:     model.AuditModuleTranche,
			Action:     model.AuditActionCreate,
			Actor:      actor,
			ResourceID: tranche.TrancheID,
			New:        tranche.Fields(),
			Details:    overlapDetails("新建分段", warning),
		}, s.now())
	})
	if err != nil {
		s.logger.Error("创建分段失败", zap.String("worker_id", data.WorkerID), zap.Error(err))
		return nil, err
	}

	return &dto.TrancheResultResponse{Tranche: toTrancheResponse(tranche), Warning: warning}, nil
}

// ════════════════════════════════════════════════════════════
// Update
// ════════════════════════════════════════════════════════════

func (s *trancheService) Update(ctx context.Context, id string, req *dto.TrancheRequest, actor Actor) (*dto.TrancheResultResponse, error) {
	tranche, err := s.getTranche(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}

	data := tranche.TrancheData
	if err := buildTrancheData(&data, req.Fields()); err != nil {
		return nil, err
	}

	conflict, err := findOverlap(ctx, s.repo, data.WorkerID, data.StartDate, data.EndDate, tranche.TrancheID)
	if err != nil {
		s.logger.Error("检查分段重叠失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	warning := overlapWarning(conflict)
	if warning != nil && !req.AllowOverlap {
		return nil, &OverlapError{Warning: warning}
	}

	err = runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		old, err := updateTranche(ctx, txRepo, tranche, data, actor)
		if err != nil {
			return err
		}
		return writeAudit(ctx, txRepo, AuditRecord{
			Module:     model.AuditModuleTranche,
			Action:     model.AuditActionUpdate,
			Actor:      actor,
			ResourceID: tranche.TrancheID,
			Old:        old,
			New:        tranche.Fields(),
			Details:    overlapDetails("修改分段", warning),
		}, s.now())
	})
	if err != nil {
		if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
			s.logger.Error("更新分段失败", zap.String("id", id), zap.Error(err))
		}
		return nil, err
	}

	return &dto.TrancheResultResponse{Tranche: toTrancheResponse(tranche), Warning: warning}, nil
}

// ════════════════════════════════════════════════════════════
// Delete
// ════════════════════════════════════════════════════════════

func (s *trancheService) Delete(ctx context.Context, id string, actor Actor) error {
	tranche, err := s.getTranche(ctx, s.repo, id)
	if err != nil {
		return err
	}

	err = runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		if err := deleteTranche(ctx, txRepo, tranche, actor); err != nil {
			return err
		}
		return writeAudit(ctx, txRepo, AuditRecord{
			Module:     model.AuditModuleTranche,
			Action:     model.AuditActionDelete,
			Actor:      actor,
			ResourceID: tranche.TrancheID,
			Old:        tranche.Fields(),
			Details:    "删除分段",
		}, s.now())
	})
	if err != nil {
		if !errors.Is(err, pkgerrors.ErrNotFound) {
			s.logger.Error("删除分段失败", zap.String("id", id), zap.Error(err))
		}
		return err
	}
	return nil
}

// ════════════════════════════════════════════════════════════
// 查询
// ════════════════════════════════════════════════════════════

func (s *trancheService) GetByID(ctx context.Context, id string) (*dto.TrancheResponse, error) {
	tranche, err := s.getTranche(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	resp := toTrancheResponse(tranche)
	return &resp, nil
}

func (s *trancheService) List(ctx context.Context, req *dto.TrancheListRequest) ([]dto.TrancheResponse, int64, error) {
	filter := repository.TrancheFilter{
		WorkerID: strings.TrimSpace(req.WorkerID),
		Project:  strings.TrimSpace(req.Project),
		Query:    strings.TrimSpace(req.Q),
	}
	if req.ActiveOn != "" {
		day, err := time.Parse(time.DateOnly, req.ActiveOn)
		if err != nil {
			return nil, 0, validationError("active_on 格式应为 YYYY-MM-DD")
		}
		filter.ActiveOn = &day
	}

	tranches, total, err := s.repo.Tranche.List(ctx, filter, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询分段列表失败", zap.Error(err))
		return nil, 0, err
	}

	list := make([]dto.TrancheResponse, 0, len(tranches))
	for i := range tranches {
		list = append(list, toTrancheResponse(&tranches[i]))
	}
	return list, total, nil
}

func (s *trancheService) ValidateOverlap(ctx context.Context, workerID string, start, end time.Time, excludeID string) (*OverlapResult, error) {
	conflict, err := findOverlap(ctx, s.repo, workerID, start, end, excludeID)
	if err != nil {
		s.logger.Error("检查分段重叠失败", zap.String("worker_id", workerID), zap.Error(err))
		return nil, err
	}
	return &OverlapResult{Overlap: conflict != nil, Conflict: conflict}, nil
}

func (s *trancheService) ListOverlaps(ctx context.Context) ([]dto.OverlapPairResponse, error) {
	tranches, err := s.repo.Tranche.ListAll(ctx)
	if err != nil {
		s.logger.Error("查询全部分段失败", zap.Error(err))
		return nil, err
	}

	byWorker := make(map[string][]model.Tranche)
	workers := make([]string, 0)
	for _, t := range tranches {
		if _, ok := byWorker[t.WorkerID]; !ok {
			workers = append(workers, t.WorkerID)
		}
		byWorker[t.WorkerID] = append(byWorker[t.WorkerID], t)
	}
	sort.Strings(workers)

	pairs := make([]dto.OverlapPairResponse, 0)
	for _, w := range workers {
		list := byWorker[w]
		sortTranches(list)
		for i := 0; i < len(list); i++ {
			for j := i + 1; j < len(list); j++ {
				if !list[i].Overlaps(list[j].StartDate, list[j].EndDate) {
					continue
				}
				pairs = append(pairs, dto.OverlapPairResponse{
					WorkerID: w,
					First:    toTrancheResponse(&list[i]),
					Second:   toTrancheResponse(&list[j]),
				})
			}
		}
	}
	return pairs, nil
}

func (s *trancheService) getTranche(ctx context.Context, repo *repository.Repository, id string) (*model.Tranche, error) {
	tranche, err := repo.Tranche.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTrancheNotFound
		}
		s.logger.Error("查询分段失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return tranche, nil
}

// ── 分段写入（直接编辑与审批流程共用） ──

// buildTrancheData 将字段字典写入 data 并校验
func buildTrancheData(data *model.TrancheData, fields map[string]any) error {
	if err := data.Apply(fields); err != nil {
		return validationError("%s", err.Error())
	}
	if err := data.Validate(); err != nil {
		return validationError("%s", err.Error())
	}
	return nil
}

// findOverlap 返回员工名下第一个与 [start, end] 重叠的分段（按开始日期），无重叠返回 nil
func findOverlap(ctx context.Context, repo *repository.Repository, workerID string, start, end time.Time, excludeID string) (*model.Tranche, error) {
	tranches, err := repo.Tranche.ListByWorker(ctx, workerID)
	if err != nil {
		return nil, err
	}
	sortTranches(tranches)
	for i := range tranches {
		if tranches[i].TrancheID == excludeID {
			continue
		}
		if tranches[i].Overlaps(start, end) {
			return &tranches[i], nil
		}
	}
	return nil, nil
}

func createTranche(ctx context.Context, repo *repository.Repository, data model.TrancheData, actor Actor) (*model.Tranche, error) {
	tranche := &model.Tranche{
		TrancheID:   uuid.NewString(),
		TrancheData: data,
	}
	tranche.Version = 1
	tranche.CreatedBy = model.StringPtr(actor.Email)
	tranche.UpdatedBy = model.StringPtr(actor.Email)

	if err := repo.Tranche.Create(ctx, tranche); err != nil {
		return nil, err
	}
	return tranche, nil
}

// updateTranche 以 data 替换分段取值，返回修改前的字段字典
func updateTranche(ctx context.Context, repo *repository.Repository, tranche *model.Tranche, data model.TrancheData, actor Actor) (map[string]any, error) {
	old := tranche.Fields()
	prev := tranche.TrancheData

	tranche.TrancheData = data
	tranche.UpdatedBy = model.StringPtr(actor.Email)
	if err := repo.Tranche.Update(ctx, tranche); err != nil {
		tranche.TrancheData = prev
		return nil, err
	}
	return old, nil
}

func deleteTranche(ctx context.Context, repo *repository.Repository, tranche *model.Tranche, actor Actor) error {
	if err := repo.Tranche.Delete(ctx, tranche.TrancheID, actor.Email); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTrancheNotFound
		}
		return err
	}
	return nil
}

// Warning 转为响应中的重叠提示，无重叠时为 nil
func (r *OverlapResult) Warning() *dto.OverlapWarning {
	if r == nil || r.Conflict == nil {
		return nil
	}
	return overlapWarning(r.Conflict)
}

func overlapWarning(conflict *model.Tranche) *dto.OverlapWarning {
	if conflict == nil {
		return nil
	}
	start := conflict.StartDate.Format(dto.DateLayout)
	end := conflict.EndDate.Format(dto.DateLayout)
	return &dto.OverlapWarning{
		Message: fmt.Sprintf("员工 %s 在 %s 至 %s 已有分段 %s，区间重叠",
			conflict.WorkerID, start, end, conflict.TrancheID),
		WorkerID:          conflict.WorkerID,
		ConflictTrancheID: conflict.TrancheID,
		ConflictStartDate: start,
		ConflictEndDate:   end,
	}
}

func overlapDetails(action string, warning *dto.OverlapWarning) string {
	if warning == nil {
		return action
	}
	return action + "（已确认重叠：" + warning.Message + "）"
}

func sortTranches(list []model.Tranche) {
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].StartDate.Equal(list[j].StartDate) {
			return list[i].StartDate.Before(list[j].StartDate)
		}
		return list[i].TrancheID < list[j].TrancheID
	})
}

func toTrancheDataResponse(d *model.TrancheData) dto.TrancheDataResponse {
	return dto.TrancheDataResponse{
		WorkerID:     d.WorkerID,
		WorkerName:   d.WorkerName,
		StartDate:    d.StartDate.Format(dto.DateLayout),
		EndDate:      d.EndDate.Format(dto.DateLayout),
		BaseSalary:   d.BaseSalary,
		TotalSalary:  d.TotalSalary,
		Project:      d.Project,
		Source:       d.Source,
		Component:    d.Component,
		SubComponent: d.SubComponent,
		Category:     d.Category,
		Responsible:  d.Responsible,
		BudgetLine:   d.BudgetLine,
	}
}

func toTrancheResponse(t *model.Tranche) dto.TrancheResponse {
	return dto.TrancheResponse{
		ID:                  t.TrancheID,
		TrancheDataResponse: toTrancheDataResponse(&t.TrancheData),
		Version:             t.Version,
		CreatedAt:           t.CreatedAt.Format(dto.TimeLayout),
		UpdatedAt:           t.UpdatedAt.Format(dto.TimeLayout),
	}
}
