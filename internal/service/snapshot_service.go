package service

import (
	"context"
	"errors"
	"fmt"
	"math"
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
	"budget-control/backend/pkg/metrics"
)

// ── 快照模块业务错误 ──

var (
	ErrSnapshotNotFound     = fmt.Errorf("%w: 快照不存在", pkgerrors.ErrNotFound)
	ErrSnapshotNameRequired = fmt.Errorf("%w: 快照名称不能为空", pkgerrors.ErrValidation)
)

// SnapshotService 快照业务接口
type SnapshotService interface {
	// Freeze 冻结当前全部分段为快照
	Freeze(ctx context.Context, req *dto.FreezeSnapshotRequest, actor Actor) (*dto.SnapshotResponse, error)
	List(ctx context.Context) ([]dto.SnapshotResponse, error)
	GetByID(ctx context.Context, id string) (*dto.SnapshotDetailResponse, error)
	Delete(ctx context.Context, id string, actor Actor) error
	// Compare 按年度对比快照与当前预算
	Compare(ctx context.Context, id string, year int) (*dto.ComparisonReport, error)
}

type snapshotService struct {
	repo      *repository.Repository
	projector CostProjector
	now       func() time.Time
	logger    *zap.Logger
}

// NewSnapshotService 创建 SnapshotService 实例
func NewSnapshotService(repo *repository.Repository, projector CostProjector, logger *zap.Logger) SnapshotService {
	return &snapshotService{repo: repo, projector: projector, now: time.Now, logger: logger}
}

// ════════════════════════════════════════════════════════════
// Freeze
// ════════════════════════════════════════════════════════════

func (s *snapshotService) Freeze(ctx context.Context, req *dto.FreezeSnapshotRequest, actor Actor) (*dto.SnapshotResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrSnapshotNameRequired
	}

	snapshot := &model.Snapshot{
		SnapshotID:  uuid.NewString(),
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		CreatedBy:   actor.Email,
		CreatedAt:   s.now().UTC(),
	}

	err := runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		live, err := txRepo.Tranche.ListAll(ctx)
		if err != nil {
			return err
		}

		rows := make([]model.SnapshotTranche, 0, len(live))
		for i := range live {
			rows = append(rows, model.SnapshotTranche{
				SnapshotID:        snapshot.SnapshotID,
				Seq:               i + 1,
				OriginalTrancheID: live[i].TrancheID,
				TrancheData:       live[i].TrancheData,
			})
		}
		snapshot.TrancheCount = len(rows)

		if err := txRepo.Snapshot.Create(ctx, snapshot); err != nil {
			return err
		}
		if err := txRepo.Snapshot.BatchCreateTranches(ctx, rows); err != nil {
			return err
		}

		return writeAudit(ctx, txRepo, AuditRecord{
			Module:     model.AuditModuleSnapshot,
			Action:     model.AuditActionCreate,
			Actor:      actor,
			ResourceID: snapshot.SnapshotID,
			New: map[string]any{
				"name":          snapshot.Name,
				"description":   snapshot.Description,
				"tranche_count": snapshot.TrancheCount,
			},
			Details: "冻结预算快照",
		}, snapshot.CreatedAt)
	})
	if err != nil {
		s.logger.Error("冻结快照失败", zap.String("name", name), zap.Error(err))
		return nil, err
	}
	metrics.SnapshotsCreated.Inc()

	s.logger.Info("快照已冻结",
		zap.String("snapshot_id", snapshot.SnapshotID),
		zap.Int("tranche_count", snapshot.TrancheCount),
	)

	resp := toSnapshotResponse(snapshot)
	return &resp, nil
}

// ════════════════════════════════════════════════════════════
// 查询 / 删除
// ════════════════════════════════════════════════════════════

func (s *snapshotService) List(ctx context.Context) ([]dto.SnapshotResponse, error) {
	snapshots, err := s.repo.Snapshot.List(ctx)
	if err != nil {
		s.logger.Error("查询快照列表失败", zap.Error(err))
		return nil, err
	}

	list := make([]dto.SnapshotResponse, 0, len(snapshots))
	for i := range snapshots {
		list = append(list, toSnapshotResponse(&snapshots[i]))
	}
	return list, nil
}

func (s *snapshotService) GetByID(ctx context.Context, id string) (*dto.SnapshotDetailResponse, error) {
	snapshot, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	rows, err := s.repo.Snapshot.ListTranches(ctx, id)
	if err != nil {
		s.logger.Error("查询快照明细失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	detail := &dto.SnapshotDetailResponse{
		SnapshotResponse: toSnapshotResponse(snapshot),
		Tranches:         make([]dto.SnapshotTrancheResponse, 0, len(rows)),
	}
	for i := range rows {
		detail.Tranches = append(detail.Tranches, dto.SnapshotTrancheResponse{
			Seq:                 rows[i].Seq,
			OriginalTrancheID:   rows[i].OriginalTrancheID,
			TrancheDataResponse: toTrancheDataResponse(&rows[i].TrancheData),
		})
	}
	return detail, nil
}

func (s *snapshotService) Delete(ctx context.Context, id string, actor Actor) error {
	snapshot, err := s.get(ctx, id)
	if err != nil {
		return err
	}

	err = runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		if err := txRepo.Snapshot.Delete(ctx, id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSnapshotNotFound
			}
			return err
		}
		return writeAudit(ctx, txRepo, AuditRecord{
			Module:     model.AuditModuleSnapshot,
			Action:     model.AuditActionDelete,
			Actor:      actor,
			ResourceID: id,
			Old: map[string]any{
				"name":          snapshot.Name,
				"tranche_count": snapshot.TrancheCount,
				"created_by":    snapshot.CreatedBy,
			},
			Details: "删除预算快照",
		}, s.now())
	})
	if err != nil {
		if !errors.Is(err, pkgerrors.ErrNotFound) {
			s.logger.Error("删除快照失败", zap.String("id", id), zap.Error(err))
		}
		return err
	}
	return nil
}

func (s *snapshotService) get(ctx context.Context, id string) (*model.Snapshot, error) {
	snapshot, err := s.repo.Snapshot.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSnapshotNotFound
		}
		s.logger.Error("查询快照失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return snapshot, nil
}

// ════════════════════════════════════════════════════════════
// Compare
// ════════════════════════════════════════════════════════════

// workerProjectKey 对比口径：员工 + 项目
type workerProjectKey struct {
	WorkerID string
	Project  string
}

// yearProjection 某一侧（快照或当前）的年度测算
type yearProjection struct {
	values map[workerProjectKey]float64
	names  map[string]string
}

func (s *snapshotService) Compare(ctx context.Context, id string, year int) (*dto.ComparisonReport, error) {
	if year < 1 {
		return nil, validationError("year 无效: %d", year)
	}
	if _, err := s.get(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.repo.Snapshot.ListTranches(ctx, id)
	if err != nil {
		s.logger.Error("查询快照明细失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	live, err := s.repo.Tranche.ListAll(ctx)
	if err != nil {
		s.logger.Error("查询当前分段失败", zap.Error(err))
		return nil, err
	}

	snapData := make([]model.TrancheData, 0, len(rows))
	for i := range rows {
		snapData = append(snapData, rows[i].TrancheData)
	}
	liveData := make([]model.TrancheData, 0, len(live))
	for i := range live {
		liveData = append(liveData, live[i].TrancheData)
	}

	report := compareProjections(
		projectTranches(s.projector, snapData, year),
		projectTranches(s.projector, liveData, year),
	)
	report.SnapshotID = id
	report.Year = year
	return report, nil
}

// projectTranches 按员工 + 项目汇总年度测算值（四舍五入到整数货币单位）
func projectTranches(p CostProjector, tranches []model.TrancheData, year int) yearProjection {
	proj := yearProjection{
		values: make(map[workerProjectKey]float64),
		names:  make(map[string]string),
	}
	for i := range tranches {
		d := &tranches[i]
		value, covered := projectYear(p, d, year)
		if !covered {
			continue
		}
		key := workerProjectKey{WorkerID: d.WorkerID, Project: d.Project}
		proj.values[key] += value
		if d.WorkerName != "" {
			proj.names[d.WorkerID] = d.WorkerName
		}
	}
	for k, v := range proj.values {
		proj.values[k] = math.Round(v)
	}
	return proj
}

// compareProjections 生成对比报告，输出顺序完全由输入决定
func compareProjections(snap, live yearProjection) *dto.ComparisonReport {
	report := &dto.ComparisonReport{
		ProjectRows: make([]dto.ProjectComparisonRow, 0),
		New:         make([]dto.WorkerProjectValue, 0),
		Removed:     make([]dto.WorkerProjectValue, 0),
		Modified:    make([]dto.WorkerModification, 0),
	}

	nameOf := func(worker string) string {
		if n, ok := live.names[worker]; ok {
			return n
		}
		return snap.names[worker]
	}

	// ── 项目汇总 ──
	type projectAgg struct {
		snapTotal, liveTotal float64
		snapHeads, liveHeads map[string]struct{}
	}
	projects := make(map[string]*projectAgg)
	aggOf := func(code string) *projectAgg {
		a, ok := projects[code]
		if !ok {
			a = &projectAgg{snapHeads: map[string]struct{}{}, liveHeads: map[string]struct{}{}}
			projects[code] = a
		}
		return a
	}
	snapWorkers := make(map[string]struct{})
	liveWorkers := make(map[string]struct{})
	for k, v := range snap.values {
		a := aggOf(k.Project)
		a.snapTotal += v
		a.snapHeads[k.WorkerID] = struct{}{}
		snapWorkers[k.WorkerID] = struct{}{}
	}
	for k, v := range live.values {
		a := aggOf(k.Project)
		a.liveTotal += v
		a.liveHeads[k.WorkerID] = struct{}{}
		liveWorkers[k.WorkerID] = struct{}{}
	}

	var snapTotal, liveTotal float64
	for code, a := range projects {
		report.ProjectRows = append(report.ProjectRows, dto.ProjectComparisonRow{
			Project:           code,
			SnapshotTotal:     a.snapTotal,
			LiveTotal:         a.liveTotal,
			Diff:              a.liveTotal - a.snapTotal,
			SnapshotHeadcount: len(a.snapHeads),
			LiveHeadcount:     len(a.liveHeads),
		})
		snapTotal += a.snapTotal
		liveTotal += a.liveTotal
	}
	sort.Slice(report.ProjectRows, func(i, j int) bool {
		di := math.Abs(report.ProjectRows[i].Diff)
		dj := math.Abs(report.ProjectRows[j].Diff)
		if di != dj {
			return di > dj
		}
		return report.ProjectRows[i].Project < report.ProjectRows[j].Project
	})

	// ── 新增 / 移除 / 变动 ──
	modified := make(map[string][]dto.ProjectDelta)
	for k, newVal := range live.values {
		oldVal, ok := snap.values[k]
		if !ok {
			report.New = append(report.New, dto.WorkerProjectValue{
				WorkerID: k.WorkerID, WorkerName: nameOf(k.WorkerID), Project: k.Project, Value: newVal,
			})
			continue
		}
		if newVal != oldVal {
			modified[k.WorkerID] = append(modified[k.WorkerID], dto.ProjectDelta{
				Project: k.Project, Old: oldVal, New: newVal, Delta: newVal - oldVal,
			})
		}
	}
	for k, oldVal := range snap.values {
		if _, ok := live.values[k]; !ok {
			report.Removed = append(report.Removed, dto.WorkerProjectValue{
				WorkerID: k.WorkerID, WorkerName: nameOf(k.WorkerID), Project: k.Project, Value: oldVal,
			})
		}
	}
	sortWorkerProjectValues(report.New)
	sortWorkerProjectValues(report.Removed)

	workers := make([]string, 0, len(modified))
	for w := range modified {
		workers = append(workers, w)
	}
	sort.Strings(workers)
	for _, w := range workers {
		deltas := modified[w]
		sort.Slice(deltas, func(i, j int) bool { return deltas[i].Project < deltas[j].Project })
		var total float64
		for _, d := range deltas {
			total += d.Delta
		}
		report.Modified = append(report.Modified, dto.WorkerModification{
			WorkerID: w, WorkerName: nameOf(w), Projects: deltas, Delta: total,
		})
	}

	// ── KPI ──
	pct := 0.0
	if snapTotal > 0 {
		pct = math.Round(((liveTotal/snapTotal)-1)*100*100) / 100
	}
	report.KPIs = dto.ComparisonKPIs{
		SnapshotTotal:    snapTotal,
		LiveTotal:        liveTotal,
		NetVariation:     liveTotal - snapTotal,
		PercentVariation: pct,
		HeadcountBefore:  len(snapWorkers),
		HeadcountAfter:   len(liveWorkers),
		NewCount:         len(report.New),
		RemovedCount:     len(report.Removed),
	}

	return report
}

func sortWorkerProjectValues(list []dto.WorkerProjectValue) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].WorkerID != list[j].WorkerID {
			return list[i].WorkerID < list[j].WorkerID
		}
		return list[i].Project < list[j].Project
	})
}

func toSnapshotResponse(s *model.Snapshot) dto.SnapshotResponse {
	return dto.SnapshotResponse{
		ID:           s.SnapshotID,
		Name:         s.Name,
		Description:  s.Description,
		TrancheCount: s.TrancheCount,
		CreatedBy:    s.CreatedBy,
		CreatedAt:    s.CreatedAt.Format(dto.TimeLayout),
	}
}
