package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"budget-control/backend/internal/dto"
	"budget-control/backend/internal/model"
	"budget-control/backend/internal/repository"
	"budget-control/backend/pkg/metrics"
	"budget-control/backend/pkg/payroll"
)

// ReconciliationService 预算与实发工资对账
type ReconciliationService interface {
	// Reconcile source 为 "live" 或快照 ID，period 为 YYYY-MM
	Reconcile(ctx context.Context, source, period string) (*dto.ReconciliationReport, error)
}

type reconciliationService struct {
	repo      *repository.Repository
	projector CostProjector
	logger    *zap.Logger
}

// NewReconciliationService 创建 ReconciliationService 实例
func NewReconciliationService(repo *repository.Repository, projector CostProjector, logger *zap.Logger) ReconciliationService {
	return &reconciliationService{repo: repo, projector: projector, logger: logger}
}

// reconcileKey 对账组合键
type reconcileKey struct {
	WorkerID    string
	Project     string
	Source      string
	Responsible string
}

type reconcileCell struct {
	name     string
	budgeted float64
	actual   float64
}

func (s *reconciliationService) Reconcile(ctx context.Context, source, period string) (*dto.ReconciliationReport, error) {
	started := time.Now()

	ym, err := payroll.ParseYearMonth(period)
	if err != nil {
		return nil, validationError("period 格式应为 YYYY-MM: %s", period)
	}
	source = strings.TrimSpace(source)
	if source == "" {
		source = dto.ReconcileSourceLive
	}

	budget, err := s.loadBudget(ctx, source)
	if err != nil {
		return nil, err
	}
	facts, err := s.repo.PayrollFact.ListByPeriod(ctx, ym.String())
	if err != nil {
		s.logger.Error("查询实发工资失败", zap.String("period", ym.String()), zap.Error(err))
		return nil, err
	}

	report := buildReconciliation(s.projector, budget, facts, ym)
	report.Source = source
	report.Period = ym.String()

	metricSource := "snapshot"
	if source == dto.ReconcileSourceLive {
		metricSource = dto.ReconcileSourceLive
	}
	metrics.ReconciliationDuration.WithLabelValues(metricSource).Observe(time.Since(started).Seconds())

	return report, nil
}

// loadBudget 读取对账基准的分段数据
func (s *reconciliationService) loadBudget(ctx context.Context, source string) ([]model.TrancheData, error) {
	if source == dto.ReconcileSourceLive {
		live, err := s.repo.Tranche.ListAll(ctx)
		if err != nil {
			s.logger.Error("查询当前分段失败", zap.Error(err))
			return nil, err
		}
		out := make([]model.TrancheData, 0, len(live))
		for i := range live {
			out = append(out, live[i].TrancheData)
		}
		return out, nil
	}

	if _, err := s.repo.Snapshot.GetByID(ctx, source); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSnapshotNotFound
		}
		s.logger.Error("查询快照失败", zap.String("id", source), zap.Error(err))
		return nil, err
	}
	rows, err := s.repo.Snapshot.ListTranches(ctx, source)
	if err != nil {
		s.logger.Error("查询快照明细失败", zap.String("id", source), zap.Error(err))
		return nil, err
	}
	out := make([]model.TrancheData, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].TrancheData)
	}
	return out, nil
}

// buildReconciliation 合并预算与实发两侧，两侧未匹配的键都保留
func buildReconciliation(p CostProjector, budget []model.TrancheData, facts []model.PayrollFact, ym payroll.YearMonth) *dto.ReconciliationReport {
	cells := make(map[reconcileKey]*reconcileCell)
	cellOf := func(k reconcileKey) *reconcileCell {
		c, ok := cells[k]
		if !ok {
			c = &reconcileCell{}
			cells[k] = c
		}
		return c
	}

	for i := range budget {
		d := &budget[i]
		if payroll.Base30Days(d.StartDate, d.EndDate, ym) == 0 {
			continue
		}
		c := cellOf(reconcileKey{d.WorkerID, d.Project, d.Source, d.Responsible})
		c.budgeted += p.ProjectMonthlyCost(d, ym)
		if c.name == "" {
			c.name = d.WorkerName
		}
	}
	for i := range facts {
		f := &facts[i]
		c := cellOf(reconcileKey{f.WorkerID, f.Project, f.Source, f.Responsible})
		c.actual += f.AmountPaid
		if c.name == "" {
			c.name = f.WorkerName
		}
	}

	groups := make(map[string]*dto.ReconciliationGroup)
	for k, c := range cells {
		budgeted := payroll.RoundUnits(c.budgeted)
		actual := payroll.RoundCents(c.actual)
		row := dto.ReconciliationRow{
			WorkerID:        k.WorkerID,
			WorkerName:      c.name,
			Project:         k.Project,
			Source:          k.Source,
			Responsible:     k.Responsible,
			Budgeted:        budgeted,
			Actual:          actual,
			Gap:             payroll.RoundCents(actual - budgeted),
			ComplianceRatio: complianceRatio(actual, budgeted),
		}
		g, ok := groups[k.Project]
		if !ok {
			g = &dto.ReconciliationGroup{Project: k.Project}
			groups[k.Project] = g
		}
		g.Rows = append(g.Rows, row)
	}

	// 小计与合计在排序之后按固定顺序累加，并保留到分
	report := &dto.ReconciliationReport{Groups: make([]dto.ReconciliationGroup, 0, len(groups))}
	for _, g := range groups {
		sort.Slice(g.Rows, func(i, j int) bool {
			a, b := g.Rows[i], g.Rows[j]
			if a.WorkerID != b.WorkerID {
				return a.WorkerID < b.WorkerID
			}
			if a.Source != b.Source {
				return a.Source < b.Source
			}
			return a.Responsible < b.Responsible
		})
		for _, row := range g.Rows {
			g.Budgeted += row.Budgeted
			g.Actual += row.Actual
		}
		g.Budgeted = payroll.RoundCents(g.Budgeted)
		g.Actual = payroll.RoundCents(g.Actual)
		g.Gap = payroll.RoundCents(g.Actual - g.Budgeted)
		report.Groups = append(report.Groups, *g)
	}
	sort.Slice(report.Groups, func(i, j int) bool {
		if report.Groups[i].Actual != report.Groups[j].Actual {
			return report.Groups[i].Actual > report.Groups[j].Actual
		}
		return report.Groups[i].Project < report.Groups[j].Project
	})
	for _, g := range report.Groups {
		report.Totals.Budgeted += g.Budgeted
		report.Totals.Actual += g.Actual
	}
	report.Totals.Budgeted = payroll.RoundCents(report.Totals.Budgeted)
	report.Totals.Actual = payroll.RoundCents(report.Totals.Actual)
	report.Totals.Gap = payroll.RoundCents(report.Totals.Actual - report.Totals.Budgeted)
	report.Totals.ComplianceRatio = complianceRatio(report.Totals.Actual, report.Totals.Budgeted)

	return report
}

// complianceRatio 预算为 0 时返回 nil（N/A）
func complianceRatio(actual, budgeted float64) *float64 {
	if budgeted == 0 {
		return nil
	}
	r := actual / budgeted
	return &r
}
