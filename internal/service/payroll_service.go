package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"budget-control/backend/internal/dto"
	"budget-control/backend/internal/model"
	"budget-control/backend/internal/repository"
	pkgerrors "budget-control/backend/pkg/errors"
	"budget-control/backend/pkg/fielddiff"
	"budget-control/backend/pkg/metrics"
	"budget-control/backend/pkg/payroll"
)

const maxPayrollRows = 20000

// ── 工资导入模块业务错误 ──

var (
	ErrPayrollNoData      = fmt.Errorf("%w: Excel 文件无数据行（第一行为表头）", pkgerrors.ErrValidation)
	ErrPayrollTooManyRows = fmt.Errorf("%w: 数据行数超过上限 %d 行", pkgerrors.ErrValidation, maxPayrollRows)
	ErrPayrollPeriodEmpty = fmt.Errorf("%w: 该期间没有已导入的工资数据", pkgerrors.ErrNotFound)
)

// payrollColumns 导入文件的表头列名
var payrollColumns = []string{
	"worker_id", "worker_name",
	model.FieldProject, model.FieldSource, model.FieldComponent, model.FieldSubComponent,
	model.FieldCategory, model.FieldResponsible, model.FieldBudgetLine,
	"amount", "paid_on",
}

var payrollRequiredColumns = []string{"worker_id", "amount", "paid_on"}

// PayrollRowError 指明出错的数据行（Excel 行号）
type PayrollRowError struct {
	Row    int
	Reason string
}

func (e *PayrollRowError) Error() string {
	return fmt.Sprintf("第 %d 行: %s", e.Row, e.Reason)
}

// Unwrap 归类为 ErrValidation
func (e *PayrollRowError) Unwrap() error {
	return pkgerrors.ErrValidation
}

// PayrollService 实发工资导入业务接口
type PayrollService interface {
	// Import 解析 xlsx 并整体替换该期间的工资数据
	Import(ctx context.Context, period string, reader io.Reader, actor Actor) (*dto.PayrollImportResponse, error)
	Summary(ctx context.Context) ([]dto.PayrollPeriodResponse, error)
	DeletePeriod(ctx context.Context, period string, actor Actor) (int64, error)
}

type payrollService struct {
	repo   *repository.Repository
	now    func() time.Time
	logger *zap.Logger
}

// NewPayrollService 创建 PayrollService 实例
func NewPayrollService(repo *repository.Repository, logger *zap.Logger) PayrollService {
	return &payrollService{repo: repo, now: time.Now, logger: logger}
}

// ════════════════════════════════════════════════════════════
// Import
// ════════════════════════════════════════════════════════════

func (s *payrollService) Import(ctx context.Context, period string, reader io.Reader, actor Actor) (*dto.PayrollImportResponse, error) {
	ym, err := payroll.ParseYearMonth(period)
	if err != nil {
		return nil, validationError("period 格式应为 YYYY-MM: %s", period)
	}

	facts, err := parsePayrollFile(reader, ym)
	if err != nil {
		return nil, err
	}

	loadedAt := s.now().UTC()
	var total float64
	for i := range facts {
		facts[i].FactID = uuid.NewString()
		facts[i].Period = ym.String()
		facts[i].LoadedBy = actor.Email
		facts[i].LoadedAt = loadedAt
		total += facts[i].AmountPaid
	}

	var replaced int64
	err = runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		n, err := txRepo.PayrollFact.DeleteByPeriod(ctx, ym.String())
		if err != nil {
			return err
		}
		replaced = n
		if err := txRepo.PayrollFact.BatchCreate(ctx, facts); err != nil {
			return err
		}
		return writeAudit(ctx, txRepo, AuditRecord{
			Module:     model.AuditModulePayroll,
			Action:     model.AuditActionCreate,
			Actor:      actor,
			ResourceID: ym.String(),
			New: map[string]any{
				"period":   ym.String(),
				"rows":     len(facts),
				"total":    total,
				"replaced": replaced,
			},
			Details: "导入实发工资",
		}, loadedAt)
	})
	if err != nil {
		s.logger.Error("导入实发工资失败", zap.String("period", ym.String()), zap.Error(err))
		return nil, err
	}
	metrics.PayrollRowsImported.Add(float64(len(facts)))

	s.logger.Info("实发工资已导入",
		zap.String("period", ym.String()),
		zap.Int("rows", len(facts)),
		zap.Int64("replaced", replaced),
	)

	return &dto.PayrollImportResponse{
		Period:   ym.String(),
		Rows:     len(facts),
		Replaced: replaced,
		Total:    total,
	}, nil
}

// parsePayrollFile 读取第一个工作表，表头列序不限
func parsePayrollFile(reader io.Reader, ym payroll.YearMonth) ([]model.PayrollFact, error) {
	f, err := excelize.OpenReader(reader)
	if err != nil {
		return nil, validationError("无法解析 Excel 文件: %v", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	rows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("读取工作表失败: %w", err)
	}
	if len(rows) < 2 {
		return nil, ErrPayrollNoData
	}

	colIndex := payrollHeaderIndex(rows[0])
	for _, name := range payrollRequiredColumns {
		if colIndex[name] < 0 {
			return nil, validationError("Excel 表头缺少必要列: %s", name)
		}
	}

	facts := make([]model.PayrollFact, 0, len(rows)-1)
	for i := 1; i < len(rows); i++ {
		line := i + 1
		get := func(name string) string {
			idx := colIndex[name]
			if idx < 0 || idx >= len(rows[i]) {
				return ""
			}
			return strings.TrimSpace(rows[i][idx])
		}

		if isBlankRow(rows[i]) {
			continue
		}

		fact := model.PayrollFact{
			WorkerID:   get("worker_id"),
			WorkerName: get("worker_name"),
			Dimensions: model.Dimensions{
				Project:      get(model.FieldProject),
				Source:       get(model.FieldSource),
				Component:    get(model.FieldComponent),
				SubComponent: get(model.FieldSubComponent),
				Category:     get(model.FieldCategory),
				Responsible:  get(model.FieldResponsible),
				BudgetLine:   get(model.FieldBudgetLine),
			},
		}
		if fact.WorkerID == "" {
			return nil, &PayrollRowError{Row: line, Reason: "worker_id 不能为空"}
		}

		amount, ok := fielddiff.AsFloat(strings.ReplaceAll(get("amount"), ",", ""))
		if !ok {
			return nil, &PayrollRowError{Row: line, Reason: fmt.Sprintf("amount 无效: %q", get("amount"))}
		}
		fact.AmountPaid = amount

		paidOn, ok := parseSheetDate(get("paid_on"))
		if !ok {
			return nil, &PayrollRowError{Row: line, Reason: fmt.Sprintf("paid_on 无效: %q", get("paid_on"))}
		}
		if !ym.Contains(paidOn) {
			return nil, &PayrollRowError{Row: line, Reason: fmt.Sprintf("paid_on %s 不属于期间 %s", paidOn.Format(dto.DateLayout), ym)}
		}
		fact.PaidOn = paidOn

		facts = append(facts, fact)
	}

	if len(facts) == 0 {
		return nil, ErrPayrollNoData
	}
	if len(facts) > maxPayrollRows {
		return nil, ErrPayrollTooManyRows
	}
	return facts, nil
}

// payrollHeaderIndex 列名 -> 列索引，缺失为 -1
func payrollHeaderIndex(header []string) map[string]int {
	idx := make(map[string]int, len(payrollColumns))
	for _, name := range payrollColumns {
		idx[name] = -1
	}
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		if _, ok := idx[name]; ok && idx[name] < 0 {
			idx[name] = i
		}
	}
	return idx
}

// parseSheetDate 同时接受 Excel 日期序列号与文本日期
func parseSheetDate(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	if serial, err := strconv.ParseFloat(raw, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, false
		}
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
	}
	return fielddiff.AsDate(raw)
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// ════════════════════════════════════════════════════════════
// Summary / DeletePeriod
// ════════════════════════════════════════════════════════════

func (s *payrollService) Summary(ctx context.Context) ([]dto.PayrollPeriodResponse, error) {
	rows, err := s.repo.PayrollFact.Summary(ctx)
	if err != nil {
		s.logger.Error("查询工资期间汇总失败", zap.Error(err))
		return nil, err
	}

	list := make([]dto.PayrollPeriodResponse, 0, len(rows))
	for _, r := range rows {
		list = append(list, dto.PayrollPeriodResponse{
			Period:     r.Period,
			Rows:       r.Rows,
			Total:      r.Total,
			LastLoaded: r.LastLoaded.Format(dto.TimeLayout),
		})
	}
	return list, nil
}

func (s *payrollService) DeletePeriod(ctx context.Context, period string, actor Actor) (int64, error) {
	ym, err := payroll.ParseYearMonth(period)
	if err != nil {
		return 0, validationError("period 格式应为 YYYY-MM: %s", period)
	}

	var deleted int64
	err = runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		n, err := txRepo.PayrollFact.DeleteByPeriod(ctx, ym.String())
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrPayrollPeriodEmpty
		}
		deleted = n
		return writeAudit(ctx, txRepo, AuditRecord{
			Module:     model.AuditModulePayroll,
			Action:     model.AuditActionDelete,
			Actor:      actor,
			ResourceID: ym.String(),
			Old:        map[string]any{"period": ym.String(), "rows": n},
			Details:    "删除期间工资数据",
		}, s.now())
	})
	if err != nil {
		if !errors.Is(err, ErrPayrollPeriodEmpty) {
			s.logger.Error("删除期间工资数据失败", zap.String("period", ym.String()), zap.Error(err))
		}
		return 0, err
	}
	return deleted, nil
}
