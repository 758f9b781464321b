package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"budget-control/backend/internal/dto"
)

// ── 导出模块业务错误 ──

var (
	ErrExportGenerateFail = errors.New("生成 Excel 文件失败")
)

// ExportService 报表导出为 Excel (.xlsx)
//
// 导出以 bytes.Buffer 返回，由 Handler 层设置响应头后写入 Response
type ExportService interface {
	// ExportReconciliation 导出对账报告：每个项目一段，末尾合计
	ExportReconciliation(ctx context.Context, source, period string) (*bytes.Buffer, string, error)
	// ExportComparison 导出快照对比：项目汇总 / 新增 / 移除 / 变动 四个 Sheet
	ExportComparison(ctx context.Context, snapshotID string, year int) (*bytes.Buffer, string, error)
	// PayrollTemplate 工资导入模板（仅表头）
	PayrollTemplate() (*bytes.Buffer, string, error)
}

type exportService struct {
	reconciliation ReconciliationService
	snapshot       SnapshotService
	logger         *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(reconciliation ReconciliationService, snapshot SnapshotService, logger *zap.Logger) ExportService {
	return &exportService{reconciliation: reconciliation, snapshot: snapshot, logger: logger}
}

// sheetWriter 顺序写入一个 Sheet
type sheetWriter struct {
	f           *excelize.File
	sheet       string
	row         int
	headerStyle int
}

func newSheetWriter(f *excelize.File, sheet string, headerStyle int) *sheetWriter {
	return &sheetWriter{f: f, sheet: sheet, row: 1, headerStyle: headerStyle}
}

func (w *sheetWriter) header(values ...any) {
	w.line(values...)
	first := cell(colName(0), w.row-1)
	last := cell(colName(len(values)-1), w.row-1)
	w.f.SetCellStyle(w.sheet, first, last, w.headerStyle)
}

func (w *sheetWriter) line(values ...any) {
	for i, v := range values {
		w.f.SetCellValue(w.sheet, cell(colName(i), w.row), v)
	}
	w.row++
}

func newWorkbook(sheets ...string) (*excelize.File, int) {
	f := excelize.NewFile()
	for i, name := range sheets {
		if i == 0 {
			f.SetSheetName("Sheet1", name)
			continue
		}
		f.NewSheet(name)
	}
	style, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	return f, style
}

func (s *exportService) write(f *excelize.File) (*bytes.Buffer, error) {
	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, ErrExportGenerateFail
	}
	return buf, nil
}

// ════════════════════════════════════════════════════════════
// 对账报告
// ════════════════════════════════════════════════════════════

func (s *exportService) ExportReconciliation(ctx context.Context, source, period string) (*bytes.Buffer, string, error) {
	report, err := s.reconciliation.Reconcile(ctx, source, period)
	if err != nil {
		return nil, "", err
	}

	const sheet = "对账"
	f, headerStyle := newWorkbook(sheet)
	defer f.Close()

	f.SetColWidth(sheet, "A", "B", 16)
	f.SetColWidth(sheet, "C", "C", 28)
	f.SetColWidth(sheet, "D", "I", 14)

	w := newSheetWriter(f, sheet, headerStyle)
	w.line(fmt.Sprintf("对账报告 %s（基准: %s）", report.Period, report.Source))
	w.header("项目", "员工编号", "员工姓名", "资金来源", "负责人", "预算", "实发", "差额", "执行率")
	for _, g := range report.Groups {
		for _, r := range g.Rows {
			w.line(g.Project, r.WorkerID, r.WorkerName, r.Source, r.Responsible,
				r.Budgeted, r.Actual, r.Gap, ratioCell(r.ComplianceRatio))
		}
		w.line(g.Project+" 小计", "", "", "", "", g.Budgeted, g.Actual, g.Gap, "")
	}
	w.line("合计", "", "", "", "", report.Totals.Budgeted, report.Totals.Actual,
		report.Totals.Gap, ratioCell(report.Totals.ComplianceRatio))

	buf, err := s.write(f)
	if err != nil {
		return nil, "", err
	}
	return buf, fmt.Sprintf("对账_%s_%s.xlsx", report.Period, report.Source), nil
}

func ratioCell(r *float64) any {
	if r == nil {
		return auditStatsEmpty
	}
	return *r
}

// ════════════════════════════════════════════════════════════
// 快照对比
// ════════════════════════════════════════════════════════════

func (s *exportService) ExportComparison(ctx context.Context, snapshotID string, year int) (*bytes.Buffer, string, error) {
	report, err := s.snapshot.Compare(ctx, snapshotID, year)
	if err != nil {
		return nil, "", err
	}

	f, headerStyle := newWorkbook("项目汇总", "新增", "移除", "变动")
	defer f.Close()

	w := newSheetWriter(f, "项目汇总", headerStyle)
	w.header("项目", "快照合计", "当前合计", "差额", "快照人数", "当前人数")
	for _, r := range report.ProjectRows {
		w.line(r.Project, r.SnapshotTotal, r.LiveTotal, r.Diff, r.SnapshotHeadcount, r.LiveHeadcount)
	}
	k := report.KPIs
	w.line()
	w.line("快照合计", k.SnapshotTotal)
	w.line("当前合计", k.LiveTotal)
	w.line("净变动", k.NetVariation)
	w.line("变动率(%)", k.PercentVariation)
	w.line("人数(前/后)", k.HeadcountBefore, k.HeadcountAfter)

	for _, part := range []struct {
		sheet string
		rows  []dto.WorkerProjectValue
	}{
		{"新增", report.New},
		{"移除", report.Removed},
	} {
		w = newSheetWriter(f, part.sheet, headerStyle)
		w.header("员工编号", "员工姓名", "项目", "年度测算")
		for _, r := range part.rows {
			w.line(r.WorkerID, r.WorkerName, r.Project, r.Value)
		}
	}

	w = newSheetWriter(f, "变动", headerStyle)
	w.header("员工编号", "员工姓名", "项目", "快照", "当前", "差额")
	for _, m := range report.Modified {
		for _, p := range m.Projects {
			w.line(m.WorkerID, m.WorkerName, p.Project, p.Old, p.New, p.Delta)
		}
	}

	buf, err := s.write(f)
	if err != nil {
		return nil, "", err
	}
	return buf, fmt.Sprintf("快照对比_%d.xlsx", year), nil
}

// ════════════════════════════════════════════════════════════
// 工资导入模板
// ════════════════════════════════════════════════════════════

func (s *exportService) PayrollTemplate() (*bytes.Buffer, string, error) {
	const sheet = "payroll"
	f, headerStyle := newWorkbook(sheet)
	defer f.Close()

	header := make([]any, 0, len(payrollColumns))
	for _, c := range payrollColumns {
		header = append(header, c)
	}
	newSheetWriter(f, sheet, headerStyle).header(header...)
	f.SetColWidth(sheet, "A", colName(len(payrollColumns)-1), 16)

	buf, err := s.write(f)
	if err != nil {
		return nil, "", err
	}
	return buf, "payroll_template.xlsx", nil
}

// ── 辅助函数 ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
