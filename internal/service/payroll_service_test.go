package service

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"budget-control/backend/internal/model"
	pkgerrors "budget-control/backend/pkg/errors"
)

func setupTestPayrollService() (PayrollService, *mockRepos) {
	repo, m := newMockRepository()
	return NewPayrollService(repo, zap.NewNop()), m
}

// buildPayrollFile 生成工资导入文件，rows 不含表头
func buildPayrollFile(t *testing.T, header []string, rows [][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, h := range header {
		f.SetCellValue("Sheet1", cell(colName(i), 1), h)
	}
	for r, row := range rows {
		for c, v := range row {
			f.SetCellValue("Sheet1", cell(colName(c), r+2), v)
		}
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		t.Fatalf("生成测试文件失败: %v", err)
	}
	return buf
}

var testPayrollHeader = []string{"worker_id", "worker_name", "project", "source", "responsible", "amount", "paid_on"}

func TestPayrollService_Import_ReplacesPeriod(t *testing.T) {
	svc, m := setupTestPayrollService()
	seedFact(m.payroll, "2025-03", "OLD", "P1", "REC", "ana", 1)
	seedFact(m.payroll, "2025-04", "KEEP", "P1", "REC", "ana", 1)

	file := buildPayrollFile(t, testPayrollHeader, [][]any{
		{"W1", "Ana", "P1", "REC", "ana", 1500.5, "2025-03-28"},
		{"W2", "Luis", "P2", "SGP", "luis", "2,000", "2025-03-15"},
		{},
	})

	resp, err := svc.Import(context.Background(), "2025-03", file, Actor{Email: "nomina@test.com"})
	if err != nil {
		t.Fatalf("导入应成功: %v", err)
	}
	if resp.Rows != 2 || resp.Replaced != 1 || resp.Total != 3500.5 {
		t.Errorf("导入结果异常: %+v", resp)
	}

	facts, _ := m.payroll.ListByPeriod(context.Background(), "2025-03")
	if len(facts) != 2 {
		t.Fatalf("期间应只剩新导入的 2 行，实际=%d", len(facts))
	}
	if facts[1].Source != "SGP" || facts[1].AmountPaid != 2000 || facts[1].LoadedBy != "nomina@test.com" {
		t.Errorf("行内容异常: %+v", facts[1])
	}
	if other, _ := m.payroll.ListByPeriod(context.Background(), "2025-04"); len(other) != 1 {
		t.Errorf("其他期间不应受影响")
	}

	entries := m.audit.byModule(model.AuditModulePayroll)
	if len(entries) != 1 || entries[0].Action != model.AuditActionCreate || entries[0].ResourceID != "2025-03" {
		t.Errorf("导入应写 1 条 CREATE 审计")
	}
}

func TestPayrollService_Import_RowOutsidePeriod(t *testing.T) {
	svc, m := setupTestPayrollService()

	file := buildPayrollFile(t, testPayrollHeader, [][]any{
		{"W1", "Ana", "P1", "REC", "ana", 1000, "2025-03-28"},
		{"W2", "Luis", "P2", "SGP", "luis", 1000, "2025-04-01"},
	})

	_, err := svc.Import(context.Background(), "2025-03", file, Actor{Email: "nomina@test.com"})
	var rowErr *PayrollRowError
	if !errors.As(err, &rowErr) || rowErr.Row != 3 {
		t.Fatalf("期望第 3 行报错，实际=%v", err)
	}
	if !errors.Is(err, pkgerrors.ErrValidation) {
		t.Errorf("行错误应归类为 ErrValidation")
	}
	if len(m.payroll.facts) != 0 {
		t.Errorf("失败的导入不应写入数据")
	}
}

func TestPayrollService_Import_BadFile(t *testing.T) {
	svc, _ := setupTestPayrollService()

	tests := []struct {
		name string
		file *bytes.Buffer
	}{
		{"非 Excel 文件", bytes.NewBufferString("worker_id,amount\nW1,10")},
		{"缺少必要列", buildPayrollFile(t, []string{"worker_id", "amount"}, [][]any{{"W1", 10}})},
		{"只有表头", buildPayrollFile(t, testPayrollHeader, nil)},
		{"金额无效", buildPayrollFile(t, testPayrollHeader, [][]any{{"W1", "", "", "", "", "abc", "2025-03-01"}})},
		{"缺少员工编号", buildPayrollFile(t, testPayrollHeader, [][]any{{"", "", "", "", "", 10, "2025-03-01"}})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Import(context.Background(), "2025-03", tt.file, Actor{Email: "nomina@test.com"})
			if !errors.Is(err, pkgerrors.ErrValidation) {
				t.Errorf("期望 ErrValidation，实际=%v", err)
			}
		})
	}
}

func TestParseSheetDate(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"2025-03-28", "2025-03-28", true},
		{"45744", "2025-03-28", true},
		{"28/03/2025", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := parseSheetDate(tt.raw)
		if ok != tt.ok {
			t.Errorf("parseSheetDate(%q) ok=%v，期望 %v", tt.raw, ok, tt.ok)
			continue
		}
		if ok && got.Format("2006-01-02") != tt.want {
			t.Errorf("parseSheetDate(%q)=%s，期望 %s", tt.raw, got.Format("2006-01-02"), tt.want)
		}
	}
}

func TestPayrollService_SummaryAndDelete(t *testing.T) {
	svc, m := setupTestPayrollService()
	seedFact(m.payroll, "2025-03", "W1", "P1", "REC", "ana", 100)
	seedFact(m.payroll, "2025-03", "W2", "P1", "REC", "ana", 50)
	seedFact(m.payroll, "2025-04", "W1", "P1", "REC", "ana", 100)

	summary, err := svc.Summary(context.Background())
	if err != nil {
		t.Fatalf("汇总应成功: %v", err)
	}
	if len(summary) != 2 || summary[0].Period != "2025-04" || summary[1].Rows != 2 || summary[1].Total != 150 {
		t.Errorf("汇总异常: %+v", summary)
	}

	n, err := svc.DeletePeriod(context.Background(), "2025-03", testAdmin)
	if err != nil || n != 2 {
		t.Fatalf("删除应返回 2 行，实际=%d err=%v", n, err)
	}
	if _, err := svc.DeletePeriod(context.Background(), "2025-03", testAdmin); !errors.Is(err, ErrPayrollPeriodEmpty) {
		t.Errorf("空期间删除期望 ErrPayrollPeriodEmpty，实际=%v", err)
	}
	entries := m.audit.byModule(model.AuditModulePayroll)
	if len(entries) != 1 || entries[0].Action != model.AuditActionDelete {
		t.Errorf("删除应写 1 条 DELETE 审计")
	}
}
