package service

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"budget-control/backend/internal/dto"
	"budget-control/backend/internal/model"
)

func setupTestSnapshotService() (SnapshotService, *mockRepos) {
	repo, m := newMockRepository()
	return NewSnapshotService(repo, NewBase30Projector(), zap.NewNop()), m
}

// ── Freeze / Get / Delete ──

func TestSnapshotService_Freeze_NameRequired(t *testing.T) {
	svc, _ := setupTestSnapshotService()

	_, err := svc.Freeze(context.Background(), &dto.FreezeSnapshotRequest{Name: "  "}, testAdmin)
	if !errors.Is(err, ErrSnapshotNameRequired) {
		t.Errorf("期望 ErrSnapshotNameRequired，实际=%v", err)
	}
}

func TestSnapshotService_Freeze_IsImmutable(t *testing.T) {
	svc, m := setupTestSnapshotService()
	seedTranche(m.tranche, "t-1", "W1", "P1", "2025-01-01", "2025-12-31", 1000)
	seedTranche(m.tranche, "t-2", "W2", "P2", "2025-01-01", "2025-12-31", 2000)

	snap, err := svc.Freeze(context.Background(), &dto.FreezeSnapshotRequest{Name: "Presupuesto inicial"}, testAdmin)
	if err != nil {
		t.Fatalf("冻结应成功: %v", err)
	}
	if snap.TrancheCount != 2 {
		t.Errorf("期望 2 个分段，实际=%d", snap.TrancheCount)
	}

	// 冻结后修改实时分段
	m.tranche.tranches["t-1"].BaseSalary = 9999
	m.tranche.tranches["t-1"].TotalSalary = 9999
	delete(m.tranche.tranches, "t-2")

	detail, err := svc.GetByID(context.Background(), snap.ID)
	if err != nil {
		t.Fatalf("查询快照应成功: %v", err)
	}
	if len(detail.Tranches) != 2 {
		t.Fatalf("快照行数不应随实时数据变化，实际=%d", len(detail.Tranches))
	}
	if detail.Tranches[0].OriginalTrancheID != "t-1" || detail.Tranches[0].BaseSalary != 1000 {
		t.Errorf("快照副本被修改: %+v", detail.Tranches[0])
	}
	if detail.Tranches[1].Seq != 2 {
		t.Errorf("序号应从 1 连续编号")
	}

	entries := m.audit.byModule(model.AuditModuleSnapshot)
	if len(entries) != 1 || entries[0].Action != model.AuditActionCreate {
		t.Errorf("冻结应写 1 条 CREATE 审计")
	}
}

func TestSnapshotService_Delete(t *testing.T) {
	svc, m := setupTestSnapshotService()
	seedTranche(m.tranche, "t-1", "W1", "P1", "2025-01-01", "2025-12-31", 1000)

	snap, err := svc.Freeze(context.Background(), &dto.FreezeSnapshotRequest{Name: "v1"}, testAdmin)
	if err != nil {
		t.Fatalf("冻结应成功: %v", err)
	}

	if err := svc.Delete(context.Background(), snap.ID, testAdmin); err != nil {
		t.Fatalf("删除应成功: %v", err)
	}
	if len(m.snapshot.rows[snap.ID]) != 0 {
		t.Errorf("快照行应随头信息一起删除")
	}
	if err := svc.Delete(context.Background(), snap.ID, testAdmin); !errors.Is(err, ErrSnapshotNotFound) {
		t.Errorf("重复删除期望 ErrSnapshotNotFound，实际=%v", err)
	}
	if _, err := svc.Compare(context.Background(), snap.ID, 2025); !errors.Is(err, ErrSnapshotNotFound) {
		t.Errorf("对比已删除快照期望 ErrSnapshotNotFound，实际=%v", err)
	}

	entries := m.audit.byModule(model.AuditModuleSnapshot)
	if len(entries) != 2 || entries[1].Action != model.AuditActionDelete {
		t.Errorf("期望 CREATE + DELETE 两条审计，实际=%d", len(entries))
	}
}

// ── Compare ──

func TestSnapshotService_Compare(t *testing.T) {
	svc, m := setupTestSnapshotService()
	seedTranche(m.tranche, "t-1", "W1", "P1", "2025-01-01", "2025-12-31", 1000)
	seedTranche(m.tranche, "t-2", "W2", "P2", "2025-01-01", "2025-12-31", 2000)

	snap, err := svc.Freeze(context.Background(), &dto.FreezeSnapshotRequest{Name: "base"}, testAdmin)
	if err != nil {
		t.Fatalf("冻结应成功: %v", err)
	}

	m.tranche.tranches["t-1"].TotalSalary = 1100
	delete(m.tranche.tranches, "t-2")
	seedTranche(m.tranche, "t-3", "W3", "P1", "2025-07-01", "2025-12-31", 500)

	report, err := svc.Compare(context.Background(), snap.ID, 2025)
	if err != nil {
		t.Fatalf("对比应成功: %v", err)
	}

	// 项目行：按 |diff| 降序
	if len(report.ProjectRows) != 2 {
		t.Fatalf("期望 2 个项目，实际=%d", len(report.ProjectRows))
	}
	p2, p1 := report.ProjectRows[0], report.ProjectRows[1]
	if p2.Project != "P2" || p2.SnapshotTotal != 24000 || p2.LiveTotal != 0 || p2.Diff != -24000 {
		t.Errorf("P2 行异常: %+v", p2)
	}
	if p1.Project != "P1" || p1.SnapshotTotal != 12000 || p1.LiveTotal != 16200 || p1.LiveHeadcount != 2 {
		t.Errorf("P1 行异常: %+v", p1)
	}

	if len(report.New) != 1 || report.New[0].WorkerID != "W3" || report.New[0].Value != 3000 {
		t.Errorf("新增异常: %+v", report.New)
	}
	if len(report.Removed) != 1 || report.Removed[0].WorkerID != "W2" || report.Removed[0].Value != 24000 {
		t.Errorf("移除异常: %+v", report.Removed)
	}
	if len(report.Modified) != 1 || report.Modified[0].WorkerID != "W1" || report.Modified[0].Delta != 1200 {
		t.Errorf("变动异常: %+v", report.Modified)
	}

	k := report.KPIs
	if k.SnapshotTotal != 36000 || k.LiveTotal != 16200 || k.NetVariation != -19800 {
		t.Errorf("合计异常: %+v", k)
	}
	if k.PercentVariation != -55 {
		t.Errorf("期望变动率 -55，实际=%v", k.PercentVariation)
	}
	if k.HeadcountBefore != 2 || k.HeadcountAfter != 2 || k.NewCount != 1 || k.RemovedCount != 1 {
		t.Errorf("人数指标异常: %+v", k)
	}

	again, err := svc.Compare(context.Background(), snap.ID, 2025)
	if err != nil {
		t.Fatalf("再次对比应成功: %v", err)
	}
	if !reflect.DeepEqual(report, again) {
		t.Errorf("相同输入的对比结果应完全一致")
	}
}

func TestSnapshotService_Compare_YearWithoutCoverage(t *testing.T) {
	svc, m := setupTestSnapshotService()
	seedTranche(m.tranche, "t-1", "W1", "P1", "2025-01-01", "2025-12-31", 1000)

	snap, err := svc.Freeze(context.Background(), &dto.FreezeSnapshotRequest{Name: "base"}, testAdmin)
	if err != nil {
		t.Fatalf("冻结应成功: %v", err)
	}

	report, err := svc.Compare(context.Background(), snap.ID, 2024)
	if err != nil {
		t.Fatalf("对比应成功: %v", err)
	}
	if len(report.ProjectRows) != 0 || len(report.New) != 0 || len(report.Removed) != 0 {
		t.Errorf("无覆盖年度应为空报告: %+v", report)
	}
	if report.KPIs.PercentVariation != 0 {
		t.Errorf("快照合计为 0 时变动率应为 0")
	}
}

func TestCompareProjections_PartialMonths(t *testing.T) {
	p := NewBase30Projector()
	snap := projectTranches(p, []model.TrancheData{
		{WorkerID: "W1", StartDate: date("2025-01-16"), EndDate: date("2025-02-28"), TotalSalary: 3000, Dimensions: model.Dimensions{Project: "P1"}},
	}, 2025)

	// 1 月 16-30 日 15 天 + 2 月整月
	if got := snap.values[workerProjectKey{"W1", "P1"}]; got != 4500 {
		t.Errorf("期望 4500，实际=%v", got)
	}
}
