package service

import (
	"budget-control/backend/internal/model"
	"budget-control/backend/pkg/payroll"
)

// CostProjector 月度成本测算
// 快照对比与对账共用同一实现，保证两处口径一致
type CostProjector interface {
	ProjectMonthlyCost(d *model.TrancheData, ym payroll.YearMonth) float64
}

// base30Projector 按 30 天制折算月度成本
type base30Projector struct{}

// NewBase30Projector 创建 30 天制测算器
func NewBase30Projector() CostProjector {
	return base30Projector{}
}

func (base30Projector) ProjectMonthlyCost(d *model.TrancheData, ym payroll.YearMonth) float64 {
	return payroll.ProrateBase30(d.MonthlyCost(), d.StartDate, d.EndDate, ym)
}

// projectYear 测算分段在某一年度的合计成本
// covered 表示分段在该年度至少覆盖一天
func projectYear(p CostProjector, d *model.TrancheData, year int) (total float64, covered bool) {
	for _, ym := range payroll.MonthsOf(year) {
		if payroll.Base30Days(d.StartDate, d.EndDate, ym) == 0 {
			continue
		}
		covered = true
		total += p.ProjectMonthlyCost(d, ym)
	}
	return payroll.RoundUnits(total), covered
}
