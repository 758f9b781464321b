package dto

// ── 对账模块 DTO ──

// ReconcileSourceLive 以当前预算为对账基准
const ReconcileSourceLive = "live"

// ReconcileRequest 对账参数
type ReconcileRequest struct {
	Source string `form:"source"`
	Period string `form:"period" binding:"required,datetime=2006-01"`
}

// ReconciliationRow 单个组合键的对账结果
type ReconciliationRow struct {
	WorkerID        string   `json:"worker_id"`
	WorkerName      string   `json:"worker_name,omitempty"`
	Project         string   `json:"project"`
	Source          string   `json:"source"`
	Responsible     string   `json:"responsible"`
	Budgeted        float64  `json:"budgeted"`
	Actual          float64  `json:"actual"`
	Gap             float64  `json:"gap"`
	ComplianceRatio *float64 `json:"compliance_ratio"` // 预算为 0 时为 null
}

// ReconciliationGroup 按项目分组的对账结果
type ReconciliationGroup struct {
	Project  string              `json:"project"`
	Budgeted float64             `json:"budgeted"`
	Actual   float64             `json:"actual"`
	Gap      float64             `json:"gap"`
	Rows     []ReconciliationRow `json:"rows"`
}

// ReconciliationTotals 报告合计
type ReconciliationTotals struct {
	Budgeted        float64  `json:"budgeted"`
	Actual          float64  `json:"actual"`
	Gap             float64  `json:"gap"`
	ComplianceRatio *float64 `json:"compliance_ratio"`
}

// ReconciliationReport 对账报告
type ReconciliationReport struct {
	Source string                `json:"source"`
	Period string                `json:"period"`
	Groups []ReconciliationGroup `json:"groups"`
	Totals ReconciliationTotals  `json:"totals"`
}
