package dto

import "budget-control/backend/internal/model"

// ── 预算分段模块 DTO ──

// TrancheRequest 直接新建/整体更新分段
type TrancheRequest struct {
	WorkerID     string   `json:"worker_id"     binding:"required,max=50"`
	WorkerName   string   `json:"worker_name"   binding:"omitempty,max=200"`
	StartDate    string   `json:"start_date"    binding:"required,datetime=2006-01-02"`
	EndDate      string   `json:"end_date"      binding:"required,datetime=2006-01-02"`
	BaseSalary   *float64 `json:"base_salary"   binding:"required,gte=0"`
	TotalSalary  float64  `json:"total_salary"  binding:"gte=0"`
	Project      string   `json:"project"       binding:"omitempty,max=50"`
	Source       string   `json:"source"        binding:"omitempty,max=50"`
	Component    string   `json:"component"     binding:"omitempty,max=100"`
	SubComponent string   `json:"sub_component" binding:"omitempty,max=100"`
	Category     string   `json:"category"      binding:"omitempty,max=100"`
	Responsible  string   `json:"responsible"   binding:"omitempty,max=100"`
	BudgetLine   string   `json:"budget_line"   binding:"omitempty,max=100"`
	AllowOverlap bool     `json:"allow_overlap"`
}

// Fields 转为字段字典
func (r *TrancheRequest) Fields() map[string]any {
	base := 0.0
	if r.BaseSalary != nil {
		base = *r.BaseSalary
	}
	return map[string]any{
		model.FieldWorkerID:     r.WorkerID,
		model.FieldWorkerName:   r.WorkerName,
		model.FieldStartDate:    r.StartDate,
		model.FieldEndDate:      r.EndDate,
		model.FieldBaseSalary:   base,
		model.FieldTotalSalary:  r.TotalSalary,
		model.FieldProject:      r.Project,
		model.FieldSource:       r.Source,
		model.FieldComponent:    r.Component,
		model.FieldSubComponent: r.SubComponent,
		model.FieldCategory:     r.Category,
		model.FieldResponsible:  r.Responsible,
		model.FieldBudgetLine:   r.BudgetLine,
	}
}

// TrancheListRequest 分段列表查询参数
type TrancheListRequest struct {
	PaginationRequest
	WorkerID string `form:"worker_id"`
	Project  string `form:"project"`
	ActiveOn string `form:"active_on" binding:"omitempty,datetime=2006-01-02"`
	Q        string `form:"q"`
}

// TrancheDataResponse 分段取值
type TrancheDataResponse struct {
	WorkerID     string  `json:"worker_id"`
	WorkerName   string  `json:"worker_name,omitempty"`
	StartDate    string  `json:"start_date"`
	EndDate      string  `json:"end_date"`
	BaseSalary   float64 `json:"base_salary"`
	TotalSalary  float64 `json:"total_salary"`
	Project      string  `json:"project"`
	Source       string  `json:"source"`
	Component    string  `json:"component"`
	SubComponent string  `json:"sub_component"`
	Category     string  `json:"category"`
	Responsible  string  `json:"responsible"`
	BudgetLine   string  `json:"budget_line"`
}

// TrancheResponse 分段响应
type TrancheResponse struct {
	ID string `json:"id"`
	TrancheDataResponse
	Version   int    `json:"version"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// OverlapWarning 区间重叠提示
type OverlapWarning struct {
	Message           string `json:"message"`
	WorkerID          string `json:"worker_id"`
	ConflictTrancheID string `json:"conflict_tranche_id"`
	ConflictStartDate string `json:"conflict_start_date"`
	ConflictEndDate   string `json:"conflict_end_date"`
}

// TrancheResultResponse 分段写入结果（可能附带重叠提示）
type TrancheResultResponse struct {
	Tranche TrancheResponse `json:"tranche"`
	Warning *OverlapWarning `json:"warning,omitempty"`
}

// OverlapCheckRequest 重叠预检参数
type OverlapCheckRequest struct {
	WorkerID  string `form:"worker_id"  binding:"required"`
	StartDate string `form:"start_date" binding:"required,datetime=2006-01-02"`
	EndDate   string `form:"end_date"   binding:"required,datetime=2006-01-02"`
	ExcludeID string `form:"exclude_id"`
}

// OverlapCheckResponse 重叠预检结果
type OverlapCheckResponse struct {
	Overlap bool            `json:"overlap"`
	Warning *OverlapWarning `json:"warning,omitempty"`
}

// OverlapPairResponse 同一员工的一对重叠分段
type OverlapPairResponse struct {
	WorkerID string          `json:"worker_id"`
	First    TrancheResponse `json:"first"`
	Second   TrancheResponse `json:"second"`
}
