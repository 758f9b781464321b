package model

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"budget-control/backend/pkg/fielddiff"
)

// ── 分段字段名 ──
// 变更申请的 prior/proposed 字段、审计 old/new 值均使用以下键

const (
	FieldWorkerID     = "worker_id"
	FieldWorkerName   = "worker_name"
	FieldStartDate    = "start_date"
	FieldEndDate      = "end_date"
	FieldBaseSalary   = "base_salary"
	FieldTotalSalary  = "total_salary"
	FieldProject      = "project"
	FieldSource       = "source"
	FieldComponent    = "component"
	FieldSubComponent = "sub_component"
	FieldCategory     = "category"
	FieldResponsible  = "responsible"
	FieldBudgetLine   = "budget_line"
)

// TrancheFieldNames 可编辑字段全集
var TrancheFieldNames = []string{
	FieldWorkerID, FieldWorkerName, FieldStartDate, FieldEndDate,
	FieldBaseSalary, FieldTotalSalary,
	FieldProject, FieldSource, FieldComponent, FieldSubComponent,
	FieldCategory, FieldResponsible, FieldBudgetLine,
}

// RequiredCreateFields 新建分段时必须提供的字段
var RequiredCreateFields = []string{FieldWorkerID, FieldStartDate, FieldEndDate, FieldBaseSalary}

// Dimensions 预算归属维度
type Dimensions struct {
	Project      string `gorm:"type:varchar(50);not null;default:''"  json:"project"`
	Source       string `gorm:"type:varchar(50);not null;default:''"  json:"source"`
	Component    string `gorm:"type:varchar(100);not null;default:''" json:"component"`
	SubComponent string `gorm:"type:varchar(100);not null;default:''" json:"sub_component"`
	Category     string `gorm:"type:varchar(100);not null;default:''" json:"category"`
	Responsible  string `gorm:"type:varchar(100);not null;default:''" json:"responsible"`
	BudgetLine   string `gorm:"type:varchar(100);not null;default:''" json:"budget_line"`
}

// TrancheData 分段的取值部分，实时分段与快照副本共用
type TrancheData struct {
	WorkerID    string    `gorm:"type:varchar(50);not null;index" json:"worker_id"`
	WorkerName  string    `gorm:"type:varchar(200)"               json:"worker_name,omitempty"`
	StartDate   time.Time `gorm:"type:date;not null"              json:"start_date"`
	EndDate     time.Time `gorm:"type:date;not null"              json:"end_date"`
	BaseSalary  float64   `gorm:"type:numeric(14,2);not null"     json:"base_salary"`
	TotalSalary float64   `gorm:"type:numeric(14,2);not null"     json:"total_salary"`
	Dimensions  `gorm:"embedded"`
}

// Tranche 预算分段表 ，对应 tranches
type Tranche struct {
	TrancheID   string `gorm:"type:uuid;primaryKey" json:"tranche_id"`
	TrancheData `gorm:"embedded"`
	VersionedModel
}

// TableName 指定表名
func (Tranche) TableName() string { return "tranches" }

// MonthlyCost 月度成本：优先使用含附加费用的总薪资，未提供时退回基本薪资
func (d *TrancheData) MonthlyCost() float64 {
	if d.TotalSalary > 0 {
		return d.TotalSalary
	}
	return d.BaseSalary
}

// Overlaps 闭区间重叠判断，端点相接也视为重叠
func (d *TrancheData) Overlaps(start, end time.Time) bool {
	return !d.StartDate.After(end) && !d.EndDate.Before(start)
}

// Fields 导出为字段字典，日期格式化为 YYYY-MM-DD
func (d *TrancheData) Fields() map[string]any {
	return map[string]any{
		FieldWorkerID:     d.WorkerID,
		FieldWorkerName:   d.WorkerName,
		FieldStartDate:    d.StartDate.Format(time.DateOnly),
		FieldEndDate:      d.EndDate.Format(time.DateOnly),
		FieldBaseSalary:   d.BaseSalary,
		FieldTotalSalary:  d.TotalSalary,
		FieldProject:      d.Project,
		FieldSource:       d.Source,
		FieldComponent:    d.Component,
		FieldSubComponent: d.SubComponent,
		FieldCategory:     d.Category,
		FieldResponsible:  d.Responsible,
		FieldBudgetLine:   d.BudgetLine,
	}
}

// Apply 将字段字典写入分段，未知字段或无法解析的值返回错误
// 字典中未出现的字段保持不变
func (d *TrancheData) Apply(fields map[string]any) error {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := fields[k]
		switch k {
		case FieldStartDate, FieldEndDate:
			t, ok := fielddiff.AsDate(v)
			if !ok {
				return fmt.Errorf("字段 %s 不是有效日期: %v", k, v)
			}
			if k == FieldStartDate {
				d.StartDate = t
			} else {
				d.EndDate = t
			}
		case FieldBaseSalary, FieldTotalSalary:
			f, ok := fielddiff.AsFloat(v)
			if !ok {
				if k == FieldTotalSalary && isBlankValue(v) {
					d.TotalSalary = 0
					continue
				}
				return fmt.Errorf("字段 %s 不是有效数值: %v", k, v)
			}
			if k == FieldBaseSalary {
				d.BaseSalary = f
			} else {
				d.TotalSalary = f
			}
		default:
			target := d.stringField(k)
			if target == nil {
				return fmt.Errorf("未知字段: %s", k)
			}
			*target = strings.TrimSpace(fielddiff.AsString(v))
		}
	}
	return nil
}

// Validate 校验分段取值
func (d *TrancheData) Validate() error {
	if strings.TrimSpace(d.WorkerID) == "" {
		return fmt.Errorf("worker_id 不能为空")
	}
	if d.StartDate.IsZero() || d.EndDate.IsZero() {
		return fmt.Errorf("start_date 与 end_date 不能为空")
	}
	if d.StartDate.After(d.EndDate) {
		return fmt.Errorf("start_date 不能晚于 end_date")
	}
	if d.BaseSalary < 0 {
		return fmt.Errorf("base_salary 不能为负数")
	}
	if d.TotalSalary < 0 {
		return fmt.Errorf("total_salary 不能为负数")
	}
	return nil
}

func (d *TrancheData) stringField(name string) *string {
	switch name {
	case FieldWorkerID:
		return &d.WorkerID
	case FieldWorkerName:
		return &d.WorkerName
	case FieldProject:
		return &d.Project
	case FieldSource:
		return &d.Source
	case FieldComponent:
		return &d.Component
	case FieldSubComponent:
		return &d.SubComponent
	case FieldCategory:
		return &d.Category
	case FieldResponsible:
		return &d.Responsible
	case FieldBudgetLine:
		return &d.BudgetLine
	}
	return nil
}

func isBlankValue(v any) bool {
	return v == nil || strings.TrimSpace(fielddiff.AsString(v)) == ""
}
