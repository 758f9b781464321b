package model

import "time"

// PayrollFact 实发工资事实表 ，对应 payroll_facts
// 由工资数据导入写入，核心流程只读
type PayrollFact struct {
	FactID     string `gorm:"type:uuid;primaryKey"                 json:"fact_id"`
	Period     string `gorm:"type:char(7);not null;index"          json:"period"` // YYYY-MM
	WorkerID   string `gorm:"type:varchar(50);not null"            json:"worker_id"`
	WorkerName string `gorm:"type:varchar(200)"                    json:"worker_name,omitempty"`
	Dimensions `gorm:"embedded"`
	AmountPaid float64   `gorm:"type:numeric(14,2);not null"          json:"amount_paid"`
	PaidOn     time.Time `gorm:"type:date;not null"                   json:"paid_on"`
	LoadedBy   string    `gorm:"type:varchar(255);not null"           json:"loaded_by"`
	LoadedAt   time.Time `gorm:"not null"                             json:"loaded_at"`
}

// TableName 指定表名
func (PayrollFact) TableName() string { return "payroll_facts" }

// PayrollPeriodSummary 按期间汇总的导入情况
type PayrollPeriodSummary struct {
	Period     string    `json:"period"`
	Rows       int64     `json:"rows"`
	Total      float64   `json:"total"`
	LastLoaded time.Time `json:"last_loaded"`
}
