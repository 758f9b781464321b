package dto

// ── 工资导入模块 DTO ──

// PayrollImportRequest 工资导入表单参数（文件字段为 file）
type PayrollImportRequest struct {
	Period string `form:"period" binding:"required,datetime=2006-01"`
}

// PayrollImportResponse 导入结果
type PayrollImportResponse struct {
	Period   string  `json:"period"`
	Rows     int     `json:"rows"`
	Replaced int64   `json:"replaced"`
	Total    float64 `json:"total"`
}

// PayrollPeriodResponse 期间汇总
type PayrollPeriodResponse struct {
	Period     string  `json:"period"`
	Rows       int64   `json:"rows"`
	Total      float64 `json:"total"`
	LastLoaded string  `json:"last_loaded"`
}
