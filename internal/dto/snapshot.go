package dto

// ── 快照模块 DTO ──

// FreezeSnapshotRequest 冻结快照请求
type FreezeSnapshotRequest struct {
	Name        string `json:"name"        binding:"required,max=200"`
	Description string `json:"description" binding:"omitempty,max=2000"`
}

// CompareRequest 快照对比参数
type CompareRequest struct {
	Year int `form:"year" binding:"required,min=2000,max=2100"`
}

// SnapshotResponse 快照头信息
type SnapshotResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	TrancheCount int    `json:"tranche_count"`
	CreatedBy    string `json:"created_by"`
	CreatedAt    string `json:"created_at"`
}

// SnapshotTrancheResponse 快照中的分段副本
type SnapshotTrancheResponse struct {
	Seq               int    `json:"seq"`
	OriginalTrancheID string `json:"original_tranche_id"`
	TrancheDataResponse
}

// SnapshotDetailResponse 快照详情
type SnapshotDetailResponse struct {
	SnapshotResponse
	Tranches []SnapshotTrancheResponse `json:"tranches"`
}

// ── 对比报告 ──

// ProjectComparisonRow 项目级对比
type ProjectComparisonRow struct {
	Project           string  `json:"project"`
	SnapshotTotal     float64 `json:"snapshot_total"`
	LiveTotal         float64 `json:"live_total"`
	Diff              float64 `json:"diff"`
	SnapshotHeadcount int     `json:"snapshot_headcount"`
	LiveHeadcount     int     `json:"live_headcount"`
}

// WorkerProjectValue 员工在某项目上的年度测算值
type WorkerProjectValue struct {
	WorkerID   string  `json:"worker_id"`
	WorkerName string  `json:"worker_name,omitempty"`
	Project    string  `json:"project"`
	Value      float64 `json:"value"`
}

// ProjectDelta 某项目的新旧测算值
type ProjectDelta struct {
	Project string  `json:"project"`
	Old     float64 `json:"old"`
	New     float64 `json:"new"`
	Delta   float64 `json:"delta"`
}

// WorkerModification 员工级别的变动汇总
type WorkerModification struct {
	WorkerID   string         `json:"worker_id"`
	WorkerName string         `json:"worker_name,omitempty"`
	Projects   []ProjectDelta `json:"projects"`
	Delta      float64        `json:"delta"`
}

// ComparisonKPIs 对比指标
type ComparisonKPIs struct {
	SnapshotTotal    float64 `json:"snapshot_total"`
	LiveTotal        float64 `json:"live_total"`
	NetVariation     float64 `json:"net_variation"`
	PercentVariation float64 `json:"percent_variation"`
	HeadcountBefore  int     `json:"headcount_before"`
	HeadcountAfter   int     `json:"headcount_after"`
	NewCount         int     `json:"new_count"`
	RemovedCount     int     `json:"removed_count"`
}

// ComparisonReport 快照与当前预算的年度对比
type ComparisonReport struct {
	SnapshotID  string                 `json:"snapshot_id"`
	Year        int                    `json:"year"`
	ProjectRows []ProjectComparisonRow `json:"project_rows"`
	New         []WorkerProjectValue   `json:"new"`
	Removed     []WorkerProjectValue   `json:"removed"`
	Modified    []WorkerModification   `json:"modified"`
	KPIs        ComparisonKPIs         `json:"kpis"`
}
