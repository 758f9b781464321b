package dto

import "budget-control/backend/pkg/fielddiff"

// ── 审计模块 DTO ──

// AuditQueryRequest 审计日志查询参数
type AuditQueryRequest struct {
	PaginationRequest
	Module     string `form:"module"`
	Action     string `form:"action" binding:"omitempty,oneof=CREATE UPDATE DELETE READ"`
	Actor      string `form:"actor"`
	ResourceID string `form:"resource_id"`
}

// AuditEntryResponse 审计记录
type AuditEntryResponse struct {
	ID         string             `json:"id"`
	Timestamp  string             `json:"timestamp"`
	Module     string             `json:"module"`
	Action     string             `json:"action"`
	ActorEmail string             `json:"actor_email"`
	ActorIP    string             `json:"actor_ip,omitempty"`
	ResourceID string             `json:"resource_id,omitempty"`
	OldValues  map[string]any     `json:"old_values,omitempty"`
	NewValues  map[string]any     `json:"new_values,omitempty"`
	Changes    []fielddiff.Change `json:"changes,omitempty"`
	Details    string             `json:"details,omitempty"`
}

// AuditStatsResponse 审计统计
type AuditStatsResponse struct {
	TodayCount     int64  `json:"today_count"`
	TopModule      string `json:"top_module"`
	TopModuleCount int64  `json:"top_module_count"`
	TopActor       string `json:"top_actor"`
	TopActorCount  int64  `json:"top_actor_count"`
}

// AuditQueryResponse 审计查询结果
type AuditQueryResponse struct {
	List     []AuditEntryResponse `json:"list"`
	Total    int64                `json:"total"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"page_size"`
	Stats    AuditStatsResponse   `json:"stats"`
}
