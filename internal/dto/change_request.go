package dto

import "budget-control/backend/pkg/fielddiff"

// ── 变更申请模块 DTO ──

// SubmitChangeRequest 提交变更申请
type SubmitChangeRequest struct {
	Kind            string         `json:"kind"              binding:"required,oneof=CREATE MODIFY DELETE"`
	TargetTrancheID string         `json:"target_tranche_id" binding:"omitempty,uuid"`
	ProposedFields  map[string]any `json:"proposed_fields"`
	Justification   string         `json:"justification"`
	AllowOverlap    bool           `json:"allow_overlap"`
}

// RejectChangeRequest 驳回申请
type RejectChangeRequest struct {
	Reason string `json:"reason" binding:"omitempty,max=500"`
}

// ChangeRequestListRequest 申请列表查询参数
type ChangeRequestListRequest struct {
	PaginationRequest
	Status      string `form:"status"       binding:"omitempty,oneof=PENDING APPROVED REJECTED"`
	RequestedBy string `form:"requested_by"`
	WorkerID    string `form:"worker_id"`
	Month       string `form:"month"        binding:"omitempty,datetime=2006-01"`
	Q           string `form:"q"`
}

// ChangeRequestResponse 变更申请响应
type ChangeRequestResponse struct {
	ID              string             `json:"id"`
	Kind            string             `json:"kind"`
	WorkerID        string             `json:"worker_id"`
	TargetTrancheID string             `json:"target_tranche_id,omitempty"`
	PriorFields     map[string]any     `json:"prior_fields,omitempty"`
	ProposedFields  map[string]any     `json:"proposed_fields,omitempty"`
	Changes         []fielddiff.Change `json:"changes"`
	Justification   string             `json:"justification"`
	Status          string             `json:"status"`
	RequestedBy     string             `json:"requested_by"`
	RequestedAt     string             `json:"requested_at"`
	ResolvedBy      string             `json:"resolved_by,omitempty"`
	ResolvedAt      string             `json:"resolved_at,omitempty"`
	RejectReason    string             `json:"reject_reason,omitempty"`
	OverlapWarning  string             `json:"overlap_warning,omitempty"`
}

// SubmitResultResponse 提交结果
type SubmitResultResponse struct {
	Request ChangeRequestResponse `json:"request"`
	Warning *OverlapWarning       `json:"warning,omitempty"`
}

// ApplyResultResponse 审批通过结果
type ApplyResultResponse struct {
	Request ChangeRequestResponse `json:"request"`
	Tranche *TrancheResponse      `json:"tranche,omitempty"` // DELETE 时为删除前的分段
	Changes []fielddiff.Change    `json:"changes"`
	Warning *OverlapWarning       `json:"warning,omitempty"`
}
