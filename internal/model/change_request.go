package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// 变更类型
const (
	ChangeKindCreate = "CREATE"
	ChangeKindModify = "MODIFY"
	ChangeKindDelete = "DELETE"
)

// 申请状态
const (
	RequestStatusPending  = "PENDING"
	RequestStatusApproved = "APPROVED"
	RequestStatusRejected = "REJECTED"
)

// ChangeRequest 变更申请表 ，对应 change_requests
// 状态只允许 PENDING → APPROVED | REJECTED 一次
type ChangeRequest struct {
	RequestID       string         `gorm:"type:uuid;primaryKey"                        json:"request_id"`
	Kind            string         `gorm:"type:varchar(10);not null"                   json:"kind"` // CREATE | MODIFY | DELETE
	WorkerID        string         `gorm:"type:varchar(50);not null;index"             json:"worker_id"`
	TargetTrancheID *string        `gorm:"type:uuid"                                   json:"target_tranche_id,omitempty"`
	PriorFields     datatypes.JSON `gorm:"type:jsonb"                                  json:"prior_fields,omitempty"`
	ProposedFields  datatypes.JSON `gorm:"type:jsonb"                                  json:"proposed_fields,omitempty"`
	Justification   string         `gorm:"type:text;not null"                          json:"justification"`
	Status          string         `gorm:"type:varchar(10);not null;default:'PENDING'" json:"status"`
	RequestedBy     string         `gorm:"type:varchar(255);not null;index"            json:"requested_by"`
	RequestedAt     time.Time      `gorm:"not null"                                    json:"requested_at"`
	ResolvedBy      *string        `gorm:"type:varchar(255)"                           json:"resolved_by,omitempty"`
	ResolvedAt      *time.Time     `json:"resolved_at,omitempty"`
	RejectReason    string         `gorm:"type:varchar(500)"                           json:"reject_reason,omitempty"`
	OverlapWarning  string         `gorm:"type:varchar(500)"                           json:"overlap_warning,omitempty"`
	Version         int            `gorm:"not null;default:1"                          json:"version"`
}

// TableName 指定表名
func (ChangeRequest) TableName() string { return "change_requests" }

// IsPending 是否待审批
func (r *ChangeRequest) IsPending() bool {
	return r.Status == RequestStatusPending
}

// Prior 解析提交时的原字段值
func (r *ChangeRequest) Prior() (map[string]any, error) {
	return decodeFields(r.PriorFields)
}

// Proposed 解析提议的新字段值
func (r *ChangeRequest) Proposed() (map[string]any, error) {
	return decodeFields(r.ProposedFields)
}

// EncodeFields 将字段字典编码为 jsonb，nil 字典编码为空
func EncodeFields(fields map[string]any) (datatypes.JSON, error) {
	if fields == nil {
		return nil, nil
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

func decodeFields(raw datatypes.JSON) (map[string]any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
