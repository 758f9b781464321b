package model

import (
	"time"

	"gorm.io/datatypes"
)

// 审计动作
const (
	AuditActionCreate = "CREATE"
	AuditActionUpdate = "UPDATE"
	AuditActionDelete = "DELETE"
	AuditActionRead   = "READ"
)

// 审计模块
const (
	AuditModuleTranche       = "tranche"
	AuditModuleChangeRequest = "change_request"
	AuditModuleSnapshot      = "snapshot"
	AuditModulePayroll       = "payroll"
	AuditModuleAuth          = "auth"
)

// AuditEntry 审计日志表 ，对应 audit_entries
// 仅追加，不提供更新与删除
type AuditEntry struct {
	EntryID    string         `gorm:"type:uuid;primaryKey"             json:"entry_id"`
	Timestamp  time.Time      `gorm:"not null;index"                   json:"timestamp"`
	Module     string         `gorm:"type:varchar(50);not null;index"  json:"module"`
	Action     string         `gorm:"type:varchar(10);not null"        json:"action"`
	ActorEmail string         `gorm:"type:varchar(255);not null;index" json:"actor_email"`
	ActorIP    string         `gorm:"type:varchar(64)"                 json:"actor_ip,omitempty"`
	ResourceID string         `gorm:"type:varchar(64)"                 json:"resource_id,omitempty"`
	OldValues  datatypes.JSON `gorm:"type:jsonb"                       json:"old_values,omitempty"`
	NewValues  datatypes.JSON `gorm:"type:jsonb"                       json:"new_values,omitempty"`
	Changes    datatypes.JSON `gorm:"type:jsonb"                       json:"changes,omitempty"`
	Details    string         `gorm:"type:text"                        json:"details,omitempty"`
}

// TableName 指定表名
func (AuditEntry) TableName() string { return "audit_entries" }

// IsAuditAction 判断是否为合法审计动作
func IsAuditAction(action string) bool {
	switch action {
	case AuditActionCreate, AuditActionUpdate, AuditActionDelete, AuditActionRead:
		return true
	}
	return false
}

// AuditCount 分组计数
type AuditCount struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}
