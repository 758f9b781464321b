package model

import "time"

// Snapshot 预算快照表 ，对应 snapshots
// 冻结后不可修改，只能整体删除
type Snapshot struct {
	SnapshotID   string    `gorm:"type:uuid;primaryKey"        json:"snapshot_id"`
	Name         string    `gorm:"type:varchar(200);not null"  json:"name"`
	Description  string    `gorm:"type:text"                   json:"description,omitempty"`
	TrancheCount int       `gorm:"not null;default:0"          json:"tranche_count"`
	CreatedBy    string    `gorm:"type:varchar(255);not null"  json:"created_by"`
	CreatedAt    time.Time `gorm:"not null;index"              json:"created_at"`

	// 关联
	Tranches []SnapshotTranche `gorm:"foreignKey:SnapshotID;references:SnapshotID" json:"tranches,omitempty"`
}

// TableName 指定表名
func (Snapshot) TableName() string { return "snapshots" }

// SnapshotTranche 快照分段副本表 ，对应 snapshot_tranches
type SnapshotTranche struct {
	SnapshotID        string `gorm:"type:uuid;primaryKey"        json:"snapshot_id"`
	Seq               int    `gorm:"primaryKey"                  json:"seq"`
	OriginalTrancheID string `gorm:"type:uuid;not null"          json:"original_tranche_id"`
	TrancheData       `gorm:"embedded"`
}

// TableName 指定表名
func (SnapshotTranche) TableName() string { return "snapshot_tranches" }
