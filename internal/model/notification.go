package model

import "time"

// 通知类型
const (
	NotificationSuccess = "SUCCESS"
	NotificationError   = "ERROR"
)

// Notification 通知消息表 ，对应 notifications
type Notification struct {
	NotificationID string    `gorm:"type:uuid;primaryKey"             json:"notification_id"`
	RecipientEmail string    `gorm:"type:varchar(255);not null;index" json:"recipient_email"`
	Type           string    `gorm:"type:varchar(10);not null"        json:"type"` // SUCCESS | ERROR
	Title          string    `gorm:"type:varchar(200);not null"       json:"title"`
	Content        string    `gorm:"type:text;not null"               json:"content"`
	IsRead         bool      `gorm:"not null;default:false"           json:"is_read"`
	RelatedID      *string   `gorm:"type:uuid"                        json:"related_id,omitempty"`
	CreatedAt      time.Time `gorm:"not null"                         json:"created_at"`
}

// TableName 指定表名
func (Notification) TableName() string { return "notifications" }
