package model

// 角色
const (
	RoleAdmin   = "admin"   // 直接编辑分段、审批、快照、审计
	RoleEditor  = "editor"  // 提交变更申请
	RolePayroll = "payroll" // 工资导入与对账
	RoleViewer  = "viewer"  // 只读
)

// IsValidRole 判断角色是否合法
func IsValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleEditor, RolePayroll, RoleViewer:
		return true
	}
	return false
}

// User 用户表 ，对应 users
type User struct {
	UserID       string `gorm:"type:uuid;primaryKey"                       json:"user_id"`
	Name         string `gorm:"type:varchar(100);not null"                 json:"name"`
	Email        string `gorm:"type:varchar(255);not null;uniqueIndex"     json:"email"`
	PasswordHash string `gorm:"type:varchar(255);not null"                 json:"-"`
	Role         string `gorm:"type:varchar(20);not null;default:'viewer'" json:"role"`
	VersionedModel
}

// TableName 指定表名
func (User) TableName() string { return "users" }
