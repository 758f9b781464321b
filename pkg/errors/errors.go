package errors

import "errors"

// ── 错误类别 ──
// 各业务模块的哨兵错误通过 %w 包装以下类别，handler 层按类别映射 HTTP 状态码

var (
	// ErrValidation 输入校验失败
	ErrValidation = errors.New("参数校验失败")
	// ErrNotFound 资源不存在
	ErrNotFound = errors.New("资源不存在")
	// ErrInvalidState 当前状态不允许该操作（如重复审批）
	ErrInvalidState = errors.New("当前状态不允许该操作")
	// ErrOverlap 直接写入时存在未确认的区间重叠
	ErrOverlap = errors.New("存在未确认的区间重叠")
	// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
	ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")
)

// Is 透传标准库 errors.Is，调用方无需同时导入两个 errors 包
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As 透传标准库 errors.As
func As(err error, target any) bool {
	return errors.As(err, target)
}
