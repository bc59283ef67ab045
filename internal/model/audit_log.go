package model

import "time"

// AuditLog 操作日志
// 转存开始/成功/失败、限流拒绝、清理汇总、凭证检查结果都会落一条
type AuditLog struct {
	ID          uint64    `gorm:"primaryKey;column:id;autoIncrement" json:"id"`
	Action      string    `gorm:"column:action;type:varchar(50);not null;index" json:"action"`
	PostID      *uint64   `gorm:"column:post_id" json:"post_id,omitempty"`
	UserID      *uint64   `gorm:"column:user_id" json:"user_id,omitempty"`
	Message     string    `gorm:"column:message;type:text" json:"message"`
	Details     string    `gorm:"column:details;type:text" json:"details,omitempty"` // JSON字符串
	CreatedTime time.Time `gorm:"column:created_time;autoCreateTime;index" json:"created_time"`
}

// TableName 指定表名
func (AuditLog) TableName() string {
	return "disk_link_logs"
}

// 日志action常量
const (
	ActionTransferStart     = "transfer_start"
	ActionTransferCompleted = "transfer_completed"
	ActionTransferFailed    = "transfer_failed"
	ActionRateLimited       = "rate_limited"
	ActionCleanupSuccess    = "cleanup_success"
	ActionCleanupError      = "cleanup_error"
	ActionCleanupSummary    = "cleanup_summary"
	ActionCookieCheck       = "cookie_check"
	ActionLogCleanup        = "log_cleanup"
)

// LogFilter 日志查询条件
type LogFilter struct {
	Action   string     `json:"action" form:"action"`
	PostID   uint64     `json:"post_id" form:"post_id"`
	UserID   uint64     `json:"user_id" form:"user_id"`
	DateFrom *time.Time `json:"date_from" form:"date_from" time_format:"2006-01-02"`
	DateTo   *time.Time `json:"date_to" form:"date_to" time_format:"2006-01-02"`
}
