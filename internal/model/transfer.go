package model

import (
	"time"
)

// 网盘类型
const (
	DiskTypeBaidu = "baidu"
	DiskTypeQuark = "quark"
)

// 转存记录状态
const (
	StatusPending   = "pending"   // 转存进行中
	StatusCompleted = "completed" // 转存成功
	StatusFailed    = "failed"    // 转存失败
	StatusExpired   = "expired"   // 分享已过期(由清理任务标记)
)

// TransferRecord 转存记录
// 每条记录对应某篇文章的某个链接位置的一次转存,状态只流转不删除
type TransferRecord struct {
	ID             uint64     `gorm:"primaryKey;column:id;autoIncrement" json:"id"`
	PostID         uint64     `gorm:"column:post_id;not null;index:idx_post_link,priority:1" json:"post_id"`
	LinkIndex      int        `gorm:"column:link_index;not null;index:idx_post_link,priority:2" json:"link_index"`
	OriginalURL    string     `gorm:"column:original_url;type:varchar(500);not null" json:"original_url"`
	TransferredURL string     `gorm:"column:transferred_url;type:varchar(500)" json:"transferred_url,omitempty"`
	DiskType       string     `gorm:"column:disk_type;type:varchar(20);not null" json:"disk_type"`
	Status         string     `gorm:"column:status;type:varchar(20);default:pending;index" json:"status"`
	Message        string     `gorm:"column:message;type:varchar(500)" json:"message,omitempty"`
	ExpireTime     *time.Time `gorm:"column:expire_time;index" json:"expire_time,omitempty"`
	UserID         uint64     `gorm:"column:user_id;default:0" json:"user_id"`
	CreatedTime    time.Time  `gorm:"column:created_time;autoCreateTime" json:"created_time"`
}

// TableName 指定表名
func (TransferRecord) TableName() string {
	return "disk_link_transfers"
}

// IsExpired 判断completed记录的分享是否已过期
func (r *TransferRecord) IsExpired(now time.Time) bool {
	return r.ExpireTime != nil && !r.ExpireTime.After(now)
}

// ShareInfo 分享链接解析结果
// 只在单次转存流水线内部使用,不持久化
type ShareInfo struct {
	ShareID  string            // 分享标识(百度surl/夸克pwd_id)
	Password string            // 提取码,可为空
	RawURL   string            // 原始分享链接
	Extra    map[string]string // 网盘相关的中间凭证(stoken/bdstoken/randsk等)
}

// NewShareInfo 创建分享信息
func NewShareInfo(shareID, password, rawURL string) *ShareInfo {
	return &ShareInfo{
		ShareID:  shareID,
		Password: password,
		RawURL:   rawURL,
		Extra:    make(map[string]string),
	}
}

// FileRef 分享中的文件引用
type FileRef struct {
	ID    string `json:"id"`    // 百度fs_id/夸克fid
	Token string `json:"token"` // 夸克share_fid_token,百度为空
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
}

// SaveFailure 单个文件转存失败信息
type SaveFailure struct {
	File   FileRef `json:"file"`
	Reason string  `json:"reason"`
}

// SaveResult 文件转存结果,允许部分成功
type SaveResult struct {
	SavedIDs []string      `json:"saved_ids"` // 转存到自己账号后的文件ID
	Failed   []SaveFailure `json:"failed"`
}

// TransferRequest 转存请求
type TransferRequest struct {
	PostID      uint64 `json:"post_id" binding:"required"`
	LinkIndex   int    `json:"link_index"`
	OriginalURL string `json:"original_url" binding:"required"`
	DiskType    string `json:"disk_type" binding:"required"`
}

// TransferIntakeResponse 转存请求受理结果
// 命中缓存时直接返回已转存的链接,否则返回transfer_id供轮询
type TransferIntakeResponse struct {
	TransferID uint64     `json:"transfer_id,omitempty"`
	URL        string     `json:"url,omitempty"`
	ExpireTime *time.Time `json:"expire_time,omitempty"`
	FromCache  bool       `json:"from_cache,omitempty"`
	Message    string     `json:"message,omitempty"`
}

// TransferStatusResponse 转存状态查询结果
type TransferStatusResponse struct {
	TransferID uint64     `json:"transfer_id"`
	Status     string     `json:"status"`
	URL        string     `json:"url,omitempty"`
	ExpireTime *time.Time `json:"expire_time,omitempty"`
	Message    string     `json:"message,omitempty"`
}

// CleanupSummary 清理任务汇总
type CleanupSummary struct {
	Total        int   `json:"total"`
	Cleaned      int   `json:"cleaned"`
	RevokeFailed int   `json:"revoke_failed"`
	LogsDeleted  int64 `json:"logs_deleted"`
}

// CredentialStatus 单个网盘的凭证检查结果
type CredentialStatus struct {
	DiskType string `json:"disk_type"`
	Valid    bool   `json:"valid"`
	Message  string `json:"message,omitempty"`
}
