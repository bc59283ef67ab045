package netdisk

import (
	"context"

	"disklink/internal/model"
)

// Provider 网盘接口,每种网盘实现一套完整的转存流水线步骤
type Provider interface {
	// Name 获取网盘名称
	Name() string

	// IsConfigured 检查是否已配置凭证
	IsConfigured() bool

	// ParseShare 解析分享链接,提取分享ID和提取码
	ParseShare(rawURL string) (*model.ShareInfo, error)

	// ListFiles 枚举分享中的顶层文件
	ListFiles(ctx context.Context, share *model.ShareInfo) ([]model.FileRef, error)

	// SaveFiles 将文件转存到自己的网盘,允许部分成功
	SaveFiles(ctx context.Context, share *model.ShareInfo, files []model.FileRef) (*model.SaveResult, error)

	// CreateShare 对转存后的文件创建新的分享链接
	// expireHours: 分享有效期(小时)
	CreateShare(ctx context.Context, fileIDs []string, expireHours int) (string, error)

	// DeleteShare 撤销指定的分享链接
	DeleteShare(ctx context.Context, shareURL string) error

	// ValidateCredentials 检查凭证是否仍然有效
	ValidateCredentials(ctx context.Context) error
}

// Manager 网盘管理器接口
type Manager interface {
	// GetProvider 获取指定类型的网盘客户端
	GetProvider(diskType string) (Provider, error)

	// Providers 返回所有已配置的网盘客户端
	Providers() []Provider
}
