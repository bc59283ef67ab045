package manager

import (
	"context"
	"fmt"

	"disklink/internal/model"
	"disklink/internal/netdisk"
	"disklink/internal/netdisk/baidu"
	"disklink/internal/netdisk/quark"
	"disklink/internal/pkg/config"
	"disklink/internal/repository"
)

type netdiskManager struct {
	cfg      *config.Config
	settings repository.SettingRepository
}

// New 创建网盘管理器
// Cookie优先读数据库配置,没有时回落到配置文件
func New(cfg *config.Config, settings repository.SettingRepository) netdisk.Manager {
	return &netdiskManager{
		cfg:      cfg,
		settings: settings,
	}
}

// GetProvider 获取指定类型的网盘客户端
// 每次调用都创建新的客户端实例,避免并发时Cookie相互覆盖
func (m *netdiskManager) GetProvider(diskType string) (netdisk.Provider, error) {
	switch diskType {
	case model.DiskTypeBaidu:
		return baidu.NewClient(m.cookie(model.SettingBaiduCookie, m.cfg.Netdisk.Baidu.Cookie)), nil
	case model.DiskTypeQuark:
		return quark.NewClient(
			m.cookie(model.SettingQuarkCookie, m.cfg.Netdisk.Quark.Cookie),
			m.cfg.Transfer.GetTaskInterval(),
			m.cfg.Transfer.GetTaskMaxWait(),
		), nil
	default:
		return nil, fmt.Errorf("不支持的网盘类型: %s", diskType)
	}
}

// Providers 返回所有已配置的网盘客户端
func (m *netdiskManager) Providers() []netdisk.Provider {
	out := make([]netdisk.Provider, 0, 2)
	for _, diskType := range []string{model.DiskTypeBaidu, model.DiskTypeQuark} {
		p, err := m.GetProvider(diskType)
		if err != nil {
			continue
		}
		if p.IsConfigured() {
			out = append(out, p)
		}
	}
	return out
}

// cookie 优先读数据库,为空时回落到配置文件
func (m *netdiskManager) cookie(settingName, fallback string) string {
	if m.settings != nil {
		value, err := m.settings.Get(context.Background(), settingName)
		if err == nil && value != "" {
			return value
		}
	}
	return fallback
}
