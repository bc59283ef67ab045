package model

import "time"

// Setting 运行期可调的配置项
// 网盘cookie、转存有效期等后台可改的配置放这里,启动配置走config.yaml
type Setting struct {
	ID         uint64    `gorm:"primaryKey;column:id;autoIncrement" json:"id"`
	Name       string    `gorm:"column:name;type:varchar(100);not null;uniqueIndex" json:"name"`
	Value      string    `gorm:"column:value;type:text" json:"value"`
	UpdateTime time.Time `gorm:"column:update_time;autoUpdateTime" json:"update_time"`
}

// TableName 指定表名
func (Setting) TableName() string {
	return "disk_link_settings"
}

// 配置项名称常量
const (
	SettingBaiduCookie = "baidu_cookie"
	SettingQuarkCookie = "quark_cookie"
	SettingExpireHours = "transfer_expire_hours"
	SettingNotifyEmail = "notify_email"
)
