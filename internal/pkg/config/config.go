package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Transfer  TransferConfig  `mapstructure:"transfer"`
	Netdisk   NetdiskConfig   `mapstructure:"netdisk"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Cleanup   CleanupConfig   `mapstructure:"cleanup"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	Mode         string `mapstructure:"mode"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	LogLevel     string `mapstructure:"log_level"`

	// SSL配置(用于云数据库)
	SSLMode     bool   `mapstructure:"ssl_mode"`
	SSLCert     string `mapstructure:"ssl_cert"`
	SSLKey      string `mapstructure:"ssl_key"`
	SSLRootCert string `mapstructure:"ssl_root_cert"`
	TLSConfig   string `mapstructure:"tls_config"`
}

type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

// TransferConfig 转存流水线配置
type TransferConfig struct {
	ExpireHours    int `mapstructure:"expire_hours"`     // 转存链接有效期(小时),默认72
	Workers        int `mapstructure:"workers"`          // 流水线工作协程数
	QueueSize      int `mapstructure:"queue_size"`       // 等待执行的任务队列长度
	Timeout        int `mapstructure:"timeout"`          // 单次流水线超时(秒)
	MaxAttempts    int `mapstructure:"max_attempts"`     // 整条流水线的重试次数
	RetryBaseDelay int `mapstructure:"retry_base_delay"` // 重试基础延迟(秒)
	TaskInterval   int `mapstructure:"task_interval"`    // 异步任务轮询间隔(秒)
	TaskMaxWait    int `mapstructure:"task_max_wait"`    // 异步任务最长等待(秒)
}

type NetdiskConfig struct {
	Baidu NetdiskAccount `mapstructure:"baidu"`
	Quark NetdiskAccount `mapstructure:"quark"`
}

type NetdiskAccount struct {
	Cookie string `mapstructure:"cookie"`
}

// RateLimitRule 单个网盘的滑动窗口限流规则
type RateLimitRule struct {
	Requests int `mapstructure:"requests"` // 窗口内允许的请求数
	Window   int `mapstructure:"window"`   // 窗口长度(秒)
}

type RateLimitConfig struct {
	Baidu RateLimitRule `mapstructure:"baidu"`
	Quark RateLimitRule `mapstructure:"quark"`
}

// CleanupConfig 定时清理配置
type CleanupConfig struct {
	Cron             string `mapstructure:"cron"`               // 清理任务cron表达式
	CredentialCron   string `mapstructure:"credential_cron"`    // 凭证检查cron表达式
	BatchSize        int    `mapstructure:"batch_size"`         // 单次清理的最大记录数
	LogRetentionDays int    `mapstructure:"log_retention_days"` // 日志保留天数
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

// AdminConfig 管理员账号,密码为bcrypt哈希
type AdminConfig struct {
	Username     string `mapstructure:"username"`
	PasswordHash string `mapstructure:"password_hash"`
}

type LogConfig struct {
	Level    string `mapstructure:"level"`
	FilePath string `mapstructure:"file_path"`
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 6070)
	viper.SetDefault("server.mode", "release")
	viper.SetDefault("server.read_timeout", 60)
	viper.SetDefault("server.write_timeout", 60)
	viper.SetDefault("transfer.expire_hours", 72)
	viper.SetDefault("transfer.workers", 4)
	viper.SetDefault("transfer.queue_size", 64)
	viper.SetDefault("transfer.timeout", 300)
	viper.SetDefault("transfer.max_attempts", 3)
	viper.SetDefault("transfer.retry_base_delay", 1)
	viper.SetDefault("transfer.task_interval", 2)
	viper.SetDefault("transfer.task_max_wait", 30)
	viper.SetDefault("rate_limit.baidu.requests", 20)
	viper.SetDefault("rate_limit.baidu.window", 60)
	viper.SetDefault("rate_limit.quark.requests", 10)
	viper.SetDefault("rate_limit.quark.window", 60)
	viper.SetDefault("cleanup.cron", "@hourly")
	viper.SetDefault("cleanup.credential_cron", "@daily")
	viper.SetDefault("cleanup.batch_size", 100)
	viper.SetDefault("cleanup.log_retention_days", 30)
	viper.SetDefault("jwt.expire_hours", 24)
	viper.SetDefault("log.level", "info")
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.Username,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)

	if c.SSLMode {
		if c.SSLRootCert == "" && c.SSLCert == "" && c.SSLKey == "" {
			dsn += "&tls=skip-verify"
		} else if c.TLSConfig != "" {
			dsn += "&tls=" + c.TLSConfig
		} else {
			dsn += "&tls=custom"
		}
	}

	return dsn
}

// GetAddr 获取Redis地址
func (c *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetExpireHours 获取转存有效期(小时),限制在[1, 8760]
func (c *TransferConfig) GetExpireHours() int {
	return ClampExpireHours(c.ExpireHours)
}

// GetTimeout 获取流水线超时时间
func (c *TransferConfig) GetTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// GetTaskInterval 获取异步任务轮询间隔
func (c *TransferConfig) GetTaskInterval() time.Duration {
	return time.Duration(c.TaskInterval) * time.Second
}

// GetTaskMaxWait 获取异步任务最长等待
func (c *TransferConfig) GetTaskMaxWait() time.Duration {
	return time.Duration(c.TaskMaxWait) * time.Second
}

// GetRetryBaseDelay 获取重试基础延迟
func (c *TransferConfig) GetRetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelay) * time.Second
}

// ClampExpireHours 将有效期限制在1小时到1年之间
func ClampExpireHours(hours int) int {
	if hours < 1 {
		return 1
	}
	if hours > 8760 {
		return 8760
	}
	return hours
}
