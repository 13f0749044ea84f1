package config

import (
	"fmt"
	"strings"

	"github.com/license-ledger/internal/logger"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Database   DatabaseConfig   `mapstructure:"database"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	UserJWT    JWTConfig        `mapstructure:"user_jwt"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Queue      QueueConfig      `mapstructure:"queue"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Security   SecurityConfig   `mapstructure:"security"`
	Ledger     LedgerConfig     `mapstructure:"ledger"`
	Otp        OtpConfig        `mapstructure:"otp"`
	Benefit    BenefitConfig    `mapstructure:"benefit"`
	Referral   ReferralConfig   `mapstructure:"referral"`
	Withdrawal WithdrawalConfig `mapstructure:"withdrawal"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug / release
}

// LogConfig 日志配置
type LogConfig struct {
	Dir        string `mapstructure:"dir"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ToLoggerOptions 转换为 logger 配置
func (c LogConfig) ToLoggerOptions() logger.Options {
	return logger.Options{
		Dir:        c.Dir,
		Filename:   c.Filename,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
	}
}

// DatabasePoolConfig 数据库连接池配置
type DatabasePoolConfig struct {
	MaxOpenConns           int `mapstructure:"max_open_conns"`
	MaxIdleConns           int `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSeconds int `mapstructure:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int `mapstructure:"conn_max_idle_time_seconds"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver string             `mapstructure:"driver"` // sqlite / postgres
	DSN    string             `mapstructure:"dsn"`
	Pool   DatabasePoolConfig `mapstructure:"pool"`
}

// JWTConfig JWT 配置
type JWTConfig struct {
	SecretKey   string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// QueueConfig 异步队列配置
type QueueConfig struct {
	Enabled     bool           `mapstructure:"enabled"`
	Host        string         `mapstructure:"host"`
	Port        int            `mapstructure:"port"`
	Password    string         `mapstructure:"password"`
	DB          int            `mapstructure:"db"`
	Concurrency int            `mapstructure:"concurrency"`
	Queues      map[string]int `mapstructure:"queues"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// MetricsConfig 指标暴露配置
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	LoginRateLimit      RateLimitConfig `mapstructure:"login_rate_limit"`
	WithdrawalRateLimit RateLimitConfig `mapstructure:"withdrawal_rate_limit"`
}

// RateLimitConfig 固定窗口限流配置
type RateLimitConfig struct {
	WindowSeconds int `mapstructure:"window_seconds"`
	MaxRequests   int `mapstructure:"max_requests"`
}

// LedgerConfig 账本配置
type LedgerConfig struct {
	Currency       string `mapstructure:"currency"`
	MaxRetries     int    `mapstructure:"max_retries"`
	RetryBackoffMS int    `mapstructure:"retry_backoff_ms"`
}

// OtpConfig 一次性口令配置
type OtpConfig struct {
	Length              int `mapstructure:"length"`
	ExpireMinutes       int `mapstructure:"expire_minutes"`
	MaxAttempts         int `mapstructure:"max_attempts"`
	SendIntervalSeconds int `mapstructure:"send_interval_seconds"`
}

// BenefitConfig 收益发放配置
type BenefitConfig struct {
	SweepIntervalSeconds int `mapstructure:"sweep_interval_seconds"`
	SweepBatchSize       int `mapstructure:"sweep_batch_size"`
	MaxDaysPerSweep      int `mapstructure:"max_days_per_sweep"`
}

// ReferralLevelConfig 单层推荐佣金配置
type ReferralLevelConfig struct {
	RatePercent      float64 `mapstructure:"rate_percent"`
	UnlockDelayHours int     `mapstructure:"unlock_delay_hours"`
}

// ReferralConfig 推荐佣金配置（解锁延迟表只在此处定义）
type ReferralConfig struct {
	MaxDepth                   int                   `mapstructure:"max_depth"`
	Levels                     []ReferralLevelConfig `mapstructure:"levels"`
	UnlockSweepIntervalSeconds int                   `mapstructure:"unlock_sweep_interval_seconds"`
	SweepBatchSize             int                   `mapstructure:"sweep_batch_size"`
}

// WithdrawalConfig 提现配置
type WithdrawalConfig struct {
	Currency  string `mapstructure:"currency"`
	Network   string `mapstructure:"network"`
	MinAmount string `mapstructure:"min_amount"`
	MaxAmount string `mapstructure:"max_amount"`
}

// Load 从 config.yml 加载配置
func Load() *Config {
	v := viper.GetViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("../")
	v.AddConfigPath("./etc")

	SetDefaults(v)

	// 环境变量支持（例如 ledger.max_retries -> LEDGER_MAX_RETRIES）
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		logger.Warnw("config_file_read_failed",
			"error", err,
			"fallback", "env_or_defaults",
		)
	} else {
		logger.Infow("config_file_loaded", "file", v.ConfigFileUsed())
	}

	cfg, err := Decode(v)
	if err != nil {
		logger.Errorw("config_unmarshal_failed", "error", err)
		panic(fmt.Errorf("配置解析失败: %w", err))
	}
	return cfg
}

// Decode 将 viper 实例解析为配置结构
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults 写入默认配置
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("log.dir", "")
	v.SetDefault("log.filename", "app.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./db/ledger.db")
	v.SetDefault("database.pool.max_open_conns", 1)
	v.SetDefault("database.pool.max_idle_conns", 1)
	v.SetDefault("database.pool.conn_max_lifetime_seconds", 0)
	v.SetDefault("database.pool.conn_max_idle_time_seconds", 0)
	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.expire_hours", 24)
	v.SetDefault("user_jwt.secret", "user-change-me-in-production")
	v.SetDefault("user_jwt.expire_hours", 24)
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "ll")
	v.SetDefault("queue.enabled", true)
	v.SetDefault("queue.host", "127.0.0.1")
	v.SetDefault("queue.port", 6379)
	v.SetDefault("queue.password", "")
	v.SetDefault("queue.db", 1)
	v.SetDefault("queue.concurrency", 10)
	v.SetDefault("queue.queues", map[string]int{
		"default":  10,
		"critical": 5,
	})
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{
		"Content-Type",
		"Content-Length",
		"Accept-Encoding",
		"Authorization",
		"Cache-Control",
		"X-Requested-With",
	})
	v.SetDefault("cors.allow_credentials", true)
	v.SetDefault("cors.max_age", 600)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("security.login_rate_limit.window_seconds", 300)
	v.SetDefault("security.login_rate_limit.max_requests", 10)
	v.SetDefault("security.withdrawal_rate_limit.window_seconds", 60)
	v.SetDefault("security.withdrawal_rate_limit.max_requests", 5)
	v.SetDefault("ledger.currency", "USDT")
	v.SetDefault("ledger.max_retries", 5)
	v.SetDefault("ledger.retry_backoff_ms", 20)
	v.SetDefault("otp.length", 6)
	v.SetDefault("otp.expire_minutes", 10)
	v.SetDefault("otp.max_attempts", 5)
	v.SetDefault("otp.send_interval_seconds", 60)
	v.SetDefault("benefit.sweep_interval_seconds", 300)
	v.SetDefault("benefit.sweep_batch_size", 200)
	v.SetDefault("benefit.max_days_per_sweep", 31)
	v.SetDefault("referral.max_depth", 3)
	v.SetDefault("referral.levels", []map[string]interface{}{
		{"rate_percent": 10, "unlock_delay_hours": 8 * 24},
		{"rate_percent": 5, "unlock_delay_hours": 17 * 24},
		{"rate_percent": 2, "unlock_delay_hours": 17 * 24},
	})
	v.SetDefault("referral.unlock_sweep_interval_seconds", 300)
	v.SetDefault("referral.sweep_batch_size", 200)
	v.SetDefault("withdrawal.currency", "USDT")
	v.SetDefault("withdrawal.network", "BEP20")
	v.SetDefault("withdrawal.min_amount", "10")
	v.SetDefault("withdrawal.max_amount", "100000")
}
