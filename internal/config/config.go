package config

import (
	"fmt"
	"strings"

	"github.com/yieldtree/incentive-engine/internal/logger"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Graph     GraphConfig     `mapstructure:"graph"`
	Referral  ReferralConfig  `mapstructure:"referral"`
	Incentive IncentiveConfig `mapstructure:"incentive"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Security  SecurityConfig  `mapstructure:"security"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Mode     string `mapstructure:"mode"`     // debug / release
	Timezone string `mapstructure:"timezone"` // 结算使用的时区
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
	Driver   string             `mapstructure:"driver"`    // 数据库驱动（sqlite/postgres）
	DSN      string             `mapstructure:"dsn"`       // 数据库连接串
	LogLevel string             `mapstructure:"log_level"` // gorm 日志级别 silent/error/warn/info
	Pool     DatabasePoolConfig `mapstructure:"pool"`
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

// GraphConfig 图数据库配置（推荐关系）
type GraphConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	URI            string `mapstructure:"uri"`
	Database       string `mapstructure:"database"`
	Username       string `mapstructure:"username"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
}

// ReferralConfig 推荐关系配置
type ReferralConfig struct {
	Source         string `mapstructure:"source"`        // database / graph
	SyncToGraph    bool   `mapstructure:"sync_to_graph"` // 写入会员时同步到图数据库
	MaxUplineDepth int    `mapstructure:"max_upline_depth"`
}

// IncentiveConfig 激励参数默认值（可被 settings 覆盖）
type IncentiveConfig struct {
	MemberSharePercent   string   `mapstructure:"member_share_percent"`
	LoginWindowDays      int      `mapstructure:"login_window_days"`
	LoyaltyCycleDays     int      `mapstructure:"loyalty_cycle_days"`
	LoyaltyDailyLGC      string   `mapstructure:"loyalty_daily_lgc"`
	LoyaltyDailyCap      int      `mapstructure:"loyalty_daily_cap"`
	LoyaltyMinReferrals  int      `mapstructure:"loyalty_min_referrals"`
	LoyaltyMinActivities int      `mapstructure:"loyalty_min_activity_types"`
	ActivityTypes        []string `mapstructure:"activity_types"`
	MonthlyBonusPool     string   `mapstructure:"monthly_bonus_pool"` // 0 表示不限额
}

// SchedulerConfig 周期任务配置
type SchedulerConfig struct {
	Enabled             bool   `mapstructure:"enabled"`
	LoyaltySweepCron    string `mapstructure:"loyalty_sweep_cron"`
	MonthlySettleCron   string `mapstructure:"monthly_settle_cron"`
	LoyaltySweepSeconds int    `mapstructure:"loyalty_sweep_seconds"` // 队列关闭时的本地轮询间隔
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	APIRateLimit APIRateLimitConfig `mapstructure:"api_rate_limit"`
}

// APIRateLimitConfig 运维接口限流配置
type APIRateLimitConfig struct {
	WindowSeconds int `mapstructure:"window_seconds"`
	MaxRequests   int `mapstructure:"max_requests"`
	BlockSeconds  int `mapstructure:"block_seconds"`
}

// Load 从 config.yml 加载配置
func Load() *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../")
	viper.AddConfigPath("./etc")

	setDefaults(viper.GetViper())

	// 环境变量支持，例如 database.dsn -> DATABASE_DSN
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		logger.Warnw("config_file_read_failed",
			"error", err,
			"fallback", "env_or_defaults",
		)
	} else {
		logger.Infow("config_file_loaded", "file", viper.ConfigFileUsed())
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		logger.Errorw("config_unmarshal_failed", "error", err)
		panic(fmt.Errorf("配置解析失败: %w", err))
	}
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.timezone", "UTC")
	v.SetDefault("log.dir", "")
	v.SetDefault("log.filename", "incentive.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./db/incentive.db")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.pool.max_open_conns", 1)
	v.SetDefault("database.pool.max_idle_conns", 1)
	v.SetDefault("database.pool.conn_max_lifetime_seconds", 0)
	v.SetDefault("database.pool.conn_max_idle_time_seconds", 0)
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "incentive")
	v.SetDefault("queue.enabled", true)
	v.SetDefault("queue.host", "127.0.0.1")
	v.SetDefault("queue.port", 6379)
	v.SetDefault("queue.password", "")
	v.SetDefault("queue.db", 1)
	v.SetDefault("queue.concurrency", 10)
	v.SetDefault("queue.queues", map[string]int{
		"critical": 6,
		"default":  3,
		"batch":    1,
	})
	v.SetDefault("graph.enabled", false)
	v.SetDefault("graph.uri", "bolt://127.0.0.1:7687")
	v.SetDefault("graph.database", "neo4j")
	v.SetDefault("graph.username", "neo4j")
	v.SetDefault("graph.password", "")
	v.SetDefault("graph.max_connections", 20)
	v.SetDefault("referral.source", "database")
	v.SetDefault("referral.sync_to_graph", false)
	v.SetDefault("referral.max_upline_depth", 5)
	v.SetDefault("incentive.member_share_percent", "60")
	v.SetDefault("incentive.login_window_days", 30)
	v.SetDefault("incentive.loyalty_cycle_days", 90)
	v.SetDefault("incentive.loyalty_daily_lgc", "10")
	v.SetDefault("incentive.loyalty_daily_cap", 1)
	v.SetDefault("incentive.loyalty_min_referrals", 3)
	v.SetDefault("incentive.loyalty_min_activity_types", 2)
	v.SetDefault("incentive.monthly_bonus_pool", "0")
	v.SetDefault("incentive.activity_types", []string{
		"daily_login",
		"learning",
		"social_share",
		"community_event",
		"referral_meetup",
	})
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.loyalty_sweep_cron", "10 0 * * *")
	v.SetDefault("scheduler.monthly_settle_cron", "30 0 1 * *")
	v.SetDefault("scheduler.loyalty_sweep_seconds", 3600)
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{
		"Content-Type",
		"Content-Length",
		"Accept-Encoding",
		"X-Request-ID",
		"X-Operator",
	})
	v.SetDefault("cors.allow_credentials", false)
	v.SetDefault("cors.max_age", 600)
	v.SetDefault("security.api_rate_limit.window_seconds", 60)
	v.SetDefault("security.api_rate_limit.max_requests", 120)
	v.SetDefault("security.api_rate_limit.block_seconds", 60)
}
