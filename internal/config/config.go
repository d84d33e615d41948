package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ServerConfig 定义 HTTP 服务器的监听配置参数
type ServerConfig struct {
	Host string // 监听地址，默认 "0.0.0.0"
	Port int    // 监听端口，默认 8080
}

// TriageConfig 定义紧急度评估的业务配置
type TriageConfig struct {
	Threshold      int           // 紧急判定阈值，得分达到该值判定为紧急，默认 40
	DeadlineWindow time.Duration // 截止时间临近窗口，窗口内的截止时间额外加分，默认 48h
	Workers        int           // 后台评估工作协程数量，默认 4
	QueueSize      int           // 评估任务队列容量，默认 256
}

// AssistantConfig 定义批量操作助手的业务配置
type AssistantConfig struct {
	SafetyLimit int           // 指令未限定数量时的候选集安全上限，默认 50
	PendingTTL  time.Duration // 待确认操作的有效期，超时自动作废，默认 10 分钟
}

// NLUConfig 定义自然语言解析服务的连接配置
type NLUConfig struct {
	Endpoint    string        // 解析服务地址，留空则只使用内置规则解析
	Model       string        // 请求使用的模型名称
	Timeout     time.Duration // 单次请求超时，默认 15s
	MaxTokens   int           // 响应最大 token 数，默认 512
	Temperature float64       // 采样温度，解析任务使用低温度，默认 0.1
}

// MailStoreConfig 定义上游邮件服务商的连接配置
type MailStoreConfig struct {
	CredentialsFile string        // OAuth2 凭证文件路径，留空表示不连接上游
	TokenFile       string        // OAuth2 令牌缓存文件路径
	RequestsPerSec  float64       // 对上游 API 的请求速率上限，默认 5
	Timeout         time.Duration // 单次上游请求超时，默认 30s
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
}

// DatabaseConfig 定义数据库连接配置（支持 MySQL 和 PostgreSQL）
type DatabaseConfig struct {
	Type            string        // 数据库类型: "mysql" 或 "postgres"，留空使用内存存储
	DSN             string        // 数据库连接字符串
	MaxOpenConns    int           // 最大打开连接数，默认 25
	MaxIdleConns    int           // 最大空闲连接数，默认 5
	ConnMaxLifetime time.Duration // 连接最大生命周期，默认 5 分钟
}

// RedisConfig 定义 Redis 缓存服务配置
type RedisConfig struct {
	Enabled  bool   // 是否启用 Redis 存放待确认操作，默认关闭
	Address  string // Redis 服务地址，格式 "host:port"，默认 "localhost:6379"
	Password string // Redis 认证密码，留空表示无密码
	DB       int    // Redis 数据库编号，默认 0
}

// Config 是系统核心配置的根结构体，包含所有子系统的配置
type Config struct {
	Server    ServerConfig    // HTTP 服务器配置
	Triage    TriageConfig    // 紧急度评估配置
	Assistant AssistantConfig // 批量操作助手配置
	NLU       NLUConfig       // 自然语言解析服务配置
	MailStore MailStoreConfig // 上游邮件服务商配置
	CORS      CORSConfig      // 跨域配置
	Log       LogConfig       // 日志配置
	Database  DatabaseConfig  // 数据库配置
	Redis     RedisConfig     // Redis 配置
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量（最高优先级）
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: INBOXPILOT_
// 例如: INBOXPILOT_SERVER_PORT, INBOXPILOT_TRIAGE_THRESHOLD
func Load() (*Config, error) {
	// 尝试加载 .env 文件（静默失败，因为 .env 文件是可选的）
	loadEnvFile()

	viper.SetEnvPrefix("inboxpilot")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("triage.threshold", 40)
	viper.SetDefault("triage.deadline_window", "48h")
	viper.SetDefault("triage.workers", 4)
	viper.SetDefault("triage.queue_size", 256)
	viper.SetDefault("assistant.safety_limit", 50)
	viper.SetDefault("assistant.pending_ttl", "10m")
	viper.SetDefault("nlu.endpoint", "")
	viper.SetDefault("nlu.model", "")
	viper.SetDefault("nlu.timeout", "15s")
	viper.SetDefault("nlu.max_tokens", 512)
	viper.SetDefault("nlu.temperature", 0.1)
	viper.SetDefault("mailstore.credentials_file", "")
	viper.SetDefault("mailstore.token_file", "")
	viper.SetDefault("mailstore.requests_per_sec", 5.0)
	viper.SetDefault("mailstore.timeout", "30s")
	viper.SetDefault("cors.allowed_origins", "*")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)
	viper.SetDefault("database.type", "") // 默认为空，使用内存存储
	viper.SetDefault("database.dsn", "")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	threshold := viper.GetInt("triage.threshold")
	if threshold < 0 || threshold > 100 {
		return nil, fmt.Errorf("triage.threshold must be within [0,100], got %d", threshold)
	}

	deadlineWindow, err := time.ParseDuration(viper.GetString("triage.deadline_window"))
	if err != nil {
		return nil, fmt.Errorf("invalid triage.deadline_window: %w", err)
	}

	workers := viper.GetInt("triage.workers")
	if workers <= 0 {
		workers = 4
	}

	queueSize := viper.GetInt("triage.queue_size")
	if queueSize <= 0 {
		queueSize = 256
	}

	safetyLimit := viper.GetInt("assistant.safety_limit")
	if safetyLimit <= 0 {
		return nil, fmt.Errorf("assistant.safety_limit must be positive, got %d", safetyLimit)
	}

	pendingTTL, err := time.ParseDuration(viper.GetString("assistant.pending_ttl"))
	if err != nil {
		return nil, fmt.Errorf("invalid assistant.pending_ttl: %w", err)
	}

	nluTimeout, err := time.ParseDuration(viper.GetString("nlu.timeout"))
	if err != nil {
		nluTimeout = 15 * time.Second
	}

	mailTimeout, err := time.ParseDuration(viper.GetString("mailstore.timeout"))
	if err != nil {
		mailTimeout = 30 * time.Second
	}

	rps := viper.GetFloat64("mailstore.requests_per_sec")
	if rps <= 0 {
		rps = 5.0
	}

	corsOrigins := parseList(viper.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	connMaxLifetime, err := time.ParseDuration(viper.GetString("database.conn_max_lifetime"))
	if err != nil {
		connMaxLifetime = 5 * time.Minute
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: viper.GetString("server.host"),
			Port: viper.GetInt("server.port"),
		},
		Triage: TriageConfig{
			Threshold:      threshold,
			DeadlineWindow: deadlineWindow,
			Workers:        workers,
			QueueSize:      queueSize,
		},
		Assistant: AssistantConfig{
			SafetyLimit: safetyLimit,
			PendingTTL:  pendingTTL,
		},
		NLU: NLUConfig{
			Endpoint:    viper.GetString("nlu.endpoint"),
			Model:       viper.GetString("nlu.model"),
			Timeout:     nluTimeout,
			MaxTokens:   viper.GetInt("nlu.max_tokens"),
			Temperature: viper.GetFloat64("nlu.temperature"),
		},
		MailStore: MailStoreConfig{
			CredentialsFile: viper.GetString("mailstore.credentials_file"),
			TokenFile:       viper.GetString("mailstore.token_file"),
			RequestsPerSec:  rps,
			Timeout:         mailTimeout,
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Log: LogConfig{
			Level:       viper.GetString("log.level"),
			Development: viper.GetBool("log.development"),
		},
		Database: DatabaseConfig{
			Type:            viper.GetString("database.type"),
			DSN:             viper.GetString("database.dsn"),
			MaxOpenConns:    viper.GetInt("database.max_open_conns"),
			MaxIdleConns:    viper.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: connMaxLifetime,
		},
		Redis: RedisConfig{
			Enabled:  viper.GetBool("redis.enabled"),
			Address:  viper.GetString("redis.address"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
	}

	return cfg, nil
}

// parseList 将逗号分隔的字符串解析为字符串切片
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载 .env 文件
//
// 加载顺序：
//  1. 当前目录的 .env
//  2. 父目录的 .env（用于从 backend/ 子目录运行的情况）
//
// 如果文件不存在，静默失败（.env 是可选的）；
// 已存在的环境变量不会被覆盖。
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
