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

// GmailConfig 定义 Gmail 邮件源配置
type GmailConfig struct {
	Enabled         bool   // 是否启用 Gmail 拉取
	CredentialsFile string // OAuth 客户端密钥文件，默认 "credentials.json"
	TokenFile       string // OAuth 令牌缓存文件，默认 "token.json"
}

// LLMConfig 定义结构化文本生成服务配置
type LLMConfig struct {
	BaseURL     string        // 服务地址，默认 OpenAI 兼容端点
	APIKey      string        // API 密钥
	Model       string        // 模型名，默认 "gpt-4-turbo-preview"
	MaxTokens   int           // 单次输出 token 预算，默认 4000
	Temperature float64       // 采样温度，默认 0.3
	Timeout     time.Duration // 请求超时，默认 60s
}

// SocialConfig 定义社交发布服务配置
type SocialConfig struct {
	Endpoints map[string]string // 平台 -> 发布端点，留空的平台不可连接
	RateLimit float64           // 每平台每秒发布次数上限，默认 1
	RateBurst int               // 突发额度，默认 3
}

// PipelineConfig 定义流水线调度配置
type PipelineConfig struct {
	FetchLimit    int           // 每轮拉取的邮件数量，默认 10
	PollInterval  time.Duration // Gmail 轮询间隔，默认 5 分钟
	SweepInterval time.Duration // 预定发布清扫间隔，默认 1 分钟
	Workers       int           // 流水线并发处理协程数，默认 4
	QueueSize     int           // 任务队列长度，默认 64
	Platforms     []string      // 新闻简报分支的目标平台，默认 twitter,linkedin
	DefaultTone   string        // 回复分支默认语气，默认 "professional"
	AutoPublish   bool          // 新闻简报分支是否自动发布，默认 true
	DedupTTL      time.Duration // Redis 去重标记保留时长，默认 72h
}

// SMTPConfig 定义 SMTP 邮件接收服务器的配置
type SMTPConfig struct {
	Enabled  bool   // 是否启用 SMTP 接收入口
	BindAddr string // SMTP 服务监听地址，格式 "host:port"，默认 ":2525"
	Domain   string // SMTP 服务器域名，用于 HELO/EHLO 响应
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
	LogFile     string // 日志文件路径，留空表示仅输出到控制台
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
	Enabled  bool   // 是否启用 Redis（去重标记、分类缓存）
	Address  string // Redis 服务地址，格式 "host:port"，默认 "localhost:6379"
	Password string // Redis 认证密码，留空表示无密码
	DB       int    // Redis 数据库编号，默认 0
}

// JWTConfig 定义 JWT 认证相关配置
type JWTConfig struct {
	Secret        string        // JWT 签名密钥，必须至少 32 字符
	Issuer        string        // JWT 签发者标识，默认 "agenticflow"
	AccessExpiry  time.Duration // 访问令牌有效期，默认 15 分钟
	RefreshExpiry time.Duration // 刷新令牌有效期，默认 7 天
}

// AdminConfig 定义管理账号的引导凭据
type AdminConfig struct {
	Username     string // 管理员用户名，默认 "admin"
	PasswordHash string // bcrypt 哈希后的密码，必填
}

// Config 是系统核心配置的根结构体，包含所有子系统的配置
type Config struct {
	Server   ServerConfig   // HTTP 服务器配置
	Gmail    GmailConfig    // Gmail 邮件源配置
	LLM      LLMConfig      // 生成服务配置
	Social   SocialConfig   // 社交发布配置
	Pipeline PipelineConfig // 流水线配置
	SMTP     SMTPConfig     // SMTP 接收配置
	CORS     CORSConfig     // 跨域配置
	Log      LogConfig      // 日志配置
	Database DatabaseConfig // 数据库配置
	Redis    RedisConfig    // Redis 配置
	JWT      JWTConfig      // JWT 认证配置
	Admin    AdminConfig    // 管理账号配置
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量（最高优先级）
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: AGENTICFLOW_
// 例如: AGENTICFLOW_SERVER_PORT, AGENTICFLOW_LLM_API_KEY
func Load() (*Config, error) {
	// 尝试加载 .env 文件（静默失败，因为 .env 文件是可选的）
	loadEnvFile()

	viper.SetEnvPrefix("agenticflow")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("gmail.enabled", false)
	viper.SetDefault("gmail.credentials_file", "credentials.json")
	viper.SetDefault("gmail.token_file", "token.json")
	viper.SetDefault("llm.base_url", "https://api.openai.com/v1")
	viper.SetDefault("llm.api_key", "")
	viper.SetDefault("llm.model", "gpt-4-turbo-preview")
	viper.SetDefault("llm.max_tokens", 4000)
	viper.SetDefault("llm.temperature", 0.3)
	viper.SetDefault("llm.timeout", "60s")
	viper.SetDefault("social.endpoints", "")
	viper.SetDefault("social.rate_limit", 1.0)
	viper.SetDefault("social.rate_burst", 3)
	viper.SetDefault("pipeline.fetch_limit", 10)
	viper.SetDefault("pipeline.poll_interval", "5m")
	viper.SetDefault("pipeline.sweep_interval", "1m")
	viper.SetDefault("pipeline.workers", 4)
	viper.SetDefault("pipeline.queue_size", 64)
	viper.SetDefault("pipeline.platforms", "twitter,linkedin")
	viper.SetDefault("pipeline.default_tone", "professional")
	viper.SetDefault("pipeline.auto_publish", true)
	viper.SetDefault("pipeline.dedup_ttl", "72h")
	viper.SetDefault("smtp.enabled", false)
	viper.SetDefault("smtp.bind_addr", ":2525")
	viper.SetDefault("smtp.domain", "agenticflow.local")
	viper.SetDefault("cors.allowed_origins", "*")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)
	viper.SetDefault("log.file", "")
	viper.SetDefault("database.type", "") // 默认为空，使用内存存储
	viper.SetDefault("database.dsn", "")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.issuer", "agenticflow")
	viper.SetDefault("jwt.access_expiry", "15m")
	viper.SetDefault("jwt.refresh_expiry", "168h")
	viper.SetDefault("admin.username", "admin")
	viper.SetDefault("admin.password_hash", "")

	llmTimeout := parseDurationOr(viper.GetString("llm.timeout"), 60*time.Second)
	pollInterval := parseDurationOr(viper.GetString("pipeline.poll_interval"), 5*time.Minute)
	sweepInterval := parseDurationOr(viper.GetString("pipeline.sweep_interval"), time.Minute)
	dedupTTL := parseDurationOr(viper.GetString("pipeline.dedup_ttl"), 72*time.Hour)
	connMaxLifetime := parseDurationOr(viper.GetString("database.conn_max_lifetime"), 5*time.Minute)
	accessExpiry := parseDurationOr(viper.GetString("jwt.access_expiry"), 15*time.Minute)
	refreshExpiry := parseDurationOr(viper.GetString("jwt.refresh_expiry"), 7*24*time.Hour)

	workers := viper.GetInt("pipeline.workers")
	if workers <= 0 {
		workers = 4
	}

	fetchLimit := viper.GetInt("pipeline.fetch_limit")
	if fetchLimit < 0 {
		return nil, fmt.Errorf("pipeline.fetch_limit must not be negative")
	}

	platforms := parseList(viper.GetString("pipeline.platforms"))
	if len(platforms) == 0 {
		platforms = []string{"twitter", "linkedin"}
	}

	corsOrigins := parseList(viper.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	jwtSecret := viper.GetString("jwt.secret")

	// 安全检查：禁止使用默认的 JWT secret
	if jwtSecret == "change-me-in-production" {
		return nil, fmt.Errorf("SECURITY ERROR: JWT secret cannot be the default value. Please set AGENTICFLOW_JWT_SECRET environment variable")
	}

	// JWT secret 必须至少 32 字符
	if len(jwtSecret) < 32 {
		return nil, fmt.Errorf("SECURITY ERROR: JWT secret must be at least 32 characters long")
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: viper.GetString("server.host"),
			Port: viper.GetInt("server.port"),
		},
		Gmail: GmailConfig{
			Enabled:         viper.GetBool("gmail.enabled"),
			CredentialsFile: viper.GetString("gmail.credentials_file"),
			TokenFile:       viper.GetString("gmail.token_file"),
		},
		LLM: LLMConfig{
			BaseURL:     strings.TrimRight(viper.GetString("llm.base_url"), "/"),
			APIKey:      viper.GetString("llm.api_key"),
			Model:       viper.GetString("llm.model"),
			MaxTokens:   viper.GetInt("llm.max_tokens"),
			Temperature: viper.GetFloat64("llm.temperature"),
			Timeout:     llmTimeout,
		},
		Social: SocialConfig{
			Endpoints: parseEndpoints(viper.GetString("social.endpoints")),
			RateLimit: viper.GetFloat64("social.rate_limit"),
			RateBurst: viper.GetInt("social.rate_burst"),
		},
		Pipeline: PipelineConfig{
			FetchLimit:    fetchLimit,
			PollInterval:  pollInterval,
			SweepInterval: sweepInterval,
			Workers:       workers,
			QueueSize:     viper.GetInt("pipeline.queue_size"),
			Platforms:     platforms,
			DefaultTone:   viper.GetString("pipeline.default_tone"),
			AutoPublish:   viper.GetBool("pipeline.auto_publish"),
			DedupTTL:      dedupTTL,
		},
		SMTP: SMTPConfig{
			Enabled:  viper.GetBool("smtp.enabled"),
			BindAddr: viper.GetString("smtp.bind_addr"),
			Domain:   viper.GetString("smtp.domain"),
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Log: LogConfig{
			Level:       viper.GetString("log.level"),
			Development: viper.GetBool("log.development"),
			LogFile:     viper.GetString("log.file"),
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
		JWT: JWTConfig{
			Secret:        jwtSecret,
			Issuer:        viper.GetString("jwt.issuer"),
			AccessExpiry:  accessExpiry,
			RefreshExpiry: refreshExpiry,
		},
		Admin: AdminConfig{
			Username:     viper.GetString("admin.username"),
			PasswordHash: viper.GetString("admin.password_hash"),
		},
	}

	return cfg, nil
}

// parseDurationOr 解析时长字符串，失败时返回默认值
func parseDurationOr(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

// parseList 将逗号分隔的字符串解析为小写字符串切片，已去除空白字符
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, strings.ToLower(trimmed))
		}
	}
	return items
}

// parseEndpoints 解析 "platform=url,platform=url" 形式的端点映射
func parseEndpoints(value string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(value, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		idx := strings.Index(pair, "=")
		if idx <= 0 {
			continue
		}
		platform := strings.ToLower(strings.TrimSpace(pair[:idx]))
		endpoint := strings.TrimSpace(pair[idx+1:])
		if platform != "" && endpoint != "" {
			out[platform] = endpoint
		}
	}
	return out
}

// loadEnvFile 尝试加载 .env 文件
//
// 加载顺序：
//  1. 当前目录的 .env
//  2. 父目录的 .env（用于从 backend/ 子目录运行的情况）
//
// 注意：
//   - 如果文件不存在，静默失败（.env 是可选的）
//   - 环境变量不会被覆盖（已存在的环境变量优先级更高）
func loadEnvFile() {
	// 尝试当前目录的 .env
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	// 尝试父目录的 .env（从 backend/ 目录运行时）
	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
