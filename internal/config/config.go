package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config aggregates application settings that may be sourced from files or environment variables.
type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	MinIO     MinIOConfig     `mapstructure:"minio"`
	Auth      AuthConfig      `mapstructure:"auth"`
	OAuth     OAuthConfig     `mapstructure:"oauth"`
	Assistant AssistantConfig `mapstructure:"assistant"`
	Snapshot  SnapshotConfig  `mapstructure:"snapshot"`
	Export    ExportConfig    `mapstructure:"export"`
	Clamd     ClamdConfig     `mapstructure:"clamd"`
}

// APIConfig contains HTTP server settings.
type APIConfig struct {
	Port               int           `mapstructure:"port"`
	CookieDomain       string        `mapstructure:"cookie_domain"`
	AllowedOrigins     []string      `mapstructure:"allowed_origins"`
	WorkspaceIdleTTL   time.Duration `mapstructure:"workspace_idle_ttl"`
	LoginRatePerHour   int           `mapstructure:"login_rate_per_hour"`
	LoginLockThreshold int           `mapstructure:"login_lock_threshold"`
	LoginLockTTL       time.Duration `mapstructure:"login_lock_ttl"`
	InternalSecret     string        `mapstructure:"internal_secret"`
	EvictInterval      time.Duration `mapstructure:"evict_interval"`
}

// DatabaseConfig contains connection options for PostgreSQL.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

// RedisConfig 包含 Redis 连接配置。
type RedisConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr 返回 host:port 形式的地址。
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// MinIOConfig contains connection options for MinIO/S3-compatible storage.
type MinIOConfig struct {
	Endpoint         string `mapstructure:"endpoint"`
	PublicEndpoint   string `mapstructure:"public_endpoint"`
	AccessKeyID      string `mapstructure:"access_key_id"`
	SecretAccessKey  string `mapstructure:"secret_access_key"`
	UseSSL           bool   `mapstructure:"use_ssl"`
	Region           string `mapstructure:"region"`
	Bucket           string `mapstructure:"bucket"`
	BucketLookup     string `mapstructure:"bucket_lookup"`
	AutoCreateBucket bool   `mapstructure:"auto_create_bucket"`
}

// AuthConfig 描述会话令牌的签名密钥与有效期。
type AuthConfig struct {
	PrivateKeyPEM   string        `mapstructure:"private_key_pem"`
	PublicKeyPEM    string        `mapstructure:"public_key_pem"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
}

// OAuthConfig 描述外部身份提供方（Google）的客户端配置。
// ClientID 为空时禁用 Google 登录。
type OAuthConfig struct {
	GoogleClientID     string        `mapstructure:"google_client_id"`
	GoogleClientSecret string        `mapstructure:"google_client_secret"`
	RedirectURL        string        `mapstructure:"redirect_url"`
	StateTTL           time.Duration `mapstructure:"state_ttl"`
}

// AssistantConfig 描述文本建议助手的调用参数。
// APIKey 为空时始终返回离线兜底文案。
type AssistantConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	Model          string        `mapstructure:"model"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RatePerMinute  int           `mapstructure:"rate_per_minute"`
	MaxOutputToken int32         `mapstructure:"max_output_tokens"`
}

// SnapshotConfig 描述本地快照（按设备单槽）的存储参数。
type SnapshotConfig struct {
	KeyPrefix string        `mapstructure:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// ExportConfig 描述 PDF 导出队列参数。
type ExportConfig struct {
	WorkerConcurrency int           `mapstructure:"worker_concurrency"`
	MaxRetry          int           `mapstructure:"max_retry"`
	LinkTTL           time.Duration `mapstructure:"link_ttl"`
	MetricsAddr       string        `mapstructure:"metrics_addr"`
}

// ClamdConfig 描述导入文件的病毒扫描服务，Addr 为空时跳过扫描。
type ClamdConfig struct {
	Addr string `mapstructure:"addr"`
}

// DSN builds a lib/pq compatible connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host,
		d.Port,
		d.User,
		d.Password,
		d.Name,
		d.SSLMode,
	)
}

// Load reads configuration from environment variables (with optional defaults and .env file).
func Load() (*Config, error) {
	// .env 仅用于本地开发，缺失时忽略。
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if err := bindEnv(v); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.API.AllowedOrigins = splitList(cfg.API.AllowedOrigins)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad wraps Load and panics on failure.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.workspace_idle_ttl", 2*time.Hour)
	v.SetDefault("api.login_rate_per_hour", 10)
	v.SetDefault("api.login_lock_threshold", 5)
	v.SetDefault("api.login_lock_ttl", 15*time.Minute)
	v.SetDefault("api.evict_interval", 5*time.Minute)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "resumebuilder")
	v.SetDefault("database.user", "resumebuilder")
	v.SetDefault("database.password", "resumebuilder")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.public_endpoint", "http://localhost:9000")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket", "resume-exports")
	v.SetDefault("minio.bucket_lookup", "auto")
	v.SetDefault("minio.auto_create_bucket", true)
	v.SetDefault("auth.access_token_ttl", 15*time.Minute)
	v.SetDefault("auth.refresh_token_ttl", 7*24*time.Hour)
	v.SetDefault("oauth.state_ttl", 10*time.Minute)
	v.SetDefault("assistant.model", "gemini-2.5-flash")
	v.SetDefault("assistant.timeout", 20*time.Second)
	v.SetDefault("assistant.rate_per_minute", 30)
	v.SetDefault("assistant.max_output_tokens", 512)
	v.SetDefault("snapshot.key_prefix", "resumeData")
	v.SetDefault("snapshot.ttl", time.Duration(0))
	v.SetDefault("export.worker_concurrency", 4)
	v.SetDefault("export.max_retry", 5)
	v.SetDefault("export.link_ttl", 5*time.Minute)
	v.SetDefault("export.metrics_addr", ":9091")
}

func bindEnv(v *viper.Viper) error {
	mappings := map[string]string{
		"api.port":                     "API_PORT",
		"api.cookie_domain":            "COOKIE_DOMAIN",
		"api.allowed_origins":          "ALLOWED_ORIGINS",
		"api.workspace_idle_ttl":       "WORKSPACE_IDLE_TTL",
		"api.login_rate_per_hour":      "LOGIN_RATE_PER_HOUR",
		"api.login_lock_threshold":     "LOGIN_LOCK_THRESHOLD",
		"api.login_lock_ttl":           "LOGIN_LOCK_TTL",
		"api.internal_secret":          "INTERNAL_API_SECRET",
		"api.evict_interval":           "WORKSPACE_EVICT_INTERVAL",
		"database.host":                "DATABASE_HOST",
		"database.port":                "DATABASE_PORT",
		"database.name":                "POSTGRES_DB",
		"database.user":                "POSTGRES_USER",
		"database.password":            "POSTGRES_PASSWORD",
		"database.sslmode":             "DATABASE_SSLMODE",
		"redis.host":                   "REDIS_HOST",
		"redis.port":                   "REDIS_PORT",
		"minio.endpoint":               "MINIO_ENDPOINT",
		"minio.public_endpoint":        "MINIO_PUBLIC_ENDPOINT",
		"minio.access_key_id":          "MINIO_ACCESS_KEY_ID",
		"minio.secret_access_key":      "MINIO_SECRET_ACCESS_KEY",
		"minio.use_ssl":                "MINIO_USE_SSL",
		"minio.region":                 "MINIO_REGION",
		"minio.bucket":                 "MINIO_BUCKET",
		"minio.bucket_lookup":          "MINIO_BUCKET_LOOKUP",
		"minio.auto_create_bucket":     "MINIO_AUTO_CREATE_BUCKET",
		"auth.private_key_pem":         "JWT_PRIVATE_KEY",
		"auth.public_key_pem":          "JWT_PUBLIC_KEY",
		"auth.access_token_ttl":        "JWT_ACCESS_TOKEN_TTL",
		"auth.refresh_token_ttl":       "JWT_REFRESH_TOKEN_TTL",
		"oauth.google_client_id":       "GOOGLE_CLIENT_ID",
		"oauth.google_client_secret":   "GOOGLE_CLIENT_SECRET",
		"oauth.redirect_url":           "GOOGLE_REDIRECT_URL",
		"oauth.state_ttl":              "OAUTH_STATE_TTL",
		"assistant.api_key":            "GEMINI_API_KEY",
		"assistant.model":              "GEMINI_MODEL",
		"assistant.timeout":            "ASSISTANT_TIMEOUT",
		"assistant.rate_per_minute":    "ASSISTANT_RATE_PER_MINUTE",
		"assistant.max_output_tokens":  "ASSISTANT_MAX_OUTPUT_TOKENS",
		"snapshot.key_prefix":          "SNAPSHOT_KEY_PREFIX",
		"snapshot.ttl":                 "SNAPSHOT_TTL",
		"export.worker_concurrency":    "EXPORT_WORKER_CONCURRENCY",
		"export.max_retry":             "EXPORT_MAX_RETRY",
		"export.link_ttl":              "EXPORT_LINK_TTL",
		"export.metrics_addr":          "WORKER_METRICS_ADDR",
		"clamd.addr":                   "CLAMD_ADDR",
	}

	for key, env := range mappings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s to %s: %w", key, env, err)
		}
	}

	return nil
}

// splitList 兼容以逗号分隔的环境变量（viper 不会自动切分）。
func splitList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func validate(cfg Config) error {
	if cfg.API.Port <= 0 {
		return errors.New("api port must be positive")
	}
	if cfg.API.WorkspaceIdleTTL <= 0 || cfg.API.EvictInterval <= 0 {
		return errors.New("workspace idle ttl and evict interval must be positive")
	}
	if cfg.Database.Host == "" {
		return errors.New("database host is required")
	}
	if cfg.Database.Port <= 0 {
		return errors.New("database port must be positive")
	}
	if cfg.Database.Name == "" {
		return errors.New("database name is required")
	}
	if cfg.Database.User == "" {
		return errors.New("database user is required")
	}
	if cfg.Database.Password == "" {
		return errors.New("database password is required")
	}
	if cfg.Database.SSLMode == "" {
		return errors.New("database sslmode is required")
	}
	if cfg.Redis.Host == "" {
		return errors.New("redis host is required")
	}
	if cfg.Redis.Port <= 0 {
		return errors.New("redis port must be positive")
	}
	if cfg.MinIO.Endpoint == "" {
		return errors.New("minio endpoint is required")
	}
	if cfg.MinIO.AccessKeyID == "" {
		return errors.New("minio access key id is required")
	}
	if cfg.MinIO.SecretAccessKey == "" {
		return errors.New("minio secret access key is required")
	}
	if cfg.MinIO.Bucket == "" {
		return errors.New("minio bucket is required")
	}
	if cfg.Auth.PrivateKeyPEM == "" || cfg.Auth.PublicKeyPEM == "" {
		return errors.New("jwt key pair is required")
	}
	if cfg.Auth.AccessTokenTTL <= 0 || cfg.Auth.RefreshTokenTTL <= 0 {
		return errors.New("jwt token ttl must be positive")
	}
	if cfg.OAuth.GoogleClientID != "" && (cfg.OAuth.GoogleClientSecret == "" || cfg.OAuth.RedirectURL == "") {
		return errors.New("google client secret and redirect url are required when google sign-in is enabled")
	}
	if cfg.Assistant.Timeout <= 0 {
		return errors.New("assistant timeout must be positive")
	}
	if cfg.Snapshot.KeyPrefix == "" {
		return errors.New("snapshot key prefix is required")
	}
	if cfg.Snapshot.TTL < 0 {
		return errors.New("snapshot ttl must not be negative")
	}
	if cfg.Export.WorkerConcurrency <= 0 {
		return errors.New("export worker concurrency must be positive")
	}
	return nil
}
