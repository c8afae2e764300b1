package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// 存储后端。
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// 上传后端。
const (
	UploadLocal = "local"
	UploadOSS   = "oss"
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr    string
	Port          string
	GinMode       string
	SessionSecret string
	CORSOrigins   []string

	StoreBackend    string
	DatabasePath    string
	DatabaseDSN     string
	ListSkipCorrupt bool

	Redis RedisConfig

	NATSURL string

	UploadBackend string
	UploadDir     string
	UploadURLPath string
	OSS           OSSConfig

	RetentionDays int
	SweepInterval time.Duration

	AdminEmail    string
	AdminPassword string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

type OSSConfig struct {
	Endpoint        string
	AccessKeyID     string
	AccessKeySecret string
	BucketName      string
	PublicBaseURL   string
}

func defaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("GIN_MODE", "release")
	v.SetDefault("SESSION_SECRET", "genteblog-dev-secret")
	v.SetDefault("CORS_ORIGINS", "")
	v.SetDefault("STORE_BACKEND", BackendSQLite)
	v.SetDefault("DATABASE_PATH", "genteblog.db")
	v.SetDefault("LIST_SKIP_CORRUPT", true)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_PREFIX", "genteblog:")
	v.SetDefault("UPLOAD_BACKEND", UploadLocal)
	v.SetDefault("UPLOAD_DIR", "web/static/uploads")
	v.SetDefault("UPLOAD_URL_PATH", "/static/uploads")
	v.SetDefault("RETENTION_DAYS", 30)
	v.SetDefault("SWEEP_INTERVAL", "24h")
}

// Load 从环境变量读取应用配置，并为缺失项提供安全的默认值。
func Load() (AppConfig, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return FromViper(v)
}

// FromViper 读取已准备好的 viper 实例，便于测试直接注入键值。
func FromViper(v *viper.Viper) (AppConfig, error) {
	defaults(v)

	port := strings.TrimSpace(v.GetString("PORT"))
	listenAddr := strings.TrimSpace(v.GetString("LISTEN_ADDR"))
	if listenAddr == "" {
		listenAddr = fmt.Sprintf(":%s", port)
	}

	cfg := AppConfig{
		ListenAddr:      listenAddr,
		Port:            port,
		GinMode:         strings.TrimSpace(v.GetString("GIN_MODE")),
		SessionSecret:   strings.TrimSpace(v.GetString("SESSION_SECRET")),
		CORSOrigins:     splitList(v.GetString("CORS_ORIGINS")),
		StoreBackend:    strings.ToLower(strings.TrimSpace(v.GetString("STORE_BACKEND"))),
		DatabasePath:    strings.TrimSpace(v.GetString("DATABASE_PATH")),
		DatabaseDSN:     strings.TrimSpace(v.GetString("DATABASE_DSN")),
		ListSkipCorrupt: v.GetBool("LIST_SKIP_CORRUPT"),
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(v.GetString("REDIS_ADDR")),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			Prefix:   v.GetString("REDIS_PREFIX"),
		},
		NATSURL:       strings.TrimSpace(v.GetString("NATS_URL")),
		UploadBackend: strings.ToLower(strings.TrimSpace(v.GetString("UPLOAD_BACKEND"))),
		UploadDir:     strings.TrimSpace(v.GetString("UPLOAD_DIR")),
		UploadURLPath: strings.TrimSpace(v.GetString("UPLOAD_URL_PATH")),
		OSS: OSSConfig{
			Endpoint:        strings.TrimSpace(v.GetString("OSS_ENDPOINT")),
			AccessKeyID:     strings.TrimSpace(v.GetString("OSS_ACCESS_KEY_ID")),
			AccessKeySecret: strings.TrimSpace(v.GetString("OSS_ACCESS_KEY_SECRET")),
			BucketName:      strings.TrimSpace(v.GetString("OSS_BUCKET_NAME")),
			PublicBaseURL:   strings.TrimSpace(v.GetString("OSS_PUBLIC_BASE_URL")),
		},
		RetentionDays: v.GetInt("RETENTION_DAYS"),
		SweepInterval: v.GetDuration("SWEEP_INTERVAL"),
		AdminEmail:    strings.TrimSpace(v.GetString("ADMIN_EMAIL")),
		AdminPassword: strings.TrimSpace(v.GetString("ADMIN_PASSWORD")),
	}
	return cfg, cfg.Validate()
}

// Validate 检查互相关联的配置项。
func (c AppConfig) Validate() error {
	switch c.StoreBackend {
	case BackendSQLite:
	case BackendPostgres:
		if c.DatabaseDSN == "" {
			return fmt.Errorf("config: DATABASE_DSN is required for the postgres backend")
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("config: REDIS_ADDR is required for the redis backend")
		}
	default:
		return fmt.Errorf("config: unknown STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.UploadBackend {
	case UploadLocal:
	case UploadOSS:
		if c.OSS.Endpoint == "" || c.OSS.BucketName == "" {
			return fmt.Errorf("config: OSS_ENDPOINT and OSS_BUCKET_NAME are required for oss uploads")
		}
	default:
		return fmt.Errorf("config: unknown UPLOAD_BACKEND %q", c.UploadBackend)
	}

	if c.RetentionDays <= 0 {
		return fmt.Errorf("config: RETENTION_DAYS must be positive")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("config: SWEEP_INTERVAL must be positive")
	}
	return nil
}

// Retention 返回保留期限。
func (c AppConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
