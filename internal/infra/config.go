package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderAliyun   = "aliyun"
	ProviderLiblibAI = "liblibai"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv  string
	Port    string
	DataDir string

	AliyunAPIKey          string
	AliyunAPIURL          string
	AliyunSupportedModels []string

	LiblibAccessKey       string
	LiblibSecretKey       string
	LiblibAPIURL          string
	LiblibSupportedModels []string

	PollInterval        time.Duration
	PollMaxAttempts     int
	SubmitTimeout       time.Duration
	PollTimeout         time.Duration
	DownloadTimeout     time.Duration
	DownloadConcurrency int

	RedisURL          string
	TaskQueueKey      string
	WorkerConcurrency int
	WorkerMetricsAddr string

	JobStore      string
	MongoURL      string
	MongoDatabase string
	DatabaseURL   string

	EnableAuth         bool
	JWTSecret          string
	RateLimitPerMin    int
	CORSAllowedOrigins []string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
// Values from .env and .env.local are used only when the variable is not already set.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env", ".env.local")

	cfg := &Config{
		AppEnv:  getEnv("APP_ENV", "development"),
		Port:    getEnv("PORT", "8085"),
		DataDir: getEnv("DATA_DIR", "./data"),

		AliyunAPIKey:          strings.TrimSpace(os.Getenv("ALIYUN_API_KEY")),
		AliyunAPIURL:          getEnv("ALIYUN_API_URL", "https://dashscope.aliyuncs.com/api/v1"),
		AliyunSupportedModels: getEnvList("ALIYUN_SUPPORTED_MODELS", "wanx2.1-t2i-turbo,wanx2.1-t2i-plus,wanx2.0-t2i-turbo"),

		LiblibAccessKey:       strings.TrimSpace(os.Getenv("LIBLIBAI_ACCESS_KEY")),
		LiblibSecretKey:       strings.TrimSpace(os.Getenv("LIBLIBAI_SECRET_KEY")),
		LiblibAPIURL:          getEnv("LIBLIBAI_API_URL", "https://openapi.liblibai.cloud"),
		LiblibSupportedModels: getEnvList("LIBLIBAI_SUPPORTED_MODELS", "star-3-alpha-t2i,star-3-alpha-i2i,liblib-custom"),

		PollInterval:        time.Second * time.Duration(getEnvInt("POLL_INTERVAL_SECONDS", 15)),
		PollMaxAttempts:     getEnvInt("POLL_MAX_ATTEMPTS", 120),
		SubmitTimeout:       time.Second * time.Duration(getEnvInt("SUBMIT_TIMEOUT_SECONDS", 120)),
		PollTimeout:         time.Second * time.Duration(getEnvInt("POLL_TIMEOUT_SECONDS", 30)),
		DownloadTimeout:     time.Second * time.Duration(getEnvInt("DOWNLOAD_TIMEOUT_SECONDS", 30)),
		DownloadConcurrency: getEnvInt("DOWNLOAD_CONCURRENCY", 4),

		RedisURL:          getEnv("REDIS_URL", "redis://localhost:6379/0"),
		TaskQueueKey:      getEnv("TASK_QUEUE_KEY", "imageservice:tasks"),
		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 4),
		WorkerMetricsAddr: os.Getenv("WORKER_METRICS_ADDR"),

		JobStore:      strings.ToLower(getEnv("JOB_STORE", "mongo")),
		MongoURL:      getEnv("MONGODB_URL", "mongodb://localhost:27017"),
		MongoDatabase: getEnv("MONGODB_DB_NAME", "image_service"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),

		EnableAuth:         getEnvBool("ENABLE_AUTH", false),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		CORSAllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 0)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	switch cfg.JobStore {
	case "mongo":
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when JOB_STORE=postgres")
		}
	default:
		return nil, fmt.Errorf("JOB_STORE must be mongo or postgres, got %q", cfg.JobStore)
	}

	if cfg.EnableAuth && cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required when ENABLE_AUTH is set")
	}

	if cfg.PollMaxAttempts <= 0 {
		return nil, fmt.Errorf("POLL_MAX_ATTEMPTS must be positive")
	}

	// A synchronous generate holds its response for the whole job.
	if cfg.HTTPWriteTimeout <= 0 {
		cfg.HTTPWriteTimeout = cfg.SyncJobBudget() + 30*time.Second
	}

	return cfg, nil
}

// SyncJobBudget is how long one generation can run end to end: the
// submission, every poll interval and one download round.
func (c *Config) SyncJobBudget() time.Duration {
	return c.SubmitTimeout + time.Duration(c.PollMaxAttempts)*c.PollInterval + c.DownloadTimeout
}

// SupportedModels returns the configured model list for a provider.
func (c *Config) SupportedModels(provider string) []string {
	switch provider {
	case ProviderAliyun:
		return c.AliyunSupportedModels
	case ProviderLiblibAI:
		return c.LiblibSupportedModels
	default:
		return nil
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvList(key, fallback string) []string {
	return splitList(getEnv(key, fallback))
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
