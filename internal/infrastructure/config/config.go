package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 應用配置
type Config struct {
	App         AppConfig        `mapstructure:"app"`
	Server      ServerConfig     `mapstructure:"server"`
	Completion  CompletionConfig `mapstructure:"completion"`
	Nutrition   NutritionConfig  `mapstructure:"nutrition"`
	Image       ImageConfig      `mapstructure:"image"`
	Extraction  ExtractionConfig `mapstructure:"extraction"`
	Recommend   RecommendConfig  `mapstructure:"recommend"`
	Cache       CacheConfig      `mapstructure:"cache"`
	Redis       RedisConfig      `mapstructure:"redis"`
	RateLimit   RateLimitConfig  `mapstructure:"rate_limit"`
	Metrics     MetricsConfig    `mapstructure:"metrics"`
	DedupWindow time.Duration    `mapstructure:"dedup_window"`
	LogLevel    string           `mapstructure:"log_level"`
	LogDir      string           `mapstructure:"log_dir"`
}

// AppConfig 應用程式設定
type AppConfig struct {
	Env     string `mapstructure:"env"`
	Debug   bool   `mapstructure:"debug"`
	Version string `mapstructure:"version"`
	Name    string `mapstructure:"name"`
}

// ServerConfig 服務器配置
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
}

// CompletionConfig 對話補全服務設定（OpenAI 相容介面）
type CompletionConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	Model        string        `mapstructure:"model"`
	MaxTokens    int           `mapstructure:"max_tokens"`
	Temperature  float64       `mapstructure:"temperature"`
	Timeout      time.Duration `mapstructure:"timeout"`
	DishCount    int           `mapstructure:"dish_count"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

// NutritionConfig 營養查詢服務設定
type NutritionConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
	BaseBackoff time.Duration `mapstructure:"base_backoff"`
}

// ImageConfig 圖片查詢服務設定
type ImageConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	BaseURL   string        `mapstructure:"base_url"`
	AccessKey string        `mapstructure:"access_key"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// ExtractionConfig 菜色擷取重試設定
type ExtractionConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
}

// RecommendConfig 推薦流程設定
type RecommendConfig struct {
	Workers           int           `mapstructure:"workers"`
	SubmissionTimeout time.Duration `mapstructure:"submission_timeout"`
}

// CacheConfig 營養快取設定
type CacheConfig struct {
	Backend    string        `mapstructure:"backend"` // memory | redis
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

// RedisConfig Redis 連線設定
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// RateLimitConfig 速率限制配置
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// MetricsConfig 指標設定
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LoadConfig 載入設定
func LoadConfig() (*Config, error) {
	// .env 不存在時直接使用環境變數與預設值
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	// 設定環境變數前綴
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 綁定環境變量
	bindings := map[string]string{
		"completion.api_key":  "OPENAI_API_KEY",
		"completion.base_url": "OPENAI_BASE_URL",
		"completion.model":    "OPENAI_MODEL",
		"nutrition.api_key":   "NUTRITION_API_KEY",
		"nutrition.base_url":  "NUTRITION_BASE_URL",
		"image.access_key":    "UNSPLASH_ACCESS_KEY",
		"cache.backend":       "CACHE_BACKEND",
		"redis.addr":          "REDIS_ADDR",
		"redis.password":      "REDIS_PASSWORD",
		"rate_limit.enabled":  "RATE_LIMIT_ENABLED",
		"rate_limit.requests": "RATE_LIMIT_REQUESTS",
		"rate_limit.window":   "RATE_LIMIT_WINDOW",
		"dedup_window":        "DEDUP_WINDOW",
		"log_level":           "LOG_LEVEL",
		"log_dir":             "LOG_DIR",
		"server.port":         "PORT",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, "APP_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("failed to bind env %s: %w", env, err)
		}
	}

	// 解析設定
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 沒有圖片金鑰時關閉圖片查詢
	if config.Image.AccessKey == "" {
		config.Image.Enabled = false
	}

	// 驗證必要設定
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// setDefaults 設定預設值
func setDefaults(v *viper.Viper) {
	// 應用程式設定
	v.SetDefault("app.env", "development")
	v.SetDefault("app.debug", true)
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.name", "dish-recommender")

	// 伺服器設定
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "0s") // SSE 長連線
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.max_body_bytes", 64<<10)

	// 對話補全設定
	v.SetDefault("completion.base_url", "https://api.openai.com/v1")
	v.SetDefault("completion.model", "gpt-3.5-turbo")
	v.SetDefault("completion.max_tokens", 1200)
	v.SetDefault("completion.temperature", 0.7)
	v.SetDefault("completion.timeout", "60s")
	v.SetDefault("completion.dish_count", 3)
	v.SetDefault("completion.max_retries", 3)
	v.SetDefault("completion.retry_backoff", "1s")

	// 營養查詢設定
	v.SetDefault("nutrition.base_url", "https://api.api-ninjas.com/v1")
	v.SetDefault("nutrition.timeout", "15s")
	v.SetDefault("nutrition.max_retries", 3)
	v.SetDefault("nutrition.base_backoff", "500ms")

	// 圖片查詢設定
	v.SetDefault("image.enabled", true)
	v.SetDefault("image.base_url", "https://api.unsplash.com")
	v.SetDefault("image.timeout", "10s")

	// 擷取重試
	v.SetDefault("extraction.max_attempts", 3)
	v.SetDefault("extraction.retry_delay", "0s")

	// 推薦流程
	v.SetDefault("recommend.workers", 6)
	v.SetDefault("recommend.submission_timeout", "3m")

	// 快取設定
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.session_ttl", "24h")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	// 限流設定
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests", 30)
	v.SetDefault("rate_limit.window", "1m")

	// 指標
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("dedup_window", "1s")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_dir", "logs")
}

// validateConfig 驗證設定
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 {
		return fmt.Errorf("server port is required")
	}
	if config.Completion.APIKey == "" {
		return fmt.Errorf("completion api key is required (OPENAI_API_KEY)")
	}
	if config.Completion.DishCount <= 0 {
		return fmt.Errorf("invalid completion dish count")
	}
	if config.Completion.MaxRetries < 0 || config.Nutrition.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative")
	}
	if config.Nutrition.APIKey == "" {
		return fmt.Errorf("nutrition api key is required (NUTRITION_API_KEY)")
	}
	if config.Extraction.MaxAttempts <= 0 {
		return fmt.Errorf("invalid extraction max attempts")
	}
	if config.Recommend.Workers <= 0 {
		return fmt.Errorf("invalid recommend workers")
	}

	switch config.Cache.Backend {
	case "memory":
	case "redis":
		if config.Redis.Addr == "" {
			return fmt.Errorf("redis addr is required when cache backend is redis")
		}
	default:
		return fmt.Errorf("unknown cache backend %q", config.Cache.Backend)
	}

	if config.RateLimit.Enabled && (config.RateLimit.Requests <= 0 || config.RateLimit.Window <= 0) {
		return fmt.Errorf("invalid rate limit settings")
	}

	return nil
}
