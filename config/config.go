package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig          `mapstructure:"server"`
	Database  DatabaseConfig        `mapstructure:"database"`
	Redis     RedisConfig           `mapstructure:"redis"`
	Auth      AuthConfig            `mapstructure:"auth"`
	JWT       JWTConfig             `mapstructure:"jwt"`
	Supabase  SupabaseConfig        `mapstructure:"supabase"`
	Ideogram  IdeogramConfig        `mapstructure:"ideogram"`
	Paddle    PaddleConfig          `mapstructure:"paddle"`
	Storage   StorageConfig         `mapstructure:"storage"`
	Email     EmailConfig           `mapstructure:"email"`
	CORS      CORSConfig            `mapstructure:"cors"`
	RateLimit RateLimitConfig       `mapstructure:"rate_limit"`
	Credits   CreditsConfig         `mapstructure:"credits"`
	Plans     map[string]PlanConfig `mapstructure:"plans"`
	Upload    UploadConfig          `mapstructure:"upload"`
	Reaper    ReaperConfig          `mapstructure:"reaper"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
	// 反向代理的 IP 或 CIDR，为空时不信任 X-Forwarded-For
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"` // mysql, postgres, sqlite
	DSN          string `mapstructure:"dsn"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	Password      string `mapstructure:"password"`
	DB            int    `mapstructure:"db"`
	PoolSize      int    `mapstructure:"pool_size"`
	StatusChannel string `mapstructure:"status_channel"`
}

// Enabled reports whether a Redis host is configured.
func (r RedisConfig) Enabled() bool {
	return r.Host != ""
}

type AuthConfig struct {
	Provider   string `mapstructure:"provider"` // local, supabase
	CookieName string `mapstructure:"cookie_name"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

type SupabaseConfig struct {
	URL        string `mapstructure:"url"`
	ServiceKey string `mapstructure:"service_key"`
}

type IdeogramConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
}

type PaddleConfig struct {
	APIKey        string `mapstructure:"api_key"`
	BaseURL       string `mapstructure:"base_url"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	// 签名时间戳允许的最大偏差，0 表示不校验
	WebhookTolerance time.Duration `mapstructure:"webhook_tolerance"`
}

type StorageConfig struct {
	Provider string    `mapstructure:"provider"` // "", oss, supabase
	Bucket   string    `mapstructure:"bucket"`
	Mirror   bool      `mapstructure:"mirror"` // 是否把生成结果转存到自己的存储
	OSS      OSSConfig `mapstructure:"oss"`
}

type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	BucketName      string `mapstructure:"bucket_name"`
	CDNDomain       string `mapstructure:"cdn_domain"`
}

type EmailConfig struct {
	SMTPHost string `mapstructure:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

type RateLimitConfig struct {
	Backend     string        `mapstructure:"backend"` // memory, redis
	Window      time.Duration `mapstructure:"window"`
	MaxRequests int           `mapstructure:"max_requests"`
}

type CreditsConfig struct {
	SignupBonus int `mapstructure:"signup_bonus"`
}

type PlanConfig struct {
	DisplayName   string  `mapstructure:"display_name"`
	Credits       int     `mapstructure:"credits"`
	Price         float64 `mapstructure:"price"`
	PaddlePriceID string  `mapstructure:"paddle_price_id"`
}

type UploadConfig struct {
	MaxSize          int64    `mapstructure:"max_size"` // 字节
	AllowedMimeTypes []string `mapstructure:"allowed_mime_types"`
}

type ReaperConfig struct {
	Interval   time.Duration `mapstructure:"interval"`
	StaleAfter time.Duration `mapstructure:"stale_after"`
}

// PlanByPriceID 根据 Paddle price id 查找套餐
func (c *Config) PlanByPriceID(priceID string) (string, PlanConfig, bool) {
	for name, plan := range c.Plans {
		if plan.PaddlePriceID != "" && plan.PaddlePriceID == priceID {
			return name, plan, true
		}
	}
	return "", PlanConfig{}, false
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.trusted_proxies", []string{})

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.username", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "seem")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 50)

	v.SetDefault("redis.host", "")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.status_channel", "generation_status")

	v.SetDefault("auth.provider", "local")
	v.SetDefault("auth.cookie_name", "seem_session")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expire_hours", 168)
	v.SetDefault("supabase.url", "")
	v.SetDefault("supabase.service_key", "")

	v.SetDefault("ideogram.api_key", "")
	v.SetDefault("ideogram.base_url", "https://api.ideogram.ai")
	v.SetDefault("ideogram.timeout", "60s")
	v.SetDefault("ideogram.requests_per_second", 0)

	v.SetDefault("paddle.api_key", "")
	v.SetDefault("paddle.base_url", "https://api.paddle.com")
	v.SetDefault("paddle.webhook_secret", "")
	v.SetDefault("paddle.webhook_tolerance", "5m")

	v.SetDefault("storage.provider", "")
	v.SetDefault("storage.bucket", "seem")
	v.SetDefault("storage.mirror", false)

	v.SetDefault("rate_limit.backend", "memory")
	v.SetDefault("rate_limit.window", "1m")
	v.SetDefault("rate_limit.max_requests", 10)

	v.SetDefault("credits.signup_bonus", 10)

	v.SetDefault("upload.max_size", 10<<20)
	v.SetDefault("upload.allowed_mime_types", []string{"image/jpeg", "image/png", "image/webp"})

	v.SetDefault("reaper.interval", "5m")
	v.SetDefault("reaper.stale_after", "15m")
}

func Load(configPath string) (*Config, error) {
	// .env 只用于本地开发，不存在时忽略
	_ = godotenv.Load()

	// 优先尝试读取 config.local.yaml（包含真实密钥，不提交到git）
	dir := filepath.Dir(configPath)
	localConfigPath := filepath.Join(dir, "config.local.yaml")
	if _, err := os.Stat(localConfigPath); err == nil {
		configPath = localConfigPath
	}

	v := viper.New()
	setDefaults(v)

	// 环境变量覆盖，例如 IDEOGRAM_API_KEY
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 校验必填项
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 {
		errs = append(errs, errors.New("server.port must be positive"))
	}
	for _, proxy := range c.Server.TrustedProxies {
		if net.ParseIP(proxy) == nil {
			if _, _, err := net.ParseCIDR(proxy); err != nil {
				errs = append(errs, fmt.Errorf("server.trusted_proxies: invalid address %q", proxy))
			}
		}
	}
	if c.Ideogram.APIKey == "" {
		errs = append(errs, errors.New("ideogram.api_key is required"))
	}
	// 没有密钥时任何人都能伪造回调
	if c.Paddle.WebhookSecret == "" {
		errs = append(errs, errors.New("paddle.webhook_secret is required"))
	}

	switch c.Auth.Provider {
	case "local":
		if c.JWT.Secret == "" {
			errs = append(errs, errors.New("jwt.secret is required for the local auth provider"))
		}
	case "supabase":
		if c.Supabase.URL == "" || c.Supabase.ServiceKey == "" {
			errs = append(errs, errors.New("supabase.url and supabase.service_key are required for the supabase auth provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown auth.provider %q", c.Auth.Provider))
	}

	switch c.RateLimit.Backend {
	case "memory":
	case "redis":
		if !c.Redis.Enabled() {
			errs = append(errs, errors.New("rate_limit.backend redis requires redis.host"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown rate_limit.backend %q", c.RateLimit.Backend))
	}
	if c.RateLimit.Window <= 0 || c.RateLimit.MaxRequests <= 0 {
		errs = append(errs, errors.New("rate_limit.window and rate_limit.max_requests must be positive"))
	}

	switch c.Storage.Provider {
	case "", "supabase":
	case "oss":
		if c.Storage.OSS.Endpoint == "" || c.Storage.OSS.BucketName == "" {
			errs = append(errs, errors.New("storage.oss.endpoint and storage.oss.bucket_name are required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.provider %q", c.Storage.Provider))
	}
	if c.Storage.Provider == "supabase" && (c.Supabase.URL == "" || c.Supabase.ServiceKey == "") {
		errs = append(errs, errors.New("storage.provider supabase requires supabase.url and supabase.service_key"))
	}

	return errors.Join(errs...)
}
