package configs

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/viper"
)

type Configs struct {
	DatabaseURL          string   `mapstructure:"DATABASE_URL"`
	DBDriver             string   `mapstructure:"DB_DRIVER"`
	DBHost               string   `mapstructure:"DB_HOST"`
	DBName               string   `mapstructure:"DB_NAME"`
	DBPort               string   `mapstructure:"DB_PORT"`
	DBUser               string   `mapstructure:"DB_USER"`
	DBPassword           string   `mapstructure:"DB_PASSWORD"`
	WebServerPort        string   `mapstructure:"WEB_SERVER_PORT"`
	PublicBaseURL        string   `mapstructure:"PUBLIC_BASE_URL"`
	AllowedOrigins       []string `mapstructure:"ALLOWED_ORIGINS"`
	SecureCookies        bool     `mapstructure:"SECURE_COOKIES"`
	JWTSecret            string   `mapstructure:"JWT_SECRET"`
	AccessTokenExp       int      `mapstructure:"ACCESS_TOKEN_EXP"`  // Default: 900 (15 min)
	RefreshTokenExp      int      `mapstructure:"REFRESH_TOKEN_EXP"` // Default: 604800 (7 days)
	RedisURL             string   `mapstructure:"REDIS_URL"`
	RedisHost            string   `mapstructure:"REDIS_HOST"`
	RedisPort            string   `mapstructure:"REDIS_PORT"`
	RedisPassword        string   `mapstructure:"REDIS_PASSWORD"`
	RedisDB              int      `mapstructure:"REDIS_DB"`
	N8NWebhookURL        string   `mapstructure:"N8N_WEBHOOK_URL"`
	N8NTimeoutSeconds    int      `mapstructure:"N8N_TIMEOUT_SECONDS"`
	SearchAPIKey         string   `mapstructure:"SEARCHAPI_KEY"`
	SearchAPIURL         string   `mapstructure:"SEARCHAPI_URL"`
	SearchAPIMinInterval int      `mapstructure:"SEARCHAPI_MIN_INTERVAL_MS"`
	GeminiAPIKey         string   `mapstructure:"GEMINI_API_KEY"`
	GeminiModel          string   `mapstructure:"GEMINI_MODEL"`
	CompareCacheTTL      int      `mapstructure:"COMPARE_CACHE_TTL"` // seconds
	CompareRateLimit     float64  `mapstructure:"COMPARE_RATE_LIMIT"`
	TrackingRateLimit    float64  `mapstructure:"TRACKING_RATE_LIMIT"`
	EmailProvider        string   `mapstructure:"EMAIL_PROVIDER"` // smtp | mailjet
	EmailFrom            string   `mapstructure:"EMAIL_FROM"`
	EmailFromName        string   `mapstructure:"EMAIL_FROM_NAME"`
	SMTPHost             string   `mapstructure:"SMTP_HOST"`
	SMTPPort             int      `mapstructure:"SMTP_PORT"`
	SMTPUser             string   `mapstructure:"SMTP_USER"`
	SMTPPass             string   `mapstructure:"SMTP_PASS"`
	MailjetAPIKey        string   `mapstructure:"MAILJET_API_KEY"`
	MailjetAPISecret     string   `mapstructure:"MAILJET_API_SECRET"`
	TwilioAccountSID     string   `mapstructure:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken      string   `mapstructure:"TWILIO_AUTH_TOKEN"`
	TwilioNumber         string   `mapstructure:"TWILIO_NUMBER"`
	CrawlerEnabled       bool     `mapstructure:"CRAWLER_ENABLED"`
	CrawlerWorkers       int      `mapstructure:"CRAWLER_WORKERS"`
	PriceRefreshCron     string   `mapstructure:"PRICE_REFRESH_CRON"` // 6 fields, with seconds
	WebhookRetryCron     string   `mapstructure:"WEBHOOK_RETRY_CRON"`
	WebhookWorkers       int      `mapstructure:"WEBHOOK_WORKERS"`
	WebhookMaxAttempts   int      `mapstructure:"WEBHOOK_MAX_ATTEMPTS"`
	DefaultCommissionBps int      `mapstructure:"DEFAULT_COMMISSION_BPS"`
	LogPath              string   `mapstructure:"LOG_PATH"`         // Path to log file (e.g., "/var/log/pricecompare.log")
	AlertRecipients      []string `mapstructure:"ALERT_RECIPIENTS"` // Email recipients for error alerts
}

// DSN prefers DATABASE_URL and falls back to the individual DB_* keys.
func (c *Configs) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("%s://%s:%s@%s:%s/%s", c.DBDriver, c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("WEB_SERVER_PORT", ":8080")
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:8080")
	v.SetDefault("ALLOWED_ORIGINS", []string{"http://localhost:3000"})

	// Set defaults for token expiration
	v.SetDefault("ACCESS_TOKEN_EXP", 900)     // 15 minutes
	v.SetDefault("REFRESH_TOKEN_EXP", 604800) // 7 days

	// Set defaults for Redis
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("N8N_TIMEOUT_SECONDS", 45)
	v.SetDefault("SEARCHAPI_URL", "https://www.searchapi.io/api/v1/search")
	v.SetDefault("SEARCHAPI_MIN_INTERVAL_MS", 1100)
	v.SetDefault("GEMINI_MODEL", "gemini-1.5-flash")
	v.SetDefault("COMPARE_CACHE_TTL", 3600)
	v.SetDefault("COMPARE_RATE_LIMIT", 0.5)
	v.SetDefault("TRACKING_RATE_LIMIT", 20)

	v.SetDefault("EMAIL_PROVIDER", "smtp")
	v.SetDefault("EMAIL_FROM_NAME", "PriceCompare")
	v.SetDefault("SMTP_PORT", 587)

	v.SetDefault("CRAWLER_ENABLED", false)
	v.SetDefault("CRAWLER_WORKERS", 3)

	// Every 6 hours for prices, every minute for webhook retries
	v.SetDefault("PRICE_REFRESH_CRON", "0 0 */6 * * *")
	v.SetDefault("WEBHOOK_RETRY_CRON", "0 * * * * *")
	v.SetDefault("WEBHOOK_WORKERS", 4)
	v.SetDefault("WEBHOOK_MAX_ATTEMPTS", 5)
	v.SetDefault("DEFAULT_COMMISSION_BPS", 500)

	// Set default for log path (empty means stdout only)
	v.SetDefault("LOG_PATH", "")
	v.SetDefault("ALERT_RECIPIENTS", []string{})
}

// LoadConfig reads <path>/.env when present and lets environment variables
// override every key.
func LoadConfig(path string) (*Configs, error) {
	v := viper.New()
	v.SetConfigType("env")
	v.SetConfigFile(strings.TrimRight(path, "/") + "/.env")
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// AutomaticEnv only applies to keys viper already knows about.
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	var cfg Configs
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.AllowedOrigins = splitList(cfg.AllowedOrigins)
	cfg.AlertRecipients = splitList(cfg.AlertRecipients)

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	return &cfg, nil
}

var envKeys = []string{
	"DATABASE_URL", "DB_HOST", "DB_NAME", "DB_PORT", "DB_USER", "DB_PASSWORD",
	"SECURE_COOKIES", "JWT_SECRET", "REDIS_URL",
	"N8N_WEBHOOK_URL", "SEARCHAPI_KEY", "GEMINI_API_KEY",
	"EMAIL_FROM", "SMTP_HOST", "SMTP_USER", "SMTP_PASS",
	"MAILJET_API_KEY", "MAILJET_API_SECRET",
	"TWILIO_ACCOUNT_SID", "TWILIO_AUTH_TOKEN", "TWILIO_NUMBER",
}

// splitList accepts both repeated values and a single comma separated value.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
