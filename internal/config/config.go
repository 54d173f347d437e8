package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	RedisURL    string   `mapstructure:"REDIS_URL"`
	JWTSecret   string   `mapstructure:"JWT_SECRET"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`

	// AI classifier service
	AIServiceURL          string  `mapstructure:"AI_SERVICE_URL"`
	AITimeoutSeconds      int     `mapstructure:"AI_TIMEOUT_SECONDS"`
	AIConfidenceThreshold float64 `mapstructure:"AI_CONFIDENCE_THRESHOLD"`

	// Referral triage
	UrgentScoreThreshold float64  `mapstructure:"URGENT_SCORE_THRESHOLD"`
	ReminderAfterHours   int      `mapstructure:"REMINDER_AFTER_HOURS"`
	BlockedSenderDomains []string `mapstructure:"BLOCKED_SENDER_DOMAINS"`

	// Notification delivery
	SMTPHost                 string `mapstructure:"SMTP_HOST"`
	SMTPPort                 int    `mapstructure:"SMTP_PORT"`
	SMTPFrom                 string `mapstructure:"SMTP_FROM"`
	NotificationMaxAttempts  int    `mapstructure:"NOTIFICATION_MAX_ATTEMPTS"`
	NotificationBaseDelaySec int    `mapstructure:"NOTIFICATION_BASE_DELAY_SEC"`
	NotificationMaxDelaySec  int    `mapstructure:"NOTIFICATION_MAX_DELAY_SEC"`
	DispatchIntervalSec      int    `mapstructure:"DISPATCH_INTERVAL_SEC"`

	MetricsCacheTTLSec int `mapstructure:"METRICS_CACHE_TTL_SEC"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("AI_TIMEOUT_SECONDS", 15)
	v.SetDefault("AI_CONFIDENCE_THRESHOLD", 0.7)
	v.SetDefault("URGENT_SCORE_THRESHOLD", 80)
	v.SetDefault("REMINDER_AFTER_HOURS", 24)
	v.SetDefault("BLOCKED_SENDER_DOMAINS", "gmail.com,hotmail.com,outlook.com,yahoo.com")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("NOTIFICATION_MAX_ATTEMPTS", 5)
	v.SetDefault("NOTIFICATION_BASE_DELAY_SEC", 60)
	v.SetDefault("NOTIFICATION_MAX_DELAY_SEC", 3600)
	v.SetDefault("DISPATCH_INTERVAL_SEC", 30)
	v.SetDefault("METRICS_CACHE_TTL_SEC", 300)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range []string{
		"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
		"REDIS_URL", "JWT_SECRET", "CORS_ORIGINS",
		"RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
		"AI_SERVICE_URL", "AI_TIMEOUT_SECONDS", "AI_CONFIDENCE_THRESHOLD",
		"URGENT_SCORE_THRESHOLD", "REMINDER_AFTER_HOURS", "BLOCKED_SENDER_DOMAINS",
		"SMTP_HOST", "SMTP_PORT", "SMTP_FROM",
		"NOTIFICATION_MAX_ATTEMPTS", "NOTIFICATION_BASE_DELAY_SEC",
		"NOTIFICATION_MAX_DELAY_SEC", "DISPATCH_INTERVAL_SEC",
		"METRICS_CACHE_TTL_SEC",
	} {
		v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}
	if cfg.BlockedSenderDomains == nil {
		if domains := v.GetString("BLOCKED_SENDER_DOMAINS"); domains != "" {
			cfg.BlockedSenderDomains = strings.Split(domains, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: DevAuthMiddleware is active — all requests get admin access.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Outside development
// a JWT secret is mandatory so that real authentication is enforced.
func (c *Config) Validate() error {
	if !c.IsDev() && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set when ENV is not development (current ENV=%q)", c.Env)
	}
	if c.NotificationMaxAttempts <= 0 {
		return fmt.Errorf("NOTIFICATION_MAX_ATTEMPTS must be positive, got %d", c.NotificationMaxAttempts)
	}
	if c.AIConfidenceThreshold < 0 || c.AIConfidenceThreshold > 1 {
		return fmt.Errorf("AI_CONFIDENCE_THRESHOLD must be in [0,1], got %v", c.AIConfidenceThreshold)
	}
	if c.UrgentScoreThreshold < 0 || c.UrgentScoreThreshold > 100 {
		return fmt.Errorf("URGENT_SCORE_THRESHOLD must be in [0,100], got %v", c.UrgentScoreThreshold)
	}
	return nil
}
