package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Auth     AuthConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Slack    SlackConfig
	Admin    AdminConfig
}

type AppConfig struct {
	Env                string
	Port               string
	LogLevel           string
	CORSAllowedOrigins []string
	// TrustedProxies may set X-Forwarded-For; empty means the socket peer is the client.
	TrustedProxies    []string
	AuthRatePerMinute int
}

// Production reports whether cookies must be marked Secure.
func (c AppConfig) Production() bool {
	return strings.EqualFold(c.Env, "production")
}

type PostgresConfig struct {
	DatabaseURL string
	Host        string
	Port        string
	User        string
	Password    string
	Database    string
	SSLMode     string
}

// AuthConfig mirrors the token settings {secret, refreshSecret, expiresIn, refreshExpiresIn}.
type AuthConfig struct {
	JWTSecret        string
	JWTRefreshSecret string
	JWTAccessTTL     string
	JWTRefreshTTL    string
	OTPTTL           string
	ResetTokenTTL    string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

type SlackConfig struct {
	BotToken  string
	ChannelID string
}

func (c SlackConfig) Enabled() bool {
	return c.BotToken != "" && c.ChannelID != ""
}

type AdminConfig struct {
	Email    string
	Password string
}

const DefaultAuthRatePerMinute = 30

func Load() Config {
	return Config{
		App: AppConfig{
			Env:                getenv("APP_ENV", "development"),
			Port:               getenv("PORT", "8080"),
			LogLevel:           getenv("LOG_LEVEL", "info"),
			CORSAllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
			TrustedProxies:     splitList(os.Getenv("TRUSTED_PROXIES")),
			AuthRatePerMinute:  getenvPositiveInt("AUTH_RATE_LIMIT_PER_MINUTE", DefaultAuthRatePerMinute),
		},
		Postgres: PostgresConfig{
			DatabaseURL: os.Getenv("DATABASE_URL"),
			Host:        getenv("PGHOST", "localhost"),
			Port:        getenv("PGPORT", "5432"),
			User:        os.Getenv("PGUSER"),
			Password:    os.Getenv("PGPASSWORD"),
			Database:    os.Getenv("PGDATABASE"),
			SSLMode:     getenv("PGSSLMODE", "disable"),
		},
		Auth: AuthConfig{
			JWTSecret:        os.Getenv("JWT_SECRET"),
			JWTRefreshSecret: os.Getenv("JWT_REFRESH_SECRET"),
			JWTAccessTTL:     getenv("JWT_EXPIRES_IN", "24h"),
			JWTRefreshTTL:    getenv("JWT_REFRESH_EXPIRES_IN", "7d"),
			OTPTTL:           getenv("OTP_TTL", "5m"),
			ResetTokenTTL:    getenv("RESET_TOKEN_TTL", "10m"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getenvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   getenv("KAFKA_TOPIC", "storefront.accounts"),
		},
		Slack: SlackConfig{
			BotToken:  os.Getenv("SLACK_BOT_TOKEN"),
			ChannelID: os.Getenv("SLACK_CHANNEL_ID"),
		},
		Admin: AdminConfig{
			Email:    os.Getenv("ADMIN_EMAIL"),
			Password: os.Getenv("ADMIN_PASSWORD"),
		},
	}
}

// ParseDuration understands Go durations plus a trailing "d" for days ("7d").
func ParseDuration(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty duration")
	}
	if days, ok := strings.CutSuffix(value, "d"); ok {
		n, err := strconv.ParseFloat(days, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", value, err)
		}
		return time.Duration(n * float64(24*time.Hour)), nil
	}
	return time.ParseDuration(value)
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}

// getenvPositiveInt falls back when the value is missing, malformed or not positive.
func getenvPositiveInt(key string, fallback int) int {
	n := getenvInt(key, fallback)
	if n <= 0 {
		return fallback
	}
	return n
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
