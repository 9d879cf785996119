package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App       AppConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Logger    LoggerConfig
	Scheduler SchedulerConfig
	Channels  ChannelsConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	BaseURL               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// SchedulerConfig controls the escalation check loop.
type SchedulerConfig struct {
	CheckIntervalSeconds int
	LeaseKey             string
	LeaseTTLSeconds      int
}

// ChannelsConfig holds delivery channel credentials.
type ChannelsConfig struct {
	ResendAPIKey    string
	ResendAPIURL    string
	ResendFromEmail string
	TwilioSID       string
	TwilioToken     string
	TwilioFrom      string
	TwilioAPIURL    string
	SendTimeoutSec  int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "escalation-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "5032"),
			Version:               getEnv("APP_VERSION", "dev"),
			BaseURL:               strings.TrimRight(getEnv("APP_BASE_URL", "http://localhost:5032"), "/"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Scheduler: SchedulerConfig{
			CheckIntervalSeconds: getEnvAsInt("ESCALATION_CHECK_INTERVAL_SECONDS", 5),
			LeaseKey:             getEnv("ESCALATION_LEASE_KEY", "escalation:scheduler:lease"),
			LeaseTTLSeconds:      getEnvAsInt("ESCALATION_LEASE_TTL_SECONDS", 30),
		},
		Channels: ChannelsConfig{
			ResendAPIKey:    os.Getenv("RESEND_API_KEY"),
			ResendAPIURL:    getEnv("RESEND_API_URL", "https://api.resend.com/emails"),
			ResendFromEmail: getEnv("RESEND_FROM_EMAIL", "alerts@example.com"),
			TwilioSID:       os.Getenv("TWILIO_ACCOUNT_SID"),
			TwilioToken:     os.Getenv("TWILIO_AUTH_TOKEN"),
			TwilioFrom:      os.Getenv("TWILIO_FROM_NUMBER"),
			TwilioAPIURL:    getEnv("TWILIO_API_URL", "https://api.twilio.com"),
			SendTimeoutSec:  getEnvAsInt("CHANNEL_SEND_TIMEOUT_SECONDS", 10),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// CheckInterval returns the scheduler tick period.
func (s SchedulerConfig) CheckInterval() time.Duration {
	if s.CheckIntervalSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(s.CheckIntervalSeconds) * time.Second
}

// LeaseTTL returns the scheduler lease duration.
func (s SchedulerConfig) LeaseTTL() time.Duration {
	if s.LeaseTTLSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.LeaseTTLSeconds) * time.Second
}

// SendTimeout bounds a single channel delivery attempt.
func (c ChannelsConfig) SendTimeout() time.Duration {
	if c.SendTimeoutSec <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.SendTimeoutSec) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
