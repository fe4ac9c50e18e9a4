package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Rabbit   RabbitConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Queue    QueueConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
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

// RabbitConfig holds message broker connection values. An empty URL
// disables broker publishing.
type RabbitConfig struct {
	URL           string
	Exchange      string
	RetryAttempts int
	RetryDelaySec int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// QueueConfig tunes the assignment engine and SLA policy.
type QueueConfig struct {
	AutoAssign            bool
	AcceptRetries         int
	DefaultMaxLoad        int
	PreserveWaitOnRequeue bool
	SLACriticalMinutes    int
	SLAHighMinutes        int
	SLAMediumMinutes      int
	SLALowMinutes         int
	PresenceTTLHours      int
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
			Name:                  getEnv("APP_NAME", "conversation-queue-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
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
		Rabbit: RabbitConfig{
			URL:           os.Getenv("RABBIT_URL"),
			Exchange:      getEnv("RABBIT_EXCHANGE", "queue.events"),
			RetryAttempts: getEnvAsInt("RABBIT_RETRY_ATTEMPTS", 5),
			RetryDelaySec: getEnvAsInt("RABBIT_RETRY_DELAY_SECONDS", 1),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Queue: QueueConfig{
			AutoAssign:            getEnvAsBool("QUEUE_AUTO_ASSIGN", false),
			AcceptRetries:         getEnvAsInt("QUEUE_ACCEPT_RETRIES", 3),
			DefaultMaxLoad:        getEnvAsInt("QUEUE_DEFAULT_MAX_LOAD", 5),
			PreserveWaitOnRequeue: getEnvAsBool("QUEUE_PRESERVE_WAIT_ON_REQUEUE", true),
			SLACriticalMinutes:    getEnvAsInt("QUEUE_SLA_CRITICAL_MINUTES", 5),
			SLAHighMinutes:        getEnvAsInt("QUEUE_SLA_HIGH_MINUTES", 15),
			SLAMediumMinutes:      getEnvAsInt("QUEUE_SLA_MEDIUM_MINUTES", 60),
			SLALowMinutes:         getEnvAsInt("QUEUE_SLA_LOW_MINUTES", 240),
			PresenceTTLHours:      getEnvAsInt("QUEUE_PRESENCE_TTL_HOURS", 24),
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

// RetryDelay returns the broker dial backoff base.
func (r RabbitConfig) RetryDelay() time.Duration {
	if r.RetryDelaySec <= 0 {
		return time.Second
	}
	return time.Duration(r.RetryDelaySec) * time.Second
}

// PresenceTTL returns how long agent presence keys live in Redis.
func (q QueueConfig) PresenceTTL() time.Duration {
	if q.PresenceTTLHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(q.PresenceTTLHours) * time.Hour
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
