package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// Counter backends for ticket identifier sequences.
const (
	CounterBackendPostgres = "postgres"
	CounterBackendRedis    = "redis"
	CounterBackendMemory   = "memory"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Lifecycle    LifecycleConfig
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

// PostgresConfig holds DB connection values. An empty DSN selects the
// in-memory store.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// NotificationConfig configures email and web push delivery.
type NotificationConfig struct {
	EmailFrom       string
	ResendAPIKey    string
	PublicBaseURL   string
	VAPIDSubject    string
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	PushTTLSeconds  int
	QueueSize       int
	Workers         int
	DeliveryTimeout time.Duration
}

// EmailEnabled reports whether a real email provider is configured.
func (n NotificationConfig) EmailEnabled() bool {
	return n.ResendAPIKey != "" && n.EmailFrom != ""
}

// PushEnabled reports whether VAPID keys are configured.
func (n NotificationConfig) PushEnabled() bool {
	return n.VAPIDPublicKey != "" && n.VAPIDPrivateKey != ""
}

// LifecycleConfig tunes the ticket lifecycle engine.
type LifecycleConfig struct {
	BusinessLocation  *time.Location
	CounterBackend    string
	BulkTimeout       time.Duration
	BulkMaxIDs        int
	AllocationRetries int
	PolicyFile        string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	location, err := time.LoadLocation(getEnv("LIFECYCLE_TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid LIFECYCLE_TIMEZONE: %w", err)
	}

	dsn := os.Getenv("POSTGRES_DSN")
	defaultBackend := CounterBackendPostgres
	if dsn == "" {
		defaultBackend = CounterBackendMemory
	}
	backend := strings.ToLower(getEnv("LIFECYCLE_COUNTER_BACKEND", defaultBackend))
	switch backend {
	case CounterBackendPostgres, CounterBackendRedis, CounterBackendMemory:
	default:
		return nil, fmt.Errorf("invalid LIFECYCLE_COUNTER_BACKEND %q", backend)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "facility-desk"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            dsn,
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Notification: NotificationConfig{
			EmailFrom:       getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			ResendAPIKey:    os.Getenv("RESEND_API_KEY"),
			PublicBaseURL:   getEnv("PUBLIC_BASE_URL", "http://localhost:3000"),
			VAPIDSubject:    getEnv("VAPID_SUBJECT", "mailto:noreply@example.com"),
			VAPIDPublicKey:  os.Getenv("VAPID_PUBLIC_KEY"),
			VAPIDPrivateKey: os.Getenv("VAPID_PRIVATE_KEY"),
			PushTTLSeconds:  getEnvAsInt("PUSH_TTL_SECONDS", 86400),
			QueueSize:       getEnvAsInt("NOTIFY_QUEUE_SIZE", 256),
			Workers:         getEnvAsInt("NOTIFY_WORKERS", 4),
			DeliveryTimeout: time.Duration(getEnvAsInt("NOTIFY_DELIVERY_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		Lifecycle: LifecycleConfig{
			BusinessLocation:  location,
			CounterBackend:    backend,
			BulkTimeout:       time.Duration(getEnvAsInt("LIFECYCLE_BULK_TIMEOUT_SECONDS", 30)) * time.Second,
			BulkMaxIDs:        getEnvAsInt("LIFECYCLE_BULK_MAX_IDS", 100),
			AllocationRetries: getEnvAsInt("LIFECYCLE_ALLOCATION_RETRIES", 3),
			PolicyFile:        os.Getenv("LIFECYCLE_POLICY_FILE"),
		},
	}

	if backend == CounterBackendPostgres && dsn == "" {
		return nil, fmt.Errorf("LIFECYCLE_COUNTER_BACKEND=postgres requires POSTGRES_DSN")
	}
	if backend == CounterBackendRedis && cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("LIFECYCLE_COUNTER_BACKEND=redis requires REDIS_ADDR")
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
