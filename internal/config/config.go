package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/llm"
)

const (
	StorageFile     = "file"
	StoragePostgres = "postgres"

	SessionMemory = "memory"
	SessionRedis  = "redis"
)

type Config struct {
	HTTPPort string
	GRPCPort string
	LogLevel string

	StorageDriver string
	DataDir       string
	DB            db.Config

	SessionDriver string
	RedisAddr     string
	SessionWindow int
	SessionTTL    time.Duration

	KafkaBrokers string
	KafkaTopic   string

	GroqAPIKey  string
	GroqBaseURL string
	GroqModel   string
	GroqTimeout time.Duration

	ProcessingDelay time.Duration
	ShippingDelay   time.Duration
	ShutdownTimeout time.Duration
}

// LoadEnv reads the first .env found in the working directory or up to two parents, falling back
// to .example.env. It returns the loaded path, or "" when none exists.
func LoadEnv() string {
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}

	possiblePaths := []string{
		filepath.Join(wd, ".env"),
		filepath.Join(wd, "..", ".env"),
		filepath.Join(wd, "..", "..", ".env"),
	}

	for _, envPath := range possiblePaths {
		if err := godotenv.Load(envPath); err == nil {
			return envPath
		}
	}
	for _, envPath := range possiblePaths {
		examplePath := filepath.Join(filepath.Dir(envPath), ".example.env")
		if err := godotenv.Load(examplePath); err == nil {
			return examplePath
		}
	}
	return ""
}

// FromEnv builds the configuration from the process environment. Unset variables take their
// defaults; malformed ones are errors.
func FromEnv() (*Config, error) {
	var errs []error
	intVar := func(key string, def int) int {
		v, err := envInt(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	durationVar := func(key string, def time.Duration) time.Duration {
		v, err := envDuration(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	cfg := &Config{
		HTTPPort: env("HTTP_PORT", "3000"),
		GRPCPort: env("GRPC_PORT", "9090"),
		LogLevel: env("LOG_LEVEL", "info"),

		StorageDriver: env("STORAGE_DRIVER", StorageFile),
		DataDir:       env("DATA_DIR", "data"),
		DB: db.Config{
			Host:     env("DB_HOST", "localhost"),
			Port:     intVar("DB_PORT", 5432),
			User:     env("POSTGRES_USER", "postgres"),
			Password: env("POSTGRES_PASSWORD", ""),
			Name:     env("POSTGRES_DB", "quantumshop"),
		},

		SessionDriver: env("SESSION_DRIVER", SessionMemory),
		RedisAddr:     env("REDIS_ADDR", "localhost:6379"),
		SessionWindow: intVar("SESSION_WINDOW", 10),
		SessionTTL:    durationVar("SESSION_TTL", 24*time.Hour),

		KafkaBrokers: env("KAFKA_BROKERS", ""),
		KafkaTopic:   env("KAFKA_TOPIC", "order_events"),

		GroqAPIKey:  env("GROQ_API_KEY", ""),
		GroqBaseURL: env("GROQ_BASE_URL", llm.DefaultBaseURL),
		GroqModel:   env("GROQ_MODEL", llm.DefaultModel),
		GroqTimeout: durationVar("GROQ_TIMEOUT", 30*time.Second),

		ProcessingDelay: durationVar("ORDER_PROCESSING_DELAY", 5*time.Second),
		ShippingDelay:   durationVar("ORDER_SHIPPING_DELAY", 15*time.Second),
		ShutdownTimeout: durationVar("SHUTDOWN_TIMEOUT", 30*time.Second),
	}

	if cfg.StorageDriver != StorageFile && cfg.StorageDriver != StoragePostgres {
		errs = append(errs, fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", StorageFile, StoragePostgres, cfg.StorageDriver))
	}
	if cfg.SessionDriver != SessionMemory && cfg.SessionDriver != SessionRedis {
		errs = append(errs, fmt.Errorf("SESSION_DRIVER must be %q or %q, got %q", SessionMemory, SessionRedis, cfg.SessionDriver))
	}
	if cfg.SessionWindow <= 0 {
		errs = append(errs, fmt.Errorf("SESSION_WINDOW must be positive, got %d", cfg.SessionWindow))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return cfg, nil
}

func env(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := env(key, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := env(key, "")
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
