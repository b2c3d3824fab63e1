package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Store drivers understood by the bootstrap code.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds the application configuration.
type Config struct {
	HTTPAddr string
	AppEnv   string
	LogLevel string

	StoreDriver   string
	DatabaseURL   string
	SQLitePath    string
	RunMigrations bool

	RedisURL         string
	FanoutChannel    string
	InstanceID       string
	AsynqConcurrency int
	AsynqQueues      string

	MaxSessions        int
	MaxSessionsPerUser int
	ReplayBatchSize    int
	ProfileCacheTTL    time.Duration
}

// Load reads a .env file when present and then resolves every setting from
// the environment, falling back to local development defaults.
func Load() (*Config, error) {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	cfg := &Config{
		HTTPAddr:           envString("HTTP_ADDR", ":8080"),
		AppEnv:             envString("APP_ENV", "production"),
		LogLevel:           envString("LOG_LEVEL", "info"),
		StoreDriver:        strings.ToLower(envString("STORE_DRIVER", DriverPostgres)),
		DatabaseURL:        envString("DB_URL", ""),
		SQLitePath:         envString("SQLITE_PATH", "hirechat.db"),
		RedisURL:           envString("REDIS_URL", "redis://localhost:6379/0"),
		FanoutChannel:      envString("FANOUT_CHANNEL", "chat:delivery"),
		InstanceID:         envString("INSTANCE_ID", ""),
		AsynqQueues:        envString("ASYNQ_QUEUES", ""),
		AsynqConcurrency:   10,
		MaxSessions:        10000,
		MaxSessionsPerUser: 5,
		ReplayBatchSize:    200,
		ProfileCacheTTL:    5 * time.Minute,
	}

	var err error
	if cfg.RunMigrations, err = envBool("RUN_MIGRATIONS", true); err != nil {
		return nil, err
	}
	if cfg.AsynqConcurrency, err = envInt("ASYNQ_CONCURRENCY", cfg.AsynqConcurrency); err != nil {
		return nil, err
	}
	if cfg.MaxSessions, err = envInt("MAX_SESSIONS", cfg.MaxSessions); err != nil {
		return nil, err
	}
	if cfg.MaxSessionsPerUser, err = envInt("MAX_SESSIONS_PER_USER", cfg.MaxSessionsPerUser); err != nil {
		return nil, err
	}
	if cfg.ReplayBatchSize, err = envInt("REPLAY_BATCH_SIZE", cfg.ReplayBatchSize); err != nil {
		return nil, err
	}
	if cfg.ProfileCacheTTL, err = envDuration("PROFILE_CACHE_TTL", cfg.ProfileCacheTTL); err != nil {
		return nil, err
	}

	if cfg.InstanceID == "" {
		host, _ := os.Hostname()
		cfg.InstanceID = strings.Trim(host+"-"+uuid.NewString()[:8], "-")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: DB_URL is required when STORE_DRIVER=postgres")
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return errors.New("config: SQLITE_PATH is required when STORE_DRIVER=sqlite")
		}
	default:
		return fmt.Errorf("config: unsupported STORE_DRIVER %q", c.StoreDriver)
	}
	if c.RedisURL == "" {
		return errors.New("config: REDIS_URL is required")
	}
	if c.MaxSessions <= 0 || c.MaxSessionsPerUser <= 0 {
		return errors.New("config: session bounds must be positive")
	}
	if c.ReplayBatchSize <= 0 {
		return errors.New("config: REPLAY_BATCH_SIZE must be positive")
	}
	return nil
}

// IsDevelopment reports whether human-friendly logging should be used.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development" || c.AppEnv == "dev" || c.AppEnv == "local"
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return i, nil
}

func envBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: %s: %w", key, err)
	}
	return b, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}
