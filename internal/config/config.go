// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env        string
	LogLevel   string
	ServerPort string

	Store         string // postgres | memory
	LedgerBackend string // postgres | redis
	DeliveryMode  string // smtp | mock

	Database DatabaseConfig
	Redis    RedisConfig
	AMQP     AMQPConfig
	Dispatch DispatchConfig
	Quota    QuotaConfig
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN returns the lib/pq connection URL.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AMQPConfig is optional; an empty URL disables the broker.
type AMQPConfig struct {
	URL          string
	Exchange     string
	CommandQueue string
}

type DispatchConfig struct {
	Interval          time.Duration
	Workers           int
	UnitTimeout       time.Duration
	SlowThreshold     time.Duration
	SchedulerSpec     string
	SchedulerBatch    int
	RolloverSpec      string
	BreakerFailures   uint32
	BreakerOpenPeriod time.Duration
}

type QuotaConfig struct {
	AgentLimit   int
	ManagerLimit int
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	// .env is optional; OS environment wins either way
	_ = godotenv.Load()

	cfg := &Config{
		Env:           getEnv("ENV", "local"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		ServerPort:    getEnv("SERVER_PORT", "8080"),
		Store:         getEnv("STORE", "postgres"),
		LedgerBackend: getEnv("LEDGER_BACKEND", "postgres"),
		DeliveryMode:  getEnv("DELIVERY_MODE", "smtp"),
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "campaigns"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		AMQP: AMQPConfig{
			URL:          getEnv("AMQP_URL", ""),
			Exchange:     getEnv("AMQP_EXCHANGE", "campaign_events"),
			CommandQueue: getEnv("AMQP_COMMAND_QUEUE", "campaign_commands"),
		},
		Dispatch: DispatchConfig{
			SchedulerSpec: getEnv("SCHEDULER_SPEC", "@every 1m"),
			RolloverSpec:  getEnv("ROLLOVER_SPEC", "@midnight"),
		},
	}

	var err error
	if cfg.Redis.DB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.Dispatch.Interval, err = getDuration("DISPATCH_INTERVAL", 500*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.Dispatch.Workers, err = getInt("DISPATCH_WORKERS", 8); err != nil {
		return nil, err
	}
	if cfg.Dispatch.UnitTimeout, err = getDuration("DISPATCH_UNIT_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.Dispatch.SlowThreshold, err = getDuration("SLOW_SEND_THRESHOLD", 3*time.Second); err != nil {
		return nil, err
	}
	if cfg.Dispatch.SchedulerBatch, err = getInt("SCHEDULER_BATCH", 50); err != nil {
		return nil, err
	}
	failures, err := getInt("BREAKER_FAILURES", 5)
	if err != nil {
		return nil, err
	}
	cfg.Dispatch.BreakerFailures = uint32(failures)
	if cfg.Dispatch.BreakerOpenPeriod, err = getDuration("BREAKER_OPEN_PERIOD", time.Minute); err != nil {
		return nil, err
	}
	if cfg.Quota.AgentLimit, err = getInt("ROLE_LIMIT_AGENT", 100); err != nil {
		return nil, err
	}
	if cfg.Quota.ManagerLimit, err = getInt("ROLE_LIMIT_MANAGER", 1000); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store {
	case "postgres", "memory":
	default:
		return fmt.Errorf("invalid STORE %q", c.Store)
	}
	switch c.LedgerBackend {
	case "postgres", "redis":
	default:
		return fmt.Errorf("invalid LEDGER_BACKEND %q", c.LedgerBackend)
	}
	if c.Store == "memory" && c.LedgerBackend == "postgres" {
		// the memory store carries its own ledger
		c.LedgerBackend = "memory"
	}
	switch c.DeliveryMode {
	case "smtp", "mock":
	default:
		return fmt.Errorf("invalid DELIVERY_MODE %q", c.DeliveryMode)
	}
	if c.Dispatch.Interval <= 0 {
		return fmt.Errorf("DISPATCH_INTERVAL must be positive")
	}
	if c.Dispatch.Workers < 1 {
		return fmt.Errorf("DISPATCH_WORKERS must be at least 1")
	}
	if c.Dispatch.SchedulerBatch < 1 {
		return fmt.Errorf("SCHEDULER_BATCH must be at least 1")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
