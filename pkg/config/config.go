package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the rebalancer.
// Every component receives the part it needs at construction; nothing reads the
// environment after Load returns.
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production
	HTTP HTTPConfig

	// Storage
	Database DatabaseConfig
	Redis    RedisConfig

	// External collaborators
	Broker  BrokerConfig
	DataAPI DataAPIConfig

	// Core components
	Rebalance RebalanceConfig
	Backtest  BacktestConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// HTTPConfig holds API server timeouts
type HTTPConfig struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration // backtests with chart rendering run inside one request
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL configuration.
// An empty URL disables the price and order stores.
type DatabaseConfig struct {
	URL string

	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Enabled reports whether a database URL was configured
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// BrokerConfig locates the Interactive Brokers Client Portal gateway
type BrokerConfig struct {
	Host        string
	Port        int
	ClientID    int
	AccountID   string
	InsecureTLS bool // the gateway ships a self-signed certificate
}

// BaseURL returns the gateway REST root
func (b BrokerConfig) BaseURL() string {
	return fmt.Sprintf("https://%s:%d/v1/api", b.Host, b.Port)
}

// DataAPIConfig holds the price/dividend provider (EODHD) settings
type DataAPIConfig struct {
	URL           string
	Key           string
	RatePerSecond float64
}

// RebalanceConfig holds live rebalancing policy
type RebalanceConfig struct {
	DefinitionPath   string
	Fractional       bool
	FractionalPlaces int32
	DryRun           bool
}

// BacktestConfig holds simulator defaults
type BacktestConfig struct {
	Notional   float64
	StepDays   int
	Benchmarks []string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		HTTP: HTTPConfig{
			ReadTimeout:     getEnvAsDuration("HTTP_READ_TIMEOUT", "15s"),
			WriteTimeout:    getEnvAsDuration("HTTP_WRITE_TIMEOUT", "2m"),
			IdleTimeout:     getEnvAsDuration("HTTP_IDLE_TIMEOUT", "60s"),
			ShutdownTimeout: getEnvAsDuration("HTTP_SHUTDOWN_TIMEOUT", "30s"),
		},

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Broker: BrokerConfig{
			Host:        getEnv("BROKER_HOST", "127.0.0.1"),
			Port:        getEnvAsInt("BROKER_PORT", 5000),
			ClientID:    getEnvAsInt("BROKER_CLIENT_ID", 1),
			AccountID:   getEnv("BROKER_ACCOUNT_ID", ""),
			InsecureTLS: getEnvAsBool("BROKER_INSECURE_TLS", true),
		},

		DataAPI: DataAPIConfig{
			URL:           getEnv("DATA_API_URL", "https://eodhd.com/api"),
			Key:           getEnv("DATA_API_KEY", ""),
			RatePerSecond: getEnvAsFloat("DATA_API_RATE", 5),
		},

		Rebalance: RebalanceConfig{
			DefinitionPath:   getEnv("PORTFOLIO_FILE", "portfolio.xlsx"),
			Fractional:       getEnvAsBool("REBALANCE_FRACTIONAL", false),
			FractionalPlaces: int32(getEnvAsInt("REBALANCE_FRACTIONAL_PLACES", 4)),
			DryRun:           getEnvAsBool("REBALANCE_DRY_RUN", true),
		},

		Backtest: BacktestConfig{
			Notional:   getEnvAsFloat("BACKTEST_NOTIONAL", 10_000),
			StepDays:   getEnvAsInt("BACKTEST_STEP_DAYS", 5),
			Benchmarks: getEnvAsList("BACKTEST_BENCHMARKS", []string{"SPY", "QQQ"}),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks that the loaded values are usable
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}
	if c.HTTP.ReadTimeout <= 0 || c.HTTP.WriteTimeout <= 0 || c.HTTP.ShutdownTimeout <= 0 {
		return fmt.Errorf("HTTP timeouts must be > 0")
	}
	if c.Broker.Port <= 0 || c.Broker.Port > 65535 {
		return fmt.Errorf("BROKER_PORT out of range: %d", c.Broker.Port)
	}
	if c.Rebalance.FractionalPlaces < 0 {
		return fmt.Errorf("REBALANCE_FRACTIONAL_PLACES must be >= 0")
	}
	if c.Backtest.StepDays <= 0 {
		return fmt.Errorf("BACKTEST_STEP_DAYS must be > 0")
	}
	if c.Backtest.Notional <= 0 {
		return fmt.Errorf("BACKTEST_NOTIONAL must be > 0")
	}
	if c.DataAPI.RatePerSecond <= 0 {
		return fmt.Errorf("DATA_API_RATE must be > 0")
	}

	return nil
}

// loadEnvFile tries to load .env from the usual locations
func loadEnvFile() {
	paths := []string{".env"}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	values := make([]string, 0)
	for _, v := range strings.Split(valueStr, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	return values
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
