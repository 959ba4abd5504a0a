package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all process configuration for the backtester
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
//
// Strategy parameters live in YAML (internal/strategyconfig), not here.
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production, test

	// Data
	DataDir        string // CSV/parquet root used by the file providers
	DataSource     string // csv, parquet, postgres
	StrategyConfig string // default strategy YAML path

	// Database (optional market-data source)
	Database DatabaseConfig

	// Redis (optional panel cache)
	Redis RedisConfig

	// External sources
	Sources SourcesConfig

	// Runs
	SweepParallelism int
	Schedule         string // cron spec for scheduled reruns

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
	CacheTTL time.Duration
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Enabled reports whether a database source is configured
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// SourcesConfig holds external reference-data endpoints
type SourcesConfig struct {
	SP500URL       string
	HTTPTimeout    time.Duration
	RequestsPerSec float64
	MaxRetries     int
}

var validEnvs = map[string]bool{
	"development": true,
	"staging":     true,
	"production":  true,
	"test":        true,
}

var validSources = map[string]bool{
	"csv":      true,
	"parquet":  true,
	"postgres": true,
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		DataDir:        getEnv("DATA_DIR", "data"),
		DataSource:     getEnv("DATA_SOURCE", "csv"),
		StrategyConfig: getEnv("STRATEGY_CONFIG", "configs/momentum.yaml"),

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
			CacheTTL: getEnvAsDuration("REDIS_CACHE_TTL", "6h"),
		},

		Sources: SourcesConfig{
			SP500URL:       getEnv("SP500_SOURCE_URL", "https://en.wikipedia.org/wiki/List_of_S%26P_500_companies"),
			HTTPTimeout:    getEnvAsDuration("HTTP_TIMEOUT", "30s"),
			RequestsPerSec: getEnvAsFloat("HTTP_REQUESTS_PER_SEC", 2),
			MaxRetries:     getEnvAsInt("HTTP_MAX_RETRIES", 3),
		},

		SweepParallelism: getEnvAsInt("SWEEP_PARALLELISM", 4),
		Schedule:         getEnv("BACKTEST_SCHEDULE", "0 30 18 * * MON-FRI"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if configuration values are consistent
func (c *Config) validate() error {
	if !validEnvs[c.Env] {
		return fmt.Errorf("ENV must be one of: development, staging, production, test")
	}

	if !validSources[c.DataSource] {
		return fmt.Errorf("DATA_SOURCE must be one of: csv, parquet, postgres")
	}

	// postgres source needs a connection string
	if c.DataSource == "postgres" && !c.Database.Enabled() {
		return fmt.Errorf("DATABASE_URL is required when DATA_SOURCE=postgres")
	}

	if c.SweepParallelism < 1 {
		return fmt.Errorf("SWEEP_PARALLELISM must be at least 1")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{".env"}

	// Also try relative to executable
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
