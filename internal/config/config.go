package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logging  LoggingConfig
	Azure    AzureConfig
	Engine   EngineConfig
	Worker   WorkerConfig
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	Environment     string
}

// DatabaseConfig contains database configuration
type DatabaseConfig struct {
	Path string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string
	Format     string // json or console
	OutputPath string
}

// AzureConfig contains the service principal credentials and tenant scoping
// for inventory and directory collection.
type AzureConfig struct {
	TenantID        string
	ClientID        string
	ClientSecret    string
	CustomerID      string
	SubscriptionIDs []string
	DirectoryTTL    time.Duration
}

// EngineConfig contains analyzer execution tuning.
type EngineConfig struct {
	MaxConcurrentAnalyzers int
	CategoryTimeout        time.Duration
	ScoringConfigPath      string
}

// WorkerConfig contains the background sweeper and scheduler configuration.
type WorkerConfig struct {
	SweepInterval time.Duration
	ScheduleSpec  string // cron expression, empty disables scheduled runs
	ScheduleType  string // assessment type for scheduled runs
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors as it's optional)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			Environment:     getEnv("ENVIRONMENT", "development"),
		},
		Database: DatabaseConfig{
			Path: getEnv("DB_PATH", "./azgovernor.db"),
		},
		Logging: LoggingConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			OutputPath: getEnv("LOG_OUTPUT", "stdout"),
		},
		Azure: AzureConfig{
			TenantID:        getEnv("AZURE_TENANT_ID", ""),
			ClientID:        getEnv("AZURE_CLIENT_ID", ""),
			ClientSecret:    getEnv("AZURE_CLIENT_SECRET", ""),
			CustomerID:      getEnv("CUSTOMER_ID", "default"),
			SubscriptionIDs: getEnvAsList("AZURE_SUBSCRIPTION_IDS"),
			DirectoryTTL:    getEnvAsDuration("AZURE_DIRECTORY_TTL", 15*time.Minute),
		},
		Engine: EngineConfig{
			MaxConcurrentAnalyzers: getEnvAsInt("ENGINE_MAX_CONCURRENT_ANALYZERS", 4),
			CategoryTimeout:        getEnvAsDuration("ENGINE_CATEGORY_TIMEOUT", 2*time.Minute),
			ScoringConfigPath:      getEnv("ENGINE_SCORING_CONFIG", ""),
		},
		Worker: WorkerConfig{
			SweepInterval: getEnvAsDuration("WORKER_SWEEP_INTERVAL", time.Minute),
			ScheduleSpec:  getEnv("WORKER_SCHEDULE_SPEC", ""),
			ScheduleType:  getEnv("WORKER_SCHEDULE_TYPE", "full"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("DB_PATH must not be empty")
	}

	if c.Engine.MaxConcurrentAnalyzers < 1 {
		return fmt.Errorf("ENGINE_MAX_CONCURRENT_ANALYZERS must be at least 1")
	}

	return nil
}

// Helper functions

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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(valueStr, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
