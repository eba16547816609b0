package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage backends
const (
	StorageMemory   = "memory"
	StorageDynamoDB = "dynamodb"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress   string
	Environment     string
	ShutdownTimeout time.Duration

	// AWS configuration
	AWSRegion      string
	DynamoDBTable  string
	IndexName      string // GSI1 - branches by graph
	EventBusName   string
	EventSource    string
	StorageBackend string

	// Lambda configuration
	IsLambda           bool
	LambdaFunctionName string

	// Logging
	LogLevel string

	// Versioning
	MaxVersions           int
	AutosaveNodeThreshold int
	AutosaveInterval      time.Duration
	RetentionPeriod       time.Duration

	// Caching and locking
	DiffCacheTTL time.Duration
	MergeLockTTL time.Duration

	// Feature flags
	EnableMetrics    bool
	EnableTracing    bool
	EnableCORS       bool
	AllowedOrigins   []string
	MetricsNamespace string

	// RateLimitPerMinute caps API requests per client IP; zero disables it
	RateLimitPerMinute int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerAddress:   getEnv("SERVER_ADDRESS", ":8080"),
		Environment:     getEnv("ENVIRONMENT", "development"),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),

		AWSRegion:      getEnv("AWS_REGION", "us-west-2"),
		DynamoDBTable:  getEnv("TABLE_NAME", getEnv("DYNAMODB_TABLE", "filon")),
		IndexName:      getEnv("INDEX_NAME", "GSI1"),
		EventBusName:   getEnv("EVENT_BUS_NAME", "filon-events"),
		EventSource:    getEnv("EVENT_SOURCE", "filon.snapshots"),
		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", StorageMemory)),

		IsLambda:           getEnvBool("IS_LAMBDA", os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""),
		LambdaFunctionName: getEnv("AWS_LAMBDA_FUNCTION_NAME", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		MaxVersions:           getEnvInt("MAX_VERSIONS", 50),
		AutosaveNodeThreshold: getEnvInt("AUTOSAVE_NODE_THRESHOLD", 10),
		AutosaveInterval:      getEnvDuration("AUTOSAVE_INTERVAL", 5*time.Minute),
		RetentionPeriod:       getEnvDuration("RETENTION_PERIOD", 30*24*time.Hour),

		DiffCacheTTL: getEnvDuration("DIFF_CACHE_TTL", 10*time.Minute),
		MergeLockTTL: getEnvDuration("MERGE_LOCK_TTL", 30*time.Second),

		EnableMetrics:    getEnvBool("ENABLE_METRICS", false),
		EnableTracing:    getEnvBool("ENABLE_TRACING", false),
		EnableCORS:       getEnvBool("ENABLE_CORS", true),
		AllowedOrigins:   getEnvList("ALLOWED_ORIGINS", []string{"*"}),
		MetricsNamespace: getEnv("METRICS_NAMESPACE", "Filon"),

		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 0),
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case StorageMemory, StorageDynamoDB:
	default:
		return fmt.Errorf("STORAGE_BACKEND must be %q or %q, got %q", StorageMemory, StorageDynamoDB, c.StorageBackend)
	}

	if c.StorageBackend == StorageDynamoDB && c.DynamoDBTable == "" {
		return fmt.Errorf("DYNAMODB_TABLE is required")
	}
	if c.RateLimitPerMinute < 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE cannot be negative")
	}
	if c.MergeLockTTL <= 0 {
		return fmt.Errorf("MERGE_LOCK_TTL must be positive")
	}

	if c.IsProduction() {
		if c.StorageBackend != StorageDynamoDB {
			return fmt.Errorf("STORAGE_BACKEND must be %q in production", StorageDynamoDB)
		}
		if c.EventBusName == "" {
			return fmt.Errorf("EVENT_BUS_NAME is required")
		}
	}

	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration reads a Go duration ("90s", "5m") or a plain number of
// seconds
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping blanks
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
