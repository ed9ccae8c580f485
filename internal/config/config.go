package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"      validate:"required"`
	Database    DatabaseConfig    `mapstructure:"database"    validate:"required"`
	Auth        AuthConfig        `mapstructure:"auth"        validate:"required"`
	Redis       RedisConfig       `mapstructure:"redis"       validate:"required"`
	Storage     StorageConfig     `mapstructure:"storage"     validate:"required"`
	LLM         LLMConfig         `mapstructure:"llm"         validate:"required"`
	Idempotency IdempotencyConfig `mapstructure:"idempotency" validate:"required"`
	Task        TaskConfig        `mapstructure:"task"        validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=32"`
}

// RedisConfig contains connection settings for the Redis instance backing
// the idempotency lock and response cache.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" validate:"required"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// StorageConfig contains settings for the object storage backend that
// holds uploaded document artifacts.
type StorageConfig struct {
	Endpoint  string `mapstructure:"endpoint"   validate:"required"`
	AccessKey string `mapstructure:"access_key" validate:"required"`
	SecretKey string `mapstructure:"secret_key" validate:"required"`
	Bucket    string `mapstructure:"bucket"     validate:"required"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// LLMConfig contains all LLM integration related settings.
type LLMConfig struct {
	GeminiAPIKey string `mapstructure:"gemini_api_key" validate:"required"`
	ModelName    string `mapstructure:"model_name"     validate:"required"`
}

// IdempotencyConfig controls request deduplication behavior.
// LockTTL bounds how long a concurrent duplicate is rejected with 409;
// CacheTTL bounds how long a completed response is replayed to duplicates.
type IdempotencyConfig struct {
	LockTTL  time.Duration `mapstructure:"lock_ttl"  validate:"required"`
	CacheTTL time.Duration `mapstructure:"cache_ttl" validate:"required"`
}

// TaskConfig controls the background task runner.
type TaskConfig struct {
	WorkerCount int `mapstructure:"worker_count" validate:"required,gt=0"`
	QueueSize   int `mapstructure:"queue_size"   validate:"required,gt=0"`
	// MaxAttempts is the retry ceiling for a failed task, counting the
	// first execution. A document whose pipeline still fails after
	// MaxAttempts runs stays FAILED until manual intervention.
	MaxAttempts int `mapstructure:"max_attempts" validate:"required,gt=0"`
	// RetryDelay is the fixed delay between retry attempts.
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}
