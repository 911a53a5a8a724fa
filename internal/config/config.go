package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration values
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Providers ProvidersConfig
	Payment   PaymentConfig
	Saga      SagaConfig
	Security  SecurityConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Env  string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// URL returns the database connection URL
func (c DatabaseConfig) URL() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + strconv.Itoa(c.Port) + "/" + c.DBName + "?sslmode=" + c.SSLMode + "&prepare_threshold=0"
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL      string
	PASSWORD string
}

// JWTConfig holds JWT configuration for operational endpoints
type JWTConfig struct {
	Secret        string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
}

// ProvidersConfig selects and configures the external service adapters.
// Mode is resolved exactly once at process start; nothing else in the tree
// inspects the environment to pick an implementation.
type ProvidersConfig struct {
	Mode string // "mock" or "live"

	IdentityBaseURL  string
	IdentityAPIKey   string
	BiometricBaseURL string
	BiometricAPIKey  string
	PaymentBaseURL   string
	PaymentAPIKey    string
	WebhookSecret    string
	AvatarBaseURL    string
	AvatarAPIKey     string
	DocumentBaseURL  string
	DocumentAPIKey   string
}

// PaymentConfig holds billing plan configuration
type PaymentConfig struct {
	PlanID string
}

// SagaConfig holds registration saga tuning knobs
type SagaConfig struct {
	// IntentLookback bounds the "recent payment intents" correlation
	// fallback; it is a tuning parameter, not a correctness constant.
	IntentLookback time.Duration
	// AdvanceRetries bounds retries of the conditional state write after a
	// lost race.
	AdvanceRetries int
	// JobMaxAttempts bounds redeliveries of the asset generation job.
	JobMaxAttempts int
	// JobPollTimeout is the blocking-pop timeout of the queue worker.
	JobPollTimeout time.Duration
}

// SecurityConfig holds operational access credentials. Only the bcrypt hash
// of the ops API key is ever configured; generate the pair with opskey-gen.
type SecurityConfig struct {
	OpsAPIKeyHash string
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Env:  getEnv("SERVER_ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "civitas"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", "redis://localhost:6379"),
			PASSWORD: getEnv("REDIS_PASSWORD", ""),
		},
		JWT: JWTConfig{
			Secret:        getEnv("JWT_SECRET", "change-this-in-production"),
			AccessExpiry:  getEnvAsDuration("JWT_ACCESS_EXPIRY", 15*time.Minute),
			RefreshExpiry: getEnvAsDuration("JWT_REFRESH_EXPIRY", 7*24*time.Hour),
		},
		Providers: ProvidersConfig{
			Mode:             getEnv("PROVIDERS_MODE", "mock"),
			IdentityBaseURL:  getEnv("IDENTITY_BASE_URL", "http://localhost:9099"),
			IdentityAPIKey:   getEnv("IDENTITY_API_KEY", ""),
			BiometricBaseURL: getEnv("BIOMETRIC_BASE_URL", "http://localhost:9100"),
			BiometricAPIKey:  getEnv("BIOMETRIC_API_KEY", ""),
			PaymentBaseURL:   getEnv("PAYMENT_BASE_URL", "http://localhost:9101"),
			PaymentAPIKey:    getEnv("PAYMENT_API_KEY", ""),
			WebhookSecret:    getEnv("PAYMENT_WEBHOOK_SECRET", ""),
			AvatarBaseURL:    getEnv("AVATAR_BASE_URL", "http://localhost:9102"),
			AvatarAPIKey:     getEnv("AVATAR_API_KEY", ""),
			DocumentBaseURL:  getEnv("DOCUMENT_BASE_URL", "http://localhost:9103"),
			DocumentAPIKey:   getEnv("DOCUMENT_API_KEY", ""),
		},
		Payment: PaymentConfig{
			PlanID: getEnv("PAYMENT_PLAN_ID", "plan_citizen_monthly"),
		},
		Saga: SagaConfig{
			IntentLookback: getEnvAsDuration("SAGA_INTENT_LOOKBACK", 24*time.Hour),
			AdvanceRetries: getEnvAsInt("SAGA_ADVANCE_RETRIES", 5),
			JobMaxAttempts: getEnvAsInt("SAGA_JOB_MAX_ATTEMPTS", 3),
			JobPollTimeout: getEnvAsDuration("SAGA_JOB_POLL_TIMEOUT", 5*time.Second),
		},
		Security: SecurityConfig{
			OpsAPIKeyHash: getEnv("OPS_API_KEY_HASH", ""),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
