package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server struct {
		Port           string
		Env            string
		Timeout        time.Duration
		GRPCHealthPort string
	}

	// Database configuration
	Database struct {
		Host           string
		Port           string
		User           string
		Password       string
		Name           string
		SSLMode        string
		MaxConns       int
		ConnectTimeout time.Duration
		AcquireTimeout time.Duration
		QueryTimeout   time.Duration
	}

	// JWT configuration
	JWT struct {
		Secret string
		Expiry time.Duration
	}

	// Security configuration
	Security struct {
		RateLimit         float64
		RateLimitBurst    int
		RateLimitStore    string
		AllowedOrigins    []string
		TrustedProxies    []string
		MaxBodySize       int64
		TenantEntitlement string
	}

	// Redis configuration
	Redis struct {
		URL string
	}

	// Logging configuration
	Logging struct {
		Level  string
		Format string
	}

	// Query limits
	Query struct {
		DefaultLimit   int
		MaxLimit       int
		SearchLimit    int
		SearchMaxLimit int
	}

	// Observability settings
	Observability struct {
		TracesStdout      bool
		OpenAPISchemaPath string
	}

	// Realtime metrics push
	Realtime struct {
		PushInterval time.Duration
	}
}

var (
	instance *Config
	once     sync.Once
)

// New creates a new Config instance with values from environment variables
// Uses singleton pattern to ensure only one instance exists
func New() *Config {
	once.Do(func() {
		// Load .env file if exists
		godotenv.Load()

		instance = load()
	})

	return instance
}

// Get returns the singleton Config instance
func Get() *Config {
	if instance == nil {
		return New()
	}
	return instance
}

func load() *Config {
	cfg := &Config{}

	// Server config
	cfg.Server.Port = getEnvString("PORT", "8081")
	cfg.Server.Env = getEnvString("APP_ENV", "development")
	cfg.Server.Timeout = getEnvDuration("SERVER_TIMEOUT", 30*time.Second)
	cfg.Server.GRPCHealthPort = getEnvString("GRPC_HEALTH_PORT", "")

	// Database config
	cfg.Database.Host = getEnvString("DB_HOST", "localhost")
	cfg.Database.Port = getEnvString("DB_PORT", "5432")
	cfg.Database.User = getEnvString("DB_USER", "postgres")
	cfg.Database.Password = getEnvString("DB_PASSWORD", "postgres")
	cfg.Database.Name = getEnvString("DB_NAME", "conversation_analytics")
	cfg.Database.SSLMode = getEnvString("DB_SSL_MODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 20)
	cfg.Database.ConnectTimeout = getEnvDuration("DB_CONNECT_TIMEOUT", 2*time.Second)
	cfg.Database.AcquireTimeout = getEnvDuration("DB_ACQUIRE_TIMEOUT", 2*time.Second)
	cfg.Database.QueryTimeout = getEnvDuration("DB_QUERY_TIMEOUT", 10*time.Second)

	// JWT config
	cfg.JWT.Secret = getEnvString("JWT_SECRET", "")
	if cfg.JWT.Secret == "" && cfg.IsDevelopment() {
		cfg.JWT.Secret = DevJWTSecret
	}
	cfg.JWT.Expiry = getEnvDuration("JWT_EXPIRY", 24*time.Hour)

	// Security config
	cfg.Security.RateLimit = getEnvFloat("RATE_LIMIT", 20)
	cfg.Security.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 40)
	cfg.Security.RateLimitStore = getEnvString("RATE_LIMIT_STORE", "memory")
	cfg.Security.AllowedOrigins = getEnvStringSlice("ALLOWED_ORIGINS", []string{"*"})
	cfg.Security.TrustedProxies = getEnvStringSlice("TRUSTED_PROXIES", []string{"127.0.0.1"})
	cfg.Security.MaxBodySize = getEnvInt64("MAX_BODY_SIZE", 1<<20) // 1MB
	cfg.Security.TenantEntitlement = getEnvString("TENANT_ENTITLEMENT", "none")

	cfg.Redis.URL = getEnvString("REDIS_URL", "redis://localhost:6379/0")

	// Logging config
	cfg.Logging.Level = getEnvString("LOG_LEVEL", "info")
	cfg.Logging.Format = getEnvString("LOG_FORMAT", "json")

	// Query limits
	cfg.Query.DefaultLimit = getEnvInt("PAGINATION_DEFAULT_LIMIT", 20)
	cfg.Query.MaxLimit = getEnvInt("PAGINATION_MAX_LIMIT", 100)
	cfg.Query.SearchLimit = getEnvInt("SEARCH_DEFAULT_LIMIT", 10)
	cfg.Query.SearchMaxLimit = getEnvInt("SEARCH_MAX_LIMIT", 50)

	cfg.Observability.TracesStdout = getEnvBool("OTEL_TRACES_STDOUT", false)
	cfg.Observability.OpenAPISchemaPath = getEnvString("OPENAPI_SCHEMA_PATH", "")

	cfg.Realtime.PushInterval = getEnvDuration("REALTIME_PUSH_INTERVAL", 10*time.Second)

	return cfg
}

// DevJWTSecret signs credentials in development when JWT_SECRET is unset.
// It is rejected everywhere else.
const DevJWTSecret = "default-jwt-secret-do-not-use-in-production"

// ErrInsecureJWTSecret is returned by Validate for a missing or published secret
var ErrInsecureJWTSecret = errors.New("JWT_SECRET must be set outside development")

// Validate checks settings that must hold before serving traffic
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return ErrInsecureJWTSecret
	}
	if c.JWT.Secret == DevJWTSecret && !c.IsDevelopment() {
		return ErrInsecureJWTSecret
	}
	return nil
}

// IsDevelopment reports whether diagnostic detail may be exposed in responses
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// Helper functions to read environment variables with default values

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
