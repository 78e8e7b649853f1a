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
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	WhatsApp  WhatsAppConfig
	Delivery  DeliveryConfig
	Scheduler SchedulerConfig
	WebSocket WebSocketConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
	QRCode    QRCodeConfig
	Upload    UploadConfig
	Redis     RedisConfig
	Metrics   MetricsConfig
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Port         string
	Env          string
	Debug        bool
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig contains database connection configuration
type DatabaseConfig struct {
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// JWTConfig contains JWT authentication configuration.
// Authentication is disabled when Secret is empty.
type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience string
}

// WhatsAppConfig contains session lifecycle configuration
type WhatsAppConfig struct {
	AuthDir            string
	ReinitDelay        time.Duration
	CleanupDelay       time.Duration
	VerifyRecipients   bool
	DefaultCountryCode string
	RestoreOnStart     bool
}

// DeliveryConfig contains bulk delivery configuration
type DeliveryConfig struct {
	SendInterval time.Duration
	HistoryLimit int
}

// SchedulerConfig contains scheduled send configuration
type SchedulerConfig struct {
	Workers  int
	JobStore string
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	PingInterval    time.Duration
	PongTimeout     time.Duration
	WriteTimeout    time.Duration
	ReadBufferSize  int
	WriteBufferSize int
}

// CORSConfig contains CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	Burst             int
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// QRCodeConfig contains QR code generation configuration
type QRCodeConfig struct {
	Size          int
	RecoveryLevel string
}

// UploadConfig contains file upload configuration
type UploadConfig struct {
	MaxSize int64
}

// RedisConfig contains Redis configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
	JobsKey  string
}

// MetricsConfig contains metrics configuration
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("APP_PORT", "8080"),
			Env:          getEnv("APP_ENV", "production"),
			Debug:        getEnvBool("APP_DEBUG", false),
			ReadTimeout:  getEnvDuration("APP_READ_TIMEOUT", 30) * time.Second,
			WriteTimeout: getEnvDuration("APP_WRITE_TIMEOUT", 0) * time.Second,
			IdleTimeout:  getEnvDuration("APP_IDLE_TIMEOUT", 120) * time.Second,
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			Name:            getEnv("DB_NAME", "whatsapp_campaigns"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 50),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 3600) * time.Second,
		},
		JWT: JWTConfig{
			Secret:   getEnv("JWT_SECRET", ""),
			Issuer:   getEnv("JWT_ISSUER", ""),
			Audience: getEnv("JWT_AUDIENCE", "whatsapp-campaigns"),
		},
		WhatsApp: WhatsAppConfig{
			AuthDir:            getEnv("WA_AUTH_DIR", "./wa-auth"),
			ReinitDelay:        getEnvDuration("WA_REINIT_DELAY_MS", 5000) * time.Millisecond,
			CleanupDelay:       getEnvDuration("WA_CLEANUP_DELAY_MS", 2000) * time.Millisecond,
			VerifyRecipients:   getEnvBool("WA_VERIFY_RECIPIENTS", false),
			DefaultCountryCode: getEnv("WA_DEFAULT_COUNTRY_CODE", "91"),
			RestoreOnStart:     getEnvBool("WA_RESTORE_ON_START", true),
		},
		Delivery: DeliveryConfig{
			SendInterval: getEnvDuration("DELIVERY_SEND_INTERVAL_MS", 1000) * time.Millisecond,
			HistoryLimit: getEnvInt("CAMPAIGN_HISTORY_LIMIT", 50),
		},
		Scheduler: SchedulerConfig{
			Workers:  getEnvInt("SCHEDULER_WORKERS", 8),
			JobStore: getEnv("SCHEDULER_JOB_STORE", "memory"),
		},
		WebSocket: WebSocketConfig{
			PingInterval:    getEnvDuration("WS_PING_INTERVAL", 30) * time.Second,
			PongTimeout:     getEnvDuration("WS_PONG_TIMEOUT", 60) * time.Second,
			WriteTimeout:    getEnvDuration("WS_WRITE_TIMEOUT", 10) * time.Second,
			ReadBufferSize:  getEnvInt("WS_READ_BUFFER_SIZE", 1024),
			WriteBufferSize: getEnvInt("WS_WRITE_BUFFER_SIZE", 1024),
		},
		CORS: CORSConfig{
			AllowedOrigins:   getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowCredentials: getEnvBool("CORS_ALLOW_CREDENTIALS", false),
			MaxAge:           getEnvDuration("CORS_MAX_AGE", 43200) * time.Second,
		},
		RateLimit: RateLimitConfig{
			Enabled:           getEnvBool("RATE_LIMIT_ENABLED", true),
			RequestsPerMinute: getEnvInt("RATE_LIMIT_REQUESTS_PER_MINUTE", 120),
			Burst:             getEnvInt("RATE_LIMIT_BURST", 20),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		QRCode: QRCodeConfig{
			Size:          getEnvInt("QR_CODE_SIZE", 256),
			RecoveryLevel: getEnv("QR_CODE_RECOVERY_LEVEL", "medium"),
		},
		Upload: UploadConfig{
			MaxSize: getEnvInt64("MAX_UPLOAD_SIZE", 16777216), // 16MB
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", false),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			JobsKey:  getEnv("REDIS_JOBS_KEY", "campaigns:scheduled"),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnv("METRICS_PATH", "/metrics"),
		},
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("APP_PORT is required")
	}

	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}

	if c.WhatsApp.AuthDir == "" {
		return fmt.Errorf("WA_AUTH_DIR is required")
	}

	if c.WhatsApp.DefaultCountryCode != "" {
		if _, err := strconv.Atoi(c.WhatsApp.DefaultCountryCode); err != nil {
			return fmt.Errorf("WA_DEFAULT_COUNTRY_CODE must be numeric")
		}
	}

	if c.Delivery.SendInterval <= 0 {
		return fmt.Errorf("DELIVERY_SEND_INTERVAL_MS must be positive")
	}

	if c.Scheduler.Workers < 1 {
		return fmt.Errorf("SCHEDULER_WORKERS must be at least 1")
	}

	switch c.Scheduler.JobStore {
	case "memory":
	case "redis":
		if !c.Redis.Enabled {
			return fmt.Errorf("SCHEDULER_JOB_STORE=redis requires REDIS_ENABLED=true")
		}
	default:
		return fmt.Errorf("SCHEDULER_JOB_STORE must be memory or redis")
	}

	return nil
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Addr returns the Redis address
func (c *RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}

// Helper functions to get environment variables with defaults

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue int) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return time.Duration(parsed)
		}
	}
	return time.Duration(defaultValue)
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development" || c.Server.Env == "dev"
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production" || c.Server.Env == "prod"
}

// AuthEnabled reports whether bearer token authentication is active
func (c *Config) AuthEnabled() bool {
	return c.JWT.Secret != ""
}

// GetServerAddress returns the full server address
func (c *Config) GetServerAddress() string {
	return ":" + c.Server.Port
}
