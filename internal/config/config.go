package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Provider exposes read-only access to the application configuration.
// Components depend on this interface instead of the concrete Config so tests
// can supply their own values.
type Provider interface {
	GetServerAddr() string
	GetDBDriver() string
	GetDBDSN() string
	GetDBQueryTimeout() time.Duration
	GetDBExecuteTimeout() time.Duration
	GetJWTSecret() []byte
	GetJWTIssuer() string
	GetJWTTTL() time.Duration
	GetHubSendBuffer() int
	GetMaxMessageLength() int
	GetLogFormat() string
	GetLogLevel() string
}

const (
	defaultServerAddr       = ":8080"
	defaultDBDriver         = "postgres"
	defaultQueryTimeout     = 5 * time.Second
	defaultExecuteTimeout   = 10 * time.Second
	defaultJWTIssuer        = "evmarket"
	defaultJWTTTL           = 24 * time.Hour
	defaultHubSendBuffer    = 64
	defaultMaxMessageLength = 2000
)

// Config holds all configuration for the application.
type Config struct {
	ServerAddr       string
	DBDriver         string
	DBDSN            string
	DBQueryTimeout   time.Duration
	DBExecuteTimeout time.Duration
	JWTSecret        []byte
	JWTIssuer        string
	JWTTTL           time.Duration
	HubSendBuffer    int
	MaxMessageLength int
	LogFormat        string
	LogLevel         string
}

// New loads configuration from a .env file (when present) and the environment.
func New() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		ServerAddr:       getEnv("SERVER_ADDR", defaultServerAddr),
		DBDriver:         strings.ToLower(getEnv("DB_DRIVER", defaultDBDriver)),
		DBDSN:            os.Getenv("DB_DSN"),
		DBQueryTimeout:   getDuration("DB_QUERY_TIMEOUT", defaultQueryTimeout),
		DBExecuteTimeout: getDuration("DB_EXECUTE_TIMEOUT", defaultExecuteTimeout),
		JWTSecret:        []byte(os.Getenv("JWT_SECRET")),
		JWTIssuer:        getEnv("JWT_ISSUER", defaultJWTIssuer),
		JWTTTL:           getDuration("JWT_TTL", defaultJWTTTL),
		HubSendBuffer:    getInt("HUB_SEND_BUFFER", defaultHubSendBuffer),
		MaxMessageLength: getInt("CHAT_MAX_MESSAGE_LENGTH", defaultMaxMessageLength),
		LogFormat:        getEnv("LOG_FORMAT", "text"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first missing or malformed setting.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (want postgres or sqlite)", c.DBDriver)
	}
	if c.DBDSN == "" {
		return fmt.Errorf("required environment variable DB_DSN is not set")
	}
	if len(c.JWTSecret) == 0 {
		return fmt.Errorf("required environment variable JWT_SECRET is not set")
	}
	if c.DBQueryTimeout <= 0 || c.DBExecuteTimeout <= 0 {
		return fmt.Errorf("DB_QUERY_TIMEOUT and DB_EXECUTE_TIMEOUT must be positive durations")
	}
	if c.HubSendBuffer <= 0 {
		return fmt.Errorf("HUB_SEND_BUFFER must be positive, got %d", c.HubSendBuffer)
	}
	if c.MaxMessageLength <= 0 {
		return fmt.Errorf("CHAT_MAX_MESSAGE_LENGTH must be positive, got %d", c.MaxMessageLength)
	}
	return nil
}

func (c *Config) GetServerAddr() string              { return c.ServerAddr }
func (c *Config) GetDBDriver() string                { return c.DBDriver }
func (c *Config) GetDBDSN() string                   { return c.DBDSN }
func (c *Config) GetDBQueryTimeout() time.Duration   { return c.DBQueryTimeout }
func (c *Config) GetDBExecuteTimeout() time.Duration { return c.DBExecuteTimeout }
func (c *Config) GetJWTSecret() []byte               { return c.JWTSecret }
func (c *Config) GetJWTIssuer() string               { return c.JWTIssuer }
func (c *Config) GetJWTTTL() time.Duration           { return c.JWTTTL }
func (c *Config) GetHubSendBuffer() int              { return c.HubSendBuffer }
func (c *Config) GetMaxMessageLength() int           { return c.MaxMessageLength }
func (c *Config) GetLogFormat() string               { return c.LogFormat }
func (c *Config) GetLogLevel() string                { return c.LogLevel }

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("Invalid duration for %s (%q), using default %s", key, v, fallback)
		return fallback
	}
	return d
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Invalid integer for %s (%q), using default %d", key, v, fallback)
		return fallback
	}
	return n
}
