// Package config loads inventory settings from environment variables.
// Every setting has a default except the database URL, which only the
// import command needs; the remaining values are validated on startup so a
// bad environment fails before any file is touched.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Inventory InventoryConfig
	Server    ServerConfig
	Database  DatabaseConfig
	Rate      RateLimitConfig
	Security  SecurityConfig
	Logging   LoggingConfig
}

// InventoryConfig holds record conversion and loading settings.
type InventoryConfig struct {
	// OutputDir is where convert writes record files (default: .)
	OutputDir string `env:"INVENTORY_OUTPUT_DIR" default:"."`

	// Extension is the record file suffix, including the dot (default: .yaml)
	Extension string `env:"INVENTORY_EXTENSION" default:".yaml"`

	// Workers bounds parallel row mapping and file parsing (default: 4)
	Workers int `env:"INVENTORY_WORKERS" default:"4"`

	// Overwrite replaces existing record files instead of failing (default: false)
	Overwrite bool `env:"INVENTORY_OVERWRITE" default:"false"`

	// MaxFileSize is the largest input spreadsheet accepted, in bytes (default: 100MB)
	MaxFileSize int64 `env:"INVENTORY_MAX_FILE_SIZE" default:"104857600"`
}

// ServerConfig holds HTTP server settings for the serve command.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" default:"8080"`

	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"30s"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`

	// ReloadInterval rereads the record directory periodically; 0 disables (default: 0)
	ReloadInterval time.Duration `env:"SERVER_RELOAD_INTERVAL" default:"0s"`
}

// DatabaseConfig holds PostgreSQL settings for the import command.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"1"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// RateLimitConfig holds per-client request limits for the HTTP API.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerSecond is the sustained rate per client IP (default: 10)
	RequestsPerSecond float64 `env:"RATE_LIMIT_REQUESTS_PER_SECOND" default:"10"`

	// Burst is the number of requests allowed above the sustained rate (default: 20)
	Burst int `env:"RATE_LIMIT_BURST" default:"20"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey protects mutating endpoints with an X-API-Key header (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeyHashes is a comma-separated list of bcrypt hashes of accepted keys
	APIKeyHashes []string `env:"API_KEY_HASHES"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
