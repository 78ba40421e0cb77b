// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Source   SourceConfig
	Server   ServerConfig
	Database DatabaseConfig
	Logging  LoggingConfig
}

// SourceConfig describes the publication spreadsheet and where exports go.
type SourceConfig struct {
	// Path is the source file (default: publications.xlsx)
	Path string `env:"PUBSUM_SOURCE_PATH" default:"publications.xlsx"`

	// Type is the source file type: excel or bibtex (default: excel)
	Type string `env:"PUBSUM_SOURCE_TYPE" default:"excel"`

	// Sheet is the sheet to load (default: first sheet)
	Sheet string `env:"PUBSUM_SOURCE_SHEET"`

	// OutputDir is where filter results are exported (default: current directory)
	OutputDir string `env:"PUBSUM_OUTPUT_DIR" default:"."`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading a request (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing a response (default: 30s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"30s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 10s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"10s"`

	// RequestTimeout is the middleware timeout for requests (default: 30s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"30s"`
}

// DatabaseConfig holds the optional export archive connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string. Empty disables the archive.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 4)
	MaxConns int `env:"DB_MAX_CONNS" default:"4"`

	// MinConns is the minimum number of connections to keep open (default: 0)
	MinConns int `env:"DB_MIN_CONNS" default:"0"`

	// ArchiveTimeout bounds each archive write (default: 10s)
	ArchiveTimeout time.Duration `env:"ARCHIVE_TIMEOUT" default:"10s"`
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

// ArchiveEnabled reports whether exports should be archived to PostgreSQL.
func (c *DatabaseConfig) ArchiveEnabled() bool {
	return c.URL != ""
}
