// Package config contains everything related to configuration
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported storage backends.
const (
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config holds the application configuration.
type Config struct {
	User                 string
	StoreBackend         string
	DatabasePath         string
	BoltPath             string
	DataFile             string
	RedisAddr            string
	RedisPassword        string
	RedisDB              int
	NodeID               int64
	Location             *time.Location
	DesktopNotifications bool
	LogLevel             string
}

// Default values
const (
	defaultUser     = "default"
	defaultBackend  = BackendSQLite
	defaultRedis    = "localhost:6379"
	defaultLogLevel = "warn"
	maxNodeID       = 1023
)

// Load reads configuration from .env files and environment variables.
func Load() (*Config, error) {
	// Try loading .env from multiple locations
	for _, path := range getEnvPaths() {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			break
		}
	}

	cfg := &Config{
		User:                 getEnvString("PARKINFUSION_USER", defaultUser),
		StoreBackend:         strings.ToLower(getEnvString("STORE_BACKEND", defaultBackend)),
		DatabasePath:         getEnvString("DATABASE_PATH", getDefaultDataPath("parkinfusion.db")),
		BoltPath:             getEnvString("BOLT_PATH", getDefaultDataPath("parkinfusion.bolt")),
		DataFile:             getEnvString("DATA_FILE", getDefaultDataPath("parkinfusion.json")),
		RedisAddr:            getEnvString("REDIS_ADDR", defaultRedis),
		RedisPassword:        getEnvString("REDIS_PASSWORD", ""),
		RedisDB:              int(getEnvInt("REDIS_DB", 0)),
		NodeID:               getEnvInt("NODE_ID", 1),
		DesktopNotifications: getEnvBool("DESKTOP_NOTIFICATIONS", true),
		LogLevel:             getEnvString("LOG_LEVEL", defaultLogLevel),
		Location:             time.Local,
	}

	if tz := getEnvString("TIMEZONE", ""); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("invalid TIMEZONE %q: %w", tz, err)
		}
		cfg.Location = loc
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Ensure the data directory for the selected backend exists
	switch cfg.StoreBackend {
	case BackendSQLite:
		if err := ensureDir(filepath.Dir(cfg.DatabasePath)); err != nil {
			return nil, err
		}
	case BackendBolt:
		if err := ensureDir(filepath.Dir(cfg.BoltPath)); err != nil {
			return nil, err
		}
	case BackendFile:
		if err := ensureDir(filepath.Dir(cfg.DataFile)); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Validate checks the configuration for values the application cannot run with.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendSQLite, BackendBolt, BackendFile, BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("unsupported STORE_BACKEND %q", c.StoreBackend)
	}

	if strings.TrimSpace(c.User) == "" {
		return fmt.Errorf("PARKINFUSION_USER must not be empty")
	}

	if c.NodeID < 0 || c.NodeID > maxNodeID {
		return fmt.Errorf("NODE_ID must be between 0 and %d, got %d", maxNodeID, c.NodeID)
	}

	return nil
}

// getEnvPaths returns a list of paths to check for .env files.
func getEnvPaths() []string {
	var paths []string

	// Current directory
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".env"))
	}

	// Home directory locations
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", "parkinfusion", ".env"),
			filepath.Join(home, ".parkinfusion", ".env"),
		)
	}

	return paths
}

// getDefaultDataPath returns the default location of a data file.
func getDefaultDataPath(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return name
	}
	return filepath.Join(home, ".config", "parkinfusion", name)
}

// getEnvString retrieves a string environment variable or returns the default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns the default.
func getEnvInt(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns the default.
// Accepts the forms understood by strconv.ParseBool plus "yes"/"no".
func getEnvBool(key string, defaultValue bool) bool {
	value := strings.ToLower(os.Getenv(key))
	switch value {
	case "":
		return defaultValue
	case "yes", "on":
		return true
	case "no", "off":
		return false
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	return defaultValue
}

// ensureDir creates a directory and all parent directories if they don't exist.
func ensureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	return os.MkdirAll(path, 0o750)
}
