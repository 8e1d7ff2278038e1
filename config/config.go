// Package config defines the taskboard server configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

// Config is the top-level taskboard configuration.
type Config struct {
	Server   ServerConfig `json:"server" yaml:"server"`
	Auth     AuthConfig   `json:"auth" yaml:"auth"`
	Store    StoreConfig  `json:"store" yaml:"store"`
	LogLevel string       `json:"log_level" yaml:"log_level"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Addr       string `json:"addr" yaml:"addr"`               // listen address, e.g., ":3000"
	CORSOrigin string `json:"cors_origin" yaml:"cors_origin"` // empty disables CORS headers
}

// AuthConfig controls credential issuance and which routes need one.
type AuthConfig struct {
	JWTSecret     string        `json:"jwt_secret" yaml:"jwt_secret"`
	TokenTTL      time.Duration `json:"token_ttl" yaml:"token_ttl"`
	BcryptCost    int           `json:"bcrypt_cost" yaml:"bcrypt_cost"`
	RequireForAPI bool          `json:"require_for_api" yaml:"require_for_api"`
}

// StoreConfig selects and locates the entity store.
type StoreConfig struct {
	Driver   string `json:"driver" yaml:"driver"`
	Path     string `json:"path" yaml:"path"` // sqlite file
	MongoURI string `json:"mongo_uri" yaml:"mongo_uri"`
	Database string `json:"database" yaml:"database"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:       ":3000",
			CORSOrigin: "*",
		},
		Auth: AuthConfig{
			TokenTTL:   24 * time.Hour,
			BcryptCost: 10,
		},
		Store: StoreConfig{
			Driver:   DriverSQLite,
			Path:     "./data/taskboard.db",
			Database: "taskboard",
		},
		LogLevel: "info",
	}
}

// Load reads a YAML config file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadEnv loads envFile (if present) into the process environment and then
// overlays the recognised variables onto cfg. Variables already set in the
// environment win over the file.
func (c *Config) LoadEnv(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	if port := os.Getenv("PORT"); port != "" {
		c.Server.Addr = ":" + strings.TrimPrefix(port, ":")
	}
	if uri := os.Getenv("MONGODB"); uri != "" {
		c.Store.MongoURI = uri
		if os.Getenv("TASKBOARD_STORE") == "" {
			c.Store.Driver = DriverMongo
		}
	}
	if v := os.Getenv("TASKBOARD_STORE"); v != "" {
		c.Store.Driver = v
	}
	if v := os.Getenv("TASKBOARD_DB_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("TASKBOARD_JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("TASKBOARD_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	return nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.Path == "" {
			return errors.New("store.path is required for the sqlite driver")
		}
	case DriverMongo:
		if c.Store.MongoURI == "" {
			return errors.New("store.mongo_uri is required for the mongo driver")
		}
		if c.Store.Database == "" {
			return errors.New("store.database is required for the mongo driver")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("auth.token_ttl must be positive")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps a log_level string to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}
