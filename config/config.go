// Package config defines the planner daemon configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/GoCodeAlone/planner/planner"
)

// SecretEnv overrides auth.jwt_secret when set.
const SecretEnv = "PLANNER_JWT_SECRET"

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Config is the top-level planner configuration.
type Config struct {
	Server   ServerConfig     `json:"server" yaml:"server"`
	Auth     AuthConfig       `json:"auth" yaml:"auth"`
	Store    StoreConfig      `json:"store" yaml:"store"`
	DataDir  string           `json:"data_dir" yaml:"data_dir"`
	LogLevel string           `json:"log_level" yaml:"log_level"`
	Settings planner.Settings `json:"settings" yaml:"settings"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"` // listen address, e.g., ":9090"
}

// AuthConfig controls session tokens and their persistence.
type AuthConfig struct {
	JWTSecret   string `json:"jwt_secret" yaml:"jwt_secret"`
	SessionTTL  string `json:"session_ttl" yaml:"session_ttl"`   // Go duration, e.g. "168h"
	SessionFile string `json:"session_file" yaml:"session_file"` // "" disables restore
}

// StoreConfig selects the task and account store.
type StoreConfig struct {
	Driver string `json:"driver" yaml:"driver"` // "sqlite" or "memory"
	Path   string `json:"path" yaml:"path"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":9090",
		},
		Auth: AuthConfig{
			SessionTTL:  "168h",
			SessionFile: "session.token",
		},
		Store: StoreConfig{
			Driver: DriverSQLite,
			Path:   "planner.db",
		},
		DataDir:  "./data",
		LogLevel: "info",
		Settings: planner.DefaultSettings(),
	}
}

// Load reads a YAML config file and returns the parsed configuration,
// with environment overrides applied and validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv applies environment overrides.
func (c *Config) ApplyEnv() {
	if s := os.Getenv(SecretEnv); s != "" {
		c.Auth.JWTSecret = s
	}
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverSQLite, DriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if _, err := c.SessionTTL(); err != nil {
		return err
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// SessionTTL parses auth.session_ttl. Empty means zero, which lets the token
// issuer pick its default.
func (c *Config) SessionTTL() (time.Duration, error) {
	if c.Auth.SessionTTL == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Auth.SessionTTL)
	if err != nil {
		return 0, fmt.Errorf("session_ttl: %w", err)
	}
	return d, nil
}

// Level maps log_level to a slog level.
func (c *Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(strings.ToLower(c.LogLevel))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level: %w", err)
	}
	return lvl, nil
}

// StorePath is store.path resolved under data_dir.
func (c *Config) StorePath() string {
	return c.resolve(c.Store.Path)
}

// SessionPath is auth.session_file resolved under data_dir, or "" when
// session persistence is disabled.
func (c *Config) SessionPath() string {
	if c.Auth.SessionFile == "" {
		return ""
	}
	return c.resolve(c.Auth.SessionFile)
}

func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || c.DataDir == "" {
		return p
	}
	return filepath.Join(c.DataDir, p)
}
