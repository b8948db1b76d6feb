// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package config loads and validates the passkey server configuration.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jeremyhahn/go-passkey/pkg/ceremony"
	"github.com/jeremyhahn/go-passkey/pkg/logging"
	"github.com/jeremyhahn/go-passkey/pkg/ratelimit"
	redisstorage "github.com/jeremyhahn/go-passkey/pkg/storage/redis"
)

// Backend names accepted by StorageConfig.Backend.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

// Config represents the complete server configuration
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Logging   logging.Config   `yaml:"logging"`
	Ceremony  ceremony.Config  `yaml:"ceremony"`
	Storage   StorageConfig    `yaml:"storage"`
	Auth      AuthConfig       `yaml:"auth"`
	RateLimit ratelimit.Config `yaml:"ratelimit"`
	Metrics   MetricsConfig    `yaml:"metrics"`
	Events    EventsConfig     `yaml:"events"`
}

// ServerConfig contains server-level settings
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StorageConfig selects and configures the persistence backend
type StorageConfig struct {
	// Backend is one of: memory, file, redis
	Backend string `yaml:"backend"`
	// Path is the data directory for the file backend
	Path string `yaml:"path"`
	// Redis configures the redis backend
	Redis *redisstorage.Config `yaml:"redis,omitempty"`
}

// AuthConfig controls session token issuance
type AuthConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig controls JWT session tokens
type JWTConfig struct {
	Secret    string        `yaml:"secret"`
	Issuer    string        `yaml:"issuer"`
	Audience  []string      `yaml:"audience"`
	ExpiresIn time.Duration `yaml:"expires_in"`
}

// MetricsConfig controls the Prometheus metrics endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// EventsConfig controls the ceremony outcome event bus
type EventsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DefaultConfig returns a configuration suitable for local development
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Logging: logging.DefaultConfig(),
		Ceremony: ceremony.Config{
			RPID:          "localhost",
			RPDisplayName: "go-passkey",
			RPOrigins:     []string{"http://localhost:8080"},
		},
		Storage: StorageConfig{
			Backend: BackendMemory,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Events: EventsConfig{
			Enabled: true,
		},
	}
}

// Load reads configuration from a YAML file and applies environment variable overrides
func Load(path string) (*Config, error) {
	// #nosec G304 - Config file path is provided by admin/user
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	ApplyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ApplyEnvOverrides applies environment variable overrides to the configuration
func ApplyEnvOverrides(cfg *Config) {
	// Server settings
	if host := os.Getenv("PASSKEY_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portStr := os.Getenv("PASSKEY_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			log.Printf("Warning: invalid PASSKEY_PORT value %q, using default %d: %v",
				portStr, cfg.Server.Port, err)
		} else if port < 1 || port > 65535 {
			log.Printf("Warning: invalid PASSKEY_PORT value %q (out of range 1-65535), using default %d",
				portStr, cfg.Server.Port)
		} else {
			cfg.Server.Port = port
		}
	}

	// Logging
	if level := os.Getenv("PASSKEY_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if format := os.Getenv("PASSKEY_LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}

	// Relying party
	if rpID := os.Getenv("PASSKEY_RP_ID"); rpID != "" {
		cfg.Ceremony.RPID = rpID
	}
	if origins := os.Getenv("PASSKEY_RP_ORIGINS"); origins != "" {
		cfg.Ceremony.RPOrigins = strings.Split(origins, ",")
	}

	// Storage
	if backend := os.Getenv("PASSKEY_STORAGE_BACKEND"); backend != "" {
		cfg.Storage.Backend = backend
	}
	if dataDir := os.Getenv("PASSKEY_DATA_DIR"); dataDir != "" {
		cfg.Storage.Path = dataDir
	}
	if redisAddr := os.Getenv("PASSKEY_REDIS_ADDR"); redisAddr != "" {
		if cfg.Storage.Redis == nil {
			cfg.Storage.Redis = &redisstorage.Config{}
		}
		cfg.Storage.Redis.Addr = redisAddr
	}
	if redisPassword := os.Getenv("PASSKEY_REDIS_PASSWORD"); redisPassword != "" && cfg.Storage.Redis != nil {
		cfg.Storage.Redis.Password = redisPassword
	}

	// Auth
	if secret := os.Getenv("PASSKEY_JWT_SECRET"); secret != "" {
		cfg.Auth.JWT.Secret = secret
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validFormats := map[string]bool{
		"json": true, "text": true,
	}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logging.Format)
	}

	if err := c.Ceremony.Validate(); err != nil {
		return fmt.Errorf("ceremony: %w", err)
	}

	switch c.Storage.Backend {
	case BackendMemory:
	case BackendFile:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage path is required for the file backend")
		}
	case BackendRedis:
		if c.Storage.Redis == nil || c.Storage.Redis.Addr == "" {
			return fmt.Errorf("redis address is required for the redis backend")
		}
	default:
		return fmt.Errorf("invalid storage backend: %s (must be memory, file, or redis)", c.Storage.Backend)
	}

	if c.Auth.JWT.Secret == "" {
		return fmt.Errorf("auth jwt secret must be specified")
	}

	return nil
}
