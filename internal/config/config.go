// Package config loads the omnifs server configuration: the format-time
// filesystem geometry, the seeded admin credentials, and the listen
// address, from a YAML file layered over built-in defaults.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FilesystemConfig mirrors the `[filesystem]` section of spec.md §6 and the
// geometry fields of original_source's Config struct.
type FilesystemConfig struct {
	TotalSize  uint64 `yaml:"total_size"`
	HeaderSize uint32 `yaml:"header_size"`
	BlockSize  uint32 `yaml:"block_size"`
	MaxUsers   uint32 `yaml:"max_users"`
	MaxEntries uint32 `yaml:"max_entries"`
}

// SecurityConfig mirrors the `[security]` section: the format-time admin
// account seeded by Format.
type SecurityConfig struct {
	AdminUsername string `yaml:"admin_username"`
	AdminPassword string `yaml:"admin_password"`
}

// ServerConfig mirrors the `[server]` section: the transport's listen
// address.
type ServerConfig struct {
	Port uint16 `yaml:"port"`
}

// Config is the top-level, typed configuration for both CLI entry points.
type Config struct {
	Filesystem FilesystemConfig `yaml:"filesystem"`
	Security   SecurityConfig   `yaml:"security"`
	Server     ServerConfig     `yaml:"server"`
}

// Default returns the built-in defaults, grounded on
// original_source/source/include/config.h's Config struct initializers.
// These are a base, not a fallback for a missing file — Load always reads
// path and fails if it cannot.
func Default() Config {
	return Config{
		Filesystem: FilesystemConfig{
			TotalSize:  104857600,
			HeaderSize: 512,
			BlockSize:  4096,
			MaxUsers:   50,
			MaxEntries: 1000,
		},
		Security: SecurityConfig{
			AdminUsername: "admin",
			AdminPassword: "admin123",
		},
		Server: ServerConfig{
			Port: 8080,
		},
	}
}

// Load reads path, unmarshals it over Default(), and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the invariants the operation engine assumes of its
// format-time parameters.
func (c Config) Validate() error {
	if c.Filesystem.BlockSize == 0 {
		return fmt.Errorf("config: filesystem.block_size must be > 0")
	}
	if c.Filesystem.MaxUsers == 0 {
		return fmt.Errorf("config: filesystem.max_users must be > 0")
	}
	if c.Filesystem.MaxEntries == 0 {
		return fmt.Errorf("config: filesystem.max_entries must be > 0")
	}
	if c.Filesystem.HeaderSize == 0 {
		return fmt.Errorf("config: filesystem.header_size must be > 0")
	}
	if c.Security.AdminUsername == "" {
		return fmt.Errorf("config: security.admin_username must be set")
	}
	if c.Server.Port == 0 {
		return fmt.Errorf("config: server.port must be > 0")
	}
	return nil
}
