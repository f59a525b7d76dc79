// Package config loads the server's JSON configuration file: listen
// address, landscape source, tick rate, and optional persistence/admin
// overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// maxConfigFileBytes bounds how large a config file we will read, guarding
// against a misdirected path pointing at an arbitrary large file.
const maxConfigFileBytes = 1 << 20 // 1 MiB

// Config is the full set of server knobs. Pointer fields are optional
// overrides; a nil pointer means "use the Default() value".
type Config struct {
	ListenAddr      string `json:"listen_addr"`
	LandscapePath   string `json:"landscape_path"`
	LandscapeScale  float64 `json:"landscape_scale"`
	TileSize        float64 `json:"tile_size"`
	TickPeriod      time.Duration `json:"tick_period_ns"`

	AdminAddr *string `json:"admin_addr,omitempty"`
	DBPath    *string `json:"db_path,omitempty"`

	SpawnAttempts *int `json:"spawn_attempts,omitempty"`
}

// Default returns the hardcoded configuration used when no config file is
// given, and as the base tests build variations from.
func Default() *Config {
	return &Config{
		ListenAddr:     ":9000",
		LandscapePath:  "",
		LandscapeScale: 1.0,
		TileSize:       16.0,
		TickPeriod:     time.Microsecond * 1_000_000 / 1000, // 1000 µs: one tick per millisecond by default
	}
}

// AdminAddrOrDefault returns the configured admin HTTP address, or ":9090"
// if unset.
func (c *Config) AdminAddrOrDefault() string {
	if c.AdminAddr != nil {
		return *c.AdminAddr
	}
	return ":9090"
}

// SpawnAttemptsOrDefault returns the configured spawn-retry count, or 20.
func (c *Config) SpawnAttemptsOrDefault() int {
	if c.SpawnAttempts != nil {
		return *c.SpawnAttempts
	}
	return 20
}

// PersistenceEnabled reports whether a database path was configured.
func (c *Config) PersistenceEnabled() bool {
	return c.DBPath != nil && *c.DBPath != ""
}

// Load reads and validates a JSON configuration file, following the same
// extension/size checks the reference server's own config loader applies
// before unmarshalling.
func Load(path string) (*Config, error) {
	clean := filepath.Clean(path)
	if filepath.Ext(clean) != ".json" {
		return nil, fmt.Errorf("config: %s must have a .json extension", clean)
	}

	info, err := os.Stat(clean)
	if err != nil {
		return nil, fmt.Errorf("config: stat %s: %w", clean, err)
	}
	if info.Size() > maxConfigFileBytes {
		return nil, fmt.Errorf("config: %s is %d bytes, exceeds max of %d", clean, info.Size(), maxConfigFileBytes)
	}

	data, err := os.ReadFile(clean)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", clean, err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", clean, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", clean, err)
	}
	return cfg, nil
}

// Validate checks the fields that must hold for the server to start.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must not be empty")
	}
	if c.TileSize <= 0 {
		return fmt.Errorf("tile_size must be positive, got %v", c.TileSize)
	}
	if c.TickPeriod <= 0 {
		return fmt.Errorf("tick_period_ns must be positive")
	}
	return nil
}
