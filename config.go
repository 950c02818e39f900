package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all server configuration. Values come from the environment
// (optionally seeded by a local .env file); a few flags in main override
// them for quick local runs.
type Config struct {
	// Transport
	Host       string `env:"CLUBCTHULU_HOST" envDefault:""`
	Port       int    `env:"CLUBCTHULU_PORT" envDefault:"25555"`
	BridgeAddr string `env:"CLUBCTHULU_BRIDGE_ADDR" envDefault:":8080"`
	// WTAddr is the WebTransport listen address. Empty disables the
	// listener.
	WTAddr string `env:"CLUBCTHULU_WT_ADDR" envDefault:""`

	// Storage
	DBPath string `env:"CLUBCTHULU_DB" envDefault:"clubcthulu.db"`

	// World
	WorldName   string `env:"CLUBCTHULU_WORLD" envDefault:"overworld"`
	WorldWidth  int    `env:"CLUBCTHULU_WORLD_WIDTH" envDefault:"64"`
	WorldHeight int    `env:"CLUBCTHULU_WORLD_HEIGHT" envDefault:"64"`
	ChunkWidth  int    `env:"CLUBCTHULU_CHUNK_WIDTH" envDefault:"400"`
	ChunkHeight int    `env:"CLUBCTHULU_CHUNK_HEIGHT" envDefault:"400"`
	TPS         int    `env:"CLUBCTHULU_TPS" envDefault:"20"`

	// Sessions
	DCTime time.Duration `env:"CLUBCTHULU_DC_TIME" envDefault:"5m"`

	// Observability
	StatsInterval time.Duration `env:"CLUBCTHULU_STATS_INTERVAL" envDefault:"30s"`
	Debug         bool          `env:"CLUBCTHULU_DEBUG" envDefault:"false"`
}

// LoadConfig reads configuration from a .env file (if present) and the
// environment, then validates it.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file, using environment only")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for out-of-range values.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("CLUBCTHULU_PORT must be 1-65535, got %d", c.Port)
	}
	if c.BridgeAddr == "" {
		return fmt.Errorf("CLUBCTHULU_BRIDGE_ADDR is required")
	}
	if c.DBPath == "" {
		return fmt.Errorf("CLUBCTHULU_DB is required")
	}
	if c.WorldName == "" {
		return fmt.Errorf("CLUBCTHULU_WORLD is required")
	}
	if c.WorldWidth < 1 || c.WorldHeight < 1 {
		return fmt.Errorf("world dimensions must be positive, got %dx%d", c.WorldWidth, c.WorldHeight)
	}
	if c.ChunkWidth < 1 || c.ChunkHeight < 1 {
		return fmt.Errorf("chunk dimensions must be positive, got %dx%d", c.ChunkWidth, c.ChunkHeight)
	}
	if c.TPS < 1 {
		return fmt.Errorf("CLUBCTHULU_TPS must be positive, got %d", c.TPS)
	}
	if c.DCTime <= 0 {
		return fmt.Errorf("CLUBCTHULU_DC_TIME must be positive, got %s", c.DCTime)
	}
	if c.StatsInterval <= 0 {
		return fmt.Errorf("CLUBCTHULU_STATS_INTERVAL must be positive, got %s", c.StatsInterval)
	}
	return nil
}

// LogConfig writes the effective configuration at debug level.
func (c *Config) LogConfig() {
	slog.Debug("configuration loaded",
		"host", c.Host,
		"port", c.Port,
		"bridge_addr", c.BridgeAddr,
		"wt_addr", c.WTAddr,
		"db", c.DBPath,
		"world", c.WorldName,
		"world_size", fmt.Sprintf("%dx%d", c.WorldWidth, c.WorldHeight),
		"chunk_size", fmt.Sprintf("%dx%d", c.ChunkWidth, c.ChunkHeight),
		"tps", c.TPS,
		"dc_time", c.DCTime,
		"stats_interval", c.StatsInterval,
		"debug", c.Debug)
}
