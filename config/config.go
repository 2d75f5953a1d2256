// Package config provides configuration management for the skill marketplace
// backend.
package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds the application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	DB       DBConfig       `koanf:"db"`
	Packages PackagesConfig `koanf:"packages"`
	Review   ReviewConfig   `koanf:"review"`
	Worker   WorkerConfig   `koanf:"worker"`
	OEMs     []OemSeed      `koanf:"oems"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	ListenAddr     string   `koanf:"listen_addr"`
	AllowedOrigins []string `koanf:"allowed_origins"` // CORS allowed origins (empty = same-origin only)
}

// DBConfig holds database configuration.
type DBConfig struct {
	Path string `koanf:"path"`
}

// PackagesConfig holds package blob storage configuration.
type PackagesConfig struct {
	Dir string `koanf:"dir"`
}

// ReviewConfig holds review workflow tuning.
type ReviewConfig struct {
	MaxResubmissions int `koanf:"max_resubmissions"` // 0 = unlimited changes_requested cycles.
}

// WorkerConfig holds the stranded-review sweeper configuration.
type WorkerConfig struct {
	Enabled       bool `koanf:"enabled"`
	SweepInterval int  `koanf:"sweep_interval"` // Minutes between sweeps (default: 5).
	StrandedAfter int  `koanf:"stranded_after"` // Minutes in platform_review before a submission counts as stranded (default: 10).
}

// OemSeed is an OEM organization registered at startup, together with the
// reviewer accounts acting on its behalf.
type OemSeed struct {
	ID        string         `koanf:"id"`
	Name      string         `koanf:"name"`
	Reviewers []ReviewerSeed `koanf:"reviewers"`
}

// ReviewerSeed is a user enrolled into an OEM's reviewer membership at
// startup.
type ReviewerSeed struct {
	ID    string `koanf:"id"`
	Email string `koanf:"email"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	// Load from config file if provided
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Load from environment variables (with SKILLHUB_ prefix)
	if err := k.Load(env.Provider("SKILLHUB_", "__", func(s string) string {
		return strings.ToLower(s)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Set defaults
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.DB.Path == "" {
		cfg.DB.Path = "skillhub.db"
	}
	if cfg.Packages.Dir == "" {
		cfg.Packages.Dir = "packages"
	}
	if cfg.Worker.SweepInterval == 0 {
		cfg.Worker.SweepInterval = 5 // 5 minutes
	}
	if cfg.Worker.StrandedAfter == 0 {
		cfg.Worker.StrandedAfter = 10 // 10 minutes
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Review.MaxResubmissions < 0 {
		return fmt.Errorf("review.max_resubmissions cannot be negative (got %d)", c.Review.MaxResubmissions)
	}

	for i, oem := range c.OEMs {
		if oem.ID == "" {
			return fmt.Errorf("oems[%d]: id cannot be empty", i)
		}
		if oem.Name == "" {
			return fmt.Errorf("oems[%d]: name cannot be empty", i)
		}
		for j, rev := range oem.Reviewers {
			if rev.ID == "" {
				return fmt.Errorf("oems[%d].reviewers[%d]: id cannot be empty", i, j)
			}
			if rev.Email == "" {
				return fmt.Errorf("oems[%d].reviewers[%d]: email cannot be empty", i, j)
			}
		}
	}

	if c.Worker.Enabled {
		if c.Worker.SweepInterval <= 0 {
			return fmt.Errorf("worker.sweep_interval must be positive (got %d)", c.Worker.SweepInterval)
		}
		if c.Worker.StrandedAfter <= 0 {
			return fmt.Errorf("worker.stranded_after must be positive (got %d)", c.Worker.StrandedAfter)
		}
	}

	return nil
}
