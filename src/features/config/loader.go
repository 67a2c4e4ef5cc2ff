package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// envOverrides maps environment variables to the fields they replace.
var envOverrides = map[string]func(*Config, string){
	"TELEGRAM_TOKEN":        func(c *Config, v string) { c.Telegram.Token = v },
	"SOULFETCH_DB_PATH":     func(c *Config, v string) { c.Database.Path = v },
	"SOULFETCH_OUTPUT_PATH": func(c *Config, v string) { c.OutputPath = v },
	"SOULFETCH_LEDGER_PATH": func(c *Config, v string) { c.Ledger.Path = v },
	"SOULFETCH_YTDLP":       func(c *Config, v string) { c.YtDlp.Binary = v },
}

// Load reads the YAML configuration at path on top of the defaults, writing
// the defaults there first when the file does not exist. Environment
// overrides are applied before validation.
func Load(path string) (*Manager, error) {
	cfg := createDefaultConfig()

	f, err := os.Open(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		slog.Info("Config file not found, writing defaults", "path", path)
		if err := writeYAML(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	case err != nil:
		return nil, err
	default:
		err := yaml.NewDecoder(f).Decode(cfg)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	manager := NewManager(cfg)
	if err := manager.EnsureDirectories(); err != nil {
		return nil, err
	}
	return manager, nil
}

// Validate checks the struct tags of cfg.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// applyEnv overrides secrets and deployment paths from the environment.
// A .env file is loaded by main before this runs.
func applyEnv(cfg *Config) {
	for name, set := range envOverrides {
		if v := os.Getenv(name); v != "" {
			set(cfg, v)
		}
	}
}
