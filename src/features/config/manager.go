package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

const redacted = "<redacted>"

// Manager gives concurrent read access to the loaded configuration.
type Manager struct {
	mu     sync.RWMutex
	config *Config
}

func NewManager(config *Config) *Manager {
	return &Manager{config: config}
}

// Get returns the current configuration. Callers must not modify it.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// EnsureDirectories creates the output directory and the directories holding
// the database, ledger and job logs.
func (m *Manager) EnsureDirectories() error {
	cfg := m.Get()
	dirs := []string{cfg.OutputPath, filepath.Dir(cfg.Database.Path), filepath.Dir(cfg.Ledger.Path)}
	if cfg.Jobs.Log && cfg.Jobs.LogPath != "" {
		dirs = append(dirs, cfg.Jobs.LogPath)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	slog.Debug("Directories ready", "dirs", dirs)
	return nil
}

// redactedCopy returns the configuration with secrets masked.
func (m *Manager) redactedCopy() Config {
	cfg := *m.Get()
	if cfg.Telegram.Token != "" {
		cfg.Telegram.Token = redacted
	}
	return cfg
}

// GetJSON returns the redacted configuration as JSON.
func (m *Manager) GetJSON() string {
	out, err := json.MarshalIndent(m.redactedCopy(), "", "  ")
	if err != nil {
		slog.Error("Failed to marshal config to JSON", "error", err)
		return err.Error()
	}
	return string(out)
}

// GetYAML returns the redacted configuration as YAML.
func (m *Manager) GetYAML() string {
	out, err := yaml.Marshal(m.redactedCopy())
	if err != nil {
		slog.Error("Failed to marshal config to YAML", "error", err)
		return err.Error()
	}
	return string(out)
}

func writeYAML(path string, cfg *Config) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
