package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultHideAfterSeconds = 8
	DefaultDebounceMS       = 100
	DefaultSpoolFile        = "call-events.jsonl"
)

// Config represents the bubble configuration
type Config struct {
	Log    LogConfig    `yaml:"log"`
	Likely LikelyConfig `yaml:"likely"`
	Live   LiveConfig   `yaml:"live"`
	Import ImportConfig `yaml:"import"`
	Backup BackupConfig `yaml:"backup"`
}

// LogConfig holds logging level and format (text or json).
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LikelyConfig controls the likely-caller popup and heads-up notification.
type LikelyConfig struct {
	HideAfterSeconds int `yaml:"hide_after_seconds"`
	// NotifyCommand is run with the matched names as arguments when a
	// heads-up notification is requested. Empty means log only.
	NotifyCommand []string `yaml:"notify_command,omitempty"`
}

// LiveConfig controls the call-event spool watcher.
type LiveConfig struct {
	SpoolPath  string `yaml:"spool_path"`
	DebounceMS int    `yaml:"debounce_ms"`
	// BridgeCommand is the platform process that appends call events to the
	// spool. When set, watch keeps it running.
	BridgeCommand []string `yaml:"bridge_command,omitempty"`
}

// ImportConfig controls contact imports.
type ImportConfig struct {
	GogAccount            string `yaml:"gog_account,omitempty"`
	RequireEmailAgreement bool   `yaml:"require_email_agreement"`
}

// BackupConfig schedules periodic CSV exports. An empty schedule disables it.
type BackupConfig struct {
	Schedule string `yaml:"schedule,omitempty"`
	Dir      string `yaml:"dir,omitempty"`
	Full     bool   `yaml:"full"`
}

// HideAfter is the auto-clear delay of the likely popup.
func (c *Config) HideAfter() time.Duration {
	if c.Likely.HideAfterSeconds <= 0 {
		return DefaultHideAfterSeconds * time.Second
	}
	return time.Duration(c.Likely.HideAfterSeconds) * time.Second
}

// SpoolPath resolves the call-event spool file, defaulting into the data dir.
func (c *Config) SpoolPath() (string, error) {
	if c.Live.SpoolPath != "" {
		return os.ExpandEnv(c.Live.SpoolPath), nil
	}
	dataDir, err := GetDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, DefaultSpoolFile), nil
}

// BackupDir resolves the backup directory, defaulting into the data dir.
func (c *Config) BackupDir() (string, error) {
	if c.Backup.Dir != "" {
		return os.ExpandEnv(c.Backup.Dir), nil
	}
	dataDir, err := GetDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "backups"), nil
}

func defaults() Config {
	return Config{
		Log:    LogConfig{Level: "info", Format: "text"},
		Likely: LikelyConfig{HideAfterSeconds: DefaultHideAfterSeconds},
		Live:   LiveConfig{DebounceMS: DefaultDebounceMS},
	}
}

// GetConfigDir returns the XDG-compliant config directory
func GetConfigDir() (string, error) {
	// Explicit override (useful for tests and portable installs)
	if override := os.Getenv("BUBBLE_CONFIG_DIR"); override != "" {
		return override, nil
	}

	var base string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		base = xdg
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "bubble"), nil
}

// GetDataDir returns the platform-specific data directory
func GetDataDir() (string, error) {
	if override := os.Getenv("BUBBLE_DATA_DIR"); override != "" {
		return override, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Application Support", "Bubble"), nil
	}

	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "bubble"), nil
	}

	return filepath.Join(home, ".local", "share", "bubble"), nil
}

// Load loads config from the config file
func Load() (*Config, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return nil, err
	}

	configPath := filepath.Join(configDir, "config.yaml")

	cfg := defaults()
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Live.DebounceMS <= 0 {
		cfg.Live.DebounceMS = DefaultDebounceMS
	}

	return &cfg, nil
}

// Save saves the config to the config file
func (c *Config) Save() error {
	configDir, err := GetConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configPath := filepath.Join(configDir, "config.yaml")

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
