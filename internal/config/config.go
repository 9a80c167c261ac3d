// Package config loads and saves the engine configuration as JSON,
// merging file values over built-in defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Config represents the engine configuration
type Config struct {
	Cache    CacheConfig    `json:"cache"`
	Scroller ScrollerConfig `json:"scroller"`
	Remote   RemoteConfig   `json:"remote"`
}

// CacheConfig bounds the directory cache
type CacheConfig struct {
	MaxEntries              int   `json:"maxEntries"`
	TTLSeconds              int   `json:"ttlSeconds"`
	MaxMemoryBytes          int64 `json:"maxMemoryBytes"`
	BackgroundRefresh       bool  `json:"backgroundRefresh"`
	FrequentAccessThreshold int   `json:"frequentAccessThreshold"`
}

// TTL returns the entry lifetime as a duration.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// ScrollerConfig bounds the virtual scroller
type ScrollerConfig struct {
	ViewportSize      int  `json:"viewportSize"`
	BufferSize        int  `json:"bufferSize"`
	BatchSize         int  `json:"batchSize"`
	MaxLoadedItems    int  `json:"maxLoadedItems"`
	PredictiveLoading bool `json:"predictiveLoading"`
}

// RemoteConfig governs remote sessions and background work
type RemoteConfig struct {
	ConnectTimeoutSeconds int `json:"connectTimeoutSeconds"`
	IdleTimeoutSeconds    int `json:"idleTimeoutSeconds"`
	Workers               int `json:"workers"`
}

// ConnectTimeout returns the dial timeout as a duration.
func (c RemoteConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutSeconds) * time.Second
}

// IdleTimeout returns the session idle timeout as a duration.
func (c RemoteConfig) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutSeconds) * time.Second
}

// Manager provides configuration management functionality
type Manager struct {
	configPath string
}

// NewManager creates a configuration manager using the OS config path
func NewManager() *Manager {
	return &Manager{configPath: getConfigPath()}
}

// NewManagerWithPath creates a configuration manager for an explicit file
func NewManagerWithPath(path string) *Manager {
	return &Manager{configPath: path}
}

// Load loads configuration from file and merges with defaults
func (m *Manager) Load() (*Config, error) {
	config := getDefaultConfig()

	data, err := os.ReadFile(m.configPath)
	if err != nil {
		// No config file is fine, defaults apply.
		return config, nil
	}

	var file fileConfig
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	mergeConfigs(config, &file)
	return config, nil
}

// fileConfig mirrors Config with pointer booleans so an omitted field is
// distinguishable from an explicit false during the merge.
type fileConfig struct {
	Cache struct {
		MaxEntries              int   `json:"maxEntries"`
		TTLSeconds              int   `json:"ttlSeconds"`
		MaxMemoryBytes          int64 `json:"maxMemoryBytes"`
		BackgroundRefresh       *bool `json:"backgroundRefresh"`
		FrequentAccessThreshold int   `json:"frequentAccessThreshold"`
	} `json:"cache"`
	Scroller struct {
		ViewportSize      int   `json:"viewportSize"`
		BufferSize        int   `json:"bufferSize"`
		BatchSize         int   `json:"batchSize"`
		MaxLoadedItems    int   `json:"maxLoadedItems"`
		PredictiveLoading *bool `json:"predictiveLoading"`
	} `json:"scroller"`
	Remote RemoteConfig `json:"remote"`
}

// Save saves configuration to file
func (m *Manager) Save(config *Config) error {
	configDir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// getDefaultConfig returns the default configuration
func getDefaultConfig() *Config {
	return &Config{
		Cache: CacheConfig{
			MaxEntries:              1000,
			TTLSeconds:              300,
			MaxMemoryBytes:          100 * 1024 * 1024,
			BackgroundRefresh:       true,
			FrequentAccessThreshold: 5,
		},
		Scroller: ScrollerConfig{
			ViewportSize:      50,
			BufferSize:        25,
			BatchSize:         100,
			MaxLoadedItems:    500,
			PredictiveLoading: true,
		},
		Remote: RemoteConfig{
			ConnectTimeoutSeconds: 30,
			IdleTimeoutSeconds:    600,
			Workers:               4,
		},
	}
}

// getConfigPath returns the path to the configuration file following OS conventions
func getConfigPath() string {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "config.json"
			}
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		configDir = filepath.Join(appData, "vfm")

	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "config.json"
		}
		configDir = filepath.Join(home, "Library", "Application Support", "vfm")

	default:
		xdgConfigHome := os.Getenv("XDG_CONFIG_HOME")
		if xdgConfigHome == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "config.json"
			}
			xdgConfigHome = filepath.Join(home, ".config")
		}
		configDir = filepath.Join(xdgConfigHome, "vfm")
	}

	return filepath.Join(configDir, "config.json")
}

// mergeConfigs merges file config values into default config
func mergeConfigs(defaultConfig *Config, file *fileConfig) {
	if file.Cache.MaxEntries != 0 {
		defaultConfig.Cache.MaxEntries = file.Cache.MaxEntries
	}
	if file.Cache.TTLSeconds != 0 {
		defaultConfig.Cache.TTLSeconds = file.Cache.TTLSeconds
	}
	if file.Cache.MaxMemoryBytes != 0 {
		defaultConfig.Cache.MaxMemoryBytes = file.Cache.MaxMemoryBytes
	}
	if file.Cache.BackgroundRefresh != nil {
		defaultConfig.Cache.BackgroundRefresh = *file.Cache.BackgroundRefresh
	}
	if file.Cache.FrequentAccessThreshold != 0 {
		defaultConfig.Cache.FrequentAccessThreshold = file.Cache.FrequentAccessThreshold
	}

	if file.Scroller.ViewportSize != 0 {
		defaultConfig.Scroller.ViewportSize = file.Scroller.ViewportSize
	}
	if file.Scroller.BufferSize != 0 {
		defaultConfig.Scroller.BufferSize = file.Scroller.BufferSize
	}
	if file.Scroller.BatchSize != 0 {
		defaultConfig.Scroller.BatchSize = file.Scroller.BatchSize
	}
	if file.Scroller.MaxLoadedItems != 0 {
		defaultConfig.Scroller.MaxLoadedItems = file.Scroller.MaxLoadedItems
	}
	if file.Scroller.PredictiveLoading != nil {
		defaultConfig.Scroller.PredictiveLoading = *file.Scroller.PredictiveLoading
	}

	if file.Remote.ConnectTimeoutSeconds != 0 {
		defaultConfig.Remote.ConnectTimeoutSeconds = file.Remote.ConnectTimeoutSeconds
	}
	if file.Remote.IdleTimeoutSeconds != 0 {
		defaultConfig.Remote.IdleTimeoutSeconds = file.Remote.IdleTimeoutSeconds
	}
	if file.Remote.Workers != 0 {
		defaultConfig.Remote.Workers = file.Remote.Workers
	}
}
