// Package config loads and saves redbiom's YAML configuration file,
// grounded on the teacher's internal/config/config.go.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nishad/redbiom/internal/loader"
	"github.com/nishad/redbiom/internal/paths"
	"gopkg.in/yaml.v3"
)

// Config represents the redbiom configuration.
type Config struct {
	DataDirectory string     `yaml:"data_directory"`
	KV            KVConfig   `yaml:"kv"`
	Requests      ReqConfig  `yaml:"requests"`
	Loader        LoadConfig `yaml:"loader"`
}

// KVConfig contains the backing SQLite-based KV store settings.
type KVConfig struct {
	Path        string `yaml:"path"`
	CacheSize   int    `yaml:"cache_size"` // in KB
	MMapSize    int64  `yaml:"mmap_size"`  // in bytes
	JournalMode string `yaml:"journal_mode"`
	MaxInFlight int    `yaml:"max_in_flight"` // semaphore.NewWeighted bound
}

// ReqConfig mirrors redbiom's buffered-request chunking knobs.
type ReqConfig struct {
	BufferSize   int `yaml:"buffer_size"`
	DefaultLimit int `yaml:"default_limit"`
}

// LoadConfig mirrors the Loader's scripting chunk bound.
type LoadConfig struct {
	MaxScriptArgs int `yaml:"max_script_args"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		DataDirectory: paths.GetPaths().DataDir,
		KV: KVConfig{
			Path:        paths.GetKVPath(),
			CacheSize:   10000,     // ~10MB
			MMapSize:    268435456, // 256MB
			JournalMode: "WAL",
			MaxInFlight: 8,
		},
		Requests: ReqConfig{
			BufferSize:   100,
			DefaultLimit: 100,
		},
		Loader: LoadConfig{
			MaxScriptArgs: loader.MaxScriptArgs,
		},
	}
}

// Load loads configuration from a file, falling back to defaults if the
// file does not exist.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.DataDirectory = expandPath(config.DataDirectory)
	config.KV.Path = expandPath(config.KV.Path)

	return config, nil
}

// Save saves the configuration to a file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetConfigPath returns the default config file path.
func GetConfigPath() string {
	if path := os.Getenv("REDBIOM_CONFIG"); path != "" {
		return path
	}
	if _, err := os.Stat("redbiom.yaml"); err == nil {
		return "redbiom.yaml"
	}
	return paths.GetConfigFilePath()
}

// EnsureDirectories creates necessary directories.
func (c *Config) EnsureDirectories() error {
	if err := paths.EnsureDirectories(); err != nil {
		return err
	}

	dirs := []string{c.DataDirectory, filepath.Dir(c.KV.Path)}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// expandPath expands ~ to the home directory.
func expandPath(path string) string {
	if len(path) == 0 {
		return path
	}
	if path[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}
