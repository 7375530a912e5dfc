// Package paths resolves redbiom's on-disk locations, respecting
// REDBIOM_*-prefixed overrides before falling back to XDG base
// directories. Grounded on the teacher's internal/paths/paths.go.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

type Paths struct {
	ConfigDir string
	DataDir   string
	CacheDir  string
	StateDir  string
}

// GetPaths returns all base paths respecting environment variables
func GetPaths() Paths {
	return Paths{
		ConfigDir: getDir("REDBIOM_CONFIG_HOME", "XDG_CONFIG_HOME", ".config", "redbiom"),
		DataDir:   getDir("REDBIOM_DATA_HOME", "XDG_DATA_HOME", ".local/share", "redbiom"),
		CacheDir:  getDir("REDBIOM_CACHE_HOME", "XDG_CACHE_HOME", ".cache", "redbiom"),
		StateDir:  getDir("REDBIOM_STATE_HOME", "XDG_STATE_HOME", ".local/state", "redbiom"),
	}
}

func getDir(specificEnv, xdgEnv, defaultBase, appName string) string {
	// 1. Check redbiom-specific env
	if dir := os.Getenv(specificEnv); dir != "" {
		return dir
	}

	// 2. Check XDG env
	if xdgBase := os.Getenv(xdgEnv); xdgBase != "" {
		return filepath.Join(xdgBase, appName)
	}

	// 3. Use default
	home, _ := os.UserHomeDir()
	return filepath.Join(home, defaultBase, appName)
}

// GetKVPath returns the path to the backing SQLite-based KV store.
func GetKVPath() string {
	if path := os.Getenv("REDBIOM_KV_PATH"); path != "" {
		return path
	}
	return filepath.Join(GetPaths().DataDir, "redbiom.db")
}

// GetConfigFilePath returns the path to the config file itself
// (ConfigDir holds it; this names the file within it).
func GetConfigFilePath() string {
	if path := os.Getenv("REDBIOM_CONFIG"); path != "" {
		return path
	}
	return filepath.Join(GetPaths().ConfigDir, "config.yaml")
}

// EnsureDirectories creates all necessary directories
func EnsureDirectories() error {
	p := GetPaths()
	dirs := []string{p.ConfigDir, p.DataDir, p.CacheDir, p.StateDir}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
