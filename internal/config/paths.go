package config

import (
	"os"
	"path/filepath"
	"strings"
)

const defaultBaseDir = ".remdev"

// Paths holds resolved filesystem paths for remdev data.
type Paths struct {
	Base     string // ~/.remdev
	Config   string // ~/.remdev/config.yaml, or REMDEV_CONFIG
	Database string // ~/.remdev/data/remdev.db
	Logs     string // ~/.remdev/logs
	Data     string // ~/.remdev/data
}

// ResolvePaths computes all standard paths from the home directory.
// If REMDEV_HOME is set, it overrides the default base directory. If
// REMDEV_CONFIG is set, it names the config file directly, which may be
// YAML or TOML.
func ResolvePaths() (Paths, error) {
	base := os.Getenv("REMDEV_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		base = filepath.Join(home, defaultBaseDir)
	}

	cfgPath := os.Getenv("REMDEV_CONFIG")
	if cfgPath == "" {
		cfgPath = filepath.Join(base, "config.yaml")
		if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
			if alt := filepath.Join(base, "config.toml"); fileExists(alt) {
				cfgPath = alt
			}
		}
	}

	data := filepath.Join(base, "data")
	return Paths{
		Base:     base,
		Config:   cfgPath,
		Database: filepath.Join(data, "remdev.db"),
		Logs:     filepath.Join(base, "logs"),
		Data:     data,
	}, nil
}

// DatabasePath returns the configured database path, falling back to the
// standard location.
func (p Paths) DatabasePath(cfg Config) string {
	if cfg.Store.Path != "" {
		return cfg.Store.Path
	}
	return p.Database
}

// EnsureDirs creates all standard directories if they don't exist.
func (p Paths) EnsureDirs() error {
	dirs := []string{p.Base, p.Logs, p.Data}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// blockedKeys are keys that must never appear in config paths.
var blockedKeys = map[string]bool{
	"__proto__":   true,
	"prototype":   true,
	"constructor": true,
}

// ParseConfigPath splits a dot-separated config path into segments.
// Returns an error if any segment is blocked or empty.
func ParseConfigPath(raw string) ([]string, error) {
	if raw == "" {
		return nil, &ConfigError{Message: "empty config path"}
	}
	parts := strings.Split(raw, ".")
	for _, p := range parts {
		if p == "" {
			return nil, &ConfigError{Message: "config path contains empty segment"}
		}
		if blockedKeys[p] {
			return nil, &ConfigError{Message: "config path contains blocked key: " + p}
		}
	}
	return parts, nil
}

// GetValueAtPath traverses a nested map using the given path segments.
func GetValueAtPath(root map[string]any, path []string) (any, bool) {
	current := any(root)
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// SetValueAtPath sets a value in a nested map, creating intermediate maps as needed.
func SetValueAtPath(root map[string]any, path []string, value any) {
	current := root
	for _, key := range path[:len(path)-1] {
		next, ok := current[key]
		if !ok {
			next = map[string]any{}
			current[key] = next
		}
		m, ok := next.(map[string]any)
		if !ok {
			m = map[string]any{}
			current[key] = m
		}
		current = m
	}
	current[path[len(path)-1]] = value
}

// UnsetValueAtPath removes a value at the given path. Returns true if removed.
func UnsetValueAtPath(root map[string]any, path []string) bool {
	current := root
	for _, key := range path[:len(path)-1] {
		next, ok := current[key]
		if !ok {
			return false
		}
		m, ok := next.(map[string]any)
		if !ok {
			return false
		}
		current = m
	}
	last := path[len(path)-1]
	if _, ok := current[last]; !ok {
		return false
	}
	delete(current, last)
	return true
}
