// Package config loads engine configuration: defaults, then an
// optional YAML file, then FEEDCACHE_-prefixed environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// PathEnvVar overrides the config file location.
const PathEnvVar = "FEEDCACHE_CONFIG"

// envPrefix namespaces environment overrides, e.g.
// FEEDCACHE_DATABASE_PATH.
const envPrefix = "FEEDCACHE_"

// defaultPaths are searched in order when PathEnvVar is unset.
var defaultPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/feedcache/config.yaml",
}

// Config holds everything main needs to wire the engine.
type Config struct {
	Listen         string        `koanf:"listen"`
	DatabasePath   string        `koanf:"database_path"`
	DefaultUserID  string        `koanf:"default_user_id"`
	RefreshWorkers int           `koanf:"refresh_workers"`
	FetchTimeout   time.Duration `koanf:"fetch_timeout"`
	LogLevel       string        `koanf:"log_level"`
	LogPretty      bool          `koanf:"log_pretty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Listen:         "0.0.0.0:8080",
		DatabasePath:   "feedcache.db",
		DefaultUserID:  "local",
		RefreshWorkers: 8,
		FetchTimeout:   30 * time.Second,
		LogLevel:       "info",
		LogPretty:      false,
	}
}

// Load layers defaults, file, and environment into a Config.
func Load() (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := configPath(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func configPath() string {
	if path := os.Getenv(PathEnvVar); path != "" {
		return path
	}
	for _, path := range defaultPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
