package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/entsync/entsync/pkg/log"
	"github.com/entsync/entsync/pkg/merge"
)

// Config is the agent configuration, loaded from a YAML file.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Paths   PathsConfig   `yaml:"paths"`
	Logging LoggingConfig `yaml:"logging"`
	Sync    SyncConfig    `yaml:"sync"`
}

// ServerConfig locates the entitlement server.
type ServerConfig struct {
	URL string `yaml:"url"`
}

// PathsConfig holds the filesystem layout. Every cache artifact lives under
// CacheDir; the record the user edits lives at Syspurpose.
type PathsConfig struct {
	Syspurpose string `yaml:"syspurpose"`
	CacheDir   string `yaml:"cache_dir"`
	Identity   string `yaml:"identity"`
	ProductDB  string `yaml:"product_db"`
}

// LoggingConfig mirrors the log package configuration.
type LoggingConfig struct {
	Level log.Level `yaml:"level"`
	JSON  bool      `yaml:"json"`
}

// SyncConfig tunes the reconciliation behavior.
type SyncConfig struct {
	ConflictPolicy       merge.ConflictPolicy `yaml:"conflict_policy"`
	ReportPackageProfile bool                 `yaml:"report_package_profile"`
	CacheWriters         int                  `yaml:"cache_writers"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			URL: "https://localhost:8443/candlepin",
		},
		Paths: PathsConfig{
			Syspurpose: "/etc/entsync/syspurpose.json",
			CacheDir:   "/var/lib/entsync/cache",
			Identity:   "/var/lib/entsync/identity.json",
			ProductDB:  "/var/lib/entsync/productid.db",
		},
		Logging: LoggingConfig{
			Level: log.InfoLevel,
		},
		Sync: SyncConfig{
			ConflictPolicy:       merge.PreferRemote,
			ReportPackageProfile: true,
			CacheWriters:         2,
		},
	}
}

// Load reads the configuration at path over the defaults. An absent file
// yields the defaults; a malformed file is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail deep inside a sync
// cycle.
func (c *Config) Validate() error {
	if c.Server.URL == "" {
		return fmt.Errorf("server.url must not be empty")
	}
	switch c.Sync.ConflictPolicy {
	case merge.PreferRemote, merge.PreferLocal:
	default:
		return fmt.Errorf("sync.conflict_policy must be %q or %q, got %q",
			merge.PreferRemote, merge.PreferLocal, c.Sync.ConflictPolicy)
	}
	if c.Sync.CacheWriters < 1 {
		return fmt.Errorf("sync.cache_writers must be at least 1")
	}
	return nil
}

// CachePath returns the path of a named cache artifact under the cache
// directory.
func (c *Config) CachePath(name string) string {
	return filepath.Join(c.Paths.CacheDir, name)
}

// SyspurposeCachePath returns the path of the last-synced syspurpose
// snapshot.
func (c *Config) SyspurposeCachePath() string {
	return c.CachePath("syspurpose.json")
}
