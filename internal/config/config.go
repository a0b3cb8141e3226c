// Package config provides configuration loading and structs for the meetsearch server and CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Engine backends.
const (
	BackendTypesense = "typesense"
	BackendLocal     = "local"
)

// Environment variables that override the file.
const (
	EnvTypesenseAPIKey = "TYPESENSE_API_KEY"
	EnvEngineBackend   = "MEETSEARCH_ENGINE"
)

// Config holds all configuration for the application.
type Config struct {
	Debug   bool          `yaml:"debug"`
	Server  ServerConfig  `yaml:"server"`
	Engine  EngineConfig  `yaml:"engine"`
	Storage StorageConfig `yaml:"storage"`
	Search  SearchConfig  `yaml:"search"`
	Watch   WatchConfig   `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// EngineConfig selects the search engine backend.
type EngineConfig struct {
	Backend   string          `yaml:"backend"`
	Typesense TypesenseConfig `yaml:"typesense"`
}

// TypesenseConfig holds the hosted engine connection settings.
type TypesenseConfig struct {
	URL        string        `yaml:"url"`
	APIKey     string        `yaml:"api_key"`
	Collection string        `yaml:"collection"`
	Timeout    time.Duration `yaml:"timeout"`
}

// StorageConfig holds paths for the local engine's database and index.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	IndexPath    string `yaml:"index_path"`
}

// SearchConfig holds search controller settings.
type SearchConfig struct {
	Debounce       time.Duration `yaml:"debounce"`
	QueryTimeout   time.Duration `yaml:"query_timeout"`
	PerPage        int           `yaml:"per_page"`
	MaxFacetValues int           `yaml:"max_facet_values"`
	// Location is the IANA zone URL dates are interpreted in; empty means the host zone.
	Location string `yaml:"location"`
}

// LoadLocation resolves Location.
func (s *SearchConfig) LoadLocation() (*time.Location, error) {
	if s.Location == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(s.Location)
	if err != nil {
		return nil, fmt.Errorf("failed to load location %q: %w", s.Location, err)
	}
	return loc, nil
}

// WatchConfig lists meeting record files re-imported when they change.
type WatchConfig struct {
	Files    []string      `yaml:"files"`
	Debounce time.Duration `yaml:"debounce"`
}

// Load reads and parses the config file at path, applies defaults and environment overrides,
// and expands paths. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	ApplyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.IndexPath = expandPath(cfg.Storage.IndexPath, configDir)
	for i := range cfg.Watch.Files {
		cfg.Watch.Files[i] = expandPath(cfg.Watch.Files[i], configDir)
	}

	return &cfg, nil
}

// ApplyEnv overrides the API key and backend from the environment when set.
func ApplyEnv(cfg *Config) {
	if key := os.Getenv(EnvTypesenseAPIKey); key != "" {
		cfg.Engine.Typesense.APIKey = key
	}
	if backend := os.Getenv(EnvEngineBackend); backend != "" {
		cfg.Engine.Backend = strings.ToLower(strings.TrimSpace(backend))
	}
}

// Validate reports settings no default can repair.
func (c *Config) Validate() error {
	switch c.Engine.Backend {
	case BackendTypesense:
		if c.Engine.Typesense.URL == "" {
			return fmt.Errorf("engine.typesense.url is required for the %s backend", BackendTypesense)
		}
	case BackendLocal:
	default:
		return fmt.Errorf("unknown engine backend %q", c.Engine.Backend)
	}
	if _, err := c.Search.LoadLocation(); err != nil {
		return err
	}
	return nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory. Empty stays empty.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
