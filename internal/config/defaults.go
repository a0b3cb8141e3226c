package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Engine.Backend == "" {
		cfg.Engine.Backend = BackendLocal
	}
	if cfg.Engine.Typesense.Collection == "" {
		cfg.Engine.Typesense.Collection = "meetings"
	}
	if cfg.Engine.Typesense.Timeout == 0 {
		cfg.Engine.Typesense.Timeout = 10 * time.Second
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/meetsearch/data/db/meetings.db"
	}
	if cfg.Storage.IndexPath == "" {
		cfg.Storage.IndexPath = "/usr/local/var/meetsearch/data/indices/bleve"
	}
	if cfg.Search.Debounce == 0 {
		cfg.Search.Debounce = 500 * time.Millisecond
	}
	if cfg.Search.QueryTimeout == 0 {
		cfg.Search.QueryTimeout = 10 * time.Second
	}
	if cfg.Search.PerPage == 0 {
		cfg.Search.PerPage = 250
	}
	if cfg.Search.MaxFacetValues == 0 {
		cfg.Search.MaxFacetValues = 250
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 2 * time.Second
	}
}
