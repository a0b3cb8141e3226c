package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/openmeetings/meetsearch/internal/config"
	"github.com/openmeetings/meetsearch/internal/engine"
	"github.com/openmeetings/meetsearch/internal/models"
	"go.uber.org/zap"
)

func TestSearchArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after keyphrase are moved first",
			args:     []string{"budget taskforce", "-body", "School Committee"},
			expected: []string{"-body", "School Committee", "budget taskforce"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-body", "School Committee", "budget taskforce"},
			expected: []string{"-body", "School Committee", "budget taskforce"},
		},
		{
			name:     "keyphrase only returns unchanged",
			args:     []string{"budget taskforce"},
			expected: []string{"budget taskforce"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "multiple positionals then flags",
			args:     []string{"zoning", "variance", "-from", "2023-03-01"},
			expected: []string{"-from", "2023-03-01", "zoning", "variance"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := searchArgsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("searchArgsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBuildSearchQuery(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"budget"}, "budget"},
		{"multiple words", []string{"budget", "taskforce"}, "budget taskforce"},
		{"single quoted phrase", []string{"budget taskforce"}, "budget taskforce"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildSearchQuery(tt.args)
			if got != tt.expected {
				t.Errorf("buildSearchQuery(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func TestSearchRequest(t *testing.T) {
	req, err := searchRequest("", "", "all", "", "", time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	if req.Keyphrase != models.MatchAll || req.Filters.Body != nil || req.Filters.DateStart != nil {
		t.Errorf("blank search = %+v, want match-all without filters", req)
	}

	req, err = searchRequest("", "zoning", "Planning Board", "2023-03-01", "2023-03-31", time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	if req.Keyphrase != "zoning" || req.Filters.Body == nil || *req.Filters.Body != "Planning Board" {
		t.Errorf("unexpected request: %+v", req)
	}
	if req.Filters.DateEnd == nil || !req.Filters.DateEnd.Equal(time.Date(2023, 3, 31, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("dateEnd = %v", req.Filters.DateEnd)
	}

	req, err = searchRequest("?keyphrase=budget&body=all&dateStart=2023-03-01", "ignored", "ignored", "", "", time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	if req.Keyphrase != "budget" || req.Filters.Body != nil || req.Filters.DateStart == nil || req.Filters.DateEnd != nil {
		t.Errorf("url search = %+v", req)
	}

	if _, err := searchRequest("", "x", "all", "2023-13-01", "", time.UTC); err == nil {
		t.Error("expected error for invalid date")
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	t.Setenv(config.EnvEngineBackend, "")
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8080
storage:
  database_path: "test.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	oldWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(oldWd) })

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while configPath from t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s (canon %s), want %s (canon %s)", resolved, resolvedCanon, configPath, configPathCanon)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	t.Setenv(config.EnvEngineBackend, "")
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "test.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
}

func TestLoadConfig_missingExplicitPath(t *testing.T) {
	if _, _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}

func TestOpenEngine_local(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Engine.Backend = config.BackendLocal
	cfg.Storage.DatabasePath = filepath.Join(dir, "db", "meetings.db")
	cfg.Storage.IndexPath = filepath.Join(dir, "bleve")

	eng, err := openEngine(cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer eng.Close()

	n, err := eng.Count(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("Count() = %d, want 0", n)
	}
	if _, err := eng.GetMeeting(context.Background(), "nope"); err == nil {
		t.Error("expected not found for empty engine")
	} else if !errors.Is(err, engine.ErrNotFound) {
		t.Errorf("GetMeeting() error = %v, want not found", err)
	}
}

func TestOpenEngine_unknownBackend(t *testing.T) {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Engine.Backend = "solr"
	if _, err := openEngine(cfg, zap.NewNop()); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestCollectionName(t *testing.T) {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Engine.Backend = config.BackendTypesense
	if got := collectionName(cfg); got != "meetings" {
		t.Errorf("collectionName() = %q, want meetings", got)
	}
	cfg.Engine.Backend = config.BackendLocal
	if got := collectionName(cfg); got != "local" {
		t.Errorf("collectionName() = %q, want local", got)
	}
}
