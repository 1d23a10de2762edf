package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv(DatabaseURLEnv, "")
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
  request_timeout: 15s
storage:
  database_path: "test.db"
embedding:
  provider: mock
  dimensions: 64
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Server.RequestTimeout != 15*time.Second {
		t.Errorf("request_timeout = %v", cfg.Server.RequestTimeout)
	}
	if cfg.Storage.DatabasePath == "" {
		t.Error("database_path should be set")
	}
	if cfg.Storage.Driver != DriverSQLite {
		t.Errorf("driver = %s, want sqlite", cfg.Storage.Driver)
	}
	if cfg.Embedding.Provider != ProviderMock || cfg.Embedding.Dimensions != 64 {
		t.Errorf("unexpected embedding config: %+v", cfg.Embedding)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_debugTrue(t *testing.T) {
	path := writeConfig(t, `
debug: true
storage:
  database_path: "test.db"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	path := writeConfig(t, `
storage:
  database_path: "./data/db/notes.db"
import:
  directories: ["./notes"]
`)
	dir := filepath.Dir(path)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	wantDB := filepath.Join(dir, "data", "db", "notes.db")
	if cfg.Storage.DatabasePath != wantDB {
		t.Errorf("database_path = %s, want %s", cfg.Storage.DatabasePath, wantDB)
	}
	if len(cfg.Import.Directories) != 1 {
		t.Fatalf("import directories: got %d", len(cfg.Import.Directories))
	}
	wantImport := filepath.Join(dir, "notes")
	if cfg.Import.Directories[0] != wantImport {
		t.Errorf("import directory = %s, want %s", cfg.Import.Directories[0], wantImport)
	}
}

func TestLoad_DatabaseURLEnv(t *testing.T) {
	t.Setenv(DatabaseURLEnv, "postgres://shiori@localhost/notes?sslmode=disable")
	path := writeConfig(t, "storage:\n  driver: sqlite\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.Driver != DriverPostgres {
		t.Errorf("driver = %s, want postgres", cfg.Storage.Driver)
	}
	if cfg.Storage.DatabaseURL != "postgres://shiori@localhost/notes?sslmode=disable" {
		t.Errorf("database_url = %s", cfg.Storage.DatabaseURL)
	}
}

func TestIsPostgresURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"postgres://u@h/db", true},
		{"postgresql://u@h/db", true},
		{"sqlite:///tmp/x.db", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsPostgresURL(tt.url); got != tt.want {
			t.Errorf("IsPostgresURL(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Server.RequestTimeout != 60*time.Second {
		t.Errorf("default request timeout: got %v", cfg.Server.RequestTimeout)
	}
	if cfg.Search.DefaultLimit != 10 || cfg.Search.MaxLimit != 50 {
		t.Errorf("search limits: got %+v", cfg.Search)
	}
	if cfg.Clusters.DefaultK != 5 || cfg.Clusters.DefaultPerCluster != 3 || cfg.Clusters.Keywords != 5 {
		t.Errorf("cluster defaults: got %+v", cfg.Clusters)
	}
	if cfg.Embedding.ModelName != DefaultModelName {
		t.Errorf("model name: got %s", cfg.Embedding.ModelName)
	}
	if cfg.Auth.Mode != AuthDevelopment || cfg.Auth.DefaultUser != "local" {
		t.Errorf("auth defaults: got %+v", cfg.Auth)
	}
	if cfg.Import.Owner != "local" {
		t.Errorf("import owner should follow default user, got %s", cfg.Import.Owner)
	}
	if len(cfg.Import.Extensions) != 2 || cfg.Import.Extensions[0] != ".txt" {
		t.Errorf("import extensions: got %v", cfg.Import.Extensions)
	}
}

func TestApplyDefaults_ImportRecursiveWhenDirectoriesSet(t *testing.T) {
	cfg := &Config{Import: ImportConfig{Directories: []string{"/tmp/notes"}}}
	ApplyDefaults(cfg)
	if cfg.Import.Recursive == nil || !*cfg.Import.Recursive {
		t.Error("recursive should default to true when directories are set")
	}
}

func TestImportConfig_RecursiveOrDefault(t *testing.T) {
	t.Run("nil_returns_true", func(t *testing.T) {
		w := &ImportConfig{}
		if got := w.RecursiveOrDefault(); !got {
			t.Errorf("RecursiveOrDefault() = %v, want true", got)
		}
	})
	t.Run("false_returns_false", func(t *testing.T) {
		f := false
		w := &ImportConfig{Recursive: &f}
		if got := w.RecursiveOrDefault(); got {
			t.Errorf("RecursiveOrDefault() = %v, want false", got)
		}
	})
}
