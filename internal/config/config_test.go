package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("debug: true\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Debug {
		t.Error("debug not parsed")
	}
	if cfg.Server.Host != "localhost" || cfg.Server.Port != 8080 {
		t.Errorf("server defaults = %s:%d", cfg.Server.Host, cfg.Server.Port)
	}
	if cfg.Ingest.MaxArchiveEntries != 100 || cfg.Ingest.ArchiveTimeoutMinutes != 30 {
		t.Errorf("ingest defaults = %+v", cfg.Ingest)
	}
	if cfg.Search.DefaultLimit != 10 || cfg.Search.MaxLimit != 100 {
		t.Errorf("search defaults = %+v", cfg.Search)
	}
	if len(cfg.Inbox.Extensions) == 0 {
		t.Error("inbox extensions default missing")
	}
}

func TestLoadExpandsRelativePaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := "storage:\n  database_path: ./data/db.sqlite\n  index_path: ./data/index\n  upload_dir: ./data/uploads\n"
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := filepath.Join(dir, "data/db.sqlite")
	if cfg.Storage.DatabasePath != want {
		t.Errorf("database path = %q, want %q", cfg.Storage.DatabasePath, want)
	}
	if !filepath.IsAbs(cfg.Storage.IndexPath) || !filepath.IsAbs(cfg.Storage.UploadDir) {
		t.Errorf("paths not absolute: %q, %q", cfg.Storage.IndexPath, cfg.Storage.UploadDir)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  host: 0.0.0.0
  port: 9090
ingest:
  max_archive_entries: 50
search:
  default_limit: 25
inbox:
  directory: /srv/inbox
  extensions: [".pdf"]
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Host != "0.0.0.0" || cfg.Server.Port != 9090 {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Ingest.MaxArchiveEntries != 50 {
		t.Errorf("max archive entries = %d", cfg.Ingest.MaxArchiveEntries)
	}
	if cfg.Search.DefaultLimit != 25 {
		t.Errorf("default limit = %d", cfg.Search.DefaultLimit)
	}
	if cfg.Inbox.Directory != "/srv/inbox" {
		t.Errorf("inbox dir = %q", cfg.Inbox.Directory)
	}
	if len(cfg.Inbox.Extensions) != 1 || cfg.Inbox.Extensions[0] != ".pdf" {
		t.Errorf("inbox extensions = %v", cfg.Inbox.Extensions)
	}
}
