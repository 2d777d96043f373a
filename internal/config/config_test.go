package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(configPathEnv, "")
	t.Setenv(databaseDSNEnv, "")
	t.Setenv(listingURLEnv, "")
	t.Setenv(detailURLEnv, "")

	cfg := Load()

	if cfg.Catalog.ChunkSize != 100 || cfg.Catalog.StopThreshold != 300 {
		t.Fatalf("unexpected catalog defaults: %+v", cfg.Catalog)
	}
	if cfg.Source.Charset != "euc-jp" {
		t.Fatalf("unexpected charset default: %s", cfg.Source.Charset)
	}
	if cfg.Merge.SubField != "reservation" {
		t.Fatalf("unexpected merge sub-field: %s", cfg.Merge.SubField)
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	raw := `
source:
  listingUrl: https://directory.example.jp/list
catalog:
  startId: 100
  endId: 400
  maxWorkers: 2
export:
  baseName: equipment
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv(configPathEnv, path)
	t.Setenv(databaseDSNEnv, "postgres://scanner@localhost/catalog")
	t.Setenv(listingURLEnv, "")
	t.Setenv(detailURLEnv, "")

	cfg := Load()

	if cfg.Source.ListingURL != "https://directory.example.jp/list" {
		t.Fatalf("file override lost: %s", cfg.Source.ListingURL)
	}
	if cfg.Catalog.StartID != 100 || cfg.Catalog.EndID != 400 || cfg.Catalog.MaxWorkers != 2 {
		t.Fatalf("catalog override lost: %+v", cfg.Catalog)
	}
	if cfg.Export.BaseName != "equipment" {
		t.Fatalf("export override lost: %+v", cfg.Export)
	}
	if cfg.Database.DSN != "postgres://scanner@localhost/catalog" {
		t.Fatalf("env override lost: %s", cfg.Database.DSN)
	}
	// Untouched knobs keep their defaults.
	if cfg.Catalog.ChunkSize != 100 {
		t.Fatalf("chunk size default lost: %d", cfg.Catalog.ChunkSize)
	}
}

func TestLoadClampsInvalidCatalog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	raw := `
catalog:
  startId: 50
  endId: 10
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv(configPathEnv, path)
	t.Setenv(databaseDSNEnv, "")

	cfg := Load()
	if cfg.Catalog.EndID < cfg.Catalog.StartID {
		t.Fatalf("inverted range not clamped: %+v", cfg.Catalog)
	}
}
