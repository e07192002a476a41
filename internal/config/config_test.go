package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Storage.Prefix != "raw/jsonplaceholder/users/" {
		t.Errorf("unexpected default prefix: %q", cfg.Storage.Prefix)
	}
	if cfg.Source.Timeout != 20*time.Second {
		t.Errorf("unexpected default timeout: %v", cfg.Source.Timeout)
	}
	if cfg.Catalog.Namespace != "users_db" || cfg.Catalog.Table != "users" {
		t.Errorf("unexpected catalog defaults: %+v", cfg.Catalog)
	}
	if err := cfg.validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strata.yaml")
	content := `
source:
  endpoint: http://localhost:9000/users
  timeout: 5s
storage:
  backend: s3
  bucket: test-bucket
  prefix: raw/test/users/
catalog:
  namespace: test_db
  table: users
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Source.Endpoint != "http://localhost:9000/users" {
		t.Errorf("unexpected endpoint: %q", cfg.Source.Endpoint)
	}
	if cfg.Source.Timeout != 5*time.Second {
		t.Errorf("unexpected timeout: %v", cfg.Source.Timeout)
	}
	if cfg.Storage.Backend != "s3" || cfg.Storage.Bucket != "test-bucket" {
		t.Errorf("unexpected storage config: %+v", cfg.Storage)
	}
	// Untouched sections keep their defaults.
	if cfg.Server.Addr != ":8080" {
		t.Errorf("expected default server addr, got %q", cfg.Server.Addr)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DATA_BUCKET", "env-bucket")
	t.Setenv("OUTPUT_PREFIX", "raw/env/users/")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.Bucket != "env-bucket" {
		t.Errorf("expected env bucket, got %q", cfg.Storage.Bucket)
	}
	if cfg.Storage.Prefix != "raw/env/users/" {
		t.Errorf("expected env prefix, got %q", cfg.Storage.Prefix)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected env log level, got %q", cfg.LogLevel)
	}
}

func TestLoad_InvalidBackend(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "tape")
	if _, err := Load(""); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestLoad_S3RequiresBucket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strata.yaml")
	content := "storage:\n  backend: s3\n  bucket: \"\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for s3 backend without bucket")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
