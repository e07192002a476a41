// Package config loads pipeline configuration from a YAML file with
// environment variable overrides for deployment-specific settings.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full pipeline configuration.
type Config struct {
	Source   SourceConfig  `yaml:"source"`
	Storage  StorageConfig `yaml:"storage"`
	Catalog  CatalogConfig `yaml:"catalog"`
	Query    QueryConfig   `yaml:"query"`
	Server   ServerConfig  `yaml:"server"`
	Jobs     JobsConfig    `yaml:"jobs"`
	LogLevel string        `yaml:"log_level"`
}

// SourceConfig describes the upstream REST source.
type SourceConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"timeout"`
}

// StorageConfig selects and configures the snapshot store backend.
type StorageConfig struct {
	// Backend is "fs", "s3", or "memory".
	Backend string `yaml:"backend"`
	// Root is the local directory for the fs backend.
	Root string `yaml:"root"`
	// Prefix is the partition prefix snapshots land under.
	Prefix string `yaml:"prefix"`

	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
}

// CatalogConfig configures the metadata registry.
type CatalogConfig struct {
	// Path is the DuckDB database file; empty means in-memory.
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
	Table     string `yaml:"table"`
}

// QueryConfig configures the query surface.
type QueryConfig struct {
	ResultRoot string `yaml:"result_root"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// JobsConfig holds the cron expressions for the scheduled jobs.
type JobsConfig struct {
	ExtractSchedule string `yaml:"extract_schedule"`
	ScanSchedule    string `yaml:"scan_schedule"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Source: SourceConfig{
			Endpoint: "https://jsonplaceholder.typicode.com/users",
			Timeout:  20 * time.Second,
		},
		Storage: StorageConfig{
			Backend: "fs",
			Root:    "data",
			Prefix:  "raw/jsonplaceholder/users/",
			Bucket:  "strata-lake",
			Region:  "us-east-1",
		},
		Catalog: CatalogConfig{
			Path:      "strata.db",
			Namespace: "users_db",
			Table:     "users",
		},
		Query: QueryConfig{
			ResultRoot: "results",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Jobs: JobsConfig{
			ExtractSchedule: "@hourly",
			ScanSchedule:    "30 * * * *",
		},
		LogLevel: "info",
	}
}

// Load reads path (optional) over the defaults, then applies environment
// overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	return cfg, cfg.validate()
}

func applyEnv(cfg *Config) {
	setString(&cfg.Source.Endpoint, "SOURCE_ENDPOINT")
	setString(&cfg.Storage.Backend, "STORAGE_BACKEND")
	setString(&cfg.Storage.Root, "STORAGE_ROOT")
	setString(&cfg.Storage.Prefix, "OUTPUT_PREFIX")
	setString(&cfg.Storage.Bucket, "DATA_BUCKET")
	setString(&cfg.Storage.Region, "AWS_REGION")
	setString(&cfg.Storage.Endpoint, "S3_ENDPOINT")
	setString(&cfg.Catalog.Path, "CATALOG_PATH")
	setString(&cfg.Catalog.Namespace, "CATALOG_NAMESPACE")
	setString(&cfg.Catalog.Table, "CATALOG_TABLE")
	setString(&cfg.Query.ResultRoot, "RESULT_ROOT")
	setString(&cfg.Server.Addr, "SERVER_ADDR")
	setString(&cfg.LogLevel, "LOG_LEVEL")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (c Config) validate() error {
	switch c.Storage.Backend {
	case "fs", "s3", "memory":
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}
	if c.Storage.Backend == "s3" && c.Storage.Bucket == "" {
		return fmt.Errorf("config: s3 backend requires a bucket")
	}
	if c.Catalog.Namespace == "" || c.Catalog.Table == "" {
		return fmt.Errorf("config: catalog namespace and table are required")
	}
	return nil
}
