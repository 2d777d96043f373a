package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv  = "FACILITY_SCANNER_CONFIG"
	databaseDSNEnv = "DATABASE_DSN"
	listingURLEnv  = "FACILITY_LISTING_URL"
	detailURLEnv   = "FACILITY_DETAIL_URL"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Source    SourceConfig    `yaml:"source"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Export    ExportConfig    `yaml:"export"`
	Merge     MergeConfig     `yaml:"merge"`
	Database  DatabaseConfig  `yaml:"database"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// LoggingConfig selects the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// SourceConfig describes the remote directory endpoints.
type SourceConfig struct {
	ListingURL     string  `yaml:"listingUrl"`
	DetailURL      string  `yaml:"detailUrl"`
	Charset        string  `yaml:"charset"`
	TimeoutSeconds int     `yaml:"timeoutSeconds"`
	RatePerSecond  float64 `yaml:"ratePerSecond"`
}

// Timeout resolves the per-request timeout.
func (s SourceConfig) Timeout() time.Duration {
	if s.TimeoutSeconds <= 0 {
		return 20 * time.Second
	}
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// CatalogConfig bounds the discovery and fetch stages.
type CatalogConfig struct {
	StartID       int `yaml:"startId"`
	EndID         int `yaml:"endId"`
	ChunkSize     int `yaml:"chunkSize"`
	StopThreshold int `yaml:"stopThreshold"`
	MaxWorkers    int `yaml:"maxWorkers"`
}

// ExportConfig names the artifact destinations.
type ExportConfig struct {
	OutputDir  string `yaml:"outputDir"`
	BaseName   string `yaml:"baseName"`
	Collection string `yaml:"collection"`
}

// MergeConfig points at the secondary dataset joined after export.
type MergeConfig struct {
	SecondaryPath string `yaml:"secondaryPath"`
	SubField      string `yaml:"subField"`
}

// DatabaseConfig describes the optional run-history Postgres.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// SchedulerConfig enables periodic catalog syncs; zero means a single run.
type SchedulerConfig struct {
	IntervalMinutes int `yaml:"intervalMinutes"`
}

// Interval resolves the sync period.
func (s SchedulerConfig) Interval() time.Duration {
	if s.IntervalMinutes <= 0 {
		return 0
	}
	return time.Duration(s.IntervalMinutes) * time.Minute
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.clampCatalog()

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(listingURLEnv); v != "" {
		c.Source.ListingURL = v
	}

	if v := os.Getenv(detailURLEnv); v != "" {
		c.Source.DetailURL = v
	}
}

func (c *Config) clampCatalog() {
	def := defaultConfig().Catalog

	if c.Catalog.ChunkSize <= 0 {
		log.Printf("config: chunkSize must be positive, reverting to %d", def.ChunkSize)
		c.Catalog.ChunkSize = def.ChunkSize
	}
	if c.Catalog.StopThreshold <= 0 {
		log.Printf("config: stopThreshold must be positive, reverting to %d", def.StopThreshold)
		c.Catalog.StopThreshold = def.StopThreshold
	}
	if c.Catalog.MaxWorkers <= 0 {
		c.Catalog.MaxWorkers = def.MaxWorkers
	}
	if c.Catalog.StartID <= 0 {
		c.Catalog.StartID = def.StartID
	}
	if c.Catalog.EndID < c.Catalog.StartID {
		c.Catalog.EndID = c.Catalog.StartID
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging = override.Logging
	}

	if override.Source.ListingURL != "" {
		base.Source.ListingURL = override.Source.ListingURL
	}
	if override.Source.DetailURL != "" {
		base.Source.DetailURL = override.Source.DetailURL
	}
	if override.Source.Charset != "" {
		base.Source.Charset = override.Source.Charset
	}
	if override.Source.TimeoutSeconds > 0 {
		base.Source.TimeoutSeconds = override.Source.TimeoutSeconds
	}
	if override.Source.RatePerSecond > 0 {
		base.Source.RatePerSecond = override.Source.RatePerSecond
	}

	if override.Catalog.StartID > 0 {
		base.Catalog.StartID = override.Catalog.StartID
	}
	if override.Catalog.EndID > 0 {
		base.Catalog.EndID = override.Catalog.EndID
	}
	if override.Catalog.ChunkSize > 0 {
		base.Catalog.ChunkSize = override.Catalog.ChunkSize
	}
	if override.Catalog.StopThreshold > 0 {
		base.Catalog.StopThreshold = override.Catalog.StopThreshold
	}
	if override.Catalog.MaxWorkers > 0 {
		base.Catalog.MaxWorkers = override.Catalog.MaxWorkers
	}

	if override.Export.OutputDir != "" {
		base.Export.OutputDir = override.Export.OutputDir
	}
	if override.Export.BaseName != "" {
		base.Export.BaseName = override.Export.BaseName
	}
	if override.Export.Collection != "" {
		base.Export.Collection = override.Export.Collection
	}

	if override.Merge.SecondaryPath != "" {
		base.Merge.SecondaryPath = override.Merge.SecondaryPath
	}
	if override.Merge.SubField != "" {
		base.Merge.SubField = override.Merge.SubField
	}

	if override.Database.DSN != "" {
		base.Database = override.Database
	}

	if override.Scheduler.IntervalMinutes > 0 {
		base.Scheduler = override.Scheduler
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Source: SourceConfig{
			ListingURL:     "https://facility.example.jp/search",
			DetailURL:      "https://facility.example.jp/search",
			Charset:        "euc-jp",
			TimeoutSeconds: 20,
			RatePerSecond:  2,
		},
		Catalog: CatalogConfig{
			StartID:       1,
			EndID:         5000,
			ChunkSize:     100,
			StopThreshold: 300,
			MaxWorkers:    8,
		},
		Export: ExportConfig{
			OutputDir:  "output",
			BaseName:   "facilities",
			Collection: "facilities",
		},
		Merge: MergeConfig{
			SecondaryPath: "reservations.json",
			SubField:      "reservation",
		},
		Database:  DatabaseConfig{DSN: ""},
		Scheduler: SchedulerConfig{IntervalMinutes: 0},
	}
}
