package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

// StorageConfig describes the node backing store.
type StorageConfig struct {
	// Backend is "file" or "postgres".
	Backend string `mapstructure:"backend"`
	// DataDir holds nodes.json and the tiles/ directory for the file
	// backend; the ingestor writes here.
	DataDir string `mapstructure:"data_dir"`
	// SourceURL is the Overpass-style endpoint the ingestor downloads
	// nodes from.
	SourceURL string `mapstructure:"source_url"`
	// CacheTTLHours is the in-process dataset/tile cache lifetime.
	CacheTTLHours int `mapstructure:"cache_ttl_hours"`
	// LoadTimeoutSeconds bounds a single backing-storage read.
	LoadTimeoutSeconds int `mapstructure:"load_timeout_seconds"`
	// Coverage is the full area the tile grid partitions. Defaults to
	// a box around the Netherlands.
	Coverage CoverageConfig `mapstructure:"coverage"`
	// GridSize is the number of tiles per axis of the partition grid.
	GridSize int `mapstructure:"grid_size"`
}

type CoverageConfig struct {
	South float64 `mapstructure:"south"`
	West  float64 `mapstructure:"west"`
	North float64 `mapstructure:"north"`
	East  float64 `mapstructure:"east"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("storage.backend", "file")
	v.SetDefault("storage.data_dir", "./data")
	v.SetDefault("storage.source_url", "https://overpass-api.de/api/interpreter")
	v.SetDefault("storage.cache_ttl_hours", 24)
	v.SetDefault("storage.load_timeout_seconds", 10)
	v.SetDefault("storage.coverage.south", 50.7)
	v.SetDefault("storage.coverage.west", 3.2)
	v.SetDefault("storage.coverage.north", 53.7)
	v.SetDefault("storage.coverage.east", 7.3)
	v.SetDefault("storage.grid_size", 8)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "fietsroute")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "fietsroute")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: FIETSROUTE_STORAGE_DATA_DIR → storage.data_dir
	v.SetEnvPrefix("FIETSROUTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	switch c.Storage.Backend {
	case "file", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("storage.backend must be file or postgres, got %q", c.Storage.Backend))
	}
	if c.Storage.DataDir == "" {
		errs = append(errs, "storage.data_dir is required")
	}
	if c.Storage.CacheTTLHours <= 0 {
		errs = append(errs, "storage.cache_ttl_hours must be positive")
	}
	if c.Storage.LoadTimeoutSeconds <= 0 {
		errs = append(errs, "storage.load_timeout_seconds must be positive")
	}
	if c.Storage.GridSize <= 0 {
		errs = append(errs, "storage.grid_size must be positive")
	}
	cov := c.Storage.Coverage
	if cov.South >= cov.North || cov.West >= cov.East {
		errs = append(errs, "storage.coverage must have south < north and west < east")
	}
	if c.Storage.Backend == "postgres" {
		if c.Database.Host == "" {
			errs = append(errs, "database.host is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.User == "" {
			errs = append(errs, "database.user is required")
		}
		if c.Database.DBName == "" {
			errs = append(errs, "database.dbname is required")
		}
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
