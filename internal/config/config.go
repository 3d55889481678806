package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Catalog    CatalogConfig    `mapstructure:"catalog"`
	Indexer    IndexerConfig    `mapstructure:"indexer"`
	Downloader DownloaderConfig `mapstructure:"downloader"`
	Scanner    ScannerConfig    `mapstructure:"scanner"`
	Metadata   MetadataConfig   `mapstructure:"metadata"`
	Library    LibraryConfig    `mapstructure:"library"`
	Sync       SyncConfig       `mapstructure:"sync"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// AuthConfig holds API authentication configuration.
type AuthConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// CatalogConfig holds the upstream media-catalog connection settings.
type CatalogConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// IndexerConfig holds the indexer aggregator connection settings.
type IndexerConfig struct {
	URL        string        `mapstructure:"url"`
	APIKey     string        `mapstructure:"api_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MinSeeders int           `mapstructure:"min_seeders"`
}

// DownloaderConfig holds the download daemon RPC settings.
type DownloaderConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// ScannerConfig holds the antivirus sidecar settings.
type ScannerConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// MetadataConfig holds the movie-metadata provider settings.
// An empty APIKey disables lookups; callers fall back to display titles.
type MetadataConfig struct {
	URL    string `mapstructure:"url"`
	APIKey string `mapstructure:"api_key"`
}

// LibraryConfig holds the three filesystem roots.
type LibraryConfig struct {
	QuarantineRoot string `mapstructure:"quarantine_root"`
	MovieRoot      string `mapstructure:"movie_root"`
	ShowRoot       string `mapstructure:"show_root"`
}

// SyncConfig holds orchestrator tuning knobs.
type SyncConfig struct {
	TickInterval        time.Duration `mapstructure:"tick_interval"`
	AppearanceDelay     time.Duration `mapstructure:"appearance_delay"`
	AppearanceWindow    time.Duration `mapstructure:"appearance_window"`
	SimilarityThreshold float64       `mapstructure:"similarity_threshold"`
}

// Load reads configuration from file and environment variables.
// Priority: environment variables > config file > defaults
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.fetcharr")
	}

	v.SetEnvPrefix("FETCHARR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults + env vars
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the invariants that must hold at boot.
func (c *Config) Validate() error {
	if c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key is required")
	}
	if c.Sync.SimilarityThreshold <= 0 || c.Sync.SimilarityThreshold > 1 {
		return fmt.Errorf("sync.similarity_threshold must be in (0, 1], got %v", c.Sync.SimilarityThreshold)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8484)

	v.SetDefault("database.path", "./data/fetcharr.db")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 30)
	v.SetDefault("logging.compress", true)

	v.SetDefault("auth.api_key", "")

	v.SetDefault("catalog.url", "http://127.0.0.1:32400")
	v.SetDefault("catalog.timeout", 30*time.Second)

	v.SetDefault("indexer.url", "http://127.0.0.1:9696")
	v.SetDefault("indexer.api_key", "")
	v.SetDefault("indexer.timeout", 60*time.Second)
	v.SetDefault("indexer.min_seeders", 1)

	v.SetDefault("downloader.host", "127.0.0.1")
	v.SetDefault("downloader.port", 58846)
	v.SetDefault("downloader.username", "localclient")
	v.SetDefault("downloader.password", "")
	v.SetDefault("downloader.timeout", 10*time.Second)

	v.SetDefault("scanner.url", "http://127.0.0.1:9999")
	v.SetDefault("scanner.timeout", 10*time.Minute)

	v.SetDefault("metadata.url", "https://api.themoviedb.org/3")
	v.SetDefault("metadata.api_key", "")

	v.SetDefault("library.quarantine_root", "/data/quarantine")
	v.SetDefault("library.movie_root", "/data/media/movies")
	v.SetDefault("library.show_root", "/data/media/shows")

	v.SetDefault("sync.tick_interval", 10*time.Minute)
	v.SetDefault("sync.appearance_delay", 2*time.Second)
	v.SetDefault("sync.appearance_window", 3*time.Second)
	v.SetDefault("sync.similarity_threshold", 0.6)
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
