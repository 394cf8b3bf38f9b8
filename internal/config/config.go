// Package config loads and persists application configuration.
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Version is set at build time.
var Version = "dev"

// Clamping bounds for the RSS sync interval, in minutes.
const (
	MinRssSyncIntervalMin = 10
	MaxRssSyncIntervalMin = 120
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	Rss      RssConfig      `mapstructure:"rss" yaml:"rss"`
	Media    MediaConfig    `mapstructure:"media" yaml:"media"`
}

// ServerConfig holds the management surface configuration.
type ServerConfig struct {
	Host   string `mapstructure:"host" yaml:"host"`
	Port   int    `mapstructure:"port" yaml:"port"`
	APIKey string `mapstructure:"api_key" yaml:"api_key"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	Path       string `mapstructure:"path" yaml:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// RssConfig holds RSS sync loop configuration.
type RssConfig struct {
	Enabled               bool `mapstructure:"enabled" yaml:"enabled"`
	SyncIntervalMin       int  `mapstructure:"sync_interval_min" yaml:"sync_interval_min"`
	MaxReleasesPerIndexer int  `mapstructure:"max_releases_per_indexer" yaml:"max_releases_per_indexer"`
	ReleaseAgeLimitDays   int  `mapstructure:"release_age_limit_days" yaml:"release_age_limit_days"`
}

// MediaConfig holds media management configuration.
type MediaConfig struct {
	DataPath              string `mapstructure:"data_path" yaml:"data_path"`
	EnableMultiPart       bool   `mapstructure:"enable_multi_part" yaml:"enable_multi_part"`
	UseHardlinks          bool   `mapstructure:"use_hardlinks" yaml:"use_hardlinks"`
	SkipFreeSpaceCheck    bool   `mapstructure:"skip_free_space_check" yaml:"skip_free_space_check"`
	MinimumFreeSpaceMB    int64  `mapstructure:"minimum_free_space_mb" yaml:"minimum_free_space_mb"`
	DeleteAfterImport     bool   `mapstructure:"delete_after_import" yaml:"delete_after_import"`
	MinimumSeeders        int    `mapstructure:"minimum_seeders" yaml:"minimum_seeders"`
	FolderFormat          string `mapstructure:"folder_format" yaml:"folder_format"`
	FileFormat            string `mapstructure:"file_format" yaml:"file_format"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 7879,
		},
		Database: DatabaseConfig{
			Path: "./data/sportarr.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Rss: RssConfig{
			Enabled:               true,
			SyncIntervalMin:       15,
			MaxReleasesPerIndexer: 500,
			ReleaseAgeLimitDays:   14,
		},
		Media: MediaConfig{
			DataPath:           "./data",
			EnableMultiPart:    true,
			UseHardlinks:       true,
			MinimumFreeSpaceMB: 100,
			MinimumSeeders:     1,
			FolderFormat:       "{League}/{Season}",
			FileFormat:         "{Event Title} ({Year}) {Quality Full}",
		},
	}
}

// Load reads configuration from file and environment variables.
// Priority: environment variables > config file > defaults.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.sportarr")
	}

	v.SetEnvPrefix("SPORTARR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Rss.SyncIntervalMin = ClampRssInterval(cfg.Rss.SyncIntervalMin)

	return cfg, nil
}

// ClampRssInterval clamps an RSS sync interval to the supported range.
func ClampRssInterval(minutes int) int {
	if minutes < MinRssSyncIntervalMin {
		return MinRssSyncIntervalMin
	}
	if minutes > MaxRssSyncIntervalMin {
		return MaxRssSyncIntervalMin
	}
	return minutes
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.api_key", "")

	v.SetDefault("database.path", d.Database.Path)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.path", "")

	v.SetDefault("rss.enabled", d.Rss.Enabled)
	v.SetDefault("rss.sync_interval_min", d.Rss.SyncIntervalMin)
	v.SetDefault("rss.max_releases_per_indexer", d.Rss.MaxReleasesPerIndexer)
	v.SetDefault("rss.release_age_limit_days", d.Rss.ReleaseAgeLimitDays)

	v.SetDefault("media.data_path", d.Media.DataPath)
	v.SetDefault("media.enable_multi_part", d.Media.EnableMultiPart)
	v.SetDefault("media.use_hardlinks", d.Media.UseHardlinks)
	v.SetDefault("media.skip_free_space_check", false)
	v.SetDefault("media.minimum_free_space_mb", d.Media.MinimumFreeSpaceMB)
	v.SetDefault("media.delete_after_import", false)
	v.SetDefault("media.minimum_seeders", d.Media.MinimumSeeders)
	v.SetDefault("media.folder_format", d.Media.FolderFormat)
	v.SetDefault("media.file_format", d.Media.FileFormat)
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
