package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `json:"server" mapstructure:"server"`
	Playback PlaybackConfig `json:"playback" mapstructure:"playback"`
	Offline  OfflineConfig  `json:"offline" mapstructure:"offline"`
	Sync     SyncConfig     `json:"sync" mapstructure:"sync"`
	Network  NetworkConfig  `json:"network" mapstructure:"network"`
	Storage  StorageConfig  `json:"storage" mapstructure:"storage"`
	Logging  LoggingConfig  `json:"logging" mapstructure:"logging"`
}

// ServerConfig contains music library server settings
type ServerConfig struct {
	BaseURL string `json:"base_url" mapstructure:"base_url"`
	Token   string `json:"token" mapstructure:"token"`
	Profile string `json:"profile" mapstructure:"profile"`
}

// PlaybackConfig contains playback engine settings
type PlaybackConfig struct {
	CrossfadeSeconds  float64 `json:"crossfade_seconds" mapstructure:"crossfade_seconds"`
	LookaheadSeconds  float64 `json:"lookahead_seconds" mapstructure:"lookahead_seconds"`
	PreloadTimeoutSec int     `json:"preload_timeout_sec" mapstructure:"preload_timeout_sec"`
	TickMillis        int     `json:"tick_millis" mapstructure:"tick_millis"`
}

// OfflineConfig contains offline acquisition settings
type OfflineConfig struct {
	CacheDir            string `json:"cache_dir" mapstructure:"cache_dir"`
	ProgressFlushChunks int    `json:"progress_flush_chunks" mapstructure:"progress_flush_chunks"`
	DownloadArtwork     bool   `json:"download_artwork" mapstructure:"download_artwork"`
	ArtworkThumbSize    int    `json:"artwork_thumb_size" mapstructure:"artwork_thumb_size"`
}

// SyncConfig contains action sync queue settings
type SyncConfig struct {
	MaxRetries int `json:"max_retries" mapstructure:"max_retries"`
}

// NetworkConfig contains network-related settings
type NetworkConfig struct {
	Timeout    int `json:"timeout" mapstructure:"timeout"`
	MaxRetries int `json:"max_retries" mapstructure:"max_retries"`
}

// StorageConfig contains persistent store settings
type StorageConfig struct {
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
	DBPath  string `json:"db_path" mapstructure:"db_path"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `json:"level" mapstructure:"level"`
	Format     string `json:"format" mapstructure:"format"`
	Output     string `json:"output" mapstructure:"output"`
	FilePath   string `json:"file_path" mapstructure:"file_path"`
	MaxSizeMB  int    `json:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `json:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `json:"compress" mapstructure:"compress"`
}

// Load loads configuration from file or creates default
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Determine config path
	if configPath == "" {
		configPath = getDefaultConfigPath()
	}

	// Set config file
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	// Ensure config directory exists
	if err := ensureConfigDir(configPath); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found, create with defaults
			if err := v.WriteConfigAs(configPath); err != nil {
				return nil, fmt.Errorf("failed to write default config: %w", err)
			}
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// Allow environment variable overrides
	v.AutomaticEnv()
	v.SetEnvPrefix("AURALIS")

	// Unmarshal config
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Playback validation
	if c.Playback.CrossfadeSeconds < 0 {
		return fmt.Errorf("crossfade duration cannot be negative")
	}

	if c.Playback.CrossfadeSeconds > 30 {
		return fmt.Errorf("crossfade duration cannot exceed 30 seconds")
	}

	if c.Playback.LookaheadSeconds < 0 {
		return fmt.Errorf("preload lookahead cannot be negative")
	}

	if c.Playback.PreloadTimeoutSec < 1 {
		return fmt.Errorf("preload timeout must be at least 1 second")
	}

	if c.Playback.TickMillis < 10 {
		return fmt.Errorf("scheduler tick must be at least 10 milliseconds")
	}

	// Offline validation
	if c.Offline.CacheDir == "" {
		return fmt.Errorf("offline cache directory cannot be empty")
	}

	if c.Offline.ProgressFlushChunks < 1 {
		return fmt.Errorf("progress flush interval must be at least 1 chunk")
	}

	if c.Offline.ArtworkThumbSize < 32 || c.Offline.ArtworkThumbSize > 2048 {
		return fmt.Errorf("artwork thumb size must be between 32 and 2048 pixels")
	}

	// Sync validation
	if c.Sync.MaxRetries < 1 {
		return fmt.Errorf("sync max retries must be at least 1")
	}

	// Network validation
	if c.Network.Timeout < 1 {
		return fmt.Errorf("network timeout must be at least 1 second")
	}

	if c.Network.MaxRetries < 0 {
		return fmt.Errorf("network max retries cannot be negative")
	}

	// Storage validation
	if c.Storage.DataDir == "" {
		return fmt.Errorf("data directory cannot be empty")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (must be json or console)", c.Logging.Format)
	}

	validOutputs := map[string]bool{"file": true, "console": true, "both": true}
	if !validOutputs[c.Logging.Output] {
		return fmt.Errorf("invalid log output: %s (must be file, console, or both)", c.Logging.Output)
	}

	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	dataDir := getDefaultDataDir()

	// Server defaults
	v.SetDefault("server.base_url", "")
	v.SetDefault("server.token", "")
	v.SetDefault("server.profile", "")

	// Playback defaults
	v.SetDefault("playback.crossfade_seconds", 3.0)
	v.SetDefault("playback.lookahead_seconds", 3.0)
	v.SetDefault("playback.preload_timeout_sec", 10)
	v.SetDefault("playback.tick_millis", 250)

	// Offline defaults
	v.SetDefault("offline.cache_dir", filepath.Join(dataDir, "cache"))
	v.SetDefault("offline.progress_flush_chunks", 16)
	v.SetDefault("offline.download_artwork", true)
	v.SetDefault("offline.artwork_thumb_size", 300)

	// Sync defaults
	v.SetDefault("sync.max_retries", 3)

	// Network defaults
	v.SetDefault("network.timeout", 30)
	v.SetDefault("network.max_retries", 3)

	// Storage defaults
	v.SetDefault("storage.data_dir", dataDir)
	v.SetDefault("storage.db_path", filepath.Join(dataDir, "data", "auralis.db"))

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "file")
	v.SetDefault("logging.file_path", filepath.Join(dataDir, "logs", "app.log"))
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 30)
	v.SetDefault("logging.compress", true)
}

// getDefaultConfigPath returns the default configuration file path
func getDefaultConfigPath() string {
	return filepath.Join(getDefaultDataDir(), "config.json")
}

// getDefaultDataDir returns the default data directory
func getDefaultDataDir() string {
	appData := os.Getenv("APPDATA")
	if appData == "" {
		appData = os.Getenv("HOME")
	}
	return filepath.Join(appData, "Auralis")
}

// ensureConfigDir ensures the config directory exists
func ensureConfigDir(configPath string) error {
	return os.MkdirAll(filepath.Dir(configPath), 0755)
}
