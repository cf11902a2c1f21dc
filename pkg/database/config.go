package database

import (
	"time"

	"github.com/spf13/viper"

	"txnstore/pkg/dberr"
)

// Config holds the startup parameters the core needs: buffer pool
// capacity, page size, lock timeout, and log path. LoadConfig fills it
// from defaults, an optional config file, and TXNSTORE_-prefixed
// environment variables.
type Config struct {
	DataDir            string        `mapstructure:"data_dir"`
	LogPath            string        `mapstructure:"log_path"`
	BufferPoolCapacity int           `mapstructure:"buffer_pool_capacity"`
	PageSize           int           `mapstructure:"page_size"`
	LockTimeout        time.Duration `mapstructure:"lock_timeout"`
}

// DefaultConfig returns the settings used when no config file is present.
func DefaultConfig() Config {
	return Config{
		DataDir:            "data",
		LogPath:            "data/wal.log",
		BufferPoolCapacity: 50,
		PageSize:           4096,
		LockTimeout:        30 * time.Second,
	}
}

// LoadConfig reads configuration from path (if non-empty) layered over
// the defaults, using viper so operators can supply YAML, TOML, or JSON
// interchangeably, plus TXNSTORE_-prefixed environment overrides.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	cfg := DefaultConfig()

	v.SetDefault("data_dir", cfg.DataDir)
	v.SetDefault("log_path", cfg.LogPath)
	v.SetDefault("buffer_pool_capacity", cfg.BufferPoolCapacity)
	v.SetDefault("page_size", cfg.PageSize)
	v.SetDefault("lock_timeout", cfg.LockTimeout)

	v.SetEnvPrefix("TXNSTORE")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, dberr.Wrap(err, "LoadConfig", "database")
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, dberr.Wrap(err, "LoadConfig", "database")
	}
	return cfg, nil
}
