package config

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/viper"
)

// Config carries the immutable startup configuration: credentials, the admin
// set and data locations. Mutable runtime settings (watch list, subscribers,
// template) live in the settings store instead.
type Config struct {
	Token       string  `mapstructure:"token"`
	AdminIDs    []int64 `mapstructure:"admin_ids"`
	DataDir     string  `mapstructure:"data_dir"`
	LogLevel    string  `mapstructure:"log_level"`
	PollTimeout int     `mapstructure:"poll_timeout"` // long-poll timeout, seconds
}

// Load reads the config file (YAML) with CHANRELAY_* environment overrides.
// A missing token or an empty admin set is fatal at startup.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("data_dir", ".")
	v.SetDefault("log_level", "info")
	v.SetDefault("poll_timeout", 30)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("chanrelay")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.chanrelay")
	}

	v.SetEnvPrefix("CHANRELAY")
	v.AutomaticEnv()
	_ = v.BindEnv("token")
	_ = v.BindEnv("log_level")
	_ = v.BindEnv("data_dir")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Token == "" {
		return nil, errors.New("bot token is not set")
	}
	if len(cfg.AdminIDs) == 0 {
		return nil, errors.New("at least one admin id is required")
	}
	return &cfg, nil
}

// SlogLevel maps the configured level name onto slog; unknown names mean info.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
