// Package config loads the meetsync client configuration from file and
// environment with sensible defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config holds everything the session needs that is not decided at runtime.
type Config struct {
	// BackendURL is the base URL of the meeting backend API.
	BackendURL string `mapstructure:"backend_url"`
	// Region is the default media region for created meetings.
	Region string `mapstructure:"region"`
	// HTTPTimeout bounds every backend request.
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
	// ActiveSpeakerInterval is the evaluation period handed to the
	// transport's active-speaker detector.
	ActiveSpeakerInterval time.Duration `mapstructure:"active_speaker_interval"`
	// LogLevel is a logrus level name.
	LogLevel string `mapstructure:"log_level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Region:                "us-east-1",
		HTTPTimeout:           15 * time.Second,
		ActiveSpeakerInterval: time.Second,
		LogLevel:              "info",
	}
}

// Load reads meetsync.yaml from the working directory or ./config, then
// applies MEETSYNC_* environment overrides. A missing config file is fine;
// defaults cover everything except the backend URL.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("meetsync")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("meetsync")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := Default()
	// Every key needs a default registered or AutomaticEnv cannot
	// surface it through Unmarshal.
	v.SetDefault("backend_url", "")
	v.SetDefault("region", def.Region)
	v.SetDefault("http_timeout", def.HTTPTimeout)
	v.SetDefault("active_speaker_interval", def.ActiveSpeakerInterval)
	v.SetDefault("log_level", def.LogLevel)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		logrus.WithFields(logrus.Fields{
			"function": "Load",
		}).Debug("no config file found, using defaults")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(level)
	}

	logrus.WithFields(logrus.Fields{
		"function": "Load",
		"region":   cfg.Region,
		"backend":  cfg.BackendURL,
	}).Info("configuration loaded")
	return &cfg, nil
}
