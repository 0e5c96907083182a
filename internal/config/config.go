// Package config loads runtime settings from an optional YAML file and the
// environment (FINCAT_ prefix, dots become underscores).
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"server"`
	Database struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"database"`
	VendorMap struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"vendormap"`
	Processing struct {
		MaxFileSizeMB int `mapstructure:"max_file_size_mb"`
		Workers       int `mapstructure:"workers"`
	} `mapstructure:"processing"`
	OCR struct {
		Enabled  bool `mapstructure:"enabled"`
		MaxPages int  `mapstructure:"max_pages"`
	} `mapstructure:"ocr"`
}

// Load reads configuration from path (optional; empty means defaults plus
// environment only).
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("database.path", "finance.db")
	v.SetDefault("vendormap.path", "")
	v.SetDefault("processing.max_file_size_mb", 25)
	v.SetDefault("processing.workers", 4)
	v.SetDefault("ocr.enabled", true)
	v.SetDefault("ocr.max_pages", 3)

	v.SetEnvPrefix("FINCAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config %q: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Processing.Workers < 1 {
		cfg.Processing.Workers = 1
	}
	if cfg.OCR.MaxPages < 1 {
		cfg.OCR.MaxPages = 1
	}
	return &cfg, nil
}
