package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// LogConfig controls the global zerolog logger. File output is capped at
// MaxMB and rolled to a single backup.
type LogConfig struct {
	Level       string `env:"LOG_LEVEL" envDefault:"info"`
	Pretty      bool   `env:"LOG_PRETTY" envDefault:"false"`
	SampleEvery int    `env:"LOG_SAMPLE_EVERY" envDefault:"0"`
	File        string `env:"LOG_FILE"`
	MaxMB       int    `env:"LOG_MAX_MB" envDefault:"10"`
}

func LoadLog() (LogConfig, error) {
	var cfg LogConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	if cfg.SampleEvery < 0 {
		return cfg, fmt.Errorf("LOG_SAMPLE_EVERY must not be negative, got %d", cfg.SampleEvery)
	}
	if cfg.File != "" && cfg.MaxMB <= 0 {
		return cfg, fmt.Errorf("LOG_MAX_MB must be positive when LOG_FILE is set, got %d", cfg.MaxMB)
	}
	return cfg, nil
}
