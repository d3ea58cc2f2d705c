package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type ServerConfig struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	// PostgresDSN enables the chat-log store when set.
	PostgresDSN string `env:"POSTGRES_DSN"`

	MaxSessions      int           `env:"MAX_SESSIONS" envDefault:"1000"`
	SessionRetention time.Duration `env:"SESSION_RETENTION" envDefault:"30m"`
	JanitorInterval  time.Duration `env:"JANITOR_INTERVAL" envDefault:"1m"`
}

func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	if cfg.MaxSessions <= 0 {
		return cfg, fmt.Errorf("MAX_SESSIONS must be positive, got %d", cfg.MaxSessions)
	}
	if cfg.SessionRetention <= 0 || cfg.JanitorInterval <= 0 {
		return cfg, fmt.Errorf("SESSION_RETENTION and JANITOR_INTERVAL must be positive")
	}
	return cfg, nil
}

// TestConfig points DB-backed tests at a scratch database. Tests skip when it
// is unset.
type TestConfig struct {
	TestPostgresDSN string `env:"TEST_POSTGRES_DSN,required,notEmpty"`
}

func LoadTest() (TestConfig, error) {
	var cfg TestConfig
	err := env.Parse(&cfg)
	return cfg, err
}
