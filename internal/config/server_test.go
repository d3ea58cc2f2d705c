package config

import (
	"testing"
	"time"
)

func TestLoadServerDefaults(t *testing.T) {
	cfg, err := LoadServer()
	if err != nil {
		t.Fatalf("LoadServer() error = %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.PostgresDSN != "" {
		t.Fatalf("PostgresDSN = %q, want empty", cfg.PostgresDSN)
	}
	if cfg.MaxSessions != 1000 {
		t.Fatalf("MaxSessions = %d, want 1000", cfg.MaxSessions)
	}
	if cfg.SessionRetention != 30*time.Minute || cfg.JanitorInterval != time.Minute {
		t.Fatalf("unexpected retention config: %+v", cfg)
	}
}

func TestLoadServerParseTypes(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://localhost:5432/synapse?sslmode=disable")
	t.Setenv("MAX_SESSIONS", "5")
	t.Setenv("SESSION_RETENTION", "90s")

	cfg, err := LoadServer()
	if err != nil {
		t.Fatalf("LoadServer() error = %v", err)
	}
	if cfg.MaxSessions != 5 {
		t.Fatalf("MaxSessions = %d, want 5", cfg.MaxSessions)
	}
	if cfg.SessionRetention != 90*time.Second {
		t.Fatalf("SessionRetention = %v, want 90s", cfg.SessionRetention)
	}
}

func TestLoadServerRejectsBadDuration(t *testing.T) {
	t.Setenv("JANITOR_INTERVAL", "often")
	if _, err := LoadServer(); err == nil {
		t.Fatal("LoadServer() expected error, got nil")
	}
}

func TestLoadServerRejectsNonPositiveLimits(t *testing.T) {
	t.Setenv("MAX_SESSIONS", "0")
	if _, err := LoadServer(); err == nil {
		t.Fatal("LoadServer() expected error for MAX_SESSIONS=0")
	}
}

func TestLoadReasonerDefaults(t *testing.T) {
	cfg, err := LoadReasoner()
	if err != nil {
		t.Fatalf("LoadReasoner() error = %v", err)
	}
	if cfg.Provider != ReasonerGemini || cfg.GeminiModel != "gemini-2.0-flash" || cfg.OpenAIModel != "gpt-4o-mini" {
		t.Fatalf("unexpected reasoner config: %+v", cfg)
	}
	if cfg.Timeout != time.Minute {
		t.Fatalf("Timeout = %v, want 1m", cfg.Timeout)
	}
}
