package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	ReasonerGemini = "gemini"
	ReasonerOpenAI = "openai"
	ReasonerNone   = "none"
)

type ReasonerConfig struct {
	Provider    string        `env:"REASONER_PROVIDER" envDefault:"gemini"`
	Timeout     time.Duration `env:"REASONER_TIMEOUT" envDefault:"60s"`
	Temperature float32       `env:"REASONER_TEMPERATURE" envDefault:"0.7"`

	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	GeminiModel  string `env:"GEMINI_MODEL" envDefault:"gemini-2.0-flash"`

	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	OpenAIModel   string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
}

func LoadReasoner() (ReasonerConfig, error) {
	var cfg ReasonerConfig
	err := env.Parse(&cfg)
	return cfg, err
}
