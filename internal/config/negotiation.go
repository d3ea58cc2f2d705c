package config

import (
	"fmt"
	"time"

	"synapse/internal/negotiation"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"
)

const (
	DefaultBuyerContent  = "You are a buyer negotiating for a product. Be professional, fair, and focus on getting a good deal within your budget. Always be respectful and courteous."
	DefaultSellerContent = "You are a seller negotiating the sale of a product. Be professional, fair, and aim to get a reasonable price. Always be respectful and courteous."
)

// AgentConfig is the wire and env form of an agent's settings. JSON uses the
// camelCase names agents are configured with.
type AgentConfig struct {
	Aggression            int             `json:"aggression" env:"AGGRESSION" envDefault:"2"`
	MaxRounds             int             `json:"maxRounds" env:"MAX_ROUNDS" envDefault:"5"`
	PriceMarginPct        decimal.Decimal `json:"priceMarginPct" env:"PRICE_MARGIN_PCT" envDefault:"10"`
	ResponseDelayMs       int             `json:"responseDelayMs" env:"RESPONSE_DELAY_MS" envDefault:"0"`
	UseLLM                bool            `json:"useLLM" env:"USE_LLM" envDefault:"true"`
	AllowedPaymentMethods []string        `json:"allowedPaymentMethods" env:"ALLOWED_PAYMENT_METHODS" envDefault:"stripe,cash"`
	LogChat               bool            `json:"logChat" env:"LOG_CHAT" envDefault:"true"`
	Content               string          `json:"content" env:"CONTENT"`
	OpeningPrice          decimal.Decimal `json:"openingPrice" env:"OPENING_PRICE" envDefault:"0"`
	LimitPrice            decimal.Decimal `json:"limitPrice" env:"LIMIT_PRICE" envDefault:"0"`
}

func (c AgentConfig) Agent() (negotiation.AgentConfig, error) {
	out := negotiation.AgentConfig{
		Aggression:            c.Aggression,
		MaxRounds:             c.MaxRounds,
		PriceMarginPct:        c.PriceMarginPct,
		ResponseDelay:         time.Duration(c.ResponseDelayMs) * time.Millisecond,
		UseLLM:                c.UseLLM,
		AllowedPaymentMethods: negotiation.NormalizePaymentMethods(c.AllowedPaymentMethods),
		LogChat:               c.LogChat,
		Content:               c.Content,
		OpeningPrice:          c.OpeningPrice,
		LimitPrice:            c.LimitPrice,
	}
	if err := out.Validate(); err != nil {
		return negotiation.AgentConfig{}, err
	}
	return out, nil
}

type NegotiationConfig struct {
	TurnTimeout time.Duration `env:"TURN_TIMEOUT" envDefault:"30s"`
	FirstMover  string        `env:"FIRST_MOVER" envDefault:"buyer"`
	Topic       string        `env:"TOPIC" envDefault:"Product"`

	Buyer  AgentConfig `envPrefix:"BUYER_"`
	Seller AgentConfig `envPrefix:"SELLER_"`
}

func LoadNegotiation() (NegotiationConfig, error) {
	var cfg NegotiationConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	if cfg.Buyer.Content == "" {
		cfg.Buyer.Content = DefaultBuyerContent
	}
	if cfg.Seller.Content == "" {
		cfg.Seller.Content = DefaultSellerContent
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c NegotiationConfig) Validate() error {
	if _, err := negotiation.ParseRole(c.FirstMover); err != nil {
		return fmt.Errorf("FIRST_MOVER: %w", err)
	}
	if c.TurnTimeout <= 0 {
		return fmt.Errorf("TURN_TIMEOUT: %w: must be positive", negotiation.ErrInvalidConfig)
	}
	if _, err := c.Buyer.Agent(); err != nil {
		return fmt.Errorf("BUYER_: %w", err)
	}
	if _, err := c.Seller.Agent(); err != nil {
		return fmt.Errorf("SELLER_: %w", err)
	}
	return nil
}
