package negotiation

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	MinAggression     = 0
	MaxAggression     = 5
	MinMaxRounds      = 1
	MaxMaxRounds      = 10
	MaxResponseDelay  = 5 * time.Second
	maxPriceMarginPct = 30
)

var hundred = decimal.NewFromInt(100)

// AgentConfig is the per-agent configuration snapshot. A session clones it at
// start and never mutates it afterwards.
type AgentConfig struct {
	Aggression            int             `json:"aggression"`
	MaxRounds             int             `json:"max_rounds"`
	PriceMarginPct        decimal.Decimal `json:"price_margin_pct"`
	ResponseDelay         time.Duration   `json:"response_delay"`
	UseLLM                bool            `json:"use_llm"`
	AllowedPaymentMethods []string        `json:"allowed_payment_methods"`
	LogChat               bool            `json:"log_chat"`
	Content               string          `json:"content,omitempty"`
	OpeningPrice          decimal.Decimal `json:"opening_price"`
	LimitPrice            decimal.Decimal `json:"limit_price"`
}

func (c AgentConfig) Validate() error {
	if c.Aggression < MinAggression || c.Aggression > MaxAggression {
		return fmt.Errorf("%w: aggression %d outside %d-%d", ErrInvalidConfig, c.Aggression, MinAggression, MaxAggression)
	}
	if c.MaxRounds < MinMaxRounds || c.MaxRounds > MaxMaxRounds {
		return fmt.Errorf("%w: maxRounds %d outside %d-%d", ErrInvalidConfig, c.MaxRounds, MinMaxRounds, MaxMaxRounds)
	}
	if c.PriceMarginPct.IsNegative() || c.PriceMarginPct.GreaterThan(decimal.NewFromInt(maxPriceMarginPct)) {
		return fmt.Errorf("%w: priceMarginPct %s outside 0-%d", ErrInvalidConfig, c.PriceMarginPct, maxPriceMarginPct)
	}
	if c.ResponseDelay < 0 || c.ResponseDelay > MaxResponseDelay {
		return fmt.Errorf("%w: responseDelayMs %d outside 0-%d", ErrInvalidConfig, c.ResponseDelay.Milliseconds(), MaxResponseDelay.Milliseconds())
	}
	if len(c.AllowedPaymentMethods) == 0 {
		return fmt.Errorf("%w: allowedPaymentMethods is empty", ErrInvalidConfig)
	}
	if c.OpeningPrice.IsNegative() || c.LimitPrice.IsNegative() {
		return fmt.Errorf("%w: prices must be non-negative", ErrInvalidConfig)
	}
	return nil
}

func (c AgentConfig) Allows(method string) bool {
	for _, m := range c.AllowedPaymentMethods {
		if m == method {
			return true
		}
	}
	return false
}

func (c AgentConfig) HasLimit() bool {
	return c.LimitPrice.IsPositive()
}

func (c AgentConfig) MarginOf(price decimal.Decimal) decimal.Decimal {
	return price.Mul(c.PriceMarginPct).Div(hundred)
}

func (c AgentConfig) clone() AgentConfig {
	c.AllowedPaymentMethods = append([]string(nil), c.AllowedPaymentMethods...)
	return c
}

func NormalizePaymentMethods(methods []string) []string {
	out := make([]string, 0, len(methods))
	seen := make(map[string]struct{}, len(methods))
	for _, m := range methods {
		m = strings.ToLower(strings.TrimSpace(m))
		if m == "" {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}
