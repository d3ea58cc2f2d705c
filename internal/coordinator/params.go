package coordinator

import (
	"encoding/json"
	"fmt"
	"time"

	"synapse/internal/config"
	"synapse/internal/negotiation"

	"github.com/shopspring/decimal"
)

// StartParams is the wire form of a start call. The buyer and seller blocks
// overlay the configured defaults field by field.
type StartParams struct {
	Topic         string          `json:"topic,omitempty"`
	ListedPrice   decimal.Decimal `json:"listedPrice"`
	FirstMover    string          `json:"firstMover,omitempty"`
	TurnTimeoutMs int             `json:"turnTimeoutMs,omitempty"`
	Buyer         json.RawMessage `json:"buyer,omitempty"`
	Seller        json.RawMessage `json:"seller,omitempty"`
}

// Resolve merges p over defaults. A positive listed price becomes the
// seller's opening price unless the seller block sets one.
func (p StartParams) Resolve(defaults config.NegotiationConfig) (StartRequest, error) {
	buyer, err := overlay(defaults.Buyer, p.Buyer)
	if err != nil {
		return StartRequest{}, fmt.Errorf("buyer: %w", err)
	}
	seller, err := overlay(defaults.Seller, p.Seller)
	if err != nil {
		return StartRequest{}, fmt.Errorf("seller: %w", err)
	}
	if p.ListedPrice.IsNegative() {
		return StartRequest{}, fmt.Errorf("%w: listedPrice must not be negative", negotiation.ErrInvalidConfig)
	}
	if seller.OpeningPrice.IsZero() && p.ListedPrice.IsPositive() {
		seller.OpeningPrice = p.ListedPrice
	}
	first := p.FirstMover
	if first == "" {
		first = defaults.FirstMover
	}
	role, err := negotiation.ParseRole(first)
	if err != nil {
		return StartRequest{}, err
	}
	if p.TurnTimeoutMs < 0 {
		return StartRequest{}, fmt.Errorf("%w: turnTimeoutMs must not be negative", negotiation.ErrInvalidConfig)
	}
	timeout := defaults.TurnTimeout
	if p.TurnTimeoutMs > 0 {
		timeout = time.Duration(p.TurnTimeoutMs) * time.Millisecond
	}
	topic := p.Topic
	if topic == "" {
		topic = defaults.Topic
	}

	req := StartRequest{Topic: topic, FirstMover: role, TurnTimeout: timeout}
	if req.Buyer, err = buyer.Agent(); err != nil {
		return StartRequest{}, fmt.Errorf("buyer: %w", err)
	}
	if req.Seller, err = seller.Agent(); err != nil {
		return StartRequest{}, fmt.Errorf("seller: %w", err)
	}
	return req, nil
}

func overlay(base config.AgentConfig, raw json.RawMessage) (config.AgentConfig, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return base, nil
	}
	out := base
	out.AllowedPaymentMethods = append([]string(nil), base.AllowedPaymentMethods...)
	if err := json.Unmarshal(raw, &out); err != nil {
		return config.AgentConfig{}, fmt.Errorf("%w: %v", negotiation.ErrInvalidConfig, err)
	}
	return out, nil
}
