package config

import (
	"errors"
	"testing"
	"time"

	"synapse/internal/negotiation"
)

func TestLoadNegotiationDefaults(t *testing.T) {
	cfg, err := LoadNegotiation()
	if err != nil {
		t.Fatalf("LoadNegotiation() error = %v", err)
	}
	if cfg.TurnTimeout != 30*time.Second || cfg.FirstMover != "buyer" {
		t.Fatalf("unexpected session defaults: %+v", cfg)
	}
	b := cfg.Buyer
	if b.Aggression != 2 || b.MaxRounds != 5 || !b.UseLLM || !b.LogChat || b.ResponseDelayMs != 0 {
		t.Fatalf("unexpected buyer defaults: %+v", b)
	}
	if b.PriceMarginPct.String() != "10" {
		t.Fatalf("PriceMarginPct = %s, want 10", b.PriceMarginPct)
	}
	if len(b.AllowedPaymentMethods) != 2 || b.AllowedPaymentMethods[0] != "stripe" || b.AllowedPaymentMethods[1] != "cash" {
		t.Fatalf("AllowedPaymentMethods = %v", b.AllowedPaymentMethods)
	}
	if b.Content != DefaultBuyerContent || cfg.Seller.Content != DefaultSellerContent {
		t.Fatalf("role default personas not applied")
	}
}

func TestLoadNegotiationPrefixes(t *testing.T) {
	t.Setenv("BUYER_AGGRESSION", "4")
	t.Setenv("SELLER_MAX_ROUNDS", "8")
	t.Setenv("SELLER_PRICE_MARGIN_PCT", "12.5")
	t.Setenv("SELLER_ALLOWED_PAYMENT_METHODS", "cash")
	t.Setenv("SELLER_RESPONSE_DELAY_MS", "250")
	t.Setenv("FIRST_MOVER", "seller")

	cfg, err := LoadNegotiation()
	if err != nil {
		t.Fatalf("LoadNegotiation() error = %v", err)
	}
	if cfg.Buyer.Aggression != 4 || cfg.Seller.Aggression != 2 {
		t.Fatalf("prefix leaked between roles: buyer=%d seller=%d", cfg.Buyer.Aggression, cfg.Seller.Aggression)
	}
	seller, err := cfg.Seller.Agent()
	if err != nil {
		t.Fatalf("Agent() error = %v", err)
	}
	if seller.MaxRounds != 8 || seller.PriceMarginPct.String() != "12.5" || seller.ResponseDelay != 250*time.Millisecond {
		t.Fatalf("unexpected seller config: %+v", seller)
	}
	if len(seller.AllowedPaymentMethods) != 1 || seller.AllowedPaymentMethods[0] != "cash" {
		t.Fatalf("AllowedPaymentMethods = %v", seller.AllowedPaymentMethods)
	}
}

func TestLoadNegotiationValidatesRanges(t *testing.T) {
	cases := map[string]string{
		"BUYER_AGGRESSION":         "6",
		"SELLER_MAX_ROUNDS":        "0",
		"BUYER_PRICE_MARGIN_PCT":   "31",
		"SELLER_RESPONSE_DELAY_MS": "5001",
		"TURN_TIMEOUT":             "0s",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := LoadNegotiation(); !errors.Is(err, negotiation.ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestLoadNegotiationRejectsUnknownFirstMover(t *testing.T) {
	t.Setenv("FIRST_MOVER", "broker")
	if _, err := LoadNegotiation(); err == nil {
		t.Fatal("expected error, got nil")
	}
}
