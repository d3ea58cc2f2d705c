package main

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"synapse/internal/config"
	"synapse/internal/coordinator"
	"synapse/internal/negotiation"
	"synapse/internal/policy"

	"github.com/shopspring/decimal"
)

func testDefaults() config.NegotiationConfig {
	agent := config.AgentConfig{
		Aggression:            0,
		MaxRounds:             5,
		PriceMarginPct:        decimal.NewFromInt(10),
		AllowedPaymentMethods: []string{"stripe", "cash"},
	}
	return config.NegotiationConfig{TurnTimeout: 5 * time.Second, FirstMover: "buyer", Buyer: agent, Seller: agent}
}

func TestRunBatchRunsIndependentSessions(t *testing.T) {
	coord := coordinator.New(func(negotiation.Role, negotiation.AgentConfig) negotiation.Policy {
		return policy.RuleBased{}
	}, nil, coordinator.Options{MaxSessions: 3})
	cmd := &RunCmd{ListedPrice: "150", BuyerOpening: "100"}
	params, err := cmd.params()
	if err != nil {
		t.Fatalf("params: %v", err)
	}

	var mu sync.Mutex
	var results []result
	err = runBatch(context.Background(), coord, testDefaults(), params, 3, func(r result) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("run batch: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	seen := map[string]bool{}
	for _, r := range results {
		if r.Outcome.Status != negotiation.StatusDeal || len(r.Messages) != 9 {
			t.Fatalf("unexpected result: %+v", r.Outcome)
		}
		seen[r.ID] = true
	}
	if len(seen) != 3 {
		t.Fatalf("sessions share ids: %v", seen)
	}
	if coord.Len() != 0 {
		t.Fatalf("finished sessions should be closed, %d held", coord.Len())
	}
}

func TestRunBatchRejectsBadConfig(t *testing.T) {
	coord := coordinator.New(func(negotiation.Role, negotiation.AgentConfig) negotiation.Policy {
		return policy.RuleBased{}
	}, nil, coordinator.Options{})
	err := runBatch(context.Background(), coord, testDefaults(), coordinator.StartParams{FirstMover: "broker"}, 1, func(result) {})
	if err == nil {
		t.Fatal("expected an error for an unknown first mover")
	}
}

func TestParamsRejectsBadPrices(t *testing.T) {
	if _, err := (&RunCmd{ListedPrice: "cheap"}).params(); err == nil {
		t.Fatal("expected listed price error")
	}
	if _, err := (&RunCmd{BuyerLimit: "x"}).params(); err == nil {
		t.Fatal("expected buyer limit error")
	}
	p, err := (&RunCmd{SellerOpening: "120", SellerLimit: "90"}).params()
	if err != nil {
		t.Fatalf("params: %v", err)
	}
	if !strings.Contains(string(p.Seller), `"limitPrice":"90"`) || p.Buyer != nil {
		t.Fatalf("unexpected overlays buyer=%s seller=%s", p.Buyer, p.Seller)
	}
}

func TestWriteTranscript(t *testing.T) {
	price := decimal.RequireFromString("120.5")
	var buf bytes.Buffer
	writeTranscript(&buf, result{
		Index: 1,
		ID:    "01TEST",
		Messages: []negotiation.Message{
			{Seq: 1, Sender: negotiation.RoleBuyer, Kind: negotiation.KindOffer, Offer: &negotiation.Offer{Price: price, PaymentMethod: "cash"}, Rationale: "fair start"},
			{Seq: 2, Sender: negotiation.RoleSeller, Kind: negotiation.KindAccept, Offer: &negotiation.Offer{Price: price, PaymentMethod: "cash"}, Accepts: 1, Auto: true},
		},
		Outcome: negotiation.Outcome{Status: negotiation.StatusDeal, Summary: "deal at 120.50 via cash (accepted)"},
	})
	out := buf.String()
	for _, want := range []string{"== negotiation 1 (01TEST)", "120.50 via cash", ": fair start", "(auto)", "-> deal at 120.50"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}
