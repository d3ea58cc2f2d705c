package negotiation

import "testing"

func TestRangesDisjoint(t *testing.T) {
	buyerCfg := testConfig()
	buyerCfg.LimitPrice = dec("100")
	sellerCfg := testConfig()
	sellerCfg.LimitPrice = dec("90")

	buyer, _ := NewAgent(RoleBuyer, buyerCfg, scripted())
	seller, _ := NewAgent(RoleSeller, sellerCfg, scripted())
	if rangesDisjoint(buyer, seller) {
		t.Fatalf("overlapping limits reported disjoint")
	}

	sellerCfg.LimitPrice = dec("120")
	seller, _ = NewAgent(RoleSeller, sellerCfg, scripted())
	buyer.state.LastSent = &Offer{Price: dec("95")}
	buyer.state.RoundsUsed = 4
	if !rangesDisjoint(buyer, seller) {
		t.Fatalf("buyer capped at 100 can never meet a 120 floor")
	}

	buyerCfg.LimitPrice = dec("0")
	buyer, _ = NewAgent(RoleBuyer, buyerCfg, scripted())
	if rangesDisjoint(buyer, seller) {
		t.Fatalf("unbounded buyer reported disjoint")
	}
}

func TestSellerFloorCompoundsMargin(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRounds = 3
	seller, _ := NewAgent(RoleSeller, cfg, scripted())
	seller.state.LastSent = &Offer{Price: dec("100")}
	seller.state.RoundsUsed = 1
	if got := sellerFloor(seller); !got.Equal(dec("81")) {
		t.Fatalf("expected floor 81, got %s", got)
	}
	cfg.LimitPrice = dec("85")
	seller, _ = NewAgent(RoleSeller, cfg, scripted())
	seller.state.LastSent = &Offer{Price: dec("100")}
	seller.state.RoundsUsed = 1
	if got := sellerFloor(seller); !got.Equal(dec("85")) {
		t.Fatalf("expected floor clamped to 85, got %s", got)
	}
}

func TestValidateOfferMargin(t *testing.T) {
	a, _ := NewAgent(RoleSeller, testConfig(), scripted())
	a.state.LastSent = &Offer{Price: dec("150")}
	if err := validateOffer(a, OfferAction(dec("135"), "cash")); err != nil {
		t.Fatalf("offer within margin rejected: %v", err)
	}
	if code := OfferErrorCode(validateOffer(a, OfferAction(dec("134.99"), "cash"))); code != CodeMarginExceeded {
		t.Fatalf("expected margin_exceeded, got %q", code)
	}
	if code := OfferErrorCode(validateOffer(a, OfferAction(dec("165.01"), "cash"))); code != CodeMarginExceeded {
		t.Fatalf("expected margin_exceeded, got %q", code)
	}
}

func TestValidateOfferMarginAfterZero(t *testing.T) {
	a, _ := NewAgent(RoleBuyer, testConfig(), scripted())
	a.state.LastSent = &Offer{Price: dec("0")}
	if err := validateOffer(a, OfferAction(dec("0"), "cash")); err != nil {
		t.Fatalf("repeating 0 rejected: %v", err)
	}
	if code := OfferErrorCode(validateOffer(a, OfferAction(dec("1"), "cash"))); code != CodeMarginExceeded {
		t.Fatalf("expected margin_exceeded after a zero offer, got %q", code)
	}
}

func TestNormalizePaymentMethods(t *testing.T) {
	got := NormalizePaymentMethods([]string{" Stripe", "cash", "", "stripe"})
	if len(got) != 2 || got[0] != "stripe" || got[1] != "cash" {
		t.Fatalf("unexpected methods: %v", got)
	}
}
