package negotiation

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func newTestRouter(t *testing.T, buyer, seller AgentConfig) *Router {
	t.Helper()
	b, err := NewAgent(RoleBuyer, buyer, scripted())
	if err != nil {
		t.Fatalf("buyer: %v", err)
	}
	s, err := NewAgent(RoleSeller, seller, scripted())
	if err != nil {
		t.Fatalf("seller: %v", err)
	}
	r, err := NewRouter("s1", b, s, RoleBuyer, nil)
	if err != nil {
		t.Fatalf("router: %v", err)
	}
	return r
}

func submit(t *testing.T, r *Router, role Role, a Action) []Message {
	t.Helper()
	msgs, err := r.Submit(role, Decision{Action: a})
	if err != nil {
		t.Fatalf("submit %s %s: %v", role, a.Kind, err)
	}
	return msgs
}

func TestRouterOutOfTurn(t *testing.T) {
	r := newTestRouter(t, testConfig(), testConfig())
	if _, err := r.Submit(RoleSeller, Decision{Action: OfferAction(dec("150"), "cash")}); !errors.Is(err, ErrOutOfTurn) {
		t.Fatalf("expected ErrOutOfTurn, got %v", err)
	}
	if r.Transcript().Len() != 0 || r.Turn() != RoleBuyer {
		t.Fatalf("out-of-turn submit changed state")
	}
	submit(t, r, RoleBuyer, OfferAction(dec("100"), "cash"))
	if _, err := r.Submit(RoleBuyer, Decision{Action: OfferAction(dec("105"), "cash")}); !errors.Is(err, ErrOutOfTurn) {
		t.Fatalf("expected ErrOutOfTurn, got %v", err)
	}
	st := r.State(RoleBuyer)
	if st.RoundsUsed != 1 || st.LastSent == nil || !st.LastSent.Price.Equal(dec("100")) {
		t.Fatalf("unexpected buyer state: %+v", st)
	}
	if got := r.State(RoleSeller).LastReceived; got == nil || got.Round != 1 {
		t.Fatalf("seller did not receive offer: %+v", got)
	}
}

func TestRouterMarginViolationIsPolicyFault(t *testing.T) {
	r := newTestRouter(t, testConfig(), testConfig())
	submit(t, r, RoleBuyer, OfferAction(dec("100"), "stripe"))
	submit(t, r, RoleSeller, OfferAction(dec("150"), "stripe"))
	msgs := submit(t, r, RoleBuyer, OfferAction(dec("110.01"), "stripe"))
	if len(msgs) != 1 || msgs[0].Kind != KindWithdraw || msgs[0].Reason != ReasonPolicyFault || msgs[0].Detail != CodeMarginExceeded {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
	out := r.Outcome()
	if out.Status != StatusNoDeal || out.Detail != CodeMarginExceeded {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if _, err := r.Submit(RoleSeller, Decision{Action: AcceptAction()}); !errors.Is(err, ErrSessionTerminated) {
		t.Fatalf("expected ErrSessionTerminated, got %v", err)
	}
}

func TestRouterMarginBoundaryAccepted(t *testing.T) {
	r := newTestRouter(t, testConfig(), testConfig())
	submit(t, r, RoleBuyer, OfferAction(dec("100"), "stripe"))
	submit(t, r, RoleSeller, OfferAction(dec("150"), "stripe"))
	msgs := submit(t, r, RoleBuyer, OfferAction(dec("110"), "stripe"))
	if msgs[0].Kind != KindOffer || r.Outcome().Status != StatusInProgress {
		t.Fatalf("offer at the margin must be valid: %+v", msgs)
	}
}

func TestRouterCrossingAutoAccept(t *testing.T) {
	cfg := testConfig()
	cfg.PriceMarginPct = decimal.NewFromInt(30)
	r := newTestRouter(t, cfg, cfg)
	submit(t, r, RoleBuyer, OfferAction(dec("100"), "stripe"))
	submit(t, r, RoleSeller, OfferAction(dec("150"), "stripe"))
	submit(t, r, RoleBuyer, OfferAction(dec("130"), "stripe"))
	msgs := submit(t, r, RoleSeller, OfferAction(dec("120"), "stripe"))
	if len(msgs) != 2 {
		t.Fatalf("expected offer plus auto accept, got %+v", msgs)
	}
	acc := msgs[1]
	if acc.Kind != KindAccept || !acc.Auto || acc.Sender != RoleSeller || acc.Accepts != 3 {
		t.Fatalf("unexpected accept: %+v", acc)
	}
	out := r.Outcome()
	if out.Status != StatusDeal || out.Reason != ReasonCrossed || !out.Deal.Price.Equal(dec("130")) {
		t.Fatalf("deal must settle at the turn holder's offer: %+v", out)
	}
	if r.Transcript().Len() != 5 {
		t.Fatalf("expected 5 messages, got %d", r.Transcript().Len())
	}
}

func TestRouterCrossingSkippedOnPaymentMismatch(t *testing.T) {
	buyer := testConfig()
	buyer.PriceMarginPct = decimal.NewFromInt(30)
	buyer.AllowedPaymentMethods = []string{"stripe"}
	seller := buyer
	seller.AllowedPaymentMethods = []string{"cash"}
	r := newTestRouter(t, buyer, seller)
	submit(t, r, RoleBuyer, OfferAction(dec("100"), "stripe"))
	submit(t, r, RoleSeller, OfferAction(dec("150"), "cash"))
	submit(t, r, RoleBuyer, OfferAction(dec("130"), "stripe"))
	msgs := submit(t, r, RoleSeller, OfferAction(dec("120"), "cash"))
	if len(msgs) != 1 || r.Outcome().Status != StatusInProgress {
		t.Fatalf("crossing with mismatched payment must not resolve: %+v", msgs)
	}
}

func TestRouterAcceptPaymentMismatch(t *testing.T) {
	buyer := testConfig()
	buyer.AllowedPaymentMethods = []string{"stripe"}
	seller := testConfig()
	seller.AllowedPaymentMethods = []string{"cash"}
	r := newTestRouter(t, buyer, seller)
	submit(t, r, RoleBuyer, OfferAction(dec("100"), "stripe"))
	msgs := submit(t, r, RoleSeller, AcceptAction())
	if msgs[0].Kind != KindWithdraw || msgs[0].Detail != CodePaymentMismatch {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
	if out := r.Outcome(); out.Status != StatusNoDeal || out.Reason != ReasonPolicyFault {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestRouterAcceptOutstandingOffer(t *testing.T) {
	r := newTestRouter(t, testConfig(), testConfig())
	if msgs := submit(t, r, RoleBuyer, AcceptAction()); msgs[0].Detail != CodeNoOutstandingOffer {
		t.Fatalf("accept with nothing outstanding: %+v", msgs)
	}

	r = newTestRouter(t, testConfig(), testConfig())
	submit(t, r, RoleBuyer, OfferAction(dec("100"), "stripe"))
	submit(t, r, RoleSeller, OfferAction(dec("150"), "cash"))
	stale := AcceptAction()
	stale.Accepts = 1
	if msgs := submit(t, r, RoleBuyer, stale); msgs[0].Detail != CodeStaleOffer {
		t.Fatalf("accept of superseded offer: %+v", msgs)
	}

	r = newTestRouter(t, testConfig(), testConfig())
	submit(t, r, RoleBuyer, OfferAction(dec("100"), "stripe"))
	submit(t, r, RoleSeller, OfferAction(dec("150"), "cash"))
	msgs := submit(t, r, RoleBuyer, AcceptAction())
	if msgs[0].Kind != KindAccept || msgs[0].Accepts != 2 {
		t.Fatalf("unexpected accept: %+v", msgs)
	}
	out := r.Outcome()
	if out.Status != StatusDeal || out.Reason != ReasonAccepted || out.Deal.PaymentMethod != "cash" {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestRouterInvalidOffers(t *testing.T) {
	cases := []struct {
		name  string
		cfg   func(*AgentConfig)
		offer Action
		code  string
	}{
		{"negative", nil, OfferAction(dec("-1"), "stripe"), CodeNegativePrice},
		{"payment", nil, OfferAction(dec("10"), "paypal"), CodePaymentNotAllowed},
		{"limit", func(c *AgentConfig) { c.LimitPrice = dec("90") }, OfferAction(dec("95"), "stripe"), CodeLimitExceeded},
		{"malformed", nil, Action{Kind: "haggle"}, CodeMalformedAction},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			buyer := testConfig()
			if tc.cfg != nil {
				tc.cfg(&buyer)
			}
			r := newTestRouter(t, buyer, testConfig())
			msgs := submit(t, r, RoleBuyer, tc.offer)
			if msgs[0].Reason != ReasonPolicyFault || msgs[0].Detail != tc.code {
				t.Fatalf("expected %s, got %+v", tc.code, msgs[0])
			}
		})
	}
}

func TestRouterBothBudgetsExpire(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRounds = 1
	r := newTestRouter(t, cfg, cfg)
	submit(t, r, RoleBuyer, OfferAction(dec("100"), "stripe"))
	msgs := submit(t, r, RoleSeller, OfferAction(dec("150"), "stripe"))
	if len(msgs) != 2 || msgs[1].Kind != KindWithdraw || msgs[1].Sender != RoleBuyer {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
	if out := r.Outcome(); out.Status != StatusNoDeal || out.Reason != ReasonRoundsExhausted {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestRouterOfferPastBudget(t *testing.T) {
	buyer := testConfig()
	buyer.MaxRounds = 1
	r := newTestRouter(t, buyer, testConfig())
	submit(t, r, RoleBuyer, OfferAction(dec("100"), "stripe"))
	submit(t, r, RoleSeller, OfferAction(dec("150"), "stripe"))
	msgs := submit(t, r, RoleBuyer, OfferAction(dec("105"), "stripe"))
	if msgs[0].Kind != KindWithdraw || msgs[0].Reason != ReasonRoundsExhausted {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
	if st := r.State(RoleBuyer); st.RoundsUsed != 1 {
		t.Fatalf("rounds used exceeded budget: %d", st.RoundsUsed)
	}
}

func TestRouterRangesDisjoint(t *testing.T) {
	buyer := testConfig()
	buyer.MaxRounds = 2
	buyer.LimitPrice = dec("100")
	seller := testConfig()
	seller.LimitPrice = dec("200")
	r := newTestRouter(t, buyer, seller)
	msgs := submit(t, r, RoleBuyer, OfferAction(dec("90"), "stripe"))
	if len(msgs) != 2 || msgs[1].Reason != ReasonRangesDisjoint || msgs[1].Sender != RoleSeller {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
	if out := r.Outcome(); out.Status != StatusNoDeal || out.Reason != ReasonRangesDisjoint {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestRouterForfeit(t *testing.T) {
	r := newTestRouter(t, testConfig(), testConfig())
	if _, err := r.Forfeit(RoleSeller, ReasonTimeout, ""); !errors.Is(err, ErrOutOfTurn) {
		t.Fatalf("expected ErrOutOfTurn, got %v", err)
	}
	msgs, err := r.Forfeit(RoleBuyer, ReasonTimeout, "")
	if err != nil {
		t.Fatalf("forfeit: %v", err)
	}
	if msgs[0].Kind != KindWithdraw || msgs[0].Reason != ReasonTimeout {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
	if r.Outcome().Summary == "" {
		t.Fatalf("terminal outcome must carry a summary")
	}
}
