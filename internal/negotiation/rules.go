package negotiation

import "github.com/shopspring/decimal"

// validateOffer checks a proposed offer against the proposer's configuration
// and its own previous offer. The margin scales with the previous price, so
// after offering 0 the agent can only repeat 0.
func validateOffer(a *Agent, act Action) error {
	if act.Price.IsNegative() {
		return invalid(CodeNegativePrice)
	}
	if !a.cfg.Allows(act.PaymentMethod) {
		return invalid(CodePaymentNotAllowed)
	}
	if prev := a.state.LastSent; prev != nil {
		if act.Price.Sub(prev.Price).Abs().GreaterThan(a.cfg.MarginOf(prev.Price)) {
			return invalid(CodeMarginExceeded)
		}
	}
	if !withinLimit(a.role, a.cfg, act.Price) {
		return invalid(CodeLimitExceeded)
	}
	return nil
}

// validateAccept checks that the acceptor may take the counterpart's
// outstanding offer. outstandingSeq is the seq of that offer.
func validateAccept(a *Agent, outstanding *Offer, outstandingSeq int64, act Action) error {
	if outstanding == nil {
		return invalid(CodeNoOutstandingOffer)
	}
	if act.Accepts != 0 && act.Accepts != outstandingSeq {
		return invalid(CodeStaleOffer)
	}
	if !a.cfg.Allows(outstanding.PaymentMethod) {
		return invalid(CodePaymentMismatch)
	}
	if !withinLimit(a.role, a.cfg, outstanding.Price) {
		return invalid(CodeLimitExceeded)
	}
	return nil
}

func withinLimit(role Role, cfg AgentConfig, price decimal.Decimal) bool {
	if role == RoleBuyer {
		return !cfg.HasLimit() || price.LessThanOrEqual(cfg.LimitPrice)
	}
	return price.GreaterThanOrEqual(cfg.LimitPrice)
}

func buyerCeiling(a *Agent) *decimal.Decimal {
	var limit *decimal.Decimal
	if a.cfg.HasLimit() {
		l := a.cfg.LimitPrice
		limit = &l
	}
	last := a.state.LastSent
	if last == nil {
		return limit
	}
	step := decimal.NewFromInt(1).Add(a.cfg.PriceMarginPct.Div(hundred))
	reach := last.Price
	for i := 0; i < a.remaining(); i++ {
		reach = reach.Mul(step)
		if limit != nil && reach.GreaterThanOrEqual(*limit) {
			return limit
		}
	}
	return &reach
}

func sellerFloor(a *Agent) decimal.Decimal {
	last := a.state.LastSent
	if last == nil {
		return a.cfg.LimitPrice
	}
	step := decimal.NewFromInt(1).Sub(a.cfg.PriceMarginPct.Div(hundred))
	reach := last.Price
	for i := 0; i < a.remaining(); i++ {
		reach = reach.Mul(step)
		if reach.LessThanOrEqual(a.cfg.LimitPrice) {
			return a.cfg.LimitPrice
		}
	}
	return reach
}

// rangesDisjoint reports whether no price exists that one side can still
// offer and the other side can accept.
func rangesDisjoint(buyer, seller *Agent) bool {
	if !buyer.cfg.HasLimit() {
		return false
	}
	sellerCanMeet := sellerFloor(seller).LessThanOrEqual(buyer.cfg.LimitPrice)
	ceiling := buyerCeiling(buyer)
	buyerCanMeet := ceiling == nil || ceiling.GreaterThanOrEqual(seller.cfg.LimitPrice)
	return !sellerCanMeet && !buyerCanMeet
}
