package policy

import (
	"context"
	"errors"
	"fmt"

	"synapse/internal/negotiation"

	"github.com/shopspring/decimal"
)

var errNoAnchor = errors.New("no opening price and no counterpart offer to anchor on")

// RuleBased concedes a share of the remaining gap each round. Aggression 0
// closes the whole gap over the remaining rounds; each level above that
// concedes one sixth less. A single move never exceeds the agent's margin.
type RuleBased struct{}

func (RuleBased) Decide(ctx context.Context, in negotiation.PolicyInput) (negotiation.Decision, error) {
	if err := ctx.Err(); err != nil {
		return negotiation.Decision{}, err
	}
	cfg := in.Config
	theirs := in.State.LastReceived
	method := pickMethod(cfg, theirs)

	if in.State.LastSent == nil {
		open, err := openingPrice(in.Role, cfg, theirs)
		if err != nil {
			return negotiation.Decision{}, err
		}
		if theirs != nil && meets(in.Role, theirs.Price, open) {
			return accept(fmt.Sprintf("%s already meets my opening of %s", theirs.Price.StringFixed(2), open.StringFixed(2))), nil
		}
		return offer(open, method, "opening offer"), nil
	}

	remaining := in.RemainingRounds()
	own := in.State.LastSent.Price
	if remaining == 0 {
		if theirs != nil && withinLimit(in.Role, cfg, theirs.Price) &&
			(cfg.Aggression < negotiation.MaxAggression || meets(in.Role, theirs.Price, own)) {
			return accept("out of rounds, taking the standing offer"), nil
		}
		return negotiation.Decision{
			Action:    negotiation.RejectAction("out of rounds"),
			Rationale: "no rounds left and the standing offer is not acceptable",
		}, nil
	}
	if theirs == nil {
		return offer(own, method, "holding my price"), nil
	}

	planned := concede(in.Role, cfg, own, theirs.Price, remaining)
	if meets(in.Role, theirs.Price, planned) {
		return accept(fmt.Sprintf("%s meets my next price of %s", theirs.Price.StringFixed(2), planned.StringFixed(2))), nil
	}
	return offer(planned, method, fmt.Sprintf("moving from %s to %s", own.StringFixed(2), planned.StringFixed(2))), nil
}

func concede(role negotiation.Role, cfg negotiation.AgentConfig, own, theirs decimal.Decimal, remaining int) decimal.Decimal {
	gap := theirs.Sub(own).Abs()
	share := decimal.NewFromInt(int64(negotiation.MaxAggression + 1 - cfg.Aggression))
	step := gap.Mul(share).Div(decimal.NewFromInt(int64((negotiation.MaxAggression + 1) * remaining)))
	step = decimal.Min(step, cfg.MarginOf(own)).Truncate(2)

	next := own.Sub(step)
	if role == negotiation.RoleBuyer {
		next = own.Add(step)
	}
	return clampToLimit(role, cfg, next)
}

func openingPrice(role negotiation.Role, cfg negotiation.AgentConfig, theirs *negotiation.Offer) (decimal.Decimal, error) {
	var open decimal.Decimal
	switch {
	case cfg.OpeningPrice.IsPositive():
		open = cfg.OpeningPrice
	case theirs != nil:
		open = away(role, theirs.Price, cfg.MarginOf(theirs.Price))
	case cfg.HasLimit():
		open = away(role, cfg.LimitPrice, cfg.MarginOf(cfg.LimitPrice))
	default:
		return decimal.Zero, errNoAnchor
	}
	return clampToLimit(role, cfg, open.Truncate(2)), nil
}

func away(role negotiation.Role, price, delta decimal.Decimal) decimal.Decimal {
	if role == negotiation.RoleBuyer {
		return decimal.Max(price.Sub(delta), decimal.Zero)
	}
	return price.Add(delta)
}

func meets(role negotiation.Role, theirs, mine decimal.Decimal) bool {
	if role == negotiation.RoleBuyer {
		return theirs.LessThanOrEqual(mine)
	}
	return theirs.GreaterThanOrEqual(mine)
}

func withinLimit(role negotiation.Role, cfg negotiation.AgentConfig, price decimal.Decimal) bool {
	if role == negotiation.RoleBuyer {
		return !cfg.HasLimit() || price.LessThanOrEqual(cfg.LimitPrice)
	}
	return price.GreaterThanOrEqual(cfg.LimitPrice)
}

func clampToLimit(role negotiation.Role, cfg negotiation.AgentConfig, price decimal.Decimal) decimal.Decimal {
	if role == negotiation.RoleBuyer {
		if cfg.HasLimit() {
			return decimal.Min(price, cfg.LimitPrice)
		}
		return price
	}
	return decimal.Max(price, cfg.LimitPrice)
}

func pickMethod(cfg negotiation.AgentConfig, theirs *negotiation.Offer) string {
	if theirs != nil && cfg.Allows(theirs.PaymentMethod) {
		return theirs.PaymentMethod
	}
	if len(cfg.AllowedPaymentMethods) == 0 {
		return ""
	}
	return cfg.AllowedPaymentMethods[0]
}

func offer(price decimal.Decimal, method, why string) negotiation.Decision {
	return negotiation.Decision{Action: negotiation.OfferAction(price, method), Rationale: why}
}

func accept(why string) negotiation.Decision {
	return negotiation.Decision{Action: negotiation.AcceptAction(), Rationale: why}
}
