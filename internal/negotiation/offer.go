package negotiation

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

func (r Role) Valid() bool {
	return r == RoleBuyer || r == RoleSeller
}

func (r Role) Counterpart() Role {
	if r == RoleBuyer {
		return RoleSeller
	}
	return RoleBuyer
}

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleBuyer, RoleSeller:
		return Role(s), nil
	case "":
		return RoleBuyer, nil
	default:
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidConfig, s)
	}
}

// Offer is one party's proposed terms. Offers are passed by value and never
// mutated after the router records them.
type Offer struct {
	Price         decimal.Decimal `json:"price"`
	PaymentMethod string          `json:"payment_method"`
	Round         int             `json:"round"`
	Proposer      Role            `json:"proposer"`
}

func (o *Offer) clone() *Offer {
	if o == nil {
		return nil
	}
	c := *o
	return &c
}

func Crosses(buyer, seller *Offer) bool {
	if buyer == nil || seller == nil {
		return false
	}
	return buyer.Price.GreaterThanOrEqual(seller.Price)
}
