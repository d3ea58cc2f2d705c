package negotiation

import (
	"context"

	"github.com/shopspring/decimal"
)

// Action is what a policy wants to do on its turn. Price and PaymentMethod
// are read for offers only; Accepts optionally pins the offer seq an accept
// refers to.
type Action struct {
	Kind          Kind            `json:"kind"`
	Price         decimal.Decimal `json:"price"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	Accepts       int64           `json:"accepts,omitempty"`
	Reason        string          `json:"reason,omitempty"`
}

func OfferAction(price decimal.Decimal, method string) Action {
	return Action{Kind: KindOffer, Price: price, PaymentMethod: method}
}

func AcceptAction() Action {
	return Action{Kind: KindAccept}
}

func RejectAction(reason string) Action {
	return Action{Kind: KindReject, Reason: reason}
}

func WithdrawAction(reason string) Action {
	return Action{Kind: KindWithdraw, Reason: reason}
}

// Decision is a policy result. Rationale is shown in the transcript and never
// interpreted by the engine.
type Decision struct {
	Action    Action `json:"action"`
	Rationale string `json:"rationale,omitempty"`
}

// PolicyInput is everything one agent may see when deciding a turn.
type PolicyInput struct {
	SessionID string
	Topic     string
	Role      Role
	Config    AgentConfig
	State     AgentState
	History   []Message
	Round     int
}

func (in PolicyInput) RemainingRounds() int {
	if r := in.Config.MaxRounds - in.State.RoundsUsed; r > 0 {
		return r
	}
	return 0
}

// Policy decides one agent's moves. Implementations need not be
// deterministic but must return promptly once ctx is done.
type Policy interface {
	Decide(ctx context.Context, in PolicyInput) (Decision, error)
}

type PolicyFunc func(ctx context.Context, in PolicyInput) (Decision, error)

func (f PolicyFunc) Decide(ctx context.Context, in PolicyInput) (Decision, error) {
	return f(ctx, in)
}
