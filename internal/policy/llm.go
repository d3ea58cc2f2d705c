package policy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"synapse/internal/negotiation"

	"github.com/shopspring/decimal"
)

type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// LLM delegates each turn to a Completer and parses its JSON reply. The
// engine still validates whatever the model proposes.
type LLM struct {
	completer Completer
}

func NewLLM(c Completer) *LLM {
	return &LLM{completer: c}
}

func (p *LLM) Decide(ctx context.Context, in negotiation.PolicyInput) (negotiation.Decision, error) {
	raw, err := p.completer.Complete(ctx, SystemPrompt(in.Role, in.Config, in.Topic), TurnPrompt(in))
	if err != nil {
		return negotiation.Decision{}, fmt.Errorf("reasoner: %w", err)
	}
	d, err := ParseDecision(raw)
	if err != nil {
		return negotiation.Decision{}, err
	}
	if d.Action.Kind == negotiation.KindOffer && d.Action.PaymentMethod == "" {
		d.Action.PaymentMethod = pickMethod(in.Config, in.State.LastReceived)
	}
	return d, nil
}

var errMalformedReply = errors.New("malformed_reply")

type reply struct {
	Action        string           `json:"action"`
	Type          string           `json:"type"`
	Price         *decimal.Decimal `json:"price"`
	PaymentMethod string           `json:"payment_method"`
	Reason        string           `json:"reason"`
	Rationale     string           `json:"rationale"`
	Reasoning     string           `json:"reasoning"`
}

var actionSynonyms = map[string]negotiation.Kind{
	"offer":        negotiation.KindOffer,
	"counter":      negotiation.KindOffer,
	"counteroffer": negotiation.KindOffer,
	"proposal":     negotiation.KindOffer,
	"accept":       negotiation.KindAccept,
	"acceptance":   negotiation.KindAccept,
	"commitment":   negotiation.KindAccept,
	"reject":       negotiation.KindReject,
	"rejection":    negotiation.KindReject,
	"withdraw":     negotiation.KindWithdraw,
	"abort":        negotiation.KindWithdraw,
	"walk_away":    negotiation.KindWithdraw,
}

// ParseDecision extracts a decision from a model reply. Code fences and
// prose around the JSON object are ignored.
func ParseDecision(raw string) (negotiation.Decision, error) {
	body := raw
	start := strings.IndexByte(body, '{')
	end := strings.LastIndexByte(body, '}')
	if start < 0 || end <= start {
		return negotiation.Decision{}, fmt.Errorf("%w: no json object", errMalformedReply)
	}
	body = body[start : end+1]

	var r reply
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return negotiation.Decision{}, fmt.Errorf("%w: %v", errMalformedReply, err)
	}
	name := r.Action
	if name == "" {
		name = r.Type
	}
	name = strings.ToLower(strings.TrimSpace(strings.ReplaceAll(name, "-", "_")))
	name = strings.ReplaceAll(name, " ", "_")
	if name == "counter_offer" {
		name = "counteroffer"
	}
	kind, ok := actionSynonyms[name]
	if !ok {
		return negotiation.Decision{}, fmt.Errorf("%w: unknown action %q", errMalformedReply, name)
	}

	rationale := r.Rationale
	if rationale == "" {
		rationale = r.Reasoning
	}
	d := negotiation.Decision{Rationale: rationale}
	switch kind {
	case negotiation.KindOffer:
		if r.Price == nil {
			return negotiation.Decision{}, fmt.Errorf("%w: offer without price", errMalformedReply)
		}
		d.Action = negotiation.OfferAction(*r.Price, strings.ToLower(strings.TrimSpace(r.PaymentMethod)))
	case negotiation.KindAccept:
		d.Action = negotiation.AcceptAction()
	case negotiation.KindReject:
		d.Action = negotiation.RejectAction(r.Reason)
	case negotiation.KindWithdraw:
		d.Action = negotiation.WithdrawAction(r.Reason)
	}
	return d, nil
}
