package negotiation

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Router owns turn order and is the only writer of the transcript and the
// agents' state.
type Router struct {
	mu         sync.Mutex
	sessionID  string
	agents     map[Role]*Agent
	turn       Role
	round      int
	outcome    Outcome
	transcript *Transcript
	now        func() time.Time
}

func NewRouter(sessionID string, buyer, seller *Agent, first Role, now func() time.Time) (*Router, error) {
	if buyer == nil || seller == nil || buyer.role != RoleBuyer || seller.role != RoleSeller {
		return nil, fmt.Errorf("%w: router needs one buyer and one seller", ErrInvalidConfig)
	}
	if !first.Valid() {
		return nil, fmt.Errorf("%w: unknown first mover %q", ErrInvalidConfig, first)
	}
	if now == nil {
		now = time.Now
	}
	return &Router{
		sessionID:  sessionID,
		agents:     map[Role]*Agent{RoleBuyer: buyer, RoleSeller: seller},
		turn:       first,
		outcome:    Outcome{Status: StatusInProgress},
		transcript: NewTranscript(),
		now:        now,
	}, nil
}

func (r *Router) Transcript() *Transcript {
	return r.transcript
}

func (r *Router) Turn() Role {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.turn
}

func (r *Router) Outcome() Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outcome.clone()
}

func (r *Router) Input(role Role) PolicyInput {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.agents[role]
	return PolicyInput{
		SessionID: r.sessionID,
		Role:      role,
		Config:    a.cfg.clone(),
		State:     a.state.clone(),
		History:   r.transcript.Messages(),
		Round:     r.round + 1,
	}
}

// Submit applies sender's decision. It returns the messages appended, which
// is more than one only when the offer triggered an engine resolution.
// Invalid actions are absorbed as a policy_fault withdraw, so the only
// errors are ErrSessionTerminated and ErrOutOfTurn.
func (r *Router) Submit(sender Role, d Decision) ([]Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.admit(sender); err != nil {
		return nil, err
	}
	actor := r.agents[sender]
	other := r.agents[sender.Counterpart()]
	act := d.Action

	switch act.Kind {
	case KindOffer:
		if actor.exhausted() {
			return r.endWithWithdraw(sender, ReasonRoundsExhausted, "", d.Rationale), nil
		}
		if err := validateOffer(actor, act); err != nil {
			return r.fault(sender, OfferErrorCode(err), d.Rationale), nil
		}
		return r.applyOffer(actor, other, act, d.Rationale), nil

	case KindAccept:
		if err := validateAccept(actor, other.state.LastSent, other.lastSentSeq, act); err != nil {
			return r.fault(sender, OfferErrorCode(err), d.Rationale), nil
		}
		m := r.appendLocked(Message{
			Sender:    sender,
			Kind:      KindAccept,
			Offer:     other.state.LastSent.clone(),
			Accepts:   other.lastSentSeq,
			Rationale: d.Rationale,
		})
		r.finish(StatusDeal, ReasonAccepted, "", other.state.LastSent)
		return []Message{m}, nil

	case KindReject:
		reason := ReasonRejected
		if other.state.LastSent != nil && other.exhausted() {
			reason = ReasonRoundsExhausted
		}
		m := r.appendLocked(Message{
			Sender:    sender,
			Kind:      KindReject,
			Accepts:   other.lastSentSeq,
			Reason:    act.Reason,
			Rationale: d.Rationale,
		})
		r.finish(StatusNoDeal, reason, act.Reason, nil)
		return []Message{m}, nil

	case KindWithdraw:
		m := r.appendLocked(Message{
			Sender:    sender,
			Kind:      KindWithdraw,
			Reason:    act.Reason,
			Rationale: d.Rationale,
		})
		r.finish(StatusNoDeal, ReasonWithdrawn, act.Reason, nil)
		return []Message{m}, nil

	default:
		return r.fault(sender, CodeMalformedAction, d.Rationale), nil
	}
}

// Forfeit ends the session with an engine-generated withdraw from sender,
// used for timeouts and policy failures.
func (r *Router) Forfeit(sender Role, reason, detail string) ([]Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.admit(sender); err != nil {
		return nil, err
	}
	return r.endWithWithdraw(sender, reason, detail, ""), nil
}

func (r *Router) admit(sender Role) error {
	if r.outcome.Status != StatusInProgress {
		return ErrSessionTerminated
	}
	if sender != r.turn {
		return ErrOutOfTurn
	}
	return nil
}

func (r *Router) applyOffer(actor, other *Agent, act Action, rationale string) []Message {
	r.round++
	offer := &Offer{
		Price:         act.Price,
		PaymentMethod: act.PaymentMethod,
		Round:         r.round,
		Proposer:      actor.role,
	}
	m := r.appendLocked(Message{
		Sender:    actor.role,
		Kind:      KindOffer,
		Offer:     offer.clone(),
		Rationale: rationale,
	})
	actor.state.RoundsUsed++
	actor.state.LastSent = offer.clone()
	actor.lastSentSeq = m.Seq
	other.state.LastReceived = offer.clone()
	r.turn = other.role
	out := []Message{m}

	if other.exhausted() && actor.exhausted() {
		return append(out, r.endWithWithdraw(other.role, ReasonRoundsExhausted, "", "")...)
	}

	buyer, seller := r.agents[RoleBuyer], r.agents[RoleSeller]
	if standing := other.state.LastSent; standing != nil && Crosses(buyer.state.LastSent, seller.state.LastSent) {
		if actor.cfg.Allows(standing.PaymentMethod) && withinLimit(actor.role, actor.cfg, standing.Price) {
			acc := r.appendLocked(Message{
				Sender:  actor.role,
				Kind:    KindAccept,
				Offer:   standing.clone(),
				Accepts: other.lastSentSeq,
				Auto:    true,
			})
			r.finish(StatusDeal, ReasonCrossed, "", standing)
			return append(out, acc)
		}
	}

	if rangesDisjoint(buyer, seller) {
		return append(out, r.endWithWithdraw(other.role, ReasonRangesDisjoint, "", "")...)
	}
	return out
}

func (r *Router) fault(sender Role, code, rationale string) []Message {
	log.Warn().
		Str("session_id", r.sessionID).
		Str("sender", string(sender)).
		Str("code", code).
		Msg("policy action rejected")
	return r.endWithWithdraw(sender, ReasonPolicyFault, code, rationale)
}

func (r *Router) endWithWithdraw(sender Role, reason, detail, rationale string) []Message {
	m := r.appendLocked(Message{
		Sender:    sender,
		Kind:      KindWithdraw,
		Reason:    reason,
		Detail:    detail,
		Rationale: rationale,
		Auto:      true,
	})
	r.finish(StatusNoDeal, reason, detail, nil)
	return []Message{m}
}

func (r *Router) appendLocked(m Message) Message {
	m.ID = NewID()
	m.CreatedAt = r.now().UTC()
	m = r.transcript.append(m)
	ev := log.Debug().
		Str("session_id", r.sessionID).
		Int64("seq", m.Seq).
		Str("sender", string(m.Sender)).
		Str("kind", string(m.Kind))
	if m.Offer != nil {
		ev = ev.Str("price", m.Offer.Price.String())
	}
	ev.Msg("negotiation message")
	return m
}

func (r *Router) finish(status Status, reason, detail string, deal *Offer) {
	r.outcome = Outcome{
		Status: status,
		Reason: reason,
		Detail: detail,
		Deal:   deal.clone(),
	}
	r.outcome.Summary = r.outcome.describe()
	log.Info().
		Str("session_id", r.sessionID).
		Str("status", string(status)).
		Str("reason", reason).
		Str("detail", detail).
		Int("messages", r.transcript.Len()).
		Msg("negotiation finished")
	r.transcript.Close()
}

func (r *Router) State(role Role) AgentState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.agents[role].state.clone()
}
