package negotiation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusDeal       Status = "deal"
	StatusNoDeal     Status = "no_deal"
)

func (s Status) Terminal() bool {
	return s == StatusDeal || s == StatusNoDeal
}

// Outcome is the session result. Deal holds the agreed terms when Status is
// StatusDeal.
type Outcome struct {
	Status  Status `json:"status"`
	Reason  string `json:"reason,omitempty"`
	Detail  string `json:"detail,omitempty"`
	Summary string `json:"summary,omitempty"`
	Deal    *Offer `json:"deal,omitempty"`
}

func (o Outcome) clone() Outcome {
	o.Deal = o.Deal.clone()
	return o
}

func (o Outcome) describe() string {
	switch o.Status {
	case StatusDeal:
		if o.Deal == nil {
			return "deal reached"
		}
		return fmt.Sprintf("deal at %s via %s (%s)", o.Deal.Price.StringFixed(2), o.Deal.PaymentMethod, o.Reason)
	case StatusNoDeal:
		if o.Detail != "" {
			return fmt.Sprintf("no deal: %s (%s)", o.Reason, o.Detail)
		}
		return "no deal: " + o.Reason
	default:
		return "in progress"
	}
}

type Options struct {
	ID          string
	Topic       string
	FirstMover  Role
	TurnTimeout time.Duration
	// OnMessage is called once per appended message, in seq order, outside
	// the router lock.
	OnMessage func(Message)
	Now       func() time.Time
}

type StepResult struct {
	Status      Status    `json:"status"`
	LastMessage *Message  `json:"last_message,omitempty"`
	Messages    []Message `json:"messages"`
	Outcome     Outcome   `json:"outcome"`
}

type Snapshot struct {
	ID        string     `json:"session_id"`
	Topic     string     `json:"topic,omitempty"`
	Status    Status     `json:"status"`
	Turn      Role       `json:"turn"`
	Messages  int        `json:"messages"`
	Buyer     AgentState `json:"buyer"`
	Seller    AgentState `json:"seller"`
	Outcome   Outcome    `json:"outcome"`
	CreatedAt time.Time  `json:"created_at"`
}

// DefaultTurnTimeout bounds a policy call when Options.TurnTimeout is zero.
const DefaultTurnTimeout = 30 * time.Second

var errTurnTimeout = errors.New("turn_timeout")

// Session drives one negotiation. At most one policy call is in flight.
type Session struct {
	id          string
	topic       string
	router      *Router
	policies    map[Role]Policy
	turnTimeout time.Duration
	onMessage   func(Message)
	createdAt   time.Time

	stepMu sync.Mutex
}

func NewSession(buyer, seller AgentConfig, buyerPolicy, sellerPolicy Policy, opts Options) (*Session, error) {
	if opts.ID == "" {
		opts.ID = NewID()
	}
	if opts.FirstMover == "" {
		opts.FirstMover = RoleBuyer
	}
	if opts.TurnTimeout < 0 {
		return nil, fmt.Errorf("%w: negative turn timeout", ErrInvalidConfig)
	}
	if opts.TurnTimeout == 0 {
		opts.TurnTimeout = DefaultTurnTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	b, err := NewAgent(RoleBuyer, buyer, buyerPolicy)
	if err != nil {
		return nil, err
	}
	s, err := NewAgent(RoleSeller, seller, sellerPolicy)
	if err != nil {
		return nil, err
	}
	router, err := NewRouter(opts.ID, b, s, opts.FirstMover, opts.Now)
	if err != nil {
		return nil, err
	}
	return &Session{
		id:          opts.ID,
		topic:       opts.Topic,
		router:      router,
		policies:    map[Role]Policy{RoleBuyer: buyerPolicy, RoleSeller: sellerPolicy},
		turnTimeout: opts.TurnTimeout,
		onMessage:   opts.OnMessage,
		createdAt:   opts.Now().UTC(),
	}, nil
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Topic() string {
	return s.topic
}

func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

func (s *Session) Status() Status {
	return s.router.Outcome().Status
}

func (s *Session) Outcome() Outcome {
	return s.router.Outcome()
}

func (s *Session) Transcript() *Transcript {
	return s.router.Transcript()
}

func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		ID:        s.id,
		Topic:     s.topic,
		Status:    s.Status(),
		Turn:      s.router.Turn(),
		Messages:  s.router.Transcript().Len(),
		Buyer:     s.router.State(RoleBuyer),
		Seller:    s.router.State(RoleSeller),
		Outcome:   s.router.Outcome(),
		CreatedAt: s.createdAt,
	}
}

// Step plays exactly one turn. If ctx ends before the turn's message is
// appended the turn is discarded and ctx.Err() is returned.
func (s *Session) Step(ctx context.Context) (StepResult, error) {
	s.stepMu.Lock()
	defer s.stepMu.Unlock()

	if s.Status().Terminal() {
		return StepResult{}, ErrSessionTerminated
	}
	role := s.router.Turn()
	in := s.router.Input(role)
	in.Topic = s.topic

	if len(in.History) > 0 {
		if err := pause(ctx, in.Config.ResponseDelay); err != nil {
			return StepResult{}, err
		}
	}

	d, perr := s.decide(ctx, role, in)
	if err := ctx.Err(); err != nil {
		return StepResult{}, err
	}

	var (
		msgs []Message
		err  error
	)
	switch {
	case perr == nil:
		msgs, err = s.router.Submit(role, d)
	case errors.Is(perr, errTurnTimeout):
		log.Warn().Str("session_id", s.id).Str("sender", string(role)).Dur("timeout", s.turnTimeout).Msg("policy timed out")
		msgs, err = s.router.Forfeit(role, ReasonTimeout, "")
	default:
		log.Warn().Err(perr).Str("session_id", s.id).Str("sender", string(role)).Msg("policy failed")
		msgs, err = s.router.Forfeit(role, ReasonPolicyFault, perr.Error())
	}
	if err != nil {
		return StepResult{}, err
	}
	if s.onMessage != nil {
		for _, m := range msgs {
			s.onMessage(m.clone())
		}
	}
	out := s.router.Outcome()
	res := StepResult{Status: out.Status, Messages: msgs, Outcome: out}
	if len(msgs) > 0 {
		last := msgs[len(msgs)-1].clone()
		res.LastMessage = &last
	}
	return res, nil
}

func (s *Session) Run(ctx context.Context) (Outcome, error) {
	for {
		if out := s.Outcome(); out.Status.Terminal() {
			return out, nil
		}
		if _, err := s.Step(ctx); err != nil {
			if errors.Is(err, ErrSessionTerminated) {
				return s.Outcome(), nil
			}
			return s.Outcome(), err
		}
	}
}

// decide runs the policy under the turn timeout. The response delay is not
// part of this budget.
func (s *Session) decide(ctx context.Context, role Role, in PolicyInput) (Decision, error) {
	turnCtx, cancel := context.WithTimeout(ctx, s.turnTimeout)
	defer cancel()

	type result struct {
		d   Decision
		err error
	}
	ch := make(chan result, 1)
	policy := s.policies[role]
	go func() {
		defer func() {
			if p := recover(); p != nil {
				ch <- result{err: fmt.Errorf("%w: panic: %v", ErrPolicyFault, p)}
			}
		}()
		d, err := policy.Decide(turnCtx, in)
		ch <- result{d: d, err: err}
	}()

	select {
	case res := <-ch:
		if res.err != nil && ctx.Err() == nil && errors.Is(turnCtx.Err(), context.DeadlineExceeded) {
			return Decision{}, errTurnTimeout
		}
		return res.d, res.err
	case <-turnCtx.Done():
		if err := ctx.Err(); err != nil {
			return Decision{}, err
		}
		return Decision{}, errTurnTimeout
	}
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
