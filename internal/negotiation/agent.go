package negotiation

import "fmt"

// AgentState is the per-session mutable state of one agent. Only the Router
// writes it.
type AgentState struct {
	RoundsUsed   int    `json:"rounds_used"`
	LastSent     *Offer `json:"last_sent,omitempty"`
	LastReceived *Offer `json:"last_received,omitempty"`
}

func (s AgentState) clone() AgentState {
	s.LastSent = s.LastSent.clone()
	s.LastReceived = s.LastReceived.clone()
	return s
}

type Agent struct {
	role   Role
	cfg    AgentConfig
	policy Policy
	state  AgentState
	// seq of the transcript message carrying state.LastSent
	lastSentSeq int64
}

func NewAgent(role Role, cfg AgentConfig, policy Policy) (*Agent, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidConfig, role)
	}
	if policy == nil {
		return nil, fmt.Errorf("%w: %s has no policy", ErrInvalidConfig, role)
	}
	cfg.AllowedPaymentMethods = NormalizePaymentMethods(cfg.AllowedPaymentMethods)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", role, err)
	}
	return &Agent{role: role, cfg: cfg.clone(), policy: policy}, nil
}

func (a *Agent) Role() Role {
	return a.role
}

func (a *Agent) Config() AgentConfig {
	return a.cfg.clone()
}

func (a *Agent) exhausted() bool {
	return a.state.RoundsUsed >= a.cfg.MaxRounds
}

func (a *Agent) remaining() int {
	if r := a.cfg.MaxRounds - a.state.RoundsUsed; r > 0 {
		return r
	}
	return 0
}
