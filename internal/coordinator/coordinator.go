package coordinator

import (
	"context"
	"errors"
	"sync"
	"time"

	"synapse/internal/negotiation"

	"github.com/rs/zerolog/log"
)

const (
	defaultMaxSessions = 1000
	defaultRetention   = 30 * time.Minute
	sinkTimeout        = 5 * time.Second
)

type PolicyFactory func(role negotiation.Role, cfg negotiation.AgentConfig) negotiation.Policy

type Options struct {
	MaxSessions int
	// TurnTimeout applies when a start request does not set one.
	TurnTimeout time.Duration
	// Retention is how long an idle or finished session is kept.
	Retention time.Duration
	// History, when set, serves transcripts of released sessions.
	History History
	Now     func() time.Time
}

type StartRequest struct {
	Buyer       negotiation.AgentConfig
	Seller      negotiation.AgentConfig
	Topic       string
	FirstMover  negotiation.Role
	TurnTimeout time.Duration
}

type sessionState struct {
	session  *negotiation.Session
	ctx      context.Context
	cancel   context.CancelFunc
	logChat  map[negotiation.Role]bool
	lastSeen time.Time
	inflight int
	recorded bool
}

type Coordinator struct {
	policies PolicyFactory
	sink     Sink
	opts     Options

	mu       sync.Mutex
	sessions map[string]*sessionState
}

func New(policies PolicyFactory, sink Sink, opts Options) *Coordinator {
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = defaultMaxSessions
	}
	if opts.Retention <= 0 {
		opts.Retention = defaultRetention
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Coordinator{
		policies: policies,
		sink:     sink,
		opts:     opts,
		sessions: map[string]*sessionState{},
	}
}

func (c *Coordinator) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.evictIdle(c.opts.Now())
			}
		}
	}()
}

func (c *Coordinator) Start(ctx context.Context, req StartRequest) (negotiation.Snapshot, error) {
	timeout := req.TurnTimeout
	if timeout == 0 {
		timeout = c.opts.TurnTimeout
	}
	first := req.FirstMover
	if first == "" {
		first = negotiation.RoleBuyer
	}
	id := negotiation.NewID()
	st := &sessionState{
		logChat: map[negotiation.Role]bool{
			negotiation.RoleBuyer:  req.Buyer.LogChat,
			negotiation.RoleSeller: req.Seller.LogChat,
		},
		lastSeen: c.opts.Now(),
	}
	sess, err := negotiation.NewSession(
		req.Buyer, req.Seller,
		c.policies(negotiation.RoleBuyer, req.Buyer),
		c.policies(negotiation.RoleSeller, req.Seller),
		negotiation.Options{
			ID:          id,
			Topic:       req.Topic,
			FirstMover:  first,
			TurnTimeout: timeout,
			OnMessage:   func(m negotiation.Message) { c.recordMessage(id, st, m) },
			Now:         c.opts.Now,
		},
	)
	if err != nil {
		metricSessionsRejected.Add(1)
		return negotiation.Snapshot{}, err
	}
	st.session = sess
	st.ctx, st.cancel = context.WithCancel(context.Background())

	c.mu.Lock()
	if len(c.sessions) >= c.opts.MaxSessions {
		c.mu.Unlock()
		st.cancel()
		metricSessionsRejected.Add(1)
		log.Warn().Int("max_sessions", c.opts.MaxSessions).Msg("session capacity exhausted")
		return negotiation.Snapshot{}, ErrCapacity
	}
	c.sessions[id] = st
	c.mu.Unlock()

	metricSessionsStarted.Add(1)
	metricSessionsActive.Add(1)
	log.Info().
		Str("session_id", id).
		Str("topic", req.Topic).
		Str("first_mover", string(first)).
		Dur("turn_timeout", timeout).
		Msg("negotiation started")

	if st.logChat[negotiation.RoleBuyer] || st.logChat[negotiation.RoleSeller] {
		c.toSink(func(ctx context.Context) error {
			return c.sink.RecordSession(ctx, SessionRecord{
				ID:         id,
				Topic:      req.Topic,
				FirstMover: first,
				Buyer:      req.Buyer,
				Seller:     req.Seller,
				CreatedAt:  sess.CreatedAt(),
			})
		})
	}
	return sess.Snapshot(), nil
}

func (c *Coordinator) Step(ctx context.Context, id string) (negotiation.StepResult, error) {
	st, err := c.get(id)
	if err != nil {
		return negotiation.StepResult{}, err
	}
	ctx, cancel := bind(ctx, st.ctx)
	defer cancel()
	c.begin(st)
	defer c.end(st)

	metricStepsTotal.Add(1)
	res, err := st.session.Step(ctx)
	if err != nil {
		metricStepErrors.Add(1)
		if st.ctx.Err() != nil {
			err = ErrSessionNotFound
		}
		return res, err
	}
	c.afterTurn(id, st)
	return res, nil
}

// Run drives the session until it finishes, ctx ends or the session is
// closed.
func (c *Coordinator) Run(ctx context.Context, id string) (negotiation.Outcome, error) {
	st, err := c.get(id)
	if err != nil {
		return negotiation.Outcome{}, err
	}
	ctx, cancel := bind(ctx, st.ctx)
	defer cancel()
	c.begin(st)
	defer c.end(st)

	out, err := st.session.Run(ctx)
	c.afterTurn(id, st)
	if err != nil && st.ctx.Err() != nil {
		err = ErrSessionNotFound
	}
	return out, err
}

func (c *Coordinator) Transcript(id string) ([]negotiation.Message, error) {
	st, err := c.get(id)
	if err != nil {
		return nil, err
	}
	return st.session.Transcript().Messages(), nil
}

// Messages returns the live transcript, falling back to History once the
// session has been released. Only logged messages survive release.
func (c *Coordinator) Messages(ctx context.Context, id string) ([]negotiation.Message, error) {
	msgs, err := c.Transcript(id)
	if !errors.Is(err, ErrSessionNotFound) || c.opts.History == nil {
		return msgs, err
	}
	msgs, err = c.opts.History.ListMessages(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, ErrSessionNotFound
	}
	return msgs, nil
}

func (c *Coordinator) Status(id string) (negotiation.Snapshot, error) {
	st, err := c.get(id)
	if err != nil {
		return negotiation.Snapshot{}, err
	}
	return st.session.Snapshot(), nil
}

func (c *Coordinator) Stream(id string) (*negotiation.Transcript, error) {
	st, err := c.get(id)
	if err != nil {
		return nil, err
	}
	return st.session.Transcript(), nil
}

// Close destroys a session, cancelling any in-flight turn.
func (c *Coordinator) Close(id string) error {
	c.mu.Lock()
	st, ok := c.sessions[id]
	if ok {
		delete(c.sessions, id)
	}
	c.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	c.release(id, st, "closed")
	return nil
}

func (c *Coordinator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

func (c *Coordinator) get(id string) (*sessionState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return st, nil
}

func (c *Coordinator) touch(st *sessionState) {
	c.mu.Lock()
	st.lastSeen = c.opts.Now()
	c.mu.Unlock()
}

// begin marks a turn in flight. The janitor never evicts a busy session.
func (c *Coordinator) begin(st *sessionState) {
	c.mu.Lock()
	st.inflight++
	st.lastSeen = c.opts.Now()
	c.mu.Unlock()
}

func (c *Coordinator) end(st *sessionState) {
	c.mu.Lock()
	st.inflight--
	st.lastSeen = c.opts.Now()
	c.mu.Unlock()
}

func (c *Coordinator) evictIdle(now time.Time) int {
	var stale []string
	var states []*sessionState
	c.mu.Lock()
	for id, st := range c.sessions {
		if st.inflight == 0 && now.Sub(st.lastSeen) > c.opts.Retention {
			stale = append(stale, id)
			states = append(states, st)
			delete(c.sessions, id)
		}
	}
	c.mu.Unlock()
	for i, id := range stale {
		c.release(id, states[i], "expired")
	}
	return len(stale)
}

func (c *Coordinator) release(id string, st *sessionState, why string) {
	st.cancel()
	st.session.Transcript().Close()
	metricSessionsActive.Add(-1)
	metricSessionsEvicted.Add(1)
	log.Info().Str("session_id", id).Str("why", why).Str("status", string(st.session.Status())).Msg("negotiation released")
}

func (c *Coordinator) afterTurn(id string, st *sessionState) {
	out := st.session.Outcome()
	if !out.Status.Terminal() {
		return
	}
	c.mu.Lock()
	first := !st.recorded
	st.recorded = true
	c.mu.Unlock()
	if !first {
		return
	}
	if out.Status == negotiation.StatusDeal {
		metricDealsTotal.Add(1)
	} else {
		metricNoDealTotal.Add(1)
	}
	if st.logChat[negotiation.RoleBuyer] || st.logChat[negotiation.RoleSeller] {
		c.toSink(func(ctx context.Context) error {
			return c.sink.RecordOutcome(ctx, id, out)
		})
	}
}

func (c *Coordinator) recordMessage(id string, st *sessionState, m negotiation.Message) {
	c.touch(st)
	if !st.logChat[m.Sender] {
		return
	}
	c.toSink(func(ctx context.Context) error {
		return c.sink.RecordMessage(ctx, id, m)
	})
}

func (c *Coordinator) toSink(fn func(ctx context.Context) error) {
	if c.sink == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		metricSinkErrors.Add(1)
		log.Warn().Err(err).Msg("chat log sink failed")
	}
}

// bind returns a context cancelled when either ctx or session ends.
func bind(ctx, session context.Context) (context.Context, context.CancelFunc) {
	out, cancel := context.WithCancelCause(ctx)
	stop := context.AfterFunc(session, func() { cancel(errSessionClosed) })
	return out, func() {
		stop()
		cancel(nil)
	}
}

var errSessionClosed = errors.New("session closed")
