package coordinator

import (
	"context"
	"time"

	"synapse/internal/negotiation"

	"github.com/rs/zerolog/log"
)

type SessionRecord struct {
	ID         string
	Topic      string
	FirstMover negotiation.Role
	Buyer      negotiation.AgentConfig
	Seller     negotiation.AgentConfig
	CreatedAt  time.Time
}

// Sink receives chat logs for agents with logChat enabled. Failures are
// logged and never affect the session.
type Sink interface {
	RecordSession(ctx context.Context, rec SessionRecord) error
	RecordMessage(ctx context.Context, sessionID string, m negotiation.Message) error
	RecordOutcome(ctx context.Context, sessionID string, out negotiation.Outcome) error
}

// History serves transcripts of sessions the coordinator no longer holds.
type History interface {
	ListMessages(ctx context.Context, sessionID string) ([]negotiation.Message, error)
}

type LogSink struct{}

func (LogSink) RecordSession(ctx context.Context, rec SessionRecord) error {
	log.Info().
		Str("session_id", rec.ID).
		Str("topic", rec.Topic).
		Str("first_mover", string(rec.FirstMover)).
		Msg("chat session started")
	return nil
}

func (LogSink) RecordMessage(ctx context.Context, sessionID string, m negotiation.Message) error {
	ev := log.Info().
		Str("session_id", sessionID).
		Int64("seq", m.Seq).
		Str("sender", string(m.Sender)).
		Str("kind", string(m.Kind)).
		Str("rationale", m.Rationale)
	if m.Offer != nil {
		ev = ev.Str("price", m.Offer.Price.String()).Str("payment_method", m.Offer.PaymentMethod)
	}
	if m.Reason != "" {
		ev = ev.Str("reason", m.Reason)
	}
	ev.Msg("chat message")
	return nil
}

func (LogSink) RecordOutcome(ctx context.Context, sessionID string, out negotiation.Outcome) error {
	log.Info().
		Str("session_id", sessionID).
		Str("status", string(out.Status)).
		Str("reason", out.Reason).
		Str("summary", out.Summary).
		Msg("chat session finished")
	return nil
}
