package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"synapse/internal/coordinator"
	"synapse/internal/negotiation"

	"github.com/jackc/pgx/v5/pgtype"
)

type SessionSummary struct {
	ID         string              `json:"session_id"`
	Topic      string              `json:"topic,omitempty"`
	FirstMover negotiation.Role    `json:"first_mover"`
	Outcome    negotiation.Outcome `json:"outcome"`
	CreatedAt  time.Time           `json:"created_at"`
	FinishedAt *time.Time          `json:"finished_at,omitempty"`
}

func (s *Store) RecordSession(ctx context.Context, rec coordinator.SessionRecord) error {
	buyer, err := json.Marshal(rec.Buyer)
	if err != nil {
		return err
	}
	seller, err := json.Marshal(rec.Seller)
	if err != nil {
		return err
	}
	_, err = s.Pool.Exec(ctx, `
		INSERT INTO negotiation_sessions (id, topic, first_mover, buyer_config, seller_config, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`,
		rec.ID, rec.Topic, string(rec.FirstMover), buyer, seller, timestamptzParam(rec.CreatedAt))
	return err
}

func (s *Store) RecordMessage(ctx context.Context, sessionID string, m negotiation.Message) error {
	var (
		price    pgtype.Text
		method   pgtype.Text
		round    pgtype.Int4
		proposer pgtype.Text
	)
	if m.Offer != nil {
		price = priceParam(m.Offer.Price)
		method = textParam(m.Offer.PaymentMethod)
		round = int4Param(m.Offer.Round)
		proposer = textParam(string(m.Offer.Proposer))
	}
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO negotiation_messages
			(session_id, seq, id, sender, kind, price, payment_method, offer_round, proposer,
			 accepts, reason, detail, rationale, auto, created_at)
		VALUES ($1, $2, $3, $4, $5, CAST($6::text AS NUMERIC), $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (session_id, seq) DO NOTHING`,
		sessionID, m.Seq, m.ID, string(m.Sender), string(m.Kind), price, method, round, proposer,
		m.Accepts, m.Reason, m.Detail, m.Rationale, m.Auto, timestamptzParam(m.CreatedAt))
	return err
}

func (s *Store) RecordOutcome(ctx context.Context, sessionID string, out negotiation.Outcome) error {
	var price, method pgtype.Text
	if out.Deal != nil {
		price = priceParam(out.Deal.Price)
		method = textParam(out.Deal.PaymentMethod)
	}
	tag, err := s.Pool.Exec(ctx, `
		UPDATE negotiation_sessions
		SET status = $2, reason = $3, detail = $4, summary = $5,
		    deal_price = CAST($6::text AS NUMERIC), deal_payment_method = $7, finished_at = now()
		WHERE id = $1`,
		sessionID, string(out.Status), out.Reason, out.Detail, out.Summary, price, method)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("record outcome %s: %w", sessionID, ErrNotFound)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, id string) (SessionSummary, error) {
	var (
		out        SessionSummary
		firstMover string
		status     string
		price      pgtype.Text
		method     pgtype.Text
		created    pgtype.Timestamptz
		finished   pgtype.Timestamptz
	)
	err := s.Pool.QueryRow(ctx, `
		SELECT id, topic, first_mover, status, reason, detail, summary,
		       deal_price::text, deal_payment_method, created_at, finished_at
		FROM negotiation_sessions WHERE id = $1`, id).
		Scan(&out.ID, &out.Topic, &firstMover, &status, &out.Outcome.Reason, &out.Outcome.Detail,
			&out.Outcome.Summary, &price, &method, &created, &finished)
	if err != nil {
		return SessionSummary{}, mapNotFound(err)
	}
	out.FirstMover = negotiation.Role(firstMover)
	out.Outcome.Status = negotiation.Status(status)
	out.CreatedAt = created.Time
	out.FinishedAt = timePtrVal(finished)
	p, ok, err := priceVal(price)
	if err != nil {
		return SessionSummary{}, err
	}
	if ok {
		out.Outcome.Deal = &negotiation.Offer{Price: p, PaymentMethod: textVal(method)}
	}
	return out, nil
}

// ListMessages returns the logged messages of a session in seq order. Only
// messages from agents with logChat enabled are present.
func (s *Store) ListMessages(ctx context.Context, sessionID string) ([]negotiation.Message, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT seq, id, sender, kind, price::text, payment_method, offer_round, proposer,
		       accepts, reason, detail, rationale, auto, created_at
		FROM negotiation_messages WHERE session_id = $1 ORDER BY seq`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []negotiation.Message
	for rows.Next() {
		var (
			m        negotiation.Message
			sender   string
			kind     string
			price    pgtype.Text
			method   pgtype.Text
			round    pgtype.Int4
			proposer pgtype.Text
			created  pgtype.Timestamptz
		)
		if err := rows.Scan(&m.Seq, &m.ID, &sender, &kind, &price, &method, &round, &proposer,
			&m.Accepts, &m.Reason, &m.Detail, &m.Rationale, &m.Auto, &created); err != nil {
			return nil, err
		}
		m.Sender = negotiation.Role(sender)
		m.Kind = negotiation.Kind(kind)
		m.CreatedAt = created.Time
		p, ok, err := priceVal(price)
		if err != nil {
			return nil, err
		}
		if ok {
			m.Offer = &negotiation.Offer{
				Price:         p,
				PaymentMethod: textVal(method),
				Round:         int(round.Int32),
				Proposer:      negotiation.Role(textVal(proposer)),
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

var _ coordinator.Sink = (*Store)(nil)
