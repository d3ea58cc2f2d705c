package negotiation

import "time"

type Kind string

const (
	KindOffer    Kind = "offer"
	KindAccept   Kind = "accept"
	KindReject   Kind = "reject"
	KindWithdraw Kind = "withdraw"
)

func (k Kind) Terminal() bool {
	return k == KindAccept || k == KindReject || k == KindWithdraw
}

// Message is one transcript entry. Offer holds the proposed terms for offers
// and the accepted terms for accepts; Accepts is the seq of the accepted offer.
type Message struct {
	Seq       int64     `json:"seq"`
	ID        string    `json:"id"`
	Sender    Role      `json:"sender"`
	Kind      Kind      `json:"kind"`
	Offer     *Offer    `json:"offer,omitempty"`
	Accepts   int64     `json:"accepts,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Rationale string    `json:"rationale,omitempty"`
	Auto      bool      `json:"auto,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (m Message) clone() Message {
	m.Offer = m.Offer.clone()
	return m
}
