package negotiation

import "errors"

var (
	ErrOutOfTurn         = errors.New("out_of_turn")
	ErrSessionTerminated = errors.New("session_terminated")
	ErrInvalidOffer      = errors.New("invalid_offer")
	ErrPolicyFault       = errors.New("policy_fault")
	ErrInvalidConfig     = errors.New("invalid_config")
)

// Validation codes carried by OfferError and by the detail of a
// policy_fault withdraw.
const (
	CodeNegativePrice      = "negative_price"
	CodeMissingPrice       = "missing_price"
	CodeMarginExceeded     = "margin_exceeded"
	CodePaymentNotAllowed  = "payment_not_allowed"
	CodePaymentMismatch    = "payment_mismatch"
	CodeLimitExceeded      = "limit_exceeded"
	CodeNoOutstandingOffer = "no_outstanding_offer"
	CodeStaleOffer         = "stale_offer"
	CodeMalformedAction    = "malformed_action"
)

const (
	ReasonAccepted        = "accepted"
	ReasonCrossed         = "offers_crossed"
	ReasonRejected        = "rejected"
	ReasonWithdrawn       = "withdrawn"
	ReasonRoundsExhausted = "rounds_exhausted"
	ReasonRangesDisjoint  = "ranges_disjoint"
	ReasonTimeout         = "timeout"
	ReasonPolicyFault     = "policy_fault"
)

type OfferError struct {
	Code string
}

func (e *OfferError) Error() string {
	return "invalid_offer: " + e.Code
}

func (e *OfferError) Is(target error) bool {
	return target == ErrInvalidOffer
}

func invalid(code string) error {
	return &OfferError{Code: code}
}

func OfferErrorCode(err error) string {
	var oe *OfferError
	if errors.As(err, &oe) {
		return oe.Code
	}
	return ""
}
