package coordinator

import (
	"context"
	"errors"
	"net/http"

	"synapse/internal/negotiation"
)

var (
	ErrSessionNotFound = errors.New("session_not_found")
	ErrCapacity        = errors.New("session_capacity_exhausted")
)

func MapError(err error) (int, string) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, ErrCapacity):
		return http.StatusServiceUnavailable, "session_capacity_exhausted"
	case errors.Is(err, negotiation.ErrSessionTerminated):
		return http.StatusConflict, "session_terminated"
	case errors.Is(err, negotiation.ErrOutOfTurn):
		return http.StatusConflict, "out_of_turn"
	case errors.Is(err, negotiation.ErrInvalidConfig):
		return http.StatusBadRequest, "invalid_config"
	case errors.Is(err, negotiation.ErrInvalidOffer):
		return http.StatusBadRequest, "invalid_offer"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout, "request_cancelled"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
