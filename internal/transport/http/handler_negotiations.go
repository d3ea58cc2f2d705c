package httptransport

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"synapse/internal/config"
	"synapse/internal/coordinator"
	"synapse/internal/negotiation"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

type transcriptResponse struct {
	SessionID string                `json:"session_id"`
	Messages  []negotiation.Message `json:"messages"`
}

type defaultsResponse struct {
	Topic         string             `json:"topic"`
	FirstMover    string             `json:"firstMover"`
	TurnTimeoutMs int64              `json:"turnTimeoutMs"`
	Buyer         config.AgentConfig `json:"buyer"`
	Seller        config.AgentConfig `json:"seller"`
}

func StartHandler(coord *coordinator.Coordinator, defaults config.NegotiationConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricStartRequests.Add(1)
		var params coordinator.StartParams
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil && !errors.Is(err, io.EOF) {
			metricStartErrors.Add(1)
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		req, err := params.Resolve(defaults)
		if err != nil {
			metricStartErrors.Add(1)
			log.Info().Str("request_id", chimw.GetReqID(r.Context())).Err(err).Msg("start rejected")
			writeError(w, err)
			return
		}
		snap, err := coord.Start(r.Context(), req)
		if err != nil {
			metricStartErrors.Add(1)
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, snap)
	}
}

func StepHandler(coord *coordinator.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricStepRequests.Add(1)
		res, err := coord.Step(r.Context(), chi.URLParam(r, "session_id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func RunHandler(coord *coordinator.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricRunRequests.Add(1)
		out, err := coord.Run(r.Context(), chi.URLParam(r, "session_id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func StatusHandler(coord *coordinator.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := coord.Status(chi.URLParam(r, "session_id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func TranscriptHandler(coord *coordinator.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "session_id")
		msgs, err := coord.Messages(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		if msgs == nil {
			msgs = []negotiation.Message{}
		}
		writeJSON(w, http.StatusOK, transcriptResponse{SessionID: id, Messages: msgs})
	}
}

func CloseHandler(coord *coordinator.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := coord.Close(chi.URLParam(r, "session_id")); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}

func DefaultsHandler(defaults config.NegotiationConfig) http.HandlerFunc {
	body := defaultsResponse{
		Topic:         defaults.Topic,
		FirstMover:    defaults.FirstMover,
		TurnTimeoutMs: defaults.TurnTimeout.Milliseconds(),
		Buyer:         defaults.Buyer,
		Seller:        defaults.Seller,
	}
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, body)
	}
}

func HealthHandler(coord *coordinator.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "sessions": coord.Len()})
	}
}
