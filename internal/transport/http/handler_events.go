package httptransport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"synapse/internal/coordinator"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

var ssePingInterval = 15 * time.Second

// EventsHandler streams transcript messages as SSE. Each message is sent as a
// "message" event with its seq as the event id; Last-Event-ID resumes after
// that seq. Once the session finishes an "outcome" event closes the stream.
func EventsHandler(coord *coordinator.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "session_id")
		tr, err := coord.Stream(sessionID)
		if err != nil {
			writeError(w, err)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			WriteHTTPError(w, http.StatusInternalServerError, "stream_not_supported")
			return
		}
		var last int64
		if v := r.Header.Get("Last-Event-ID"); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil || n < 0 {
				WriteHTTPError(w, http.StatusBadRequest, "invalid_last_event_id")
				return
			}
			last = n
		}

		metricSSEConnectionsTotal.Add(1)
		metricSSEConnectionsActive.Add(1)
		defer metricSSEConnectionsActive.Add(-1)

		setSSEHeaders(w)
		log.Info().
			Str("request_id", chimw.GetReqID(r.Context())).
			Str("session_id", sessionID).
			Int64("last_event_id", last).
			Msg("sse stream opened")

		// Subscribe before the backfill so nothing appended in between is lost.
		ch := tr.Subscribe()
		defer tr.Unsubscribe(ch)
		for _, m := range tr.After(last) {
			if err := writeSSE(w, strconv.FormatInt(m.Seq, 10), "message", m); err != nil {
				return
			}
			last = m.Seq
		}
		flusher.Flush()

		ticker := time.NewTicker(ssePingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-r.Context().Done():
				log.Info().
					Str("request_id", chimw.GetReqID(r.Context())).
					Str("session_id", sessionID).
					Err(r.Context().Err()).
					Msg("sse stream closed")
				return
			case m, ok := <-ch:
				if !ok {
					writeOutcome(w, coord, sessionID)
					flusher.Flush()
					return
				}
				if m.Seq <= last {
					continue
				}
				if err := writeSSE(w, strconv.FormatInt(m.Seq, 10), "message", m); err != nil {
					return
				}
				last = m.Seq
				flusher.Flush()
			case <-ticker.C:
				if err := writeSSE(w, "", "ping", map[string]any{"ts": time.Now().UnixMilli()}); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}

// writeOutcome sends the final outcome when the session is still held. A
// closed or evicted session ends the stream without one.
func writeOutcome(w http.ResponseWriter, coord *coordinator.Coordinator, sessionID string) {
	snap, err := coord.Status(sessionID)
	if err != nil || !snap.Status.Terminal() {
		return
	}
	_ = writeSSE(w, "", "outcome", snap.Outcome)
}

func setSSEHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}

func writeSSE(w http.ResponseWriter, id, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if id != "" {
		if _, err := fmt.Fprintf(w, "id: %s\n", id); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
