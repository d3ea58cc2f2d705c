package httptransport

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"synapse/internal/coordinator"
	"synapse/internal/logging"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog/v3"
)

func APILogMiddleware() func(http.Handler) http.Handler {
	return httplog.RequestLogger(
		slog.New(slog.NewJSONHandler(logging.Writer(), &slog.HandlerOptions{})),
		&httplog.Options{
			Level:              slog.LevelInfo,
			Schema:             httplog.Schema{ResponseStatus: "status", ResponseDuration: "duration_ms"},
			LogRequestBody:     func(*http.Request) bool { return false },
			LogResponseBody:    func(*http.Request) bool { return false },
			LogRequestHeaders:  []string{},
			LogResponseHeaders: []string{},
			LogExtraAttrs: func(req *http.Request, _ string, _ int) []slog.Attr {
				rc := chi.RouteContext(req.Context())
				route := req.URL.Path
				if rc != nil && rc.RoutePattern() != "" {
					route = rc.RoutePattern()
				}
				return []slog.Attr{
					slog.String("request_id", chimw.GetReqID(req.Context())),
					slog.String("method", req.Method),
					slog.String("route", route),
					slog.String("path", req.URL.Path),
				}
			},
		},
	)
}

// BodyCaptureMiddleware attaches bounded request and response bodies to the
// request log. Event streams pass through untouched.
func BodyCaptureMiddleware(limit int) func(http.Handler) http.Handler {
	if limit <= 0 {
		limit = 4096
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSSERequest(r) {
				next.ServeHTTP(w, r)
				return
			}
			var in []byte
			if r.Body != nil {
				in, _ = io.ReadAll(r.Body)
				_ = r.Body.Close()
			}
			r.Body = io.NopCloser(bytes.NewReader(in))

			out := &captureWriter{ResponseWriter: w, tail: limitedBuffer{limit: limit}}
			next.ServeHTTP(out, r)

			req := limitedBuffer{limit: limit}
			_, _ = req.Write(in)
			httplog.SetAttrs(r.Context(),
				slog.Any("request_body", req.value()),
				slog.Bool("request_body_truncated", req.truncated),
				slog.Any("response_body", out.tail.value()),
				slog.Bool("response_body_truncated", out.tail.truncated),
			)
		})
	}
}

type limitedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	room := b.limit - b.buf.Len()
	if len(p) > room {
		b.truncated = true
		p = p[:max(room, 0)]
	}
	b.buf.Write(p)
	return len(p), nil
}

func (b *limitedBuffer) value() any {
	raw := b.buf.Bytes()
	if len(raw) == 0 {
		return ""
	}
	var v any
	if !b.truncated && json.Unmarshal(raw, &v) == nil {
		return v
	}
	return string(raw)
}

type captureWriter struct {
	http.ResponseWriter
	tail limitedBuffer
}

func (c *captureWriter) Write(p []byte) (int, error) {
	_, _ = c.tail.Write(p)
	return c.ResponseWriter.Write(p)
}

func (c *captureWriter) Flush() {
	if f, ok := c.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func WriteHTTPError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": code})
}

func isSSERequest(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		return true
	}
	path := r.URL.Path
	return strings.HasPrefix(path, "/api/negotiations/") && strings.HasSuffix(path, "/events")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status, code := coordinator.MapError(err)
	WriteHTTPError(w, status, code)
}
