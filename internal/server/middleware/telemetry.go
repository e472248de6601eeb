package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"ticketflow/backend/internal/telemetry"
	telemetrydomain "ticketflow/backend/internal/telemetry/domain"
)

// statusRecorder captures the response status for after-the-fact middleware.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

type httpRequestMetadata struct {
	Method     string `json:"method"`
	Path       string `json:"path"`
	Status     int    `json:"status"`
	DurationMs int64  `json:"durationMs"`
	IP         string `json:"ip"`
	UserAgent  string `json:"userAgent,omitempty"`
}

// Telemetry emits a best-effort http_request event per request. emitter may
// be nil, which disables emission entirely.
func Telemetry(emitter telemetry.EventEmitter, next http.Handler) http.Handler {
	if emitter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next.ServeHTTP(rec, r)

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		meta, err := json.Marshal(httpRequestMetadata{
			Method:     r.Method,
			Path:       r.URL.Path,
			Status:     status,
			DurationMs: time.Since(start).Milliseconds(),
			IP:         ClientIP(r),
			UserAgent:  r.UserAgent(),
		})
		if err != nil {
			return
		}
		event := &telemetrydomain.Event{
			EventType: "http_request",
			Source:    "backend",
			Metadata:  meta,
			CreatedAt: start.UTC(),
		}
		if user, ok := GetUser(r.Context()); ok {
			event.UserID = user.ID
		}
		telemetry.EmitAsync(emitter, r.Context(), event)
	})
}
