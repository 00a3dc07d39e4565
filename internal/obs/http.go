package obs

import (
	"net/http"
	"time"

	"yanote/internal/logutil"
)

// ResponseRecorder captures the status code written to a ResponseWriter.
type ResponseRecorder struct {
	http.ResponseWriter
	Status       int
	BytesWritten int
}

// NewResponseRecorder wraps w so the status and body size can be logged.
func NewResponseRecorder(w http.ResponseWriter) *ResponseRecorder {
	return &ResponseRecorder{ResponseWriter: w, Status: http.StatusOK}
}

func (r *ResponseRecorder) WriteHeader(status int) {
	r.Status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *ResponseRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.BytesWritten += n
	return n, err
}

// Flush passes through to the underlying writer when it supports flushing.
func (r *ResponseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// RequestContextMiddleware assigns each request a request ID, honoring an
// incoming traceparent header, and echoes the ID on the response.
func RequestContextMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		corr := Correlation{RequestID: newRequestID()}
		if tp := r.Header.Get("traceparent"); tp != "" {
			corr.TraceID = extractTraceID(tp)
		}
		ctx := WithCorrelation(r.Context(), corr)
		w.Header().Set("X-Request-Id", corr.RequestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AccessLogMiddleware logs one line per request with redacted headers.
func AccessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := NewResponseRecorder(w)
		next.ServeHTTP(rec, r)

		From(r.Context()).Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.Status,
			"bytes", rec.BytesWritten,
			"duration_ms", time.Since(start).Milliseconds(),
			"remote", r.RemoteAddr,
			"user_agent", logutil.TruncateForLog(r.UserAgent(), 256),
			"headers", logutil.FormatHeadersForLog(r.Header),
		)
	})
}
