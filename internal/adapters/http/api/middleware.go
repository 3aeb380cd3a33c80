package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/okian/groupsplit/pkg/logger"
	"github.com/okian/groupsplit/pkg/metrics"
)

// MetricsMiddleware counts and times every request to endpoint. Failed
// requests are also counted by error class, and server errors are logged.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	log := logger.Named("http")
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		durationMs := float64(time.Since(start).Microseconds()) / 1000
		status := strconv.Itoa(rec.status)
		metrics.RecordHTTPRequest(endpoint, r.Method, status)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, status, durationMs)

		if class := errorClass(rec.status); class != "" {
			metrics.RecordErrorByComponent("http_"+endpoint, class)
			if rec.status >= http.StatusInternalServerError {
				log.Error(r.Context(), "request failed",
					logger.String("endpoint", endpoint),
					logger.String("method", r.Method),
					logger.Int("status", rec.status),
					logger.Float64("duration_ms", durationMs))
			}
		}
	}
}

// errorClass buckets failing statuses; it is empty for successes.
func errorClass(status int) string {
	switch {
	case status >= http.StatusInternalServerError:
		return "server_error"
	case status == http.StatusConflict:
		return "no_candidates"
	case status == http.StatusNotFound:
		return "not_found"
	case status >= http.StatusBadRequest:
		return "client_error"
	default:
		return ""
	}
}

// statusRecorder remembers the status code written through it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
