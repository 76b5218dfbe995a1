package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"lake-balance/pkg/logging"
	"lake-balance/pkg/metrics"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// RequestID tags every request with an id, reusing the caller's when present,
// and stores it in the request context for logging.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}

// Instrument records request counts, durations and in-flight requests per
// route template, and turns panics into 500 responses.
func Instrument(logger *logging.StructuredLogger, metricsCollector *metrics.Collector) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			endpoint := routeTemplate(r)
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			metricsCollector.ActiveRequests.Inc()
			defer func() {
				if p := recover(); p != nil {
					rec.status = http.StatusInternalServerError
					if !rec.wroteHeader {
						writeJSON(rec, errorBody(http.StatusInternalServerError, "internal error"), http.StatusInternalServerError)
					}
					metricsCollector.RecordAPIError("panic", endpoint)
					logger.Error(r.Context(), "[API_PANIC] Handler panicked", logging.Fields{
						"endpoint": endpoint,
						"method":   r.Method,
					}, fmt.Errorf("panic: %v", p))
				}

				metricsCollector.ActiveRequests.Dec()
				metricsCollector.APIRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
				metricsCollector.RecordAPIRequest(endpoint, r.Method, strconv.Itoa(rec.status))
			}()

			next.ServeHTTP(rec, r)
		})
	}
}

// routeTemplate keeps metric labels bounded by using the matched route
// pattern instead of the raw path.
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.wroteHeader = true
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(p []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	return r.ResponseWriter.Write(p)
}
