package httpapi

import (
	"context"
	"log"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"refinery-reports/reports"
)

type ctxKey string

const requestIDKey ctxKey = "request_id"

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey).(string)
	return value
}

func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func Recovery(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Printf("[PANIC] %v request_id=%s\n%s", err, RequestIDFromContext(r.Context()), debug.Stack())
					writeError(w, http.StatusInternalServerError, "Internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Logging writes START/END lines per request and records latency in metrics,
// which may be nil.
func Logging(logger *log.Logger, metrics *reports.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := RequestIDFromContext(r.Context())
			logger.Printf("START %s %s request_id=%s", r.Method, r.URL.Path, requestID)
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			elapsed := time.Since(start)
			metrics.ObserveRequest(r.Method, routeLabel(r.URL.Path), rec.status, elapsed)
			logger.Printf("END %s %s request_id=%s status=%d duration=%s", r.Method, r.URL.Path, requestID, rec.status, elapsed)
		})
	}
}

var knownRoutes = map[string]bool{
	"/api/status":      true,
	"/api/scraper":     true,
	"/api/download":    true,
	"/api/errors":      true,
	"/api/regex":       true,
	"/api/regex/test":  true,
	"/api/regex/parse": true,
	"/api/settings":    true,
	"/api/years":       true,
	"/healthz":         true,
	"/metrics":         true,
}

// routeLabel keeps metric cardinality bounded by folding unknown paths together.
func routeLabel(path string) string {
	if p := strings.TrimSuffix(path, "/"); knownRoutes[p] {
		return p
	}
	return "other"
}

// Chain wraps h so that a request passes through RequestID, Logging and
// Recovery in that order.
func Chain(h http.Handler, logger *log.Logger, metrics *reports.Metrics) http.Handler {
	if logger == nil {
		logger = log.Default()
	}
	h = Recovery(logger)(h)
	h = Logging(logger, metrics)(h)
	return RequestID(h)
}
