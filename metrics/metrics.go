// metrics/metrics.go
package metrics

import (
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// reqDuration is a histogram of HTTP request durations in seconds, labeled
// by path, method, and status code.
var reqDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name: "http_request_duration_seconds",
		Help: "Duration of HTTP requests.",
		// buckets in seconds; inquiry POSTs include two SMTP round trips
		Buckets: []float64{0.01, 0.1, 0.3, 1.2, 5, 15, 30},
	},
	[]string{"path", "method", "status"},
)

// admissions counts admission decisions. Callers see the same 200 for
// "accepted" and "rejected"; this counter is where operators tell them apart.
var admissions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "inquiry_admission_total",
		Help: "Inquiry admission decisions by verdict and reject reason.",
	},
	[]string{"verdict", "reason"},
)

// dispatches counts outbound mail attempts by message kind and outcome.
var dispatches = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "inquiry_dispatch_total",
		Help: "Inquiry mail sends by message (operator|acknowledgment) and outcome (sent|failed).",
	},
	[]string{"message", "outcome"},
)

// RegisterDefault registers the Go runtime and process collectors, the HTTP
// request duration histogram, and the inquiry counters. Call it once at
// startup; repeated calls are harmless.
//
// It panics (or exits via logger.Fatal) if registration fails for reasons
// other than the collector already being registered.
func RegisterDefault(logger *zap.Logger) {
	mustRegister(logger, "Go collector", collectors.NewGoCollector())
	mustRegister(logger, "process collector", collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mustRegister(logger, "HTTP request histogram", reqDuration)
	mustRegister(logger, "inquiry admission counter", admissions)
	mustRegister(logger, "inquiry dispatch counter", dispatches)
}

func mustRegister(logger *zap.Logger, name string, c prometheus.Collector) {
	if err := prometheus.Register(c); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return
		}
		if logger != nil {
			logger.Fatal("failed to register "+name, zap.Error(err))
		} else {
			panic("metrics: failed to register " + name + ": " + err.Error())
		}
	}
}

// ObserveAdmission records one admission decision. reason is empty for
// accepted submissions.
func ObserveAdmission(accepted bool, reason string) {
	verdict := "rejected"
	if accepted {
		verdict = "accepted"
		reason = ""
	}
	admissions.WithLabelValues(verdict, reason).Inc()
}

// ObserveDispatch records one mail send attempt.
func ObserveDispatch(message string, err error) {
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	dispatches.WithLabelValues(message, outcome).Inc()
}

// maxPathLabelLength is the maximum length for the path label to prevent
// unbounded cardinality and memory issues in Prometheus.
const maxPathLabelLength = 256

// HTTPMetrics is a middleware that records request duration into the
// http_request_duration_seconds histogram.
//
// It uses the chi route pattern instead of the raw request path to keep
// label cardinality bounded; paths longer than 256 bytes are truncated
// with "...".
func HTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		protoMajor := r.ProtoMajor
		if protoMajor < 1 {
			protoMajor = 1
		}
		ww := middleware.NewWrapResponseWriter(w, protoMajor)

		next.ServeHTTP(ww, r)

		duration := time.Since(start).Seconds()
		statusCode := ww.Status()
		// 0 means WriteHeader was never called, which net/http sends as 200.
		// This middleware sits after logging.Recoverer so panics show as 500.
		if statusCode == 0 {
			statusCode = http.StatusOK
		}
		if statusCode < 100 || statusCode > 599 {
			statusCode = http.StatusInternalServerError
		}

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		if len(path) > maxPathLabelLength {
			truncateLen := maxPathLabelLength - 3
			if truncateLen < 1 {
				truncateLen = 1
			}
			path = truncateUTF8(path, truncateLen) + "..."
		}

		reqDuration.WithLabelValues(
			path,
			r.Method,
			strconv.Itoa(statusCode),
		).Observe(duration)
	})
}

// Handler returns an http.Handler that exposes the Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// truncateUTF8 truncates s to at most maxBytes bytes without splitting
// multi-byte UTF-8 characters.
func truncateUTF8(s string, maxBytes int) string {
	if maxBytes <= 0 {
		return ""
	}
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}
