// logging/requestmw.go
package logging

import (
	"net/http"
	"time"

	"github.com/dalemusser/inquiry/pantry/geo/ip"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RequestLogger logs one line per request: 5xx at error, 4xx at warn, the
// rest at info. Paths in quiet (health probes, metrics scrapes) are logged
// at debug. A filtered inquiry shows the same 200 as a genuine one; the
// inquiry handler logs the admission decision separately.
func RequestLogger(logger *zap.Logger, quiet ...string) func(next http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	skip := make(map[string]struct{}, len(quiet))
	for _, p := range quiet {
		skip[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, max(r.ProtoMajor, 1))

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			level := levelFor(status)
			if _, ok := skip[r.URL.Path]; ok && level == zapcore.InfoLevel {
				level = zapcore.DebugLevel
			}
			if ce := logger.Check(level, "http_request"); ce != nil {
				ce.Write(
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", status),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("latency", time.Since(start)),
					zap.String("client_ip", ip.ClientIP(r)),
					zap.String("origin", r.Header.Get("Origin")),
					zap.String("user_agent", r.UserAgent()),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				)
			}
		})
	}
}

func levelFor(status int) zapcore.Level {
	switch {
	case status >= 500:
		return zapcore.ErrorLevel
	case status >= 400:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}
