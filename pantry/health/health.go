// health/health.go
package health

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/dalemusser/inquiry/httputil"
	"go.uber.org/zap"
)

// Check probes one dependency and returns nil when it is healthy.
type Check func(ctx context.Context) error

// Response is the JSON body of the health endpoint.
type Response struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// checkTimeout bounds each probe so a stuck backend cannot hang the endpoint.
const checkTimeout = 2 * time.Second

// Handler runs checks on every request. With no checks it is a liveness
// probe returning {"status":"ok"}. Any failing check turns the response
// into 503 with status "error"; error details are logged, not returned.
func Handler(checks map[string]Check, logger *zap.Logger) http.Handler {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(names) == 0 {
			httputil.WriteJSON(w, http.StatusOK, Response{Status: "ok"})
			return
		}

		results := make(map[string]string, len(names))
		failed := false
		for _, name := range names {
			check := checks[name]
			if check == nil {
				results[name] = "ok"
				continue
			}
			ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
			err := check(ctx)
			cancel()
			if err != nil {
				failed = true
				results[name] = "error"
				if logger != nil {
					logger.Warn("health check failed", zap.String("check", name), zap.Error(err))
				}
				continue
			}
			results[name] = "ok"
		}

		if failed {
			httputil.WriteJSON(w, http.StatusServiceUnavailable, Response{Status: "error", Checks: results})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, Response{Status: "ok", Checks: results})
	})
}
