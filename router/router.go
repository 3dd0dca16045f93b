// router/router.go
package router

import (
	"github.com/dalemusser/inquiry/config"
	"github.com/dalemusser/inquiry/logging"
	"github.com/dalemusser/inquiry/metrics"
	"github.com/dalemusser/inquiry/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// New returns a chi.Router with the standard stack, outermost first:
// RequestID, Recoverer, security headers, body size limit, HTTP metrics,
// request logging, and JSON NotFound/MethodNotAllowed handlers.
//
// chi's RealIP is not installed: the inquiry handler resolves the client IP
// from forwarding headers itself and keeps RemoteAddr as the peer fallback.
// Routes, CORS, health and metrics endpoints are mounted by the caller;
// quietPaths are logged at debug level when they succeed.
func New(coreCfg *config.CoreConfig, logger *zap.Logger, quietPaths ...string) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(logging.Recoverer(logger))
	r.Use(middleware.SecureDefaults())
	r.Use(middleware.LimitBodySize(coreCfg.MaxRequestBodyBytes))
	r.Use(metrics.HTTPMetrics)
	r.Use(logging.RequestLogger(logger, quietPaths...))

	r.NotFound(middleware.NotFoundHandler(logger))
	r.MethodNotAllowed(middleware.MethodNotAllowedHandler(logger))

	return r
}
