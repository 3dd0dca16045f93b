// middleware/notfound.go
package middleware

import (
	"net/http"

	"github.com/dalemusser/inquiry/httputil"
	"go.uber.org/zap"
)

// NotFoundHandler logs a 404 and writes the JSON failure envelope.
// Pass it to chi.Router.NotFound.
func NotFoundHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if logger != nil {
			logger.Debug("not_found",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote_ip", r.RemoteAddr),
			)
		}
		httputil.WriteFailure(w, http.StatusNotFound, "Not found")
	}
}

// MethodNotAllowedHandler logs a 405 and writes
// {"success":false,"error":"Method not allowed"}.
// Pass it to chi.Router.MethodNotAllowed.
func MethodNotAllowedHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if logger != nil {
			logger.Debug("method_not_allowed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote_ip", r.RemoteAddr),
			)
		}
		w.Header().Set("Allow", "POST, OPTIONS")
		httputil.WriteFailure(w, http.StatusMethodNotAllowed, MethodNotAllowedMessage)
	}
}

// MethodNotAllowedMessage is the error text of every 405 response.
const MethodNotAllowedMessage = "Method not allowed"
