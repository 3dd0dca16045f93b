// logging/recovermw.go
package logging

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/dalemusser/inquiry/httputil"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// InternalErrorMessage is the only detail a client sees for a panic.
const InternalErrorMessage = "Internal server error"

// Recoverer turns a panic into a logged error with stack trace and, when
// nothing has been written yet, a 500 failure envelope. http.ErrAbortHandler
// is re-raised so net/http can abort the connection.
func Recoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, max(r.ProtoMajor, 1))

			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}

				logger.Error("panic recovered",
					zap.Any("panic", rec),
					zap.ByteString("stack", debug.Stack()),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				)
				if ww.Status() != 0 {
					// too late for a clean response
					return
				}
				httputil.WriteFailure(w, http.StatusInternalServerError, InternalErrorMessage)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
