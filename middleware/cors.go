// middleware/cors.go
package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

// CORSOptions configures the cross-origin behavior of the inquiry endpoint.
type CORSOptions struct {
	// AllowedOrigins are exact origins (scheme://host[:port]) that get
	// Access-Control-Allow-Origin echoed back. Empty means no origin is echoed.
	AllowedOrigins []string

	// AllowedMethods defaults to POST, OPTIONS.
	AllowedMethods []string

	// AllowedHeaders defaults to Content-Type, Accept, x-form-token.
	AllowedHeaders []string

	// MaxAge is the preflight cache lifetime in seconds (0 omits the header).
	MaxAge int
}

// DefaultCORSOptions returns the method and header lists the inquiry form needs.
func DefaultCORSOptions(origins []string) CORSOptions {
	return CORSOptions{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Accept", "x-form-token"},
	}
}

// CORS returns a middleware that answers every OPTIONS request itself with
// 204 and no body, always listing the allowed methods and headers, and
// echoing Access-Control-Allow-Origin only for allowlisted origins.
// Non-OPTIONS requests get the origin echo (when allowed) and continue to next.
//
// Origin matching is delegated to go-chi/cors; preflights are passed through
// to the responder below so the status is 204 whether or not the origin matched.
func CORS(opts CORSOptions) func(next http.Handler) http.Handler {
	if len(opts.AllowedMethods) == 0 {
		opts.AllowedMethods = []string{http.MethodPost, http.MethodOptions}
	}
	if len(opts.AllowedHeaders) == 0 {
		opts.AllowedHeaders = []string{"Content-Type", "Accept", "x-form-token"}
	}

	c := cors.New(cors.Options{
		AllowedOrigins:     opts.AllowedOrigins,
		AllowedMethods:     opts.AllowedMethods,
		AllowedHeaders:     opts.AllowedHeaders,
		MaxAge:             opts.MaxAge,
		OptionsPassthrough: true,
	})

	methods := strings.Join(opts.AllowedMethods, ", ")
	headers := strings.Join(opts.AllowedHeaders, ", ")

	return func(next http.Handler) http.Handler {
		preflight := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			h := w.Header()
			h.Set("Access-Control-Allow-Methods", methods)
			h.Set("Access-Control-Allow-Headers", headers)
			w.WriteHeader(http.StatusNoContent)
		})
		return c.Handler(preflight)
	}
}
