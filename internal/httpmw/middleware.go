// Package httpmw provides the HTTP front's common middleware.
package httpmw

import (
	"net/http"

	"github.com/jordansnyder/maestra-core/internal/logger"
)

// CORSConfig controls which origins the HTTP front accepts cross-origin
// requests from.
type CORSConfig struct {
	AllowedOrigins   []string
	AllowCredentials bool
}

// CommonMiddleware handles CORS for the HTTP front. Maestra has no
// authentication surface, so this is the only cross-cutting middleware the
// server installs.
func CommonMiddleware(next http.Handler, corsConfig CORSConfig, log logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if origin == "" {
			next.ServeHTTP(w, r)

			return
		}

		allowed := false

		for _, allowedOrigin := range corsConfig.AllowedOrigins {
			if allowedOrigin == origin || allowedOrigin == "*" {
				allowed = true

				w.Header().Set("Access-Control-Allow-Origin", origin)

				break
			}
		}

		if !allowed {
			log.Warn().Str("origin", origin).Msg("CORS: origin not allowed")
			http.Error(w, "Origin not allowed", http.StatusForbidden)

			return
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if corsConfig.AllowCredentials {
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		} else {
			w.Header().Set("Access-Control-Allow-Credentials", "false")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)

			return
		}

		next.ServeHTTP(w, r)
	})
}
