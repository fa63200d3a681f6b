package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

var localOrigins = []string{"http://localhost:5173"}

func corsOptions(origins []string) cors.Options {
	if len(origins) == 0 {
		origins = localOrigins
	}
	return cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", idempotencyHeader, "X-Requested-With"},
		ExposedHeaders:   []string{requestIDHeader, "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

// CORS applies the configured origin list; an empty list means local dev only.
func CORS(origins []string) func(http.Handler) http.Handler {
	return cors.Handler(corsOptions(origins))
}
