package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS lets the browser client send the session and idempotency headers and read back the
// minted session id.
func CORS(origins []string) func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", SessionIDHeader, IdempotencyKeyHeader, requestIDHeader, "X-Requested-With"},
		ExposedHeaders:   []string{SessionIDHeader, requestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}).Handler
}
