package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// RequestIDHeader carries the request id between the dashboard and the logs
const RequestIDHeader = "X-Request-Id"

// CORS allows the dashboard origins to use the REST API. PATCH is needed by
// agent updates and swap resolution.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	})

	return c.Handler
}
