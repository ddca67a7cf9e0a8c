package server

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// AdminAuthMiddleware gates read-only admin endpoints behind a bearer key.
// An empty configured key disables the endpoints entirely rather than
// leaving them open.
func AdminAuthMiddleware(adminKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminKey == "" {
				WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
				return
			}

			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if subtle.ConstantTimeCompare([]byte(token), []byte(adminKey)) != 1 {
				WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
