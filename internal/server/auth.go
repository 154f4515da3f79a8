package server

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

func bearerAuth(token string) func(http.Handler) http.Handler {
	required := strings.TrimSpace(token)
	if required == "" {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := strings.TrimSpace(r.Header.Get("Authorization"))
			candidate := ""
			if strings.HasPrefix(strings.ToLower(header), "bearer ") {
				candidate = strings.TrimSpace(header[7:])
			}
			if subtle.ConstantTimeCompare([]byte(candidate), []byte(required)) != 1 {
				writeJSON(w, http.StatusUnauthorized, map[string]any{
					"success": false,
					"error":   "missing or invalid api token",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
