package daemon

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// authMiddleware requires "Authorization: Bearer <token>" on every request.
// An empty token disables the check.
func authMiddleware(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	want := []byte(token)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		presented, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(presented), want) != 1 {
			w.Header().Set("WWW-Authenticate", `Bearer realm="stageflowd"`)
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
