package middleware

import (
	"net/http"
	"strings"

	"github.com/solstudio/ig-agent-go/internal/audit"
	"github.com/solstudio/ig-agent-go/internal/util"
)

// DispatchAuthMiddleware guards the internal dispatch endpoint with a
// shared bearer token.
type DispatchAuthMiddleware struct {
	token string
}

func NewDispatchAuthMiddleware(token string) *DispatchAuthMiddleware {
	return &DispatchAuthMiddleware{token: token}
}

func (m *DispatchAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || m.token == "" || !util.ConstantTimeEqual(token, m.token) {
			audit.DispatchAuthRejected(r)
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Unauthorized",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}
