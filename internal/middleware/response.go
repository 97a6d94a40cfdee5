package middleware

import (
	"net/http"

	"github.com/solstudio/ig-agent-go/internal/httputil"
)

type contextKey string

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}
