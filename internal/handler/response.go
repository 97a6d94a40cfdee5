package handler

import (
	"net/http"

	"github.com/solstudio/ig-agent-go/internal/httputil"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}
