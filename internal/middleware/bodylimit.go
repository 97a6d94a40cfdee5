package middleware

import (
	"net/http"
)

// BodyLimit rejects requests whose declared length exceeds maxSize and caps
// reads on the rest. Webhook batches from the messaging platform are a few
// KB; anything near the limit is not a webhook.
func BodyLimit(maxSize int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxSize {
				writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
					"error": "request body too large",
				})
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxSize)
			next.ServeHTTP(w, r)
		})
	}
}
