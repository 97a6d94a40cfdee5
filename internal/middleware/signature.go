package middleware

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/solstudio/ig-agent-go/internal/audit"
	"github.com/solstudio/ig-agent-go/internal/util"
)

// SignatureMiddleware verifies Meta's X-Hub-Signature-256 header: a
// sha256 HMAC over the exact raw body bytes, keyed by the app secret.
type SignatureMiddleware struct {
	secret string
}

func NewSignatureMiddleware(secret string) *SignatureMiddleware {
	return &SignatureMiddleware{secret: secret}
}

func (m *SignatureMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.secret == "" {
			log.Warn().Msg("webhook signature verification bypassed: IG_APP_SECRET is not configured")
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("X-Hub-Signature-256")
		if header == "" {
			audit.SignatureRejected(r, "missing signature header")
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Missing signature",
			})
			return
		}

		signature, ok := strings.CutPrefix(header, "sha256=")
		if !ok {
			audit.SignatureRejected(r, "malformed signature header")
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Invalid signature",
			})
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			log.Error().Err(err).Msg("signature middleware: failed to read body")
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "Failed to read request body",
			})
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		computed := util.HmacSHA256(m.secret, body)
		if !util.ConstantTimeEqual(computed, signature) {
			audit.SignatureRejected(r, "signature mismatch")
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Invalid signature",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}
