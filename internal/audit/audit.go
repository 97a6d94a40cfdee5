// Package audit emits structured security events so rejected requests
// can be correlated during incident review.
package audit

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

func SignatureRejected(r *http.Request, reason string) {
	log.Warn().
		Str("event", "webhook_signature_rejected").
		Str("reason", reason).
		Str("remoteAddr", r.RemoteAddr).
		Str("path", r.URL.Path).
		Msg("security event")
}

func DispatchAuthRejected(r *http.Request) {
	log.Warn().
		Str("event", "dispatch_auth_rejected").
		Str("remoteAddr", r.RemoteAddr).
		Str("path", r.URL.Path).
		Msg("security event")
}
