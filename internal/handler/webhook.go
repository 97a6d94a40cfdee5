package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/solstudio/ig-agent-go/internal/service"
	"github.com/solstudio/ig-agent-go/internal/util"
)

// Ingestor persists a surviving inbound message and arms the dispatcher.
type Ingestor interface {
	Ingest(ctx context.Context, in service.InboundMessage) error
}

// Resetter wipes all stored state for a conversation.
type Resetter interface {
	Reset(ctx context.Context, conversationKey string) error
}

// WebhookHandler receives Instagram messaging events from Meta.
type WebhookHandler struct {
	ingestor      Ingestor
	resetter      Resetter
	verifyToken   string
	allowedSender string
	resetKeyword  string
}

func NewWebhookHandler(ingestor Ingestor, resetter Resetter, verifyToken, allowedSender, resetKeyword string) *WebhookHandler {
	return &WebhookHandler{
		ingestor:      ingestor,
		resetter:      resetter,
		verifyToken:   verifyToken,
		allowedSender: allowedSender,
		resetKeyword:  resetKeyword,
	}
}

// Verify answers Meta's GET subscription handshake: echo the challenge
// when the verify token matches, 403 otherwise.
func (h *WebhookHandler) Verify(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode != "subscribe" || token == "" || token != h.verifyToken {
		log.Warn().Str("mode", mode).Msg("webhook verification rejected")
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(challenge))
}

// Receive handles the signed POST events. It always responds 200 once the
// body parses; internal failures are logged, never surfaced, so Meta does
// not retry-storm the endpoint.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	var event WebhookEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		log.Warn().Err(err).Msg("malformed webhook body")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	for _, entry := range event.Entry {
		for _, m := range entry.Messaging {
			h.handleEvent(r, m)
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *WebhookHandler) handleEvent(r *http.Request, m MessagingEvent) {
	senderID := m.Sender.ID

	switch {
	case m.Message == nil && m.Postback != nil:
		log.Info().Str("senderId", senderID).Str("payload", m.Postback.Payload).Msg("postback ignored")
		return
	case m.Reaction != nil, m.Read != nil:
		return
	case m.Message == nil:
		return
	case m.Message.IsEcho:
		return
	}

	if h.allowedSender != "" && senderID != h.allowedSender {
		return
	}

	ctx := r.Context()
	conversationKey := senderID

	if h.resetKeyword != "" && m.Message.Text == h.resetKeyword {
		if err := h.resetter.Reset(ctx, conversationKey); err != nil {
			log.Error().Err(err).Str("conversationKey", conversationKey).Msg("reset failed")
		}
		return
	}

	payload, err := json.Marshal(m)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal messaging event")
		return
	}

	log.Info().
		Str("conversationKey", conversationKey).
		Str("text", util.Truncate(m.Message.Text, 50)).
		Msg("received instagram message")

	if err := h.ingestor.Ingest(ctx, service.InboundMessage{
		ConversationKey: conversationKey,
		SenderID:        senderID,
		PlatformMID:     m.Message.MID,
		Text:            m.Message.Text,
		Payload:         payload,
	}); err != nil {
		log.Error().Err(err).Str("conversationKey", conversationKey).Msg("failed to ingest message")
	}
}
