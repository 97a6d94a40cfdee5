package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solstudio/ig-agent-go/internal/service"
)

type fakeIngestor struct {
	err      error
	ingested []service.InboundMessage
}

func (f *fakeIngestor) Ingest(ctx context.Context, in service.InboundMessage) error {
	if f.err != nil {
		return f.err
	}
	f.ingested = append(f.ingested, in)
	return nil
}

type fakeResetter struct {
	reset []string
}

func (f *fakeResetter) Reset(ctx context.Context, conversationKey string) error {
	f.reset = append(f.reset, conversationKey)
	return nil
}

func newWebhookHandler(allowedSender, resetKeyword string) (*WebhookHandler, *fakeIngestor, *fakeResetter) {
	ingestor := &fakeIngestor{}
	resetter := &fakeResetter{}
	h := NewWebhookHandler(ingestor, resetter, "verify-token", allowedSender, resetKeyword)
	return h, ingestor, resetter
}

func TestWebhookVerify(t *testing.T) {
	t.Run("echoes challenge for correct token", func(t *testing.T) {
		h, _, _ := newWebhookHandler("", "")
		req := httptest.NewRequest(http.MethodGet,
			"/webhook/instagram?hub.mode=subscribe&hub.verify_token=verify-token&hub.challenge=abc123", nil)
		rec := httptest.NewRecorder()

		h.Verify(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "abc123", rec.Body.String())
	})

	t.Run("forbidden for wrong token", func(t *testing.T) {
		h, _, _ := newWebhookHandler("", "")
		req := httptest.NewRequest(http.MethodGet,
			"/webhook/instagram?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=abc123", nil)
		rec := httptest.NewRecorder()

		h.Verify(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("forbidden for wrong mode", func(t *testing.T) {
		h, _, _ := newWebhookHandler("", "")
		req := httptest.NewRequest(http.MethodGet,
			"/webhook/instagram?hub.mode=unsubscribe&hub.verify_token=verify-token&hub.challenge=abc123", nil)
		rec := httptest.NewRecorder()

		h.Verify(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func messageEvent(senderID, mid, text string) string {
	return fmt.Sprintf(
		`{"sender":{"id":"%s"},"recipient":{"id":"page"},"timestamp":1700000000,"message":{"mid":"%s","text":"%s"}}`,
		senderID, mid, text)
}

func webhookBody(events ...string) string {
	return `{"object":"instagram","entry":[{"id":"page","time":1700000000,"messaging":[` +
		strings.Join(events, ",") + `]}]}`
}

func postWebhook(t *testing.T, h *WebhookHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook/instagram", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Receive(rec, req)
	return rec
}

func TestWebhookReceive(t *testing.T) {
	t.Run("ingests text messages", func(t *testing.T) {
		h, ingestor, _ := newWebhookHandler("", "")

		rec := postWebhook(t, h, webhookBody(
			messageEvent("123", "mid.1", "hi"),
			messageEvent("123", "mid.2", "can I join?"),
		))

		assert.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, ingestor.ingested, 2)
		assert.Equal(t, "123", ingestor.ingested[0].ConversationKey)
		assert.Equal(t, "mid.1", ingestor.ingested[0].PlatformMID)
		assert.Equal(t, "can I join?", ingestor.ingested[1].Text)
	})

	t.Run("discards echoes reactions reads and postbacks", func(t *testing.T) {
		h, ingestor, _ := newWebhookHandler("", "")

		rec := postWebhook(t, h, webhookBody(
			`{"sender":{"id":"123"},"message":{"mid":"mid.echo","text":"bot says","is_echo":true}}`,
			`{"sender":{"id":"123"},"reaction":{"mid":"mid.1","action":"react"}}`,
			`{"sender":{"id":"123"},"read":{"mid":"mid.1"}}`,
			`{"sender":{"id":"123"},"postback":{"title":"Book","payload":"BOOK"}}`,
			`{"sender":{"id":"123"}}`,
		))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, ingestor.ingested)
	})

	t.Run("filters senders outside the test allowlist", func(t *testing.T) {
		h, ingestor, _ := newWebhookHandler("123", "")

		rec := postWebhook(t, h, webhookBody(
			messageEvent("123", "mid.1", "hi"),
			messageEvent("999", "mid.2", "hello"),
		))

		assert.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, ingestor.ingested, 1)
		assert.Equal(t, "123", ingestor.ingested[0].SenderID)
	})

	t.Run("reset keyword wipes state and skips ingestion", func(t *testing.T) {
		h, ingestor, resetter := newWebhookHandler("", "/reset")

		rec := postWebhook(t, h, webhookBody(messageEvent("123", "mid.1", "/reset")))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{"123"}, resetter.reset)
		assert.Empty(t, ingestor.ingested)
	})

	t.Run("responds 200 even when ingestion fails", func(t *testing.T) {
		h, ingestor, _ := newWebhookHandler("", "")
		ingestor.err = errors.New("database down")

		rec := postWebhook(t, h, webhookBody(messageEvent("123", "mid.1", "hi")))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		h, _, _ := newWebhookHandler("", "")
		rec := postWebhook(t, h, "not json")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
