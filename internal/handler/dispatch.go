package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	apperrors "github.com/solstudio/ig-agent-go/internal/errors"
	"github.com/solstudio/ig-agent-go/internal/httputil"
)

// Processor runs one processing pass for a conversation.
type Processor interface {
	Process(ctx context.Context, conversationKey string) error
}

// DispatchHandler lets an external job scheduler fire a processing pass
// directly, as an alternative to the in-process dispatch worker.
type DispatchHandler struct {
	processor Processor
}

func NewDispatchHandler(processor Processor) *DispatchHandler {
	return &DispatchHandler{processor: processor}
}

type dispatchRequest struct {
	ConversationKey string `json:"conversationKey"`
}

func (h *DispatchHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	var req dispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, apperrors.InvalidInput("body", "must be valid JSON"))
		return
	}
	if req.ConversationKey == "" {
		httputil.WriteError(w, apperrors.MissingRequired("conversationKey"))
		return
	}

	if err := h.processor.Process(r.Context(), req.ConversationKey); err != nil {
		log.Error().Err(err).
			Str("conversationKey", req.ConversationKey).
			Msg("dispatch processing failed")
		httputil.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
