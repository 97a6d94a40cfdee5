package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/solstudio/ig-agent-go/internal/repository"
)

// ConversationService handles per-conversation state outside the
// processing pass.
type ConversationService struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	outbound      repository.OutboundMessageRepository
}

func NewConversationService(
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	outbound repository.OutboundMessageRepository,
) *ConversationService {
	return &ConversationService{
		conversations: conversations,
		messages:      messages,
		outbound:      outbound,
	}
}

// Reset deletes all stored state for a conversation. It does not wait for
// or cancel an in-flight processing pass; a concurrent claim completes
// against the old state and may re-create rows afterward.
func (s *ConversationService) Reset(ctx context.Context, conversationKey string) error {
	inbound, err := s.messages.DeleteByConversationKey(ctx, conversationKey)
	if err != nil {
		return err
	}
	outbound, err := s.outbound.DeleteByConversationKey(ctx, conversationKey)
	if err != nil {
		return err
	}
	conversations, err := s.conversations.DeleteByKey(ctx, conversationKey)
	if err != nil {
		return err
	}

	log.Info().
		Str("conversationKey", conversationKey).
		Int64("inboundDeleted", inbound).
		Int64("outboundDeleted", outbound).
		Int64("conversationsDeleted", conversations).
		Msg("conversation reset")
	return nil
}
