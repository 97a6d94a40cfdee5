package service

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/solstudio/ig-agent-go/internal/instagram"
	"github.com/solstudio/ig-agent-go/internal/model"
	"github.com/solstudio/ig-agent-go/internal/repository"
)

// InboundMessage is one surviving user message from the webhook.
type InboundMessage struct {
	ConversationKey string
	SenderID        string
	PlatformMID     string
	Text            string
	Payload         json.RawMessage
}

// ProfileFetcher loads the sender's public profile fields.
type ProfileFetcher interface {
	GetProfile(ctx context.Context, igsid string) (*instagram.Profile, error)
}

// IngestService persists surviving inbound messages and arms the delayed
// dispatcher.
type IngestService struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	scheduler     Scheduler
	profiles      ProfileFetcher
}

func NewIngestService(
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	scheduler Scheduler,
	profiles ProfileFetcher,
) *IngestService {
	return &IngestService{
		conversations: conversations,
		messages:      messages,
		scheduler:     scheduler,
		profiles:      profiles,
	}
}

// Ingest stores the message as pending and schedules a debounced dispatch.
// A redelivered message (same platform mid) is dropped without re-arming.
func (s *IngestService) Ingest(ctx context.Context, in InboundMessage) error {
	conv, err := s.conversations.Upsert(ctx, model.UpsertConversationParams{
		ConversationKey: in.ConversationKey,
	})
	if err != nil {
		return err
	}
	if conv.Username == nil {
		s.fillProfile(ctx, in.ConversationKey, in.SenderID)
	}

	msg, err := s.messages.Create(ctx, model.CreateMessageParams{
		ConversationKey: in.ConversationKey,
		SenderID:        in.SenderID,
		PlatformMID:     in.PlatformMID,
		Text:            in.Text,
		Payload:         in.Payload,
	})
	if err != nil {
		return err
	}
	if msg == nil {
		log.Debug().
			Str("conversationKey", in.ConversationKey).
			Str("platformMid", in.PlatformMID).
			Msg("duplicate webhook delivery dropped")
		return nil
	}

	return s.scheduler.Schedule(ctx, in.ConversationKey)
}

// fillProfile is best-effort; the conversation works fine without a name
// and a later message retries the lookup.
func (s *IngestService) fillProfile(ctx context.Context, conversationKey, senderID string) {
	if s.profiles == nil {
		return
	}

	profile, err := s.profiles.GetProfile(ctx, senderID)
	if err != nil {
		log.Warn().Err(err).
			Str("conversationKey", conversationKey).
			Msg("failed to fetch sender profile")
		return
	}

	username := profile.Username
	if username == "" {
		username = profile.Name
	}
	if username == "" {
		return
	}

	if _, err := s.conversations.Upsert(ctx, model.UpsertConversationParams{
		ConversationKey: conversationKey,
		Username:        &username,
	}); err != nil {
		log.Warn().Err(err).
			Str("conversationKey", conversationKey).
			Msg("failed to store sender profile")
	}
}
