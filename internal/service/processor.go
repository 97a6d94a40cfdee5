package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/solstudio/ig-agent-go/internal/config"
	"github.com/solstudio/ig-agent-go/internal/coordinator"
	"github.com/solstudio/ig-agent-go/internal/model"
	"github.com/solstudio/ig-agent-go/internal/repository"
	"github.com/solstudio/ig-agent-go/internal/transcript"
)

// Invoker runs one model turn over an assembled transcript.
type Invoker interface {
	Invoke(ctx context.Context, conversationKey string, entries []transcript.Entry) ([]string, error)
}

// Scheduler re-arms a dispatch for work that arrived mid-pass.
type Scheduler interface {
	Schedule(ctx context.Context, conversationKey string) error
}

// HistoryReader loads both sides of a conversation for the transcript.
type HistoryReader interface {
	RecentInbound(ctx context.Context, conversationKey string, limit int) ([]model.Message, error)
	RecentOutbound(ctx context.Context, conversationKey string, limit int) ([]model.OutboundMessage, error)
}

// RepositoryHistory reads conversation history from the durable store.
type RepositoryHistory struct {
	messages repository.MessageRepository
	outbound repository.OutboundMessageRepository
}

func NewRepositoryHistory(messages repository.MessageRepository, outbound repository.OutboundMessageRepository) *RepositoryHistory {
	return &RepositoryHistory{messages: messages, outbound: outbound}
}

func (h *RepositoryHistory) RecentInbound(ctx context.Context, conversationKey string, limit int) ([]model.Message, error) {
	return h.messages.FindRecentByConversationKey(ctx, conversationKey, limit)
}

func (h *RepositoryHistory) RecentOutbound(ctx context.Context, conversationKey string, limit int) ([]model.OutboundMessage, error) {
	return h.outbound.FindRecentByConversationKey(ctx, conversationKey, limit)
}

// ProcessorService runs one processing pass per dispatch job: claim the
// pending work, hand the transcript to the model, release. A denied claim
// is a silent no-op; any failure after a successful claim aborts the claim
// so the work stays retryable.
type ProcessorService struct {
	coordinator *coordinator.Coordinator
	history     HistoryReader
	invoker     Invoker
	scheduler   Scheduler
	maxMessages int
}

func NewProcessorService(
	coord *coordinator.Coordinator,
	history HistoryReader,
	invoker Invoker,
	scheduler Scheduler,
) *ProcessorService {
	return &ProcessorService{
		coordinator: coord,
		history:     history,
		invoker:     invoker,
		scheduler:   scheduler,
		maxMessages: config.MaxTranscriptMessages,
	}
}

func (s *ProcessorService) Process(ctx context.Context, conversationKey string) error {
	// Pass id correlates log lines across repeated passes for one key.
	passID := uuid.NewString()

	claim, err := s.coordinator.Claim(ctx, conversationKey)
	if err != nil {
		return err
	}
	if claim == nil {
		log.Debug().
			Str("conversationKey", conversationKey).
			Str("passId", passID).
			Msg("claim denied, nothing to process")
		return nil
	}

	if err := s.runPass(ctx, passID, claim); err != nil {
		// The pass may have died with ctx itself, and an abort that cannot
		// start leaves the claim stuck in processing until the reclaimer.
		abortCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), config.ClaimAbortTimeout)
		defer cancel()
		if abortErr := s.coordinator.Abort(abortCtx, claim, err); abortErr != nil {
			log.Error().Err(abortErr).
				Str("conversationKey", conversationKey).
				Str("passId", passID).
				Msg("failed to abort claim")
		}
		return err
	}

	hasMore, err := s.coordinator.Release(ctx, claim)
	if err != nil {
		return err
	}
	if hasMore {
		// Work arrived mid-pass. Re-arming is best-effort: on failure the
		// next inbound message schedules the dispatch instead.
		if err := s.scheduler.Schedule(ctx, conversationKey); err != nil {
			log.Warn().Err(err).
				Str("conversationKey", conversationKey).
				Msg("failed to re-arm dispatch for late arrivals")
		}
	}
	return nil
}

func (s *ProcessorService) runPass(ctx context.Context, passID string, claim *coordinator.Claim) error {
	key := claim.ConversationKey

	inbound, err := s.history.RecentInbound(ctx, key, s.maxMessages)
	if err != nil {
		return err
	}
	outbound, err := s.history.RecentOutbound(ctx, key, s.maxMessages)
	if err != nil {
		return err
	}

	entries := transcript.Assemble(inbound, outbound, s.maxMessages)

	invoked, err := s.invoker.Invoke(ctx, key, entries)
	if err != nil {
		return err
	}

	log.Info().
		Str("conversationKey", key).
		Str("passId", passID).
		Int("claimedMessages", len(claim.Messages)).
		Int("transcriptLen", len(entries)).
		Strs("toolsInvoked", invoked).
		Msg("processing pass completed")
	return nil
}
