package coordinator

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/solstudio/ig-agent-go/internal/database"
	"github.com/solstudio/ig-agent-go/internal/model"
	"github.com/solstudio/ig-agent-go/internal/repository"
)

// Store runs fn against a MessageRepository bound to a single transaction.
// Claim takes the conversation's row lock inside that transaction, which is
// what serializes passes per key.
type Store interface {
	InTx(ctx context.Context, fn func(repo repository.MessageRepository) error) error
}

// SQLStore is the production Store over Postgres.
type SQLStore struct {
	db *database.DB
}

func NewSQLStore(db *database.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) InTx(ctx context.Context, fn func(repo repository.MessageRepository) error) error {
	return s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		return fn(repository.NewMessageRepository(tx))
	})
}

// Claim is the unit of work handed to one processing pass: the messages that
// were flipped from pending to processing in a single transaction.
type Claim struct {
	ConversationKey string
	Messages        []model.Message
}

func (c *Claim) messageIDs() []string {
	ids := make([]string, len(c.Messages))
	for i, msg := range c.Messages {
		ids[i] = msg.ID
	}
	return ids
}

// Coordinator serializes processing passes per conversation. At most one
// successful claim can be outstanding for a conversation key at a time.
type Coordinator struct {
	store Store
}

func New(store Store) *Coordinator {
	return &Coordinator{store: store}
}

// Claim attempts to take ownership of the conversation's pending messages.
// Returns nil when another pass is already processing the conversation, or
// when there is no pending work; both are normal no-op exits for the caller,
// not errors.
func (c *Coordinator) Claim(ctx context.Context, conversationKey string) (*Claim, error) {
	var claim *Claim
	err := c.store.InTx(ctx, func(repo repository.MessageRepository) error {
		// Under read committed each statement reads its own snapshot, so the
		// processing check and the claim are only atomic together while this
		// transaction holds the conversation's row lock.
		if err := repo.LockConversation(ctx, conversationKey); err != nil {
			return fmt.Errorf("lock conversation: %w", err)
		}

		processing, err := repo.CountProcessing(ctx, conversationKey)
		if err != nil {
			return fmt.Errorf("count processing: %w", err)
		}
		if processing > 0 {
			// Another dispatch holds the claim; defer to it.
			return nil
		}

		msgs, err := repo.ClaimPending(ctx, conversationKey)
		if err != nil {
			return fmt.Errorf("claim pending: %w", err)
		}
		if len(msgs) == 0 {
			// Work already drained by an earlier pass.
			return nil
		}

		claim = &Claim{ConversationKey: conversationKey, Messages: msgs}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if claim != nil {
		log.Debug().
			Str("conversationKey", conversationKey).
			Int("messages", len(claim.Messages)).
			Msg("claimed conversation for processing")
	}
	return claim, nil
}

// Release marks the claimed messages processed and reports, in the same
// transaction, whether new pending work arrived during the claim window.
func (c *Coordinator) Release(ctx context.Context, claim *Claim) (hasMore bool, err error) {
	err = c.store.InTx(ctx, func(repo repository.MessageRepository) error {
		if err := repo.MarkProcessed(ctx, claim.messageIDs()); err != nil {
			return fmt.Errorf("mark processed: %w", err)
		}
		more, err := repo.HasPending(ctx, claim.ConversationKey)
		if err != nil {
			return fmt.Errorf("check pending: %w", err)
		}
		hasMore = more
		return nil
	})
	if err != nil {
		return false, err
	}

	log.Debug().
		Str("conversationKey", claim.ConversationKey).
		Bool("hasMore", hasMore).
		Msg("released conversation")
	return hasMore, nil
}

// Abort returns the claimed messages to pending so a later dispatch can retry
// them. Called on any processing failure, including agent errors.
func (c *Coordinator) Abort(ctx context.Context, claim *Claim, cause error) error {
	errMsg := "processing failed"
	if cause != nil {
		errMsg = cause.Error()
	}

	err := c.store.InTx(ctx, func(repo repository.MessageRepository) error {
		return repo.MarkPending(ctx, claim.messageIDs(), errMsg)
	})
	if err != nil {
		return fmt.Errorf("abort claim: %w", err)
	}

	log.Warn().
		Str("conversationKey", claim.ConversationKey).
		Int("messages", len(claim.Messages)).
		Str("cause", errMsg).
		Msg("aborted claim, messages requeued")
	return nil
}
