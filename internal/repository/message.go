package repository

import (
	"context"
	"sort"
	"time"

	"github.com/lib/pq"

	"github.com/solstudio/ig-agent-go/internal/database"
	"github.com/solstudio/ig-agent-go/internal/model"
)

type MessageRepository interface {
	// LockConversation takes the conversation's row lock for the rest of the
	// surrounding transaction. Claims for the same key serialize on it; the
	// statements that follow see snapshots taken after the lock is held.
	LockConversation(ctx context.Context, conversationKey string) error
	// FindRecentByConversationKey returns up to limit messages, newest first.
	FindRecentByConversationKey(ctx context.Context, conversationKey string, limit int) ([]model.Message, error)
	// Create inserts a pending message. Returns nil (no error) when a message
	// with the same platform mid already exists; the messaging platform
	// delivers webhooks at least once.
	Create(ctx context.Context, params model.CreateMessageParams) (*model.Message, error)
	CountProcessing(ctx context.Context, conversationKey string) (int, error)
	// ClaimPending flips every pending message for the key to processing and
	// returns the claimed set oldest-first.
	ClaimPending(ctx context.Context, conversationKey string) ([]model.Message, error)
	MarkProcessed(ctx context.Context, ids []string) error
	// MarkPending returns claimed messages to the pending state, recording the
	// failure that interrupted processing.
	MarkPending(ctx context.Context, ids []string, errorMsg string) error
	HasPending(ctx context.Context, conversationKey string) (bool, error)
	// ReclaimStuck requeues messages left in processing past the deadline, e.g.
	// after a crashed dispatch. Returns the affected conversation keys so the
	// caller can re-arm their dispatches.
	ReclaimStuck(ctx context.Context, deadline time.Duration) ([]string, error)
	DeleteByConversationKey(ctx context.Context, conversationKey string) (int64, error)
}

type messageRepo struct {
	db database.DBTX
}

func NewMessageRepository(db database.DBTX) MessageRepository {
	return &messageRepo{db: db}
}

func (r *messageRepo) LockConversation(ctx context.Context, conversationKey string) error {
	// Ingest upserts the conversation before its first message, so the row
	// exists for any key that has pending work.
	_, err := r.db.ExecContext(ctx, `
		SELECT 1 FROM conversations WHERE conversation_key = $1 FOR UPDATE
	`, conversationKey)
	return err
}

func (r *messageRepo) FindRecentByConversationKey(ctx context.Context, conversationKey string, limit int) ([]model.Message, error) {
	var msgs []model.Message
	err := r.db.SelectContext(ctx, &msgs, `
		SELECT * FROM messages
		WHERE conversation_key = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, conversationKey, limit)
	return msgs, err
}

func (r *messageRepo) Create(ctx context.Context, params model.CreateMessageParams) (*model.Message, error) {
	var msg model.Message
	err := r.db.GetContext(ctx, &msg, `
		INSERT INTO messages
			(conversation_key, sender_id, platform_mid, text, payload)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (platform_mid) DO NOTHING
		RETURNING *
	`, params.ConversationKey, params.SenderID, params.PlatformMID,
		params.Text, params.Payload)
	return HandleNotFound(&msg, err)
}

func (r *messageRepo) CountProcessing(ctx context.Context, conversationKey string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM messages
		WHERE conversation_key = $1 AND status = 'processing'
	`, conversationKey)
	return count, err
}

func (r *messageRepo) ClaimPending(ctx context.Context, conversationKey string) ([]model.Message, error) {
	var msgs []model.Message
	err := r.db.SelectContext(ctx, &msgs, `
		UPDATE messages SET
			status = 'processing',
			updated_at = NOW()
		WHERE id IN (
			SELECT id FROM messages
			WHERE conversation_key = $1 AND status = 'pending'
			FOR UPDATE
		)
		RETURNING *
	`, conversationKey)
	if err != nil {
		return nil, err
	}
	// RETURNING carries no order guarantee.
	sort.Slice(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	return msgs, nil
}

func (r *messageRepo) MarkProcessed(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE messages SET
			status = 'processed',
			error_message = NULL,
			processed_at = NOW(),
			updated_at = NOW()
		WHERE id = ANY($1)
	`, pq.Array(ids))
	return err
}

func (r *messageRepo) MarkPending(ctx context.Context, ids []string, errorMsg string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE messages SET
			status = 'pending',
			error_message = $2,
			updated_at = NOW()
		WHERE id = ANY($1)
	`, pq.Array(ids), errorMsg)
	return err
}

func (r *messageRepo) HasPending(ctx context.Context, conversationKey string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM messages
			WHERE conversation_key = $1 AND status = 'pending'
		)
	`, conversationKey)
	return exists, err
}

func (r *messageRepo) ReclaimStuck(ctx context.Context, deadline time.Duration) ([]string, error) {
	var keys []string
	err := r.db.SelectContext(ctx, &keys, `
		UPDATE messages SET
			status = 'pending',
			error_message = 'reclaimed: processing deadline exceeded',
			updated_at = NOW()
		WHERE status = 'processing'
		AND updated_at < NOW() - $1 * INTERVAL '1 second'
		RETURNING conversation_key
	`, int64(deadline.Seconds()))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(keys))
	distinct := keys[:0]
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		distinct = append(distinct, k)
	}
	return distinct, nil
}

func (r *messageRepo) DeleteByConversationKey(ctx context.Context, conversationKey string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM messages WHERE conversation_key = $1
	`, conversationKey)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Outbound Message Repository

type OutboundMessageRepository interface {
	// FindRecentByConversationKey returns up to limit replies, newest first.
	FindRecentByConversationKey(ctx context.Context, conversationKey string, limit int) ([]model.OutboundMessage, error)
	Create(ctx context.Context, params model.CreateOutboundMessageParams) (*model.OutboundMessage, error)
	DeleteByConversationKey(ctx context.Context, conversationKey string) (int64, error)
}

type outboundMessageRepo struct {
	db database.DBTX
}

func NewOutboundMessageRepository(db database.DBTX) OutboundMessageRepository {
	return &outboundMessageRepo{db: db}
}

func (r *outboundMessageRepo) FindRecentByConversationKey(ctx context.Context, conversationKey string, limit int) ([]model.OutboundMessage, error) {
	var msgs []model.OutboundMessage
	err := r.db.SelectContext(ctx, &msgs, `
		SELECT * FROM outbound_messages
		WHERE conversation_key = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, conversationKey, limit)
	return msgs, err
}

func (r *outboundMessageRepo) Create(ctx context.Context, params model.CreateOutboundMessageParams) (*model.OutboundMessage, error) {
	var msg model.OutboundMessage
	err := r.db.GetContext(ctx, &msg, `
		INSERT INTO outbound_messages
			(conversation_key, text, platform_mid, status, error_message)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *
	`, params.ConversationKey, params.Text, params.PlatformMID,
		params.Status, params.ErrorMessage)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *outboundMessageRepo) DeleteByConversationKey(ctx context.Context, conversationKey string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM outbound_messages WHERE conversation_key = $1
	`, conversationKey)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
