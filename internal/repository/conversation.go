package repository

import (
	"context"
	"time"

	"github.com/solstudio/ig-agent-go/internal/database"
	"github.com/solstudio/ig-agent-go/internal/model"
)

type ConversationRepository interface {
	FindByKey(ctx context.Context, key string) (*model.Conversation, error)
	Upsert(ctx context.Context, params model.UpsertConversationParams) (*model.Conversation, error)
	UpdateLastNotified(ctx context.Context, key string, at time.Time) error
	UpdateLastBooked(ctx context.Context, key string, at time.Time) error
	DeleteByKey(ctx context.Context, key string) (int64, error)
}

type conversationRepo struct {
	db database.DBTX
}

func NewConversationRepository(db database.DBTX) ConversationRepository {
	return &conversationRepo{db: db}
}

func (r *conversationRepo) FindByKey(ctx context.Context, key string) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.GetContext(ctx, &conv, `
		SELECT * FROM conversations WHERE conversation_key = $1
	`, key)
	return HandleNotFound(&conv, err)
}

func (r *conversationRepo) Upsert(ctx context.Context, params model.UpsertConversationParams) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.GetContext(ctx, &conv, `
		INSERT INTO conversations (conversation_key, username)
		VALUES ($1, $2)
		ON CONFLICT (conversation_key) DO UPDATE SET
			username = COALESCE(EXCLUDED.username, conversations.username),
			last_seen_at = NOW()
		RETURNING *
	`, params.ConversationKey, params.Username)
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepo) UpdateLastNotified(ctx context.Context, key string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE conversations SET last_notified_at = $2
		WHERE conversation_key = $1
	`, key, at)
	return err
}

func (r *conversationRepo) UpdateLastBooked(ctx context.Context, key string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE conversations SET last_booked_at = $2
		WHERE conversation_key = $1
	`, key, at)
	return err
}

func (r *conversationRepo) DeleteByKey(ctx context.Context, key string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM conversations WHERE conversation_key = $1
	`, key)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
