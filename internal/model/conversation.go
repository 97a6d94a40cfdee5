package model

import (
	"time"
)

// Conversation holds per-thread state keyed by the Instagram-scoped sender id.
// Created on first inbound message; removed only by the reset command.
type Conversation struct {
	ID              string     `db:"id" json:"id"`
	ConversationKey string     `db:"conversation_key" json:"conversationKey"`
	Username        *string    `db:"username" json:"username,omitempty"`
	LastNotifiedAt  *time.Time `db:"last_notified_at" json:"lastNotifiedAt,omitempty"`
	LastBookedAt    *time.Time `db:"last_booked_at" json:"lastBookedAt,omitempty"`
	FirstSeenAt     time.Time  `db:"first_seen_at" json:"firstSeenAt"`
	LastSeenAt      time.Time  `db:"last_seen_at" json:"lastSeenAt"`
}

type UpsertConversationParams struct {
	ConversationKey string
	Username        *string
}
