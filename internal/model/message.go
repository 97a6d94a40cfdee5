package model

import (
	"encoding/json"
	"time"
)

// Message is one inbound user message. Created by the webhook ingress with
// status pending; claimed and resolved by the coordinator.
type Message struct {
	ID              string          `db:"id" json:"id"`
	ConversationKey string          `db:"conversation_key" json:"conversationKey"`
	SenderID        string          `db:"sender_id" json:"senderId"`
	PlatformMID     string          `db:"platform_mid" json:"platformMid"`
	Text            string          `db:"text" json:"text"`
	Payload         json.RawMessage `db:"payload" json:"payload"`
	Status          MessageStatus   `db:"status" json:"status"`
	ErrorMessage    *string         `db:"error_message" json:"errorMessage,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updatedAt"`
	ProcessedAt     *time.Time      `db:"processed_at" json:"processedAt,omitempty"`
}

type CreateMessageParams struct {
	ConversationKey string
	SenderID        string
	PlatformMID     string
	Text            string
	Payload         json.RawMessage
}

// OutboundMessage records a reply the agent sent through the messaging
// platform. Feeds the transcript assembler so the model sees its own side of
// the conversation.
type OutboundMessage struct {
	ID              string         `db:"id" json:"id"`
	ConversationKey string         `db:"conversation_key" json:"conversationKey"`
	Text            string         `db:"text" json:"text"`
	PlatformMID     *string        `db:"platform_mid" json:"platformMid,omitempty"`
	Status          OutboundStatus `db:"status" json:"status"`
	ErrorMessage    *string        `db:"error_message" json:"errorMessage,omitempty"`
	CreatedAt       time.Time      `db:"created_at" json:"createdAt"`
}

type CreateOutboundMessageParams struct {
	ConversationKey string
	Text            string
	PlatformMID     *string
	Status          OutboundStatus
	ErrorMessage    *string
}
