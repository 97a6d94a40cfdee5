package handler

import "encoding/json"

// WebhookEvent is the envelope Meta posts to the webhook endpoint.
type WebhookEvent struct {
	Object string         `json:"object"`
	Entry  []WebhookEntry `json:"entry"`
}

type WebhookEntry struct {
	ID        string           `json:"id"`
	Time      int64            `json:"time"`
	Messaging []MessagingEvent `json:"messaging"`
}

// MessagingEvent is one messaging sub-event. Exactly one of the payload
// fields is set.
type MessagingEvent struct {
	Sender    Participant      `json:"sender"`
	Recipient Participant      `json:"recipient"`
	Timestamp int64            `json:"timestamp"`
	Message   *MessagePayload  `json:"message,omitempty"`
	Reaction  *json.RawMessage `json:"reaction,omitempty"`
	Read      *json.RawMessage `json:"read,omitempty"`
	Postback  *PostbackPayload `json:"postback,omitempty"`
}

type Participant struct {
	ID string `json:"id"`
}

type MessagePayload struct {
	MID         string       `json:"mid"`
	Text        string       `json:"text"`
	IsEcho      bool         `json:"is_echo"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

type Attachment struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type PostbackPayload struct {
	Title   string `json:"title"`
	Payload string `json:"payload"`
}
