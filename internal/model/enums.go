package model

// MessageStatus tracks an inbound message through the debounce lifecycle.
// Exactly one status applies at any time; transitions happen only inside the
// coordinator's claim/release/abort transactions.
type MessageStatus string

const (
	MessageStatusPending    MessageStatus = "pending"
	MessageStatusProcessing MessageStatus = "processing"
	MessageStatusProcessed  MessageStatus = "processed"
	MessageStatusFailed     MessageStatus = "failed"
)

type OutboundStatus string

const (
	OutboundStatusSent   OutboundStatus = "sent"
	OutboundStatusFailed OutboundStatus = "failed"
)
