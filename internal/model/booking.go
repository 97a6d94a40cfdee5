package model

import "time"

// Booking is a confirmed session booking recorded by the agent.
type Booking struct {
	ID              string    `db:"id" json:"id"`
	ConversationKey string    `db:"conversation_key" json:"conversationKey"`
	GuestName       string    `db:"guest_name" json:"guestName"`
	SessionDate     string    `db:"session_date" json:"sessionDate"`
	Note            *string   `db:"note" json:"note,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
}

type CreateBookingParams struct {
	ConversationKey string
	GuestName       string
	SessionDate     string
	Note            *string
}
