package repository

import (
	"context"

	"github.com/solstudio/ig-agent-go/internal/database"
	"github.com/solstudio/ig-agent-go/internal/model"
)

type BookingRepository interface {
	Create(ctx context.Context, params model.CreateBookingParams) (*model.Booking, error)
}

type bookingRepo struct {
	db database.DBTX
}

func NewBookingRepository(db database.DBTX) BookingRepository {
	return &bookingRepo{db: db}
}

func (r *bookingRepo) Create(ctx context.Context, params model.CreateBookingParams) (*model.Booking, error) {
	var booking model.Booking
	err := r.db.GetContext(ctx, &booking, `
		INSERT INTO bookings (conversation_key, guest_name, session_date, note)
		VALUES ($1, $2, $3, $4)
		RETURNING *
	`, params.ConversationKey, params.GuestName, params.SessionDate, params.Note)
	if err != nil {
		return nil, err
	}
	return &booking, nil
}
