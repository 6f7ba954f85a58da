package payment

import (
	"context"

	"hotelbooking/internal/domain"
	"hotelbooking/internal/events"
	"hotelbooking/internal/repository"

	"github.com/shopspring/decimal"
)

// BookingLedger confirms the booking a captured payment belongs to.
type BookingLedger interface {
	RecordPaymentSuccessTx(ctx context.Context, tx *repository.Tx, out *events.Outbox, bookingID int64, amount decimal.Decimal) (*domain.Booking, bool, error)
}
