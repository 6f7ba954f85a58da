package refund

import (
	"context"

	"hotelbooking/internal/events"
	"hotelbooking/internal/repository"
)

// BookingLedger moves a booking to REFUNDED once its payments are fully returned.
type BookingLedger interface {
	MarkRefundedTx(ctx context.Context, tx *repository.Tx, out *events.Outbox, bookingID int64) (bool, error)
}
