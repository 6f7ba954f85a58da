package refund

import (
	"context"

	"hotelbooking/internal/domain"
	"hotelbooking/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OpenInput struct {
	BookingID   int64
	PaymentID   *int64
	Amount      decimal.Decimal
	Method      domain.RefundMethod
	Notes       string
	RequestedBy int64
}

// OpenTx inserts a PENDING refund after checking it fits in what is still refundable.
// The booking row is locked first so concurrent requests for one booking serialize.
func OpenTx(ctx context.Context, tx *repository.Tx, in OpenInput) (*domain.Refund, error) {
	if !in.Amount.IsPositive() {
		return nil, domain.NewValidationError("amount", "must be greater than zero")
	}
	if _, ok := domain.ParseRefundMethod(string(in.Method)); !ok {
		return nil, domain.NewValidationError("refund_method", "unsupported refund method")
	}

	if _, err := tx.Bookings().GetForUpdate(ctx, in.BookingID); err != nil {
		return nil, err
	}

	paymentID, err := resolvePayment(ctx, tx, in)
	if err != nil {
		return nil, err
	}

	sums, err := tx.LedgerSums(ctx, in.BookingID)
	if err != nil {
		return nil, err
	}
	available := sums.AvailableForRefund()
	if in.Amount.GreaterThan(available) {
		return nil, &domain.RefundExceedsAvailableError{Requested: in.Amount, Available: available}
	}

	rf := &domain.Refund{
		BookingID:     in.BookingID,
		PaymentID:     paymentID,
		Amount:        in.Amount.Round(2),
		RefundMethod:  in.Method,
		Status:        domain.RefundPending,
		TransactionID: "RF-" + uuid.NewString(),
		RequestedBy:   in.RequestedBy,
		Notes:         in.Notes,
	}
	if err := tx.Refunds().Create(ctx, rf); err != nil {
		return nil, err
	}
	return rf, nil
}

// resolvePayment ties the refund to a collected payment. Gateway refunds need one.
func resolvePayment(ctx context.Context, tx *repository.Tx, in OpenInput) (*int64, error) {
	if in.PaymentID != nil {
		p, err := tx.Payments().GetByID(ctx, *in.PaymentID)
		if err != nil {
			return nil, err
		}
		if p.BookingID != in.BookingID {
			return nil, domain.NewValidationError("payment_id", "payment belongs to another booking")
		}
		if p.Status != domain.PaymentCompleted {
			return nil, domain.NewValidationError("payment_id", "payment is not completed")
		}
		if in.Method == domain.RefundMethodStripe && !p.PaymentMethod.ViaGateway() {
			return nil, domain.NewValidationError("refund_method", "payment was not taken through the gateway")
		}
		return &p.ID, nil
	}

	var methods []domain.PaymentMethod
	if in.Method == domain.RefundMethodStripe {
		methods = []domain.PaymentMethod{domain.PaymentMethodCard}
	}
	p, err := tx.Payments().LatestWithStatus(ctx, in.BookingID, []domain.PaymentStatus{domain.PaymentCompleted}, methods...)
	if err != nil {
		return nil, err
	}
	if p == nil {
		if in.Method == domain.RefundMethodStripe {
			return nil, domain.NewValidationError("refund_method", "booking has no completed gateway payment")
		}
		return nil, nil
	}
	return &p.ID, nil
}
