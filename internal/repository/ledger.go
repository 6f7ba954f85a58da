package repository

import (
	"context"

	"hotelbooking/internal/domain"

	"github.com/shopspring/decimal"
)

// LedgerSums are the per-booking totals derived from payment and refund rows.
type LedgerSums struct {
	// Completed counts COMPLETED payments only.
	Completed decimal.Decimal
	// Collected counts COMPLETED and REFUNDED payments.
	Collected decimal.Decimal
	Refunded  decimal.Decimal
	InFlight  decimal.Decimal
}

// AvailableForRefund is collected money not yet returned or reserved by an open refund.
func (s LedgerSums) AvailableForRefund() decimal.Decimal {
	avail := s.Collected.Sub(s.Refunded).Sub(s.InFlight)
	if avail.IsNegative() {
		return decimal.Zero
	}
	return avail
}

func (t *Tx) LedgerSums(ctx context.Context, bookingID int64) (LedgerSums, error) {
	return ledgerSums(ctx, t.Payments(), t.Refunds(), bookingID)
}

func (s *Store) LedgerSums(ctx context.Context, bookingID int64) (LedgerSums, error) {
	return ledgerSums(ctx, s.Payments(), s.Refunds(), bookingID)
}

func ledgerSums(ctx context.Context, payments *PaymentRepository, refunds *RefundRepository, bookingID int64) (LedgerSums, error) {
	var sums LedgerSums
	var err error
	if sums.Completed, err = payments.SumByStatus(ctx, bookingID, domain.PaymentCompleted); err != nil {
		return sums, err
	}
	if sums.Collected, err = payments.SumByStatus(ctx, bookingID, domain.CollectedPaymentStatuses...); err != nil {
		return sums, err
	}
	if sums.Refunded, err = refunds.SumByStatus(ctx, bookingID, domain.RefundCompleted); err != nil {
		return sums, err
	}
	if sums.InFlight, err = refunds.SumByStatus(ctx, bookingID, domain.InFlightRefundStatuses...); err != nil {
		return sums, err
	}
	return sums, nil
}

// RefreshPaidAmount rewrites the booking's display-only paid_amount from the ledger.
func (t *Tx) RefreshPaidAmount(ctx context.Context, bookingID int64) (decimal.Decimal, error) {
	collected, err := t.Payments().SumByStatus(ctx, bookingID, domain.CollectedPaymentStatuses...)
	if err != nil {
		return decimal.Zero, err
	}
	if err := t.Bookings().UpdatePaidAmount(ctx, bookingID, collected); err != nil {
		return decimal.Zero, err
	}
	return collected, nil
}
