package reconciliation

import (
	"context"
	"time"

	"hotelbooking/internal/domain"
	"hotelbooking/internal/pkg/logger"
	"hotelbooking/internal/repository"

	"github.com/shopspring/decimal"
)

const module = "reconciliation"

// Service is read-only. Every figure is summed from payment and refund rows on each call.
type Service struct {
	store *repository.Store
	log   logger.ILogger
}

func NewService(store *repository.Store, log logger.ILogger) *Service {
	return &Service{store: store, log: log}
}

type MethodTotal struct {
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

type Report struct {
	From         time.Time              `json:"from"`
	To           time.Time              `json:"to"`
	GrossRevenue decimal.Decimal        `json:"gross_revenue"`
	TotalRefunds decimal.Decimal        `json:"total_refunds"`
	NetRevenue   decimal.Decimal        `json:"net_revenue"`
	RefundRate   decimal.Decimal        `json:"refund_rate"`
	PaymentCount int                    `json:"payment_count"`
	RefundCount  int                    `json:"refund_count"`
	Payments     map[string]MethodTotal `json:"payments_by_method"`
	Refunds      map[string]MethodTotal `json:"refunds_by_method"`

	paymentRows []domain.Payment
	refundRows  []domain.Refund
}

// Report covers money collected and returned in [from, to), keyed on processed_at.
// Payments later refunded still count as gross; their refunds count in the period they settled.
func (s *Service) Report(ctx context.Context, actor domain.ActorContext, from, to time.Time) (*Report, error) {
	if err := actor.Require(domain.PermReportView); err != nil {
		return nil, err
	}
	if !to.After(from) {
		return nil, domain.NewValidationError("to", "must be after from")
	}

	payments, err := s.store.Payments().ListProcessedBetween(ctx, from, to, domain.CollectedPaymentStatuses...)
	if err != nil {
		return nil, err
	}
	refunds, err := s.store.Refunds().ListProcessedBetween(ctx, from, to, domain.RefundCompleted)
	if err != nil {
		return nil, err
	}

	r := &Report{
		From:         from.UTC(),
		To:           to.UTC(),
		GrossRevenue: decimal.Zero,
		TotalRefunds: decimal.Zero,
		RefundRate:   decimal.Zero,
		Payments:     map[string]MethodTotal{},
		Refunds:      map[string]MethodTotal{},
		paymentRows:  payments,
		refundRows:   refunds,
	}
	for _, p := range payments {
		r.GrossRevenue = r.GrossRevenue.Add(p.Amount)
		r.Payments[string(p.PaymentMethod)] = addTo(r.Payments[string(p.PaymentMethod)], p.Amount)
	}
	for _, rf := range refunds {
		r.TotalRefunds = r.TotalRefunds.Add(rf.Amount)
		r.Refunds[string(rf.RefundMethod)] = addTo(r.Refunds[string(rf.RefundMethod)], rf.Amount)
	}
	r.PaymentCount = len(payments)
	r.RefundCount = len(refunds)
	r.NetRevenue = r.GrossRevenue.Sub(r.TotalRefunds)
	if r.GrossRevenue.IsPositive() {
		r.RefundRate = r.TotalRefunds.DivRound(r.GrossRevenue, 4)
	}
	return r, nil
}

func addTo(t MethodTotal, amount decimal.Decimal) MethodTotal {
	t.Count++
	t.Amount = t.Amount.Add(amount)
	return t
}

type Balance struct {
	BookingID          int64                `json:"booking_id"`
	Status             domain.BookingStatus `json:"status"`
	TotalPrice         decimal.Decimal      `json:"total_price"`
	Paid               decimal.Decimal      `json:"paid"`
	Refunded           decimal.Decimal      `json:"refunded"`
	RefundsInFlight    decimal.Decimal      `json:"refunds_in_flight"`
	AvailableForRefund decimal.Decimal      `json:"available_for_refund"`
	Outstanding        decimal.Decimal      `json:"outstanding"`
	CachedPaid         decimal.Decimal      `json:"cached_paid_amount"`
	Drift              decimal.Decimal      `json:"drift"`
}

func (s *Service) BookingBalance(ctx context.Context, actor domain.ActorContext, bookingID int64) (*Balance, error) {
	b, err := s.store.Bookings().GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := actor.RequireOwnerOr(b.UserID, domain.PermReportView); err != nil {
		return nil, err
	}
	sums, err := s.store.LedgerSums(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	return balanceOf(b, sums), nil
}

func balanceOf(b *domain.Booking, sums repository.LedgerSums) *Balance {
	outstanding := b.TotalPrice.Sub(sums.Completed)
	if outstanding.IsNegative() {
		outstanding = decimal.Zero
	}
	return &Balance{
		BookingID:          b.ID,
		Status:             b.Status,
		TotalPrice:         b.TotalPrice,
		Paid:               sums.Collected,
		Refunded:           sums.Refunded,
		RefundsInFlight:    sums.InFlight,
		AvailableForRefund: sums.AvailableForRefund(),
		Outstanding:        outstanding,
		CachedPaid:         b.PaidAmount,
		Drift:              b.PaidAmount.Sub(sums.Collected),
	}
}

type DiscrepancyKind string

const (
	// The display-only paid_amount disagrees with the payment rows.
	KindPaidAmountDrift DiscrepancyKind = "paid_amount_drift"
	KindOverRefunded    DiscrepancyKind = "over_refunded"
	// Confirmed or checked in without the money to back it.
	KindUnderpaid DiscrepancyKind = "underpaid"
	// Fully refunded but still holding the room.
	KindRefundedButHolding DiscrepancyKind = "refunded_but_holding"
)

type Discrepancy struct {
	Kind    DiscrepancyKind `json:"kind"`
	Balance *Balance        `json:"balance"`
}

// Discrepancies audits every booking against the ledger.
func (s *Service) Discrepancies(ctx context.Context, actor domain.ActorContext) ([]Discrepancy, error) {
	if err := actor.Require(domain.PermReportView); err != nil {
		return nil, err
	}
	bookings, err := s.store.Bookings().List(ctx, repository.BookingFilter{})
	if err != nil {
		return nil, err
	}

	out := []Discrepancy{}
	for i := range bookings {
		b := &bookings[i]
		sums, err := s.store.LedgerSums(ctx, b.ID)
		if err != nil {
			return nil, err
		}
		bal := balanceOf(b, sums)

		if !domain.AmountsMatch(b.PaidAmount, sums.Collected) {
			out = append(out, Discrepancy{Kind: KindPaidAmountDrift, Balance: bal})
		}
		if sums.Refunded.GreaterThan(sums.Collected.Add(domain.AmountEpsilon)) {
			out = append(out, Discrepancy{Kind: KindOverRefunded, Balance: bal})
		}
		if (b.Status == domain.BookingConfirmed || b.Status == domain.BookingCheckedIn) &&
			sums.Completed.Add(domain.AmountEpsilon).LessThan(b.TotalPrice) {
			out = append(out, Discrepancy{Kind: KindUnderpaid, Balance: bal})
		}
		if b.Status.Holding() && sums.Collected.IsPositive() && sums.Refunded.GreaterThanOrEqual(sums.Collected) {
			out = append(out, Discrepancy{Kind: KindRefundedButHolding, Balance: bal})
		}
	}

	if len(out) > 0 {
		s.log.Warn(module, "Ledger discrepancies found", map[string]interface{}{"count": len(out)})
	}
	return out, nil
}
