package refund

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hotelbooking/internal/domain"
	"hotelbooking/internal/events"
	"hotelbooking/internal/gateway"
	"hotelbooking/internal/pkg/logger"
	"hotelbooking/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const module = "refund"

type Service struct {
	store    *repository.Store
	gw       gateway.Gateway
	bookings BookingLedger
	events   events.Publisher
	log      logger.ILogger
	now      func() time.Time
}

func NewService(store *repository.Store, gw gateway.Gateway, bookings BookingLedger, pub events.Publisher, log logger.ILogger) *Service {
	return &Service{
		store:    store,
		gw:       gw,
		bookings: bookings,
		events:   pub,
		log:      log,
		now:      time.Now,
	}
}

// WithClock replaces the wall clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type RequestInput struct {
	BookingID int64
	PaymentID *int64
	Amount    decimal.Decimal
	Method    domain.RefundMethod
	Notes     string
}

func (s *Service) RequestRefund(ctx context.Context, actor domain.ActorContext, in RequestInput) (*domain.Refund, error) {
	if err := actor.Require(domain.PermRefundRequest); err != nil {
		return nil, err
	}

	var rf *domain.Refund
	err := s.store.Transaction(ctx, func(tx *repository.Tx) error {
		var err error
		rf, err = OpenTx(ctx, tx, OpenInput{
			BookingID:   in.BookingID,
			PaymentID:   in.PaymentID,
			Amount:      in.Amount,
			Method:      in.Method,
			Notes:       in.Notes,
			RequestedBy: actor.UserID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(module, "Refund requested", map[string]interface{}{
		"refund_id":  rf.ID,
		"booking_id": rf.BookingID,
		"amount":     rf.Amount.StringFixed(2),
		"method":     rf.RefundMethod,
		"actor_id":   actor.UserID,
	})
	s.events.Publish(ctx, events.Event{
		Type:      events.RefundRequested,
		BookingID: rf.BookingID,
		Status:    string(rf.Status),
		Data:      map[string]interface{}{"refund_id": rf.ID, "amount": rf.Amount.StringFixed(2)},
	})
	return rf, nil
}

// ProcessRefund settles offline methods immediately. Gateway refunds move to PROCESSING,
// call the processor outside the transaction, and finish here or via webhook.
func (s *Service) ProcessRefund(ctx context.Context, actor domain.ActorContext, refundID int64, method string) (*domain.Refund, error) {
	if err := actor.Require(domain.PermRefundProcess); err != nil {
		return nil, err
	}

	var override domain.RefundMethod
	if strings.TrimSpace(method) != "" {
		m, ok := domain.ParseRefundMethod(method)
		if !ok {
			return nil, domain.NewValidationError("refund_method", "unsupported refund method")
		}
		override = m
	}

	var rf *domain.Refund
	var paymentTxID string
	out := &events.Outbox{}
	err := s.store.Transaction(ctx, func(tx *repository.Tx) error {
		var err error
		rf, err = tx.Refunds().GetForUpdate(ctx, refundID)
		if err != nil {
			return err
		}
		if rf.Status == domain.RefundCompleted {
			return nil
		}
		if rf.Status != domain.RefundPending {
			return &domain.ConflictError{Reason: fmt.Sprintf("refund is %s", rf.Status)}
		}
		if override != "" {
			rf.RefundMethod = override
		}

		if _, err := tx.Bookings().GetForUpdate(ctx, rf.BookingID); err != nil {
			return err
		}
		sums, err := tx.LedgerSums(ctx, rf.BookingID)
		if err != nil {
			return err
		}
		// The row itself is still in flight; only settled refunds count against it.
		available := sums.Collected.Sub(sums.Refunded)
		if rf.Amount.GreaterThan(available) {
			return &domain.RefundExceedsAvailableError{Requested: rf.Amount, Available: available}
		}

		if rf.RefundMethod.Synchronous() {
			rf.TransactionID = fmt.Sprintf("%s-%s", rf.RefundMethod, uuid.NewString())
			return s.completeTx(ctx, tx, out, rf)
		}

		if rf.PaymentID == nil {
			return domain.NewValidationError("refund_method", "gateway refund needs a payment")
		}
		p, err := tx.Payments().GetByID(ctx, *rf.PaymentID)
		if err != nil {
			return err
		}
		if !p.PaymentMethod.ViaGateway() {
			return domain.NewValidationError("refund_method", "payment was not taken through the gateway")
		}
		paymentTxID = p.TransactionID
		rf.Status = domain.RefundProcessing
		return tx.Refunds().Save(ctx, rf)
	})
	if err != nil {
		return nil, err
	}
	out.Flush(ctx, s.events)

	if rf.Status != domain.RefundProcessing || paymentTxID == "" {
		return rf, nil
	}
	return s.submitToGateway(ctx, rf, paymentTxID)
}

func (s *Service) submitToGateway(ctx context.Context, rf *domain.Refund, paymentTxID string) (*domain.Refund, error) {
	res, err := s.gw.CreateRefund(ctx, paymentTxID, rf.Amount, rf.TransactionID)
	if err != nil {
		if errors.Is(err, domain.ErrGatewayTimeout) {
			// The processor may still act on it; the webhook settles the row.
			s.log.Warn(module, "Gateway refund timed out, left processing", map[string]interface{}{
				"refund_id": rf.ID,
				"error":     err.Error(),
			})
			return rf, err
		}
		if _, ferr := s.FailRefund(ctx, rf.TransactionID, err.Error()); ferr != nil {
			s.log.Error(module, "Failed to mark refund failed", map[string]interface{}{"refund_id": rf.ID, "error": ferr})
		}
		return nil, err
	}

	switch res.Status {
	case gateway.StatusSucceeded:
		return s.settleGatewayRefund(ctx, rf.TransactionID, res.ID)
	case gateway.StatusFailed, gateway.StatusCanceled:
		failed, ferr := s.FailRefund(ctx, rf.TransactionID, "rejected by payment gateway")
		if ferr != nil {
			return nil, ferr
		}
		return failed, &domain.GatewayError{Op: "create_refund", Err: errors.New("refund rejected")}
	default:
		err := s.store.Transaction(ctx, func(tx *repository.Tx) error {
			locked, err := tx.Refunds().GetForUpdate(ctx, rf.ID)
			if err != nil {
				return err
			}
			locked.GatewayRefundID = res.ID
			rf = locked
			return tx.Refunds().Save(ctx, locked)
		})
		return rf, err
	}
}

func (s *Service) settleGatewayRefund(ctx context.Context, ref, gatewayRefundID string) (*domain.Refund, error) {
	var rf *domain.Refund
	out := &events.Outbox{}
	err := s.store.Transaction(ctx, func(tx *repository.Tx) error {
		var err error
		rf, err = tx.Refunds().GetByReferenceForUpdate(ctx, ref)
		if err != nil {
			return err
		}
		if gatewayRefundID != "" {
			rf.GatewayRefundID = gatewayRefundID
		}
		if rf.Status == domain.RefundCompleted {
			return tx.Refunds().Save(ctx, rf)
		}
		return s.completeTx(ctx, tx, out, rf)
	})
	if err != nil {
		return nil, err
	}
	out.Flush(ctx, s.events)
	return rf, nil
}

// CompleteGatewayRefund applies a processor confirmation. Replays are no-ops.
func (s *Service) CompleteGatewayRefund(ctx context.Context, ref string) (*domain.Refund, bool, error) {
	var rf *domain.Refund
	changed := false
	out := &events.Outbox{}
	err := s.store.Transaction(ctx, func(tx *repository.Tx) error {
		var err error
		rf, err = tx.Refunds().GetByReferenceForUpdate(ctx, ref)
		if err != nil {
			return err
		}
		switch rf.Status {
		case domain.RefundCompleted:
			return nil
		case domain.RefundCancelled:
			return &domain.ConflictError{Reason: "refund was cancelled before reaching the gateway"}
		}
		if rf.Status == domain.RefundFailed {
			if err := s.reviveFailedTx(ctx, tx, rf); err != nil {
				return err
			}
		}
		changed = true
		return s.completeTx(ctx, tx, out, rf)
	})
	if err != nil {
		return nil, false, err
	}
	out.Flush(ctx, s.events)
	return rf, changed, nil
}

// reviveFailedTx allows a late gateway confirmation of a FAILED refund only while it still fits.
// A failed refund stops reserving money, so a replacement may already have been issued.
func (s *Service) reviveFailedTx(ctx context.Context, tx *repository.Tx, rf *domain.Refund) error {
	if _, err := tx.Bookings().GetForUpdate(ctx, rf.BookingID); err != nil {
		return err
	}
	sums, err := tx.LedgerSums(ctx, rf.BookingID)
	if err != nil {
		return err
	}
	available := sums.AvailableForRefund()
	if rf.Amount.GreaterThan(available.Add(domain.AmountEpsilon)) {
		s.log.Error(module, "Gateway completed a failed refund that no longer fits, leaving it failed", map[string]interface{}{
			"refund_id":  rf.ID,
			"booking_id": rf.BookingID,
			"amount":     rf.Amount.StringFixed(2),
			"available":  available.StringFixed(2),
		})
		return &domain.RefundExceedsAvailableError{Requested: rf.Amount, Available: available}
	}
	s.log.Warn(module, "Gateway reports a refund we marked failed, completing it", map[string]interface{}{
		"refund_id":  rf.ID,
		"booking_id": rf.BookingID,
	})
	return nil
}

// RecordGatewayRefund books a refund issued directly on the processor for one of our payments.
func (s *Service) RecordGatewayRefund(ctx context.Context, paymentTxID, refundKey string, amount decimal.Decimal) (*domain.Refund, error) {
	if refundKey == "" {
		refundKey = "EXT-" + uuid.NewString()
	}
	var rf *domain.Refund
	out := &events.Outbox{}
	err := s.store.Transaction(ctx, func(tx *repository.Tx) error {
		p, err := tx.Payments().GetByTransactionIDForUpdate(ctx, paymentTxID)
		if err != nil {
			return err
		}
		if !amount.IsPositive() {
			amount = p.Amount
		}
		opened, err := OpenTx(ctx, tx, OpenInput{
			BookingID: p.BookingID,
			PaymentID: &p.ID,
			Amount:    amount,
			Method:    domain.RefundMethodStripe,
			Notes:     "issued on payment gateway",
		})
		if err != nil {
			return err
		}
		opened.TransactionID = refundKey
		rf = opened
		return s.completeTx(ctx, tx, out, rf)
	})
	if err != nil {
		return nil, err
	}
	out.Flush(ctx, s.events)
	return rf, nil
}

// FailRefund marks an open refund FAILED. Settled refunds are left alone.
func (s *Service) FailRefund(ctx context.Context, ref, reason string) (*domain.Refund, error) {
	var rf *domain.Refund
	out := &events.Outbox{}
	err := s.store.Transaction(ctx, func(tx *repository.Tx) error {
		var err error
		rf, err = tx.Refunds().GetByReferenceForUpdate(ctx, ref)
		if err != nil {
			return err
		}
		if rf.Status != domain.RefundPending && rf.Status != domain.RefundProcessing {
			return nil
		}
		rf.Status = domain.RefundFailed
		rf.FailureReason = reason
		if err := tx.Refunds().Save(ctx, rf); err != nil {
			return err
		}
		out.Add(events.Event{
			Type:      events.RefundFailed,
			BookingID: rf.BookingID,
			Status:    string(rf.Status),
			Data:      map[string]interface{}{"refund_id": rf.ID, "reason": reason},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	out.Flush(ctx, s.events)
	return rf, nil
}

func (s *Service) CancelRefund(ctx context.Context, actor domain.ActorContext, refundID int64) (*domain.Refund, error) {
	if err := actor.Require(domain.PermRefundRequest); err != nil {
		return nil, err
	}
	var rf *domain.Refund
	err := s.store.Transaction(ctx, func(tx *repository.Tx) error {
		var err error
		rf, err = tx.Refunds().GetForUpdate(ctx, refundID)
		if err != nil {
			return err
		}
		if rf.Status == domain.RefundCancelled {
			return nil
		}
		if rf.Status != domain.RefundPending {
			return &domain.ConflictError{Reason: fmt.Sprintf("refund is %s", rf.Status)}
		}
		rf.Status = domain.RefundCancelled
		return tx.Refunds().Save(ctx, rf)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info(module, "Refund cancelled", map[string]interface{}{"refund_id": rf.ID, "actor_id": actor.UserID})
	return rf, nil
}

func (s *Service) ListByBooking(ctx context.Context, actor domain.ActorContext, bookingID int64) ([]domain.Refund, error) {
	b, err := s.store.Bookings().GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := actor.RequireOwnerOr(b.UserID, domain.PermRefundRequest); err != nil {
		return nil, err
	}
	return s.store.Refunds().ListByBooking(ctx, bookingID)
}

// completeTx settles rf and propagates the effect to its payment and booking.
func (s *Service) completeTx(ctx context.Context, tx *repository.Tx, out *events.Outbox, rf *domain.Refund) error {
	now := s.now().UTC()
	rf.Status = domain.RefundCompleted
	rf.ProcessedAt = &now
	rf.FailureReason = ""
	if err := tx.Refunds().Save(ctx, rf); err != nil {
		return err
	}

	if rf.PaymentID != nil {
		p, err := tx.Payments().GetForUpdate(ctx, *rf.PaymentID)
		if err != nil {
			return err
		}
		returned, err := tx.Refunds().SumForPayment(ctx, p.ID, domain.RefundCompleted)
		if err != nil {
			return err
		}
		if p.Status == domain.PaymentCompleted && returned.GreaterThanOrEqual(p.Amount.Sub(domain.AmountEpsilon)) {
			ref := rf.TransactionID
			p.Status = domain.PaymentRefunded
			p.RefundTransactionID = &ref
			p.RefundedAt = &now
			if err := tx.Payments().Save(ctx, p); err != nil {
				return err
			}
		}
	}

	if _, err := tx.RefreshPaidAmount(ctx, rf.BookingID); err != nil {
		return err
	}

	sums, err := tx.LedgerSums(ctx, rf.BookingID)
	if err != nil {
		return err
	}
	if sums.Refunded.GreaterThan(sums.Collected.Add(domain.AmountEpsilon)) {
		s.log.Error(module, "Refunds exceed collected payments", map[string]interface{}{
			"booking_id": rf.BookingID,
			"refunded":   sums.Refunded.StringFixed(2),
			"collected":  sums.Collected.StringFixed(2),
		})
	}
	if sums.Collected.IsPositive() && sums.Refunded.GreaterThanOrEqual(sums.Collected) {
		if _, err := s.bookings.MarkRefundedTx(ctx, tx, out, rf.BookingID); err != nil {
			return err
		}
	}

	s.log.Info(module, "Refund completed", map[string]interface{}{
		"refund_id":  rf.ID,
		"booking_id": rf.BookingID,
		"amount":     rf.Amount.StringFixed(2),
		"method":     rf.RefundMethod,
	})
	out.Add(events.Event{
		Type:      events.RefundCompleted,
		BookingID: rf.BookingID,
		Status:    string(rf.Status),
		Data:      map[string]interface{}{"refund_id": rf.ID, "amount": rf.Amount.StringFixed(2), "method": string(rf.RefundMethod)},
	})
	return nil
}
