package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hotelbooking/internal/domain"
	"hotelbooking/internal/events"
	"hotelbooking/internal/gateway"
	"hotelbooking/internal/pkg/logger"
	"hotelbooking/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const module = "payment"

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

type InitiateInput struct {
	BookingID int64
	Amount    decimal.Decimal
	Method    domain.PaymentMethod
}

type InitiateResult struct {
	Payment      *domain.Payment `json:"payment"`
	ClientSecret string          `json:"client_secret,omitempty"`
	RedirectURL  string          `json:"redirect_url,omitempty"`
}

// InitiatePayment records a PENDING charge and opens it on the gateway.
// Cash and bank transfers are taken at the desk and complete immediately.
func (s *Service) InitiatePayment(ctx context.Context, actor domain.ActorContext, in InitiateInput) (*InitiateResult, error) {
	if !in.Amount.IsPositive() {
		return nil, domain.NewValidationError("amount", "must be greater than zero")
	}
	if _, ok := domain.ParsePaymentMethod(string(in.Method)); !ok {
		return nil, domain.NewValidationError("payment_method", "unsupported payment method")
	}
	if !in.Method.ViaGateway() {
		if err := actor.Require(domain.PermPaymentManage); err != nil {
			return nil, err
		}
	}

	var p *domain.Payment
	var b *domain.Booking
	out := &events.Outbox{}
	err := s.store.Transaction(ctx, func(tx *repository.Tx) error {
		var err error
		b, err = tx.Bookings().GetForUpdate(ctx, in.BookingID)
		if err != nil {
			return err
		}
		if err := actor.RequireOwnerOr(b.UserID, domain.PermPaymentManage); err != nil {
			return err
		}
		if b.Status != domain.BookingPending && b.Status != domain.BookingConfirmed {
			return &domain.ConflictError{Reason: fmt.Sprintf("a %s booking cannot take payments", b.Status)}
		}
		collected, err := tx.Payments().ExistsWithStatus(ctx, b.ID, domain.CollectedPaymentStatuses...)
		if err != nil {
			return err
		}
		if collected {
			return &domain.DuplicatePaymentError{BookingID: b.ID}
		}
		if !domain.AmountsMatch(in.Amount, b.TotalPrice) {
			return domain.NewValidationError("amount",
				fmt.Sprintf("amount %s does not match booking total %s", in.Amount.StringFixed(2), b.TotalPrice.StringFixed(2)))
		}

		p = &domain.Payment{
			BookingID:     b.ID,
			Amount:        in.Amount.Round(2),
			PaymentMethod: in.Method,
			Status:        domain.PaymentPending,
			TransactionID: "PAY-" + uuid.NewString(),
		}
		if err := tx.Payments().Create(ctx, p); err != nil {
			return err
		}
		if in.Method.ViaGateway() {
			return nil
		}
		return s.completeTx(ctx, tx, out, p)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(module, "Payment initiated", map[string]interface{}{
		"payment_id":     p.ID,
		"booking_id":     p.BookingID,
		"amount":         p.Amount.StringFixed(2),
		"payment_method": p.PaymentMethod,
		"actor_id":       actor.UserID,
	})
	out.Flush(ctx, s.events)

	if !in.Method.ViaGateway() {
		return &InitiateResult{Payment: p}, nil
	}

	intent, err := s.gw.CreatePaymentIntent(ctx, p.Amount, gateway.Metadata{
		Reference:   p.TransactionID,
		BookingID:   b.ID,
		UserID:      b.UserID,
		Description: fmt.Sprintf("Booking #%d", b.ID),
	})
	if err != nil {
		if errors.Is(err, domain.ErrGatewayTimeout) {
			s.log.Warn(module, "Payment intent timed out, left pending", map[string]interface{}{
				"payment_id": p.ID,
				"error":      err.Error(),
			})
			return nil, err
		}
		if _, ferr := s.FailPayment(ctx, p.TransactionID, err.Error()); ferr != nil {
			s.log.Error(module, "Failed to mark payment failed", map[string]interface{}{"payment_id": p.ID, "error": ferr})
		}
		return nil, err
	}

	return &InitiateResult{
		Payment:      p,
		ClientSecret: intent.ClientSecret,
		RedirectURL:  intent.RedirectURL,
	}, nil
}

// ConfirmPayment applies a captured charge. It is shared by the webhook and the synchronous confirm.
// Only a PENDING payment moves; replays and late captures of FAILED attempts are no-ops. The bool reports whether anything changed.
func (s *Service) ConfirmPayment(ctx context.Context, transactionID string) (*domain.Payment, bool, error) {
	var p *domain.Payment
	changed := false
	out := &events.Outbox{}
	err := s.store.Transaction(ctx, func(tx *repository.Tx) error {
		var err error
		p, err = tx.Payments().GetByTransactionIDForUpdate(ctx, transactionID)
		if err != nil {
			return err
		}
		switch p.Status {
		case domain.PaymentCompleted, domain.PaymentRefunded:
			return nil
		case domain.PaymentFailed:
			// A retry may already have collected the booking. The capture is settled by hand.
			s.log.Warn(module, "Gateway captured a payment already marked failed, ignoring", map[string]interface{}{
				"payment_id":     p.ID,
				"booking_id":     p.BookingID,
				"transaction_id": p.TransactionID,
			})
			return nil
		}
		changed = true
		return s.completeTx(ctx, tx, out, p)
	})
	if err != nil {
		return nil, false, err
	}
	out.Flush(ctx, s.events)
	return p, changed, nil
}

// FailPayment marks a PENDING payment FAILED. Anything else is left as is.
func (s *Service) FailPayment(ctx context.Context, transactionID, reason string) (*domain.Payment, error) {
	var p *domain.Payment
	out := &events.Outbox{}
	err := s.store.Transaction(ctx, func(tx *repository.Tx) error {
		var err error
		p, err = tx.Payments().GetByTransactionIDForUpdate(ctx, transactionID)
		if err != nil {
			return err
		}
		if p.Status != domain.PaymentPending {
			return nil
		}
		p.Status = domain.PaymentFailed
		p.FailureReason = reason
		if err := tx.Payments().Save(ctx, p); err != nil {
			return err
		}
		out.Add(events.Event{
			Type:      events.PaymentFailed,
			BookingID: p.BookingID,
			Status:    string(p.Status),
			Data:      map[string]interface{}{"payment_id": p.ID, "reason": reason},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if p.Status == domain.PaymentFailed {
		s.log.Warn(module, "Payment failed", map[string]interface{}{
			"payment_id": p.ID,
			"booking_id": p.BookingID,
			"reason":     reason,
		})
	}
	out.Flush(ctx, s.events)
	return p, nil
}

// Fail is the staff-facing variant of FailPayment.
func (s *Service) Fail(ctx context.Context, actor domain.ActorContext, paymentID int64, reason string) (*domain.Payment, error) {
	if err := actor.Require(domain.PermPaymentManage); err != nil {
		return nil, err
	}
	p, err := s.store.Payments().GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if reason == "" {
		reason = "marked failed by staff"
	}
	return s.FailPayment(ctx, p.TransactionID, reason)
}

// ConfirmPaymentSync confirms a pending card payment with a payment method the client collected.
func (s *Service) ConfirmPaymentSync(ctx context.Context, actor domain.ActorContext, paymentID int64, paymentMethodID string) (*domain.Payment, error) {
	p, err := s.store.Payments().GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	b, err := s.store.Bookings().GetByID(ctx, p.BookingID)
	if err != nil {
		return nil, err
	}
	if err := actor.RequireOwnerOr(b.UserID, domain.PermPaymentManage); err != nil {
		return nil, err
	}
	switch p.Status {
	case domain.PaymentCompleted, domain.PaymentRefunded:
		return p, nil
	case domain.PaymentFailed:
		return nil, &domain.ConflictError{Reason: "payment already failed"}
	}
	if !p.PaymentMethod.ViaGateway() {
		return nil, domain.NewValidationError("payment_method", "only card payments are confirmed through the gateway")
	}

	conf, err := s.gw.Confirm(ctx, p.TransactionID, paymentMethodID)
	if err != nil {
		if errors.Is(err, domain.ErrGatewayTimeout) {
			return nil, err
		}
		if _, ferr := s.FailPayment(ctx, p.TransactionID, err.Error()); ferr != nil {
			s.log.Error(module, "Failed to mark payment failed", map[string]interface{}{"payment_id": p.ID, "error": ferr})
		}
		return nil, err
	}

	switch conf.Status {
	case gateway.StatusSucceeded:
		confirmed, _, err := s.ConfirmPayment(ctx, p.TransactionID)
		return confirmed, err
	case gateway.StatusFailed, gateway.StatusCanceled:
		reason := conf.Reason
		if reason == "" {
			reason = string(conf.Status)
		}
		if _, err := s.FailPayment(ctx, p.TransactionID, reason); err != nil {
			return nil, err
		}
		return nil, &domain.GatewayError{Op: "confirm", Err: errors.New(reason)}
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, actor domain.ActorContext, paymentID int64) (*domain.Payment, error) {
	p, err := s.store.Payments().GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	b, err := s.store.Bookings().GetByID(ctx, p.BookingID)
	if err != nil {
		return nil, err
	}
	if err := actor.RequireOwnerOr(b.UserID, domain.PermPaymentManage); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) ListByBooking(ctx context.Context, actor domain.ActorContext, bookingID int64) ([]domain.Payment, error) {
	b, err := s.store.Bookings().GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := actor.RequireOwnerOr(b.UserID, domain.PermPaymentManage); err != nil {
		return nil, err
	}
	return s.store.Payments().ListByBooking(ctx, bookingID)
}

// completeTx marks p COMPLETED and confirms its booking. A booking that can no longer be
// confirmed keeps its status; the money is still recorded and shows up in reconciliation.
func (s *Service) completeTx(ctx context.Context, tx *repository.Tx, out *events.Outbox, p *domain.Payment) error {
	now := s.now().UTC()
	p.Status = domain.PaymentCompleted
	p.ProcessedAt = &now
	p.FailureReason = ""
	if err := tx.Payments().Save(ctx, p); err != nil {
		return err
	}

	_, _, err := s.bookings.RecordPaymentSuccessTx(ctx, tx, out, p.BookingID, p.Amount)
	switch {
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrValidation):
		s.log.Warn(module, "Payment captured but booking not confirmed", map[string]interface{}{
			"payment_id": p.ID,
			"booking_id": p.BookingID,
			"error":      err.Error(),
		})
	case err != nil:
		return err
	}

	if _, err := tx.RefreshPaidAmount(ctx, p.BookingID); err != nil {
		return err
	}

	s.log.Info(module, "Payment completed", map[string]interface{}{
		"payment_id": p.ID,
		"booking_id": p.BookingID,
		"amount":     p.Amount.StringFixed(2),
	})
	out.Add(events.Event{
		Type:      events.PaymentCompleted,
		BookingID: p.BookingID,
		Status:    string(p.Status),
		Data:      map[string]interface{}{"payment_id": p.ID, "amount": p.Amount.StringFixed(2), "method": string(p.PaymentMethod)},
	})
	return nil
}
