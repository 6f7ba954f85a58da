package webhook

import (
	"context"
	"errors"
	"time"

	"hotelbooking/internal/domain"
	"hotelbooking/internal/pkg/logger"
	"hotelbooking/internal/repository"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const module = "webhook"

type PaymentLedger interface {
	ConfirmPayment(ctx context.Context, transactionID string) (*domain.Payment, bool, error)
	FailPayment(ctx context.Context, transactionID, reason string) (*domain.Payment, error)
}

type RefundLedger interface {
	CompleteGatewayRefund(ctx context.Context, ref string) (*domain.Refund, bool, error)
	RecordGatewayRefund(ctx context.Context, paymentTxID, refundKey string, amount decimal.Decimal) (*domain.Refund, error)
}

const (
	OutcomeApplied   = "applied"
	OutcomeNoop      = "noop"
	OutcomeDuplicate = "duplicate"
	OutcomeUnknown   = "unknown_transaction"
	OutcomeRejected  = "rejected"
	OutcomeRecorded  = "recorded_external_refund"
)

type Result struct {
	EventID string                  `json:"event_id"`
	Type    domain.WebhookEventType `json:"type"`
	Outcome string                  `json:"outcome"`
}

// Reconciler applies gateway events through the same ledger operations the API uses.
// Every event id is applied at most once; the go-cache layer only short-cuts hot replays.
type Reconciler struct {
	store    *repository.Store
	payments PaymentLedger
	refunds  RefundLedger
	seen     *cache.Cache
	log      logger.ILogger
	now      func() time.Time
}

func NewReconciler(store *repository.Store, payments PaymentLedger, refunds RefundLedger, log logger.ILogger) *Reconciler {
	return &Reconciler{
		store:    store,
		payments: payments,
		refunds:  refunds,
		seen:     cache.New(30*time.Minute, 10*time.Minute),
		log:      log,
		now:      time.Now,
	}
}

// Handle returns an error only when the delivery should be retried by the gateway.
func (r *Reconciler) Handle(ctx context.Context, e *Event) (*Result, error) {
	res := &Result{EventID: e.ID, Type: e.Type}

	if _, found := r.seen.Get(e.ID); found {
		res.Outcome = OutcomeDuplicate
		return res, nil
	}
	exists, err := r.store.WebhookEvents().Exists(ctx, e.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		r.seen.SetDefault(e.ID, struct{}{})
		res.Outcome = OutcomeDuplicate
		return res, nil
	}

	outcome, err := r.dispatch(ctx, e)
	if err != nil {
		r.log.Error(module, "Webhook dispatch failed", map[string]interface{}{
			"event_id":       e.ID,
			"type":           e.Type,
			"transaction_id": e.TransactionID,
			"error":          err.Error(),
		})
		return nil, err
	}
	res.Outcome = outcome

	rec := &domain.WebhookEvent{
		EventID:       e.ID,
		Type:          e.Type,
		TransactionID: e.TransactionID,
		Payload:       payloadJSON(e.Payload),
		Outcome:       outcome,
		ProcessedAt:   r.now().UTC(),
	}
	if err := r.store.WebhookEvents().Create(ctx, rec); err != nil {
		if !errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		// A concurrent delivery of the same event won the insert. The ledger calls are idempotent.
		res.Outcome = OutcomeDuplicate
	}
	r.seen.SetDefault(e.ID, struct{}{})

	r.log.Info(module, "Webhook applied", map[string]interface{}{
		"event_id":       e.ID,
		"type":           e.Type,
		"transaction_id": e.TransactionID,
		"outcome":        res.Outcome,
	})
	return res, nil
}

func (r *Reconciler) dispatch(ctx context.Context, e *Event) (string, error) {
	var (
		changed bool
		err     error
	)
	switch e.Type {
	case domain.WebhookPaymentSucceeded:
		_, changed, err = r.payments.ConfirmPayment(ctx, e.TransactionID)
	case domain.WebhookPaymentFailed, domain.WebhookPaymentCanceled:
		var p *domain.Payment
		p, err = r.payments.FailPayment(ctx, e.TransactionID, failureReason(e))
		changed = p != nil && p.Status == domain.PaymentFailed
	case domain.WebhookChargeRefunded:
		return r.applyRefund(ctx, e)
	default:
		return OutcomeNoop, nil
	}
	return r.outcome(e, changed, err)
}

func (r *Reconciler) applyRefund(ctx context.Context, e *Event) (string, error) {
	if e.RefundKey != "" {
		_, changed, err := r.refunds.CompleteGatewayRefund(ctx, e.RefundKey)
		if !errors.Is(err, domain.ErrNotFound) {
			return r.outcome(e, changed, err)
		}
	}
	// Issued from the processor dashboard, so there is no refund row yet.
	_, err := r.refunds.RecordGatewayRefund(ctx, e.TransactionID, e.RefundKey, e.Amount)
	if err != nil {
		return r.outcome(e, false, err)
	}
	return OutcomeRecorded, nil
}

// outcome acknowledges errors that a retry cannot fix.
func (r *Reconciler) outcome(e *Event, changed bool, err error) (string, error) {
	switch {
	case err == nil && changed:
		return OutcomeApplied, nil
	case err == nil:
		return OutcomeNoop, nil
	case errors.Is(err, domain.ErrNotFound):
		r.log.Warn(module, "Webhook for unknown transaction", map[string]interface{}{
			"event_id":       e.ID,
			"transaction_id": e.TransactionID,
		})
		return OutcomeUnknown, nil
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrRefundExceedsAvailable),
		errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidTransition):
		r.log.Error(module, "Webhook rejected by ledger", map[string]interface{}{
			"event_id":       e.ID,
			"transaction_id": e.TransactionID,
			"error":          err.Error(),
		})
		return OutcomeRejected, nil
	}
	return "", err
}

func failureReason(e *Event) string {
	if e.Reason != "" {
		return e.Reason
	}
	return string(e.Type)
}

func payloadJSON(body []byte) datatypes.JSON {
	if len(body) == 0 {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(body)
}
