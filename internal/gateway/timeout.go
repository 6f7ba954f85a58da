package gateway

import (
	"context"
	"errors"
	"time"

	"hotelbooking/internal/domain"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Bounded wraps a Gateway so every call returns within timeout. A call that
// runs out of time yields GatewayTimeoutError. Any other failure becomes GatewayError.
type Bounded struct {
	next    Gateway
	timeout time.Duration
}

func WithTimeout(next Gateway, timeout time.Duration) *Bounded {
	return &Bounded{next: next, timeout: timeout}
}

func (b *Bounded) CreatePaymentIntent(ctx context.Context, amount decimal.Decimal, meta Metadata) (*Intent, error) {
	return call(ctx, b.timeout, "create_payment_intent", func(ctx context.Context) (*Intent, error) {
		return b.next.CreatePaymentIntent(ctx, amount, meta)
	})
}

func (b *Bounded) Confirm(ctx context.Context, intentID, paymentMethodID string) (*Confirmation, error) {
	return call(ctx, b.timeout, "confirm", func(ctx context.Context) (*Confirmation, error) {
		return b.next.Confirm(ctx, intentID, paymentMethodID)
	})
}

func (b *Bounded) CreateRefund(ctx context.Context, transactionID string, amount decimal.Decimal, refundKey string) (*RefundResult, error) {
	return call(ctx, b.timeout, "create_refund", func(ctx context.Context) (*RefundResult, error) {
		return b.next.CreateRefund(ctx, transactionID, amount, refundKey)
	})
}

type result[T any] struct {
	val T
	err error
}

func call[T any](ctx context.Context, timeout time.Duration, op string, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := otel.Tracer("hotelbooking/gateway").Start(ctx, "gateway."+op)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Buffered so the worker can finish after we stop waiting.
	done := make(chan result[T], 1)
	go func() {
		v, err := fn(ctx)
		done <- result[T]{val: v, err: err}
	}()

	var zero T
	select {
	case r := <-done:
		if r.err == nil {
			return r.val, nil
		}
		span.RecordError(r.err)
		span.SetStatus(codes.Error, r.err.Error())
		if errors.Is(r.err, context.DeadlineExceeded) {
			return zero, &domain.GatewayTimeoutError{Op: op, Timeout: timeout}
		}
		if errors.Is(r.err, domain.ErrGateway) || errors.Is(r.err, domain.ErrGatewayTimeout) {
			return zero, r.err
		}
		return zero, &domain.GatewayError{Op: op, Err: r.err}
	case <-ctx.Done():
		span.SetAttributes(attribute.Bool("gateway.timeout", true))
		span.SetStatus(codes.Error, "timeout")
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, &domain.GatewayTimeoutError{Op: op, Timeout: timeout}
		}
		return zero, &domain.GatewayError{Op: op, Err: ctx.Err()}
	}
}
