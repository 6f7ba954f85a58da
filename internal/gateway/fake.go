package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrDeclined = errors.New("card declined")

// Fake is an in-memory processor for development and tests.
type Fake struct {
	mu sync.Mutex

	// Delay is applied to every call, honouring ctx cancellation.
	Delay time.Duration
	// Fail makes the named operation return the error.
	Fail map[string]error
	// ConfirmStatus is returned by Confirm. Defaults to succeeded.
	ConfirmStatus IntentStatus
	// RefundStatus is returned by CreateRefund. Defaults to pending.
	RefundStatus IntentStatus

	Intents map[string]decimal.Decimal
	Refunds map[string]decimal.Decimal
	Calls   []string
}

func NewFake() *Fake {
	return &Fake{
		Fail:    map[string]error{},
		Intents: map[string]decimal.Decimal{},
		Refunds: map[string]decimal.Decimal{},
	}
}

func (f *Fake) begin(ctx context.Context, op string) error {
	f.mu.Lock()
	f.Calls = append(f.Calls, op)
	delay := f.Delay
	err := f.Fail[op]
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *Fake) CreatePaymentIntent(ctx context.Context, amount decimal.Decimal, meta Metadata) (*Intent, error) {
	if err := f.begin(ctx, "create_payment_intent"); err != nil {
		return nil, err
	}
	id := meta.Reference
	if id == "" {
		id = "pi_" + uuid.NewString()
	}
	f.mu.Lock()
	f.Intents[id] = amount
	f.mu.Unlock()
	return &Intent{ID: id, ClientSecret: fmt.Sprintf("%s_secret", id)}, nil
}

func (f *Fake) Confirm(ctx context.Context, intentID, _ string) (*Confirmation, error) {
	if err := f.begin(ctx, "confirm"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.Intents[intentID]; !ok {
		return nil, fmt.Errorf("unknown intent %s", intentID)
	}
	status := f.ConfirmStatus
	if status == "" {
		status = StatusSucceeded
	}
	c := &Confirmation{Status: status}
	if status == StatusFailed {
		c.Reason = ErrDeclined.Error()
	}
	return c, nil
}

func (f *Fake) CreateRefund(ctx context.Context, transactionID string, amount decimal.Decimal, refundKey string) (*RefundResult, error) {
	if err := f.begin(ctx, "create_refund"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Refunds[refundKey] = amount
	status := f.RefundStatus
	if status == "" {
		status = StatusPending
	}
	return &RefundResult{ID: "re_" + refundKey, Status: status}, nil
}

func (f *Fake) CallCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if c == op {
			n++
		}
	}
	return n
}
