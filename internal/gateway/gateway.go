// Package gateway is the contract the ledgers need from the payment processor.
package gateway

import (
	"context"

	"github.com/shopspring/decimal"
)

type IntentStatus string

const (
	StatusSucceeded IntentStatus = "succeeded"
	StatusPending   IntentStatus = "pending"
	StatusFailed    IntentStatus = "failed"
	StatusCanceled  IntentStatus = "canceled"
)

type Metadata struct {
	// Reference is our payment transaction id; processors echo it back in webhooks.
	Reference   string
	BookingID   int64
	UserID      int64
	Description string
}

type Intent struct {
	ID           string
	ClientSecret string
	RedirectURL  string
}

type Confirmation struct {
	Status IntentStatus
	Reason string
}

type RefundResult struct {
	ID     string
	Status IntentStatus
}

type Gateway interface {
	CreatePaymentIntent(ctx context.Context, amount decimal.Decimal, meta Metadata) (*Intent, error)
	Confirm(ctx context.Context, intentID, paymentMethodID string) (*Confirmation, error)
	CreateRefund(ctx context.Context, transactionID string, amount decimal.Decimal, refundKey string) (*RefundResult, error)
}
