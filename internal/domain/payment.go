package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentRefunded  PaymentStatus = "REFUNDED"
)

// CollectedPaymentStatuses mark money that actually reached the hotel.
// A REFUNDED payment still counts; the matching refunds are subtracted separately.
var CollectedPaymentStatuses = []PaymentStatus{PaymentCompleted, PaymentRefunded}

type PaymentMethod string

const (
	PaymentMethodCard         PaymentMethod = "CARD"
	PaymentMethodCash         PaymentMethod = "CASH"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
)

func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch m := PaymentMethod(strings.ToUpper(strings.TrimSpace(s))); m {
	case PaymentMethodCard, PaymentMethodCash, PaymentMethodBankTransfer:
		return m, true
	}
	return "", false
}

// ViaGateway reports whether the charge is captured by the payment processor.
func (m PaymentMethod) ViaGateway() bool {
	return m == PaymentMethodCard
}

// RefundMethod returns the refund channel that returns money the same way it came in.
func (m PaymentMethod) RefundMethod() RefundMethod {
	switch m {
	case PaymentMethodCash:
		return RefundMethodCash
	case PaymentMethodBankTransfer:
		return RefundMethodBankTransfer
	default:
		return RefundMethodStripe
	}
}

type Payment struct {
	ID                  int64           `json:"id" gorm:"primaryKey"`
	BookingID           int64           `json:"booking_id" gorm:"not null;index"`
	Amount              decimal.Decimal `json:"amount" gorm:"type:decimal(12,2);not null"`
	PaymentMethod       PaymentMethod   `json:"payment_method" gorm:"size:32;not null"`
	Status              PaymentStatus   `json:"status" gorm:"size:32;not null;index"`
	TransactionID       string          `json:"transaction_id" gorm:"size:128;uniqueIndex;not null"`
	RefundTransactionID *string         `json:"refund_transaction_id,omitempty" gorm:"size:128"`
	FailureReason       string          `json:"failure_reason,omitempty" gorm:"type:text"`
	ProcessedAt         *time.Time      `json:"processed_at,omitempty" gorm:"index"`
	RefundedAt          *time.Time      `json:"refunded_at,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}
