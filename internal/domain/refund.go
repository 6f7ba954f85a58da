package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type RefundStatus string

const (
	RefundPending    RefundStatus = "PENDING"
	RefundProcessing RefundStatus = "PROCESSING"
	RefundCompleted  RefundStatus = "COMPLETED"
	RefundFailed     RefundStatus = "FAILED"
	RefundCancelled  RefundStatus = "CANCELLED"
)

// InFlightRefundStatuses reserve part of the refundable balance until they settle.
var InFlightRefundStatuses = []RefundStatus{RefundPending, RefundProcessing}

type RefundMethod string

const (
	// RefundMethodStripe is the gateway-backed method. The stored value predates the
	// current processor and is kept for compatibility with existing rows.
	RefundMethodStripe          RefundMethod = "STRIPE"
	RefundMethodCash            RefundMethod = "CASH"
	RefundMethodBankTransfer    RefundMethod = "BANK_TRANSFER"
	RefundMethodCreditToAccount RefundMethod = "CREDIT_TO_ACCOUNT"
)

func ParseRefundMethod(s string) (RefundMethod, bool) {
	switch m := RefundMethod(strings.ToUpper(strings.TrimSpace(s))); m {
	case RefundMethodStripe, RefundMethodCash, RefundMethodBankTransfer, RefundMethodCreditToAccount:
		return m, true
	}
	return "", false
}

// Synchronous methods settle in the same call that processes them.
func (m RefundMethod) Synchronous() bool {
	return m != RefundMethodStripe
}

type Refund struct {
	ID              int64           `json:"id" gorm:"primaryKey"`
	BookingID       int64           `json:"booking_id" gorm:"not null;index"`
	PaymentID       *int64          `json:"payment_id,omitempty" gorm:"index"`
	Amount          decimal.Decimal `json:"amount" gorm:"type:decimal(12,2);not null"`
	RefundMethod    RefundMethod    `json:"refund_method" gorm:"size:32;not null"`
	Status          RefundStatus    `json:"status" gorm:"size:32;not null;index"`
	TransactionID   string          `json:"transaction_id" gorm:"size:128;uniqueIndex;not null"`
	GatewayRefundID string          `json:"gateway_refund_id,omitempty" gorm:"size:128;index"`
	RequestedBy     int64           `json:"requested_by"`
	ProcessedAt     *time.Time      `json:"processed_at,omitempty" gorm:"index"`
	FailureReason   string          `json:"failure_reason,omitempty" gorm:"type:text"`
	Notes           string          `json:"notes,omitempty" gorm:"type:text"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
