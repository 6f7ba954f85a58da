package domain

import (
	"time"

	"gorm.io/datatypes"
)

type WebhookEventType string

const (
	WebhookPaymentSucceeded WebhookEventType = "payment_succeeded"
	WebhookPaymentFailed    WebhookEventType = "payment_failed"
	WebhookPaymentCanceled  WebhookEventType = "payment_canceled"
	WebhookChargeRefunded   WebhookEventType = "charge_refunded"
)

// WebhookEvent records a gateway delivery that has been applied.
type WebhookEvent struct {
	ID            int64            `json:"id" gorm:"primaryKey"`
	EventID       string           `json:"event_id" gorm:"size:128;uniqueIndex;not null"`
	Type          WebhookEventType `json:"type" gorm:"size:64;not null"`
	TransactionID string           `json:"transaction_id" gorm:"size:128;index"`
	Payload       datatypes.JSON   `json:"payload"`
	Outcome       string           `json:"outcome" gorm:"size:64"`
	ProcessedAt   time.Time        `json:"processed_at"`
	CreatedAt     time.Time        `json:"created_at"`
}
