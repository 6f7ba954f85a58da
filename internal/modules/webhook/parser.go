package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"hotelbooking/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMalformed        = errors.New("malformed webhook payload")
	// ErrIgnored marks deliveries that carry no ledger change, such as a pending charge.
	ErrIgnored = errors.New("webhook event ignored")
)

const SignatureHeader = "X-Webhook-Signature"

// Event is a gateway delivery normalized to what the ledgers understand.
type Event struct {
	ID            string
	Type          domain.WebhookEventType
	TransactionID string
	RefundKey     string
	Amount        decimal.Decimal
	Reason        string
	Payload       []byte
}

type Parser interface {
	Parse(header http.Header, body []byte) (*Event, error)
}

// MidtransParser reads Midtrans HTTP notifications.
type MidtransParser struct {
	ServerKey string
}

type midtransNotification struct {
	TransactionStatus string `json:"transaction_status"`
	OrderID           string `json:"order_id"`
	FraudStatus       string `json:"fraud_status"`
	SignatureKey      string `json:"signature_key"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	StatusMessage     string `json:"status_message"`
	TransactionID     string `json:"transaction_id"`
	RefundAmount      string `json:"refund_amount"`
	RefundKey         string `json:"refund_key"`
	Refunds           []struct {
		RefundKey    string `json:"refund_key"`
		RefundAmount string `json:"refund_amount"`
		Reason       string `json:"reason"`
	} `json:"refunds"`
}

func (p MidtransParser) Parse(_ http.Header, body []byte) (*Event, error) {
	var n midtransNotification
	if err := json.Unmarshal(body, &n); err != nil || n.OrderID == "" {
		return nil, ErrMalformed
	}

	// SHA512(order_id + status_code + gross_amount + server_key)
	sum := sha512.Sum512([]byte(n.OrderID + n.StatusCode + n.GrossAmount + p.ServerKey))
	if !hmac.Equal([]byte(hex.EncodeToString(sum[:])), []byte(strings.ToLower(n.SignatureKey))) {
		return nil, ErrInvalidSignature
	}

	e := &Event{TransactionID: n.OrderID, Reason: n.StatusMessage, Payload: body}
	switch n.TransactionStatus {
	case "capture":
		if n.FraudStatus == "challenge" {
			return nil, ErrIgnored
		}
		e.Type = domain.WebhookPaymentSucceeded
	case "settlement":
		e.Type = domain.WebhookPaymentSucceeded
	case "deny", "expire", "failure":
		e.Type = domain.WebhookPaymentFailed
	case "cancel":
		e.Type = domain.WebhookPaymentCanceled
	case "refund", "partial_refund":
		e.Type = domain.WebhookChargeRefunded
		e.RefundKey, e.Amount = n.RefundKey, parseAmount(n.RefundAmount)
		if len(n.Refunds) > 0 {
			last := n.Refunds[len(n.Refunds)-1]
			e.RefundKey, e.Amount, e.Reason = last.RefundKey, parseAmount(last.RefundAmount), last.Reason
		}
	default:
		return nil, ErrIgnored
	}

	// Midtrans has no delivery id; a status change of one order is delivered at most once per key.
	e.ID = uuid.NewSHA1(uuid.NameSpaceURL, []byte(strings.Join([]string{
		"midtrans", n.OrderID, n.TransactionStatus, n.StatusCode, e.RefundKey,
	}, "|"))).String()
	return e, nil
}

// HMACParser reads the generic JSON format signed with a shared secret. The fake gateway uses it.
type HMACParser struct {
	Secret string
}

type genericNotification struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	TransactionID string `json:"transaction_id"`
	RefundID      string `json:"refund_id"`
	Amount        string `json:"amount"`
	Reason        string `json:"reason"`
}

func (p HMACParser) Parse(header http.Header, body []byte) (*Event, error) {
	if !hmac.Equal([]byte(Sign(p.Secret, body)), []byte(strings.ToLower(header.Get(SignatureHeader)))) {
		return nil, ErrInvalidSignature
	}

	var n genericNotification
	if err := json.Unmarshal(body, &n); err != nil || n.ID == "" || n.TransactionID == "" {
		return nil, ErrMalformed
	}
	t := domain.WebhookEventType(n.Type)
	switch t {
	case domain.WebhookPaymentSucceeded, domain.WebhookPaymentFailed,
		domain.WebhookPaymentCanceled, domain.WebhookChargeRefunded:
	default:
		return nil, ErrIgnored
	}
	return &Event{
		ID:            n.ID,
		Type:          t,
		TransactionID: n.TransactionID,
		RefundKey:     n.RefundID,
		Amount:        parseAmount(n.Amount),
		Reason:        n.Reason,
		Payload:       body,
	}, nil
}

// Sign is the hex HMAC-SHA256 of body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func parseAmount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}
