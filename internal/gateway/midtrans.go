package gateway

import (
	"context"
	"fmt"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
	"github.com/shopspring/decimal"
)

// Midtrans charges through Snap and settles through the Core API.
// IDR has no minor unit, so amounts with cents are refused instead of rounded.
type Midtrans struct {
	snap snap.Client
	core coreapi.Client
}

func NewMidtrans(serverKey string, production bool) *Midtrans {
	env := midtrans.Sandbox
	if production {
		env = midtrans.Production
	}
	m := &Midtrans{}
	m.snap.New(serverKey, env)
	m.core.New(serverKey, env)
	return m
}

func (m *Midtrans) CreatePaymentIntent(_ context.Context, amount decimal.Decimal, meta Metadata) (*Intent, error) {
	gross, err := WholeUnits(amount)
	if err != nil {
		return nil, err
	}
	req := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  meta.Reference,
			GrossAmt: gross,
		},
		Items: &[]midtrans.ItemDetails{
			{
				ID:    fmt.Sprintf("booking-%d", meta.BookingID),
				Name:  meta.Description,
				Price: gross,
				Qty:   1,
			},
		},
		EnabledPayments: snap.AllSnapPaymentType,
	}

	resp, mErr := m.snap.CreateTransaction(req)
	if mErr != nil {
		return nil, fmt.Errorf("midtrans: %s", mErr.GetMessage())
	}
	return &Intent{ID: meta.Reference, ClientSecret: resp.Token, RedirectURL: resp.RedirectURL}, nil
}

// Confirm polls the transaction status. Snap collects the payment method on its own page,
// so paymentMethodID is not forwarded.
func (m *Midtrans) Confirm(_ context.Context, intentID, _ string) (*Confirmation, error) {
	resp, mErr := m.core.CheckTransaction(intentID)
	if mErr != nil {
		return nil, fmt.Errorf("midtrans: %s", mErr.GetMessage())
	}
	return &Confirmation{
		Status: MapMidtransStatus(resp.TransactionStatus, resp.FraudStatus),
		Reason: resp.StatusMessage,
	}, nil
}

func (m *Midtrans) CreateRefund(_ context.Context, transactionID string, amount decimal.Decimal, refundKey string) (*RefundResult, error) {
	units, err := WholeUnits(amount)
	if err != nil {
		return nil, err
	}
	resp, mErr := m.core.RefundTransaction(transactionID, &coreapi.RefundReq{
		RefundKey: refundKey,
		Amount:    units,
		Reason:    "hotel booking refund",
	})
	if mErr != nil {
		return nil, fmt.Errorf("midtrans: %s", mErr.GetMessage())
	}

	status := StatusPending
	switch resp.StatusCode {
	case "200":
		status = StatusSucceeded
	case "412", "418":
		status = StatusFailed
	}
	id := resp.RefundKey
	if id == "" {
		id = refundKey
	}
	return &RefundResult{ID: id, Status: status}, nil
}

// WholeUnits converts a ledger amount to the integer Midtrans expects.
func WholeUnits(amount decimal.Decimal) (int64, error) {
	if !amount.Equal(amount.Truncate(0)) {
		return 0, fmt.Errorf("midtrans: amount %s has a fractional part", amount.StringFixed(2))
	}
	return amount.IntPart(), nil
}

// MapMidtransStatus folds Midtrans transaction statuses into intent statuses.
func MapMidtransStatus(transactionStatus, fraudStatus string) IntentStatus {
	switch transactionStatus {
	case "capture":
		if fraudStatus == "challenge" {
			return StatusPending
		}
		return StatusSucceeded
	case "settlement":
		return StatusSucceeded
	case "deny", "expire", "failure":
		return StatusFailed
	case "cancel":
		return StatusCanceled
	default:
		return StatusPending
	}
}
