package webhook

import (
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"testing"

	"hotelbooking/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const serverKey = "SB-Mid-server-test"

func midtransBody(t *testing.T, fields map[string]interface{}) []byte {
	t.Helper()
	orderID, _ := fields["order_id"].(string)
	statusCode, _ := fields["status_code"].(string)
	gross, _ := fields["gross_amount"].(string)
	sum := sha512.Sum512([]byte(orderID + statusCode + gross + serverKey))
	if _, ok := fields["signature_key"]; !ok {
		fields["signature_key"] = hex.EncodeToString(sum[:])
	}
	body, err := json.Marshal(fields)
	require.NoError(t, err)
	return body
}

func TestMidtransParser_StatusMapping(t *testing.T) {
	tests := []struct {
		status string
		fraud  string
		want   domain.WebhookEventType
		err    error
	}{
		{status: "settlement", want: domain.WebhookPaymentSucceeded},
		{status: "capture", fraud: "accept", want: domain.WebhookPaymentSucceeded},
		{status: "capture", fraud: "challenge", err: ErrIgnored},
		{status: "deny", want: domain.WebhookPaymentFailed},
		{status: "expire", want: domain.WebhookPaymentFailed},
		{status: "cancel", want: domain.WebhookPaymentCanceled},
		{status: "refund", want: domain.WebhookChargeRefunded},
		{status: "pending", err: ErrIgnored},
	}
	p := MidtransParser{ServerKey: serverKey}

	for _, tt := range tests {
		t.Run(tt.status+"/"+tt.fraud, func(t *testing.T) {
			body := midtransBody(t, map[string]interface{}{
				"order_id":           "PAY-1",
				"status_code":        "200",
				"gross_amount":       "200000.00",
				"transaction_status": tt.status,
				"fraud_status":       tt.fraud,
			})
			e, err := p.Parse(http.Header{}, body)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, e.Type)
			assert.Equal(t, "PAY-1", e.TransactionID)
		})
	}
}

func TestMidtransParser_StableEventID(t *testing.T) {
	p := MidtransParser{ServerKey: serverKey}
	fields := func(status string) map[string]interface{} {
		return map[string]interface{}{
			"order_id": "PAY-1", "status_code": "200", "gross_amount": "10.00", "transaction_status": status,
		}
	}

	a, err := p.Parse(nil, midtransBody(t, fields("settlement")))
	require.NoError(t, err)
	b, err := p.Parse(nil, midtransBody(t, fields("settlement")))
	require.NoError(t, err)
	c, err := p.Parse(nil, midtransBody(t, fields("cancel")))
	require.NoError(t, err)

	assert.Equal(t, a.ID, b.ID)
	assert.NotEqual(t, a.ID, c.ID)
}

func TestMidtransParser_RefundDetails(t *testing.T) {
	p := MidtransParser{ServerKey: serverKey}
	body := midtransBody(t, map[string]interface{}{
		"order_id":           "PAY-1",
		"status_code":        "200",
		"gross_amount":       "300.00",
		"transaction_status": "partial_refund",
		"refunds": []map[string]string{
			{"refund_key": "RF-1", "refund_amount": "50.00", "reason": "first"},
			{"refund_key": "RF-2", "refund_amount": "70.00", "reason": "late checkout"},
		},
	})

	e, err := p.Parse(nil, body)
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookChargeRefunded, e.Type)
	assert.Equal(t, "RF-2", e.RefundKey)
	assert.Equal(t, "70", e.Amount.String())
	assert.Equal(t, "late checkout", e.Reason)
}

func TestMidtransParser_RejectsBadSignature(t *testing.T) {
	p := MidtransParser{ServerKey: serverKey}
	body := midtransBody(t, map[string]interface{}{
		"order_id": "PAY-1", "status_code": "200", "gross_amount": "10.00",
		"transaction_status": "settlement", "signature_key": "abc",
	})

	_, err := p.Parse(nil, body)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = p.Parse(nil, []byte("not json"))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestHMACParser(t *testing.T) {
	p := HMACParser{Secret: "s3cret"}
	body := []byte(`{"id":"evt_1","type":"charge_refunded","transaction_id":"PAY-1","refund_id":"re_1","amount":"12.50"}`)

	h := http.Header{}
	h.Set(SignatureHeader, Sign("s3cret", body))
	e, err := p.Parse(h, body)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", e.ID)
	assert.Equal(t, "re_1", e.RefundKey)
	assert.Equal(t, "12.5", e.Amount.String())

	h.Set(SignatureHeader, Sign("other", body))
	_, err = p.Parse(h, body)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}
