package webhook_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"hotelbooking/internal/domain"
	"hotelbooking/internal/events"
	"hotelbooking/internal/gateway"
	"hotelbooking/internal/modules/booking"
	"hotelbooking/internal/modules/payment"
	"hotelbooking/internal/modules/refund"
	"hotelbooking/internal/modules/webhook"
	"hotelbooking/internal/pkg/logger"
	"hotelbooking/internal/repository"
	"hotelbooking/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "whsec_test"

var (
	guest   = domain.ActorContext{UserID: 7, Role: domain.RoleGuest}
	manager = domain.ActorContext{UserID: 30, Role: domain.RoleManager}
	now     = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
)

type fixture struct {
	store      *repository.Store
	rec        *events.Recorder
	payments   *payment.Service
	refunds    *refund.Service
	reconciler *webhook.Reconciler
	router     *gin.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := testutil.NewStore(t)
	rec := &events.Recorder{}
	gw := gateway.WithTimeout(gateway.NewFake(), 50*time.Millisecond)
	bookings := booking.NewService(store, rec, logger.NewNop()).WithClock(testutil.FixedClock(now))
	payments := payment.NewService(store, gw, bookings, rec, logger.NewNop()).WithClock(testutil.FixedClock(now))
	refunds := refund.NewService(store, gw, bookings, rec, logger.NewNop()).WithClock(testutil.FixedClock(now))
	rc := webhook.NewReconciler(store, payments, refunds, logger.NewNop())

	r := gin.New()
	webhook.NewHandler(webhook.HMACParser{Secret: secret}, rc, logger.NewNop()).RegisterRoutes(r)
	return &fixture{store: store, rec: rec, payments: payments, refunds: refunds, reconciler: rc, router: r}
}

// pendingCardPayment opens a 200.00 PENDING booking and starts a card payment for it.
func (f *fixture) pendingCardPayment(t *testing.T) (*domain.Booking, *domain.Payment) {
	t.Helper()
	room := testutil.CreateRoom(t, f.store, "101", "100.00", 2)
	require.NoError(t, f.store.Rooms().UpdateStatus(context.Background(), room.ID, domain.RoomReserved))
	b := testutil.InsertBooking(t, f.store, &domain.Booking{
		RoomID:     room.ID,
		UserID:     guest.UserID,
		CheckIn:    testutil.Date(2024, 5, 3),
		CheckOut:   testutil.Date(2024, 5, 5),
		TotalPrice: testutil.Money("200.00"),
	})
	res, err := f.payments.InitiatePayment(context.Background(), guest, payment.InitiateInput{
		BookingID: b.ID,
		Amount:    testutil.Money("200.00"),
		Method:    domain.PaymentMethodCard,
	})
	require.NoError(t, err)
	return b, res.Payment
}

func (f *fixture) deliver(t *testing.T, payload map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(webhook.SignatureHeader, webhook.Sign(secret, body))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func outcome(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Data webhook.Result `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Data.Outcome
}

func count(types []events.Type, want events.Type) int {
	n := 0
	for _, typ := range types {
		if typ == want {
			n++
		}
	}
	return n
}

func TestPaymentSucceeded_IdempotentReplay(t *testing.T) {
	f := newFixture(t)
	b, p := f.pendingCardPayment(t)
	event := map[string]string{"id": "evt_1", "type": "payment_succeeded", "transaction_id": p.TransactionID}

	first := f.deliver(t, event)
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	assert.Equal(t, webhook.OutcomeApplied, outcome(t, first))

	second := f.deliver(t, event)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, webhook.OutcomeDuplicate, outcome(t, second))

	got := testutil.Reload[domain.Booking](t, f.store, b.ID)
	assert.Equal(t, domain.BookingConfirmed, got.Status)
	assert.True(t, got.PaidAmount.Equal(testutil.Money("200")))
	assert.Equal(t, domain.RoomOccupied, testutil.Reload[domain.Room](t, f.store, b.RoomID).Status)
	assert.Equal(t, domain.PaymentCompleted, testutil.Reload[domain.Payment](t, f.store, p.ID).Status)
	assert.Equal(t, 1, count(f.rec.Types(), events.PaymentCompleted))
	assert.Equal(t, 1, count(f.rec.Types(), events.BookingConfirmed))
}

func TestPaymentSucceeded_NewEventIDSameTransactionIsNoop(t *testing.T) {
	f := newFixture(t)
	_, p := f.pendingCardPayment(t)

	f.deliver(t, map[string]string{"id": "evt_1", "type": "payment_succeeded", "transaction_id": p.TransactionID})
	w := f.deliver(t, map[string]string{"id": "evt_2", "type": "payment_succeeded", "transaction_id": p.TransactionID})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, webhook.OutcomeNoop, outcome(t, w))
	assert.Equal(t, 1, count(f.rec.Types(), events.PaymentCompleted))
}

func TestDuplicateSurvivesCacheLoss(t *testing.T) {
	f := newFixture(t)
	_, p := f.pendingCardPayment(t)
	event := &webhook.Event{ID: "evt_1", Type: domain.WebhookPaymentSucceeded, TransactionID: p.TransactionID}

	_, err := f.reconciler.Handle(context.Background(), event)
	require.NoError(t, err)

	// A fresh reconciler has an empty cache and must fall back to the events table.
	fresh := webhook.NewReconciler(f.store, f.payments, f.refunds, logger.NewNop())
	res, err := fresh.Handle(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, webhook.OutcomeDuplicate, res.Outcome)
}

func TestOutOfOrder_FailureAfterSuccessIsIgnored(t *testing.T) {
	f := newFixture(t)
	b, p := f.pendingCardPayment(t)

	f.deliver(t, map[string]string{"id": "evt_ok", "type": "payment_succeeded", "transaction_id": p.TransactionID})
	w := f.deliver(t, map[string]string{"id": "evt_late", "type": "payment_failed", "transaction_id": p.TransactionID})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, webhook.OutcomeNoop, outcome(t, w))
	assert.Equal(t, domain.PaymentCompleted, testutil.Reload[domain.Payment](t, f.store, p.ID).Status)
	assert.Equal(t, domain.BookingConfirmed, testutil.Reload[domain.Booking](t, f.store, b.ID).Status)
}

func TestPaymentFailedAndCanceled(t *testing.T) {
	f := newFixture(t)
	b, p := f.pendingCardPayment(t)

	w := f.deliver(t, map[string]string{
		"id": "evt_fail", "type": "payment_canceled", "transaction_id": p.TransactionID, "reason": "customer closed popup",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, webhook.OutcomeApplied, outcome(t, w))

	got := testutil.Reload[domain.Payment](t, f.store, p.ID)
	assert.Equal(t, domain.PaymentFailed, got.Status)
	assert.Equal(t, "customer closed popup", got.FailureReason)
	assert.Equal(t, domain.BookingPending, testutil.Reload[domain.Booking](t, f.store, b.ID).Status)
}

func TestUnknownTransactionIsAcknowledged(t *testing.T) {
	f := newFixture(t)

	w := f.deliver(t, map[string]string{"id": "evt_x", "type": "payment_succeeded", "transaction_id": "PAY-missing"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, webhook.OutcomeUnknown, outcome(t, w))

	exists, err := f.store.WebhookEvents().Exists(context.Background(), "evt_x")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestChargeRefunded_CompletesGatewayRefund(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := testutil.CreateRoom(t, f.store, "201", "100.00", 2)
	require.NoError(t, f.store.Rooms().UpdateStatus(ctx, room.ID, domain.RoomOccupied))
	b := testutil.InsertBooking(t, f.store, &domain.Booking{
		RoomID:     room.ID,
		UserID:     guest.UserID,
		CheckIn:    testutil.Date(2024, 5, 3),
		CheckOut:   testutil.Date(2024, 5, 5),
		TotalPrice: testutil.Money("200.00"),
		Status:     domain.BookingConfirmed,
	})
	p := testutil.InsertPayment(t, f.store, b.ID, "200.00", domain.PaymentCompleted, domain.PaymentMethodCard, now)

	rf, err := f.refunds.RequestRefund(ctx, manager, refund.RequestInput{
		BookingID: b.ID,
		Amount:    testutil.Money("80.00"),
		Method:    domain.RefundMethodStripe,
	})
	require.NoError(t, err)
	rf, err = f.refunds.ProcessRefund(ctx, manager, rf.ID, "")
	require.NoError(t, err)
	require.Equal(t, domain.RefundProcessing, rf.Status)

	event := map[string]string{
		"id": "evt_rf", "type": "charge_refunded", "transaction_id": p.TransactionID, "refund_id": rf.GatewayRefundID, "amount": "80.00",
	}
	w := f.deliver(t, event)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, webhook.OutcomeApplied, outcome(t, w))
	assert.Equal(t, domain.RefundCompleted, testutil.Reload[domain.Refund](t, f.store, rf.ID).Status)

	event["id"] = "evt_rf_retry"
	w = f.deliver(t, event)
	assert.Equal(t, webhook.OutcomeNoop, outcome(t, w))

	sums, err := f.store.LedgerSums(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, sums.Refunded.Equal(testutil.Money("80")))
	assert.Equal(t, domain.BookingConfirmed, testutil.Reload[domain.Booking](t, f.store, b.ID).Status)
}

func TestChargeRefunded_FailedRefundAlreadyReplaced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := testutil.CreateRoom(t, f.store, "202", "100.00", 2)
	b := testutil.InsertBooking(t, f.store, &domain.Booking{
		RoomID:     room.ID,
		UserID:     guest.UserID,
		CheckIn:    testutil.Date(2024, 5, 3),
		CheckOut:   testutil.Date(2024, 5, 5),
		TotalPrice: testutil.Money("200.00"),
		Status:     domain.BookingConfirmed,
	})
	p := testutil.InsertPayment(t, f.store, b.ID, "200.00", domain.PaymentCompleted, domain.PaymentMethodCard, now)
	failed := testutil.InsertRefund(t, f.store, b.ID, &p.ID, "200.00", domain.RefundFailed, domain.RefundMethodStripe, now)
	testutil.InsertRefund(t, f.store, b.ID, &p.ID, "200.00", domain.RefundCompleted, domain.RefundMethodCash, now)

	w := f.deliver(t, map[string]string{
		"id": "evt_rf_late", "type": "charge_refunded", "transaction_id": p.TransactionID, "refund_id": failed.TransactionID, "amount": "200.00",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, webhook.OutcomeRejected, outcome(t, w))

	assert.Equal(t, domain.RefundFailed, testutil.Reload[domain.Refund](t, f.store, failed.ID).Status)
	sums, err := f.store.LedgerSums(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, sums.Refunded.Equal(testutil.Money("200")), "refunded %s", sums.Refunded)
}

func TestChargeRefunded_RecordsDashboardRefund(t *testing.T) {
	f := newFixture(t)
	room := testutil.CreateRoom(t, f.store, "301", "100.00", 2)
	b := testutil.InsertBooking(t, f.store, &domain.Booking{
		RoomID:     room.ID,
		UserID:     guest.UserID,
		CheckIn:    testutil.Date(2024, 5, 3),
		CheckOut:   testutil.Date(2024, 5, 5),
		TotalPrice: testutil.Money("200.00"),
		Status:     domain.BookingConfirmed,
	})
	p := testutil.InsertPayment(t, f.store, b.ID, "200.00", domain.PaymentCompleted, domain.PaymentMethodCard, now)

	w := f.deliver(t, map[string]string{
		"id": "evt_dash", "type": "charge_refunded", "transaction_id": p.TransactionID, "refund_id": "re_dashboard", "amount": "200.00",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, webhook.OutcomeRecorded, outcome(t, w))

	refunds, err := f.store.Refunds().ListByBooking(context.Background(), b.ID)
	require.NoError(t, err)
	require.Len(t, refunds, 1)
	assert.Equal(t, domain.RefundCompleted, refunds[0].Status)
	assert.Equal(t, "re_dashboard", refunds[0].TransactionID)
	assert.Equal(t, domain.BookingRefunded, testutil.Reload[domain.Booking](t, f.store, b.ID).Status)
	assert.Equal(t, domain.RoomAvailable, testutil.Reload[domain.Room](t, f.store, room.ID).Status)

	// Refunding more than was collected is acknowledged but changes nothing.
	w = f.deliver(t, map[string]string{
		"id": "evt_dash_2", "type": "charge_refunded", "transaction_id": p.TransactionID, "refund_id": "re_again", "amount": "50.00",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, webhook.OutcomeRejected, outcome(t, w))
}

func TestSignatureAndPayloadChecks(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", strings.NewReader(`{"id":"evt","type":"payment_succeeded","transaction_id":"x"}`))
	req.Header.Set(webhook.SignatureHeader, "deadbeef")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.deliver(t, map[string]string{"id": "evt", "type": "customer.created", "transaction_id": "x"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ignored")

	w = f.deliver(t, map[string]string{"type": "payment_succeeded"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
