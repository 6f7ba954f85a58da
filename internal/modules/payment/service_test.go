package payment_test

import (
	"context"
	"testing"
	"time"

	"hotelbooking/internal/domain"
	"hotelbooking/internal/events"
	"hotelbooking/internal/gateway"
	"hotelbooking/internal/modules/booking"
	"hotelbooking/internal/modules/payment"
	"hotelbooking/internal/pkg/logger"
	"hotelbooking/internal/repository"
	"hotelbooking/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	staff = domain.ActorContext{UserID: 20, Role: domain.RoleStaff}
	guest = domain.ActorContext{UserID: 7, Role: domain.RoleGuest}
	now   = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
)

type fixture struct {
	svc   *payment.Service
	store *repository.Store
	fake  *gateway.Fake
	rec   *events.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := testutil.NewStore(t)
	rec := &events.Recorder{}
	fake := gateway.NewFake()
	bookings := booking.NewService(store, rec, logger.NewNop()).WithClock(testutil.FixedClock(now))
	svc := payment.NewService(store, gateway.WithTimeout(fake, 50*time.Millisecond), bookings, rec, logger.NewNop()).
		WithClock(testutil.FixedClock(now))
	return &fixture{svc: svc, store: store, fake: fake, rec: rec}
}

// pendingBooking is a 200.00 PENDING stay owned by guest, with its room RESERVED.
func pendingBooking(t *testing.T, store *repository.Store) (*domain.Booking, *domain.Room) {
	t.Helper()
	room := testutil.CreateRoom(t, store, "101", "100.00", 2)
	require.NoError(t, store.Rooms().UpdateStatus(context.Background(), room.ID, domain.RoomReserved))
	b := testutil.InsertBooking(t, store, &domain.Booking{
		RoomID:     room.ID,
		UserID:     guest.UserID,
		CheckIn:    testutil.Date(2024, 5, 3),
		CheckOut:   testutil.Date(2024, 5, 5),
		TotalPrice: testutil.Money("200.00"),
	})
	return b, room
}

func countType(types []events.Type, want events.Type) int {
	n := 0
	for _, typ := range types {
		if typ == want {
			n++
		}
	}
	return n
}

func TestInitiatePayment_Card(t *testing.T) {
	f := newFixture(t)
	b, _ := pendingBooking(t, f.store)

	res, err := f.svc.InitiatePayment(context.Background(), guest, payment.InitiateInput{
		BookingID: b.ID,
		Amount:    testutil.Money("200.00"),
		Method:    domain.PaymentMethodCard,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentPending, res.Payment.Status)
	assert.Contains(t, res.Payment.TransactionID, "PAY-")
	assert.Equal(t, res.Payment.TransactionID+"_secret", res.ClientSecret)
	assert.True(t, f.fake.Intents[res.Payment.TransactionID].Equal(testutil.Money("200")))
	assert.Equal(t, domain.BookingPending, testutil.Reload[domain.Booking](t, f.store, b.ID).Status)
}

func TestInitiatePayment_CashCompletesImmediately(t *testing.T) {
	f := newFixture(t)
	b, room := pendingBooking(t, f.store)

	_, err := f.svc.InitiatePayment(context.Background(), guest, payment.InitiateInput{
		BookingID: b.ID, Amount: testutil.Money("200"), Method: domain.PaymentMethodCash,
	})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	res, err := f.svc.InitiatePayment(context.Background(), staff, payment.InitiateInput{
		BookingID: b.ID, Amount: testutil.Money("200"), Method: domain.PaymentMethodCash,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentCompleted, res.Payment.Status)
	require.NotNil(t, res.Payment.ProcessedAt)
	assert.Equal(t, 0, f.fake.CallCount("create_payment_intent"))

	stored := testutil.Reload[domain.Booking](t, f.store, b.ID)
	assert.Equal(t, domain.BookingConfirmed, stored.Status)
	assert.True(t, stored.PaidAmount.Equal(testutil.Money("200")))
	assert.Equal(t, domain.RoomOccupied, testutil.Reload[domain.Room](t, f.store, room.ID).Status)
	assert.Equal(t, 1, countType(f.rec.Types(), events.PaymentCompleted))
}

func TestInitiatePayment_Rules(t *testing.T) {
	f := newFixture(t)
	b, _ := pendingBooking(t, f.store)
	ctx := context.Background()

	_, err := f.svc.InitiatePayment(ctx, guest, payment.InitiateInput{BookingID: b.ID, Amount: testutil.Money("150"), Method: domain.PaymentMethodCard})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.InitiatePayment(ctx, guest, payment.InitiateInput{BookingID: b.ID, Amount: testutil.Money("200"), Method: "CRYPTO"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.InitiatePayment(ctx, domain.ActorContext{UserID: 8, Role: domain.RoleGuest}, payment.InitiateInput{BookingID: b.ID, Amount: testutil.Money("200"), Method: domain.PaymentMethodCard})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	testutil.InsertPayment(t, f.store, b.ID, "200", domain.PaymentCompleted, domain.PaymentMethodCard, now)
	_, err = f.svc.InitiatePayment(ctx, guest, payment.InitiateInput{BookingID: b.ID, Amount: testutil.Money("200"), Method: domain.PaymentMethodCard})
	assert.ErrorIs(t, err, domain.ErrDuplicatePayment)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestInitiatePayment_CancelledBooking(t *testing.T) {
	f := newFixture(t)
	b, _ := pendingBooking(t, f.store)
	b.Status = domain.BookingCancelled
	require.NoError(t, f.store.Bookings().Save(context.Background(), b))

	_, err := f.svc.InitiatePayment(context.Background(), guest, payment.InitiateInput{BookingID: b.ID, Amount: testutil.Money("200"), Method: domain.PaymentMethodCard})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestInitiatePayment_GatewayErrorFailsPayment(t *testing.T) {
	f := newFixture(t)
	f.fake.Fail["create_payment_intent"] = gateway.ErrDeclined
	b, _ := pendingBooking(t, f.store)

	_, err := f.svc.InitiatePayment(context.Background(), guest, payment.InitiateInput{BookingID: b.ID, Amount: testutil.Money("200"), Method: domain.PaymentMethodCard})
	assert.ErrorIs(t, err, domain.ErrGateway)

	payments, err := f.store.Payments().ListByBooking(context.Background(), b.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, domain.PaymentFailed, payments[0].Status)
	assert.Contains(t, payments[0].FailureReason, "card declined")
}

func TestInitiatePayment_GatewayTimeoutLeavesPending(t *testing.T) {
	f := newFixture(t)
	f.fake.Delay = 500 * time.Millisecond
	b, _ := pendingBooking(t, f.store)

	_, err := f.svc.InitiatePayment(context.Background(), guest, payment.InitiateInput{BookingID: b.ID, Amount: testutil.Money("200"), Method: domain.PaymentMethodCard})
	assert.ErrorIs(t, err, domain.ErrGatewayTimeout)

	payments, err := f.store.Payments().ListByBooking(context.Background(), b.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, domain.PaymentPending, payments[0].Status)
}

func TestConfirmPayment_Idempotent(t *testing.T) {
	f := newFixture(t)
	b, room := pendingBooking(t, f.store)
	p := testutil.InsertPayment(t, f.store, b.ID, "200", domain.PaymentPending, domain.PaymentMethodCard, now)
	ctx := context.Background()

	first, changed, err := f.svc.ConfirmPayment(ctx, p.TransactionID)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, domain.PaymentCompleted, first.Status)

	second, changed, err := f.svc.ConfirmPayment(ctx, p.TransactionID)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, domain.PaymentCompleted, second.Status)

	assert.Equal(t, domain.BookingConfirmed, testutil.Reload[domain.Booking](t, f.store, b.ID).Status)
	assert.Equal(t, domain.RoomOccupied, testutil.Reload[domain.Room](t, f.store, room.ID).Status)
	assert.Equal(t, 1, countType(f.rec.Types(), events.PaymentCompleted))
	assert.Equal(t, 1, countType(f.rec.Types(), events.BookingConfirmed))
}

func TestConfirmPayment_CancelledBookingKeepsStatus(t *testing.T) {
	f := newFixture(t)
	b, _ := pendingBooking(t, f.store)
	p := testutil.InsertPayment(t, f.store, b.ID, "200", domain.PaymentPending, domain.PaymentMethodCard, now)
	b.Status = domain.BookingCancelled
	require.NoError(t, f.store.Bookings().Save(context.Background(), b))

	got, changed, err := f.svc.ConfirmPayment(context.Background(), p.TransactionID)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, domain.PaymentCompleted, got.Status)
	assert.Equal(t, domain.BookingCancelled, testutil.Reload[domain.Booking](t, f.store, b.ID).Status)
}

func TestConfirmPayment_UnknownTransaction(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.svc.ConfirmPayment(context.Background(), "PAY-missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFailPayment(t *testing.T) {
	f := newFixture(t)
	b, _ := pendingBooking(t, f.store)
	p := testutil.InsertPayment(t, f.store, b.ID, "200", domain.PaymentPending, domain.PaymentMethodCard, now)
	ctx := context.Background()

	failed, err := f.svc.FailPayment(ctx, p.TransactionID, "insufficient funds")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentFailed, failed.Status)
	assert.Equal(t, "insufficient funds", failed.FailureReason)
	assert.Contains(t, f.rec.Types(), events.PaymentFailed)

	again, err := f.svc.FailPayment(ctx, p.TransactionID, "late decline")
	require.NoError(t, err)
	assert.Equal(t, "insufficient funds", again.FailureReason)
}

func TestConfirmPayment_FailedAttemptStaysFailed(t *testing.T) {
	f := newFixture(t)
	b, _ := pendingBooking(t, f.store)
	ctx := context.Background()

	first := testutil.InsertPayment(t, f.store, b.ID, "200", domain.PaymentPending, domain.PaymentMethodCard, now)
	_, err := f.svc.FailPayment(ctx, first.TransactionID, "card declined")
	require.NoError(t, err)

	retry := testutil.InsertPayment(t, f.store, b.ID, "200", domain.PaymentPending, domain.PaymentMethodCard, now)
	_, changed, err := f.svc.ConfirmPayment(ctx, retry.TransactionID)
	require.NoError(t, err)
	require.True(t, changed)

	got, changed, err := f.svc.ConfirmPayment(ctx, first.TransactionID)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, domain.PaymentFailed, got.Status)

	sums, err := f.store.LedgerSums(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, sums.Collected.Equal(testutil.Money("200.00")), "collected %s", sums.Collected)
	assert.Equal(t, 1, countType(f.rec.Types(), events.PaymentCompleted))
}

func TestConfirmPaymentSync(t *testing.T) {
	f := newFixture(t)
	b, _ := pendingBooking(t, f.store)
	ctx := context.Background()

	res, err := f.svc.InitiatePayment(ctx, guest, payment.InitiateInput{BookingID: b.ID, Amount: testutil.Money("200"), Method: domain.PaymentMethodCard})
	require.NoError(t, err)

	got, err := f.svc.ConfirmPaymentSync(ctx, guest, res.Payment.ID, "pm_card_visa")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentCompleted, got.Status)
	assert.Equal(t, domain.BookingConfirmed, testutil.Reload[domain.Booking](t, f.store, b.ID).Status)

	replay, err := f.svc.ConfirmPaymentSync(ctx, guest, res.Payment.ID, "pm_card_visa")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentCompleted, replay.Status)
	assert.Equal(t, 1, f.fake.CallCount("confirm"))
}

func TestConfirmPaymentSync_Declined(t *testing.T) {
	f := newFixture(t)
	f.fake.ConfirmStatus = gateway.StatusFailed
	b, _ := pendingBooking(t, f.store)
	ctx := context.Background()

	res, err := f.svc.InitiatePayment(ctx, guest, payment.InitiateInput{BookingID: b.ID, Amount: testutil.Money("200"), Method: domain.PaymentMethodCard})
	require.NoError(t, err)

	_, err = f.svc.ConfirmPaymentSync(ctx, guest, res.Payment.ID, "pm_card_declined")
	assert.ErrorIs(t, err, domain.ErrGateway)
	assert.Equal(t, domain.PaymentFailed, testutil.Reload[domain.Payment](t, f.store, res.Payment.ID).Status)
	assert.Equal(t, domain.BookingPending, testutil.Reload[domain.Booking](t, f.store, b.ID).Status)
}

func TestListByBooking(t *testing.T) {
	f := newFixture(t)
	b, _ := pendingBooking(t, f.store)
	testutil.InsertPayment(t, f.store, b.ID, "200", domain.PaymentFailed, domain.PaymentMethodCard, now)
	testutil.InsertPayment(t, f.store, b.ID, "200", domain.PaymentPending, domain.PaymentMethodCard, now)
	ctx := context.Background()

	items, err := f.svc.ListByBooking(ctx, guest, b.ID)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	_, err = f.svc.ListByBooking(ctx, domain.ActorContext{UserID: 8, Role: domain.RoleGuest}, b.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}
