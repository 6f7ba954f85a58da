package room

import (
	"context"
	"fmt"
	"testing"
	"time"

	"hotelbooking/internal/domain"
	"hotelbooking/internal/events"
	"hotelbooking/internal/pkg/logger"
	"hotelbooking/internal/repository"
	"hotelbooking/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	admin = domain.ActorContext{UserID: 1, Role: domain.RoleAdmin}
	staff = domain.ActorContext{UserID: 2, Role: domain.RoleStaff}
)

func newService(t *testing.T) (*Service, *repository.Store) {
	t.Helper()
	store := testutil.NewStore(t)
	svc := NewService(store, events.Discard{}, logger.NewNop()).
		WithClock(testutil.FixedClock(time.Date(2024, 6, 10, 15, 0, 0, 0, time.UTC)))
	return svc, store
}

func TestCreateRoom(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	room, err := svc.CreateRoom(ctx, admin, CreateInput{Number: " 305 ", Type: domain.RoomSuite, Capacity: 4, Price: testutil.Money("249.999")})
	require.NoError(t, err)
	assert.Equal(t, "305", room.Number)
	assert.Equal(t, domain.RoomAvailable, room.Status)
	assert.True(t, room.Price.Equal(testutil.Money("250")))

	_, err = svc.CreateRoom(ctx, admin, CreateInput{Number: "305", Type: domain.RoomSingle, Capacity: 1, Price: testutil.Money("90")})
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = svc.CreateRoom(ctx, staff, CreateInput{Number: "306", Type: domain.RoomSingle, Capacity: 1, Price: testutil.Money("90")})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestCreateRoom_Validation(t *testing.T) {
	svc, _ := newService(t)

	tests := []struct {
		name  string
		in    CreateInput
		field string
	}{
		{"missing number", CreateInput{Type: domain.RoomSingle, Capacity: 1, Price: testutil.Money("10")}, "number"},
		{"bad type", CreateInput{Number: "1", Type: "CASTLE", Capacity: 1, Price: testutil.Money("10")}, "type"},
		{"capacity too large", CreateInput{Number: "1", Type: domain.RoomFamily, Capacity: 11, Price: testutil.Money("10")}, "capacity"},
		{"zero capacity", CreateInput{Number: "1", Type: domain.RoomFamily, Capacity: 0, Price: testutil.Money("10")}, "capacity"},
		{"free room", CreateInput{Number: "1", Type: domain.RoomSingle, Capacity: 1, Price: decimal.Zero}, "price"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateRoom(context.Background(), admin, tt.in)
			var ve *domain.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestUpdateRoom_PriceDoesNotTouchBookings(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	room := testutil.CreateRoom(t, store, "101", "100.00", 2)
	b := testutil.InsertBooking(t, store, &domain.Booking{
		RoomID: room.ID, UserID: 7, CheckIn: testutil.Date(2024, 6, 11), CheckOut: testutil.Date(2024, 6, 13),
		TotalPrice: testutil.Money("200"),
	})

	price := testutil.Money("150")
	updated, err := svc.UpdateRoom(ctx, admin, room.ID, UpdateInput{Price: &price})
	require.NoError(t, err)
	assert.True(t, updated.Price.Equal(price))
	assert.True(t, testutil.Reload[domain.Booking](t, store, b.ID).TotalPrice.Equal(testutil.Money("200")))

	bad := 0
	_, err = svc.UpdateRoom(ctx, admin, room.ID, UpdateInput{Capacity: &bad})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestSetMaintenance(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	room := testutil.CreateRoom(t, store, "101", "100.00", 2)

	got, err := svc.SetMaintenance(ctx, admin, room.ID, true)
	require.NoError(t, err)
	assert.Equal(t, domain.RoomMaintenance, got.Status)

	got, err = svc.SetMaintenance(ctx, admin, room.ID, false)
	require.NoError(t, err)
	assert.Equal(t, domain.RoomAvailable, got.Status)

	testutil.InsertBooking(t, store, &domain.Booking{
		RoomID: room.ID, UserID: 7, CheckIn: testutil.Date(2024, 6, 9), CheckOut: testutil.Date(2024, 6, 12),
		TotalPrice: testutil.Money("300"), Status: domain.BookingCheckedIn,
	})
	_, err = svc.SetMaintenance(ctx, admin, room.ID, true)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestSetMaintenance_RestoresHeldStatus(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		status domain.BookingStatus
		want   domain.RoomStatus
	}{
		{"pending booking", domain.BookingPending, domain.RoomReserved},
		{"confirmed booking", domain.BookingConfirmed, domain.RoomOccupied},
		{"cancelled booking", domain.BookingCancelled, domain.RoomAvailable},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			room := testutil.CreateRoom(t, store, fmt.Sprintf("3%02d", i), "100.00", 2)
			testutil.InsertBooking(t, store, &domain.Booking{
				RoomID: room.ID, UserID: 7, CheckIn: testutil.Date(2024, 8, 1), CheckOut: testutil.Date(2024, 8, 3),
				TotalPrice: testutil.Money("200"), Status: tt.status,
			})

			_, err := svc.SetMaintenance(ctx, admin, room.ID, true)
			require.NoError(t, err)
			got, err := svc.SetMaintenance(ctx, admin, room.ID, false)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Status)
			assert.Equal(t, tt.want, testutil.Reload[domain.Room](t, store, room.ID).Status)
		})
	}
}

func TestDeleteRoom(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	busy := testutil.CreateRoom(t, store, "101", "100.00", 2)
	idle := testutil.CreateRoom(t, store, "102", "100.00", 2)
	testutil.InsertBooking(t, store, &domain.Booking{
		RoomID: busy.ID, UserID: 7, CheckIn: testutil.Date(2024, 7, 1), CheckOut: testutil.Date(2024, 7, 2),
		TotalPrice: testutil.Money("100"), Status: domain.BookingConfirmed,
	})
	testutil.InsertBooking(t, store, &domain.Booking{
		RoomID: idle.ID, UserID: 7, CheckIn: testutil.Date(2024, 5, 1), CheckOut: testutil.Date(2024, 5, 2),
		TotalPrice: testutil.Money("100"), Status: domain.BookingCompleted,
	})

	assert.ErrorIs(t, svc.DeleteRoom(ctx, admin, busy.ID), domain.ErrConflict)
	require.NoError(t, svc.DeleteRoom(ctx, admin, idle.ID))
	_, err := svc.GetRoom(ctx, idle.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, svc.DeleteRoom(ctx, admin, idle.ID), domain.ErrNotFound)
}

func TestRepricePendingBookings(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	room := testutil.CreateRoom(t, store, "101", "100.00", 2)

	free := testutil.InsertBooking(t, store, &domain.Booking{
		RoomID: room.ID, UserID: 7, CheckIn: testutil.Date(2024, 7, 1), CheckOut: testutil.Date(2024, 7, 4),
		TotalPrice: testutil.Money("300"),
	})
	paying := testutil.InsertBooking(t, store, &domain.Booking{
		RoomID: room.ID, UserID: 8, CheckIn: testutil.Date(2024, 7, 5), CheckOut: testutil.Date(2024, 7, 6),
		TotalPrice: testutil.Money("100"),
	})
	testutil.InsertPayment(t, store, paying.ID, "100", domain.PaymentPending, domain.PaymentMethodCard, time.Now())
	confirmed := testutil.InsertBooking(t, store, &domain.Booking{
		RoomID: room.ID, UserID: 9, CheckIn: testutil.Date(2024, 7, 8), CheckOut: testutil.Date(2024, 7, 9),
		TotalPrice: testutil.Money("100"), Status: domain.BookingConfirmed,
	})

	price := testutil.Money("120")
	_, err := svc.UpdateRoom(ctx, admin, room.ID, UpdateInput{Price: &price})
	require.NoError(t, err)

	res, err := svc.RepricePendingBookings(ctx, admin, room.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{free.ID}, res.Updated)
	assert.Equal(t, []int64{paying.ID}, res.Skipped)

	assert.True(t, testutil.Reload[domain.Booking](t, store, free.ID).TotalPrice.Equal(testutil.Money("360")))
	assert.True(t, testutil.Reload[domain.Booking](t, store, paying.ID).TotalPrice.Equal(testutil.Money("100")))
	assert.True(t, testutil.Reload[domain.Booking](t, store, confirmed.ID).TotalPrice.Equal(testutil.Money("100")))
}
