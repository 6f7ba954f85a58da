// Package testutil provides an in-memory store and fixtures for package tests.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"hotelbooking/internal/database"
	"hotelbooking/internal/domain"
	"hotelbooking/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// NewStore opens a private in-memory SQLite database with all tables migrated.
// One connection keeps transactions strictly serialized, like row locks on Postgres.
func NewStore(t *testing.T) *repository.Store {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_", "#", "_", "'", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", name, uuid.NewString()[:8])
	db, err := gorm.Open(
		gormsqlite.New(gormsqlite.Config{DriverName: "sqlite", DSN: dsn}),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)},
	)
	if err != nil {
		t.Fatalf("failed to open sqlite db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate db: %v", err)
	}
	return repository.NewStore(db)
}

// Date builds midnight UTC of the given calendar day.
func Date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FixedClock returns a clock frozen at t.
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func Money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func CreateRoom(t *testing.T, store *repository.Store, number string, price string, capacity int) *domain.Room {
	t.Helper()
	room := &domain.Room{
		Number:   number,
		Type:     domain.RoomDouble,
		Capacity: capacity,
		Price:    Money(price),
		Status:   domain.RoomAvailable,
	}
	if err := store.Rooms().Create(context.Background(), room); err != nil {
		t.Fatalf("create room: %v", err)
	}
	return room
}

// InsertBooking writes a booking row directly, bypassing ledger rules.
func InsertBooking(t *testing.T, store *repository.Store, b *domain.Booking) *domain.Booking {
	t.Helper()
	if b.GuestCount == 0 {
		b.GuestCount = 1
	}
	if b.Status == "" {
		b.Status = domain.BookingPending
	}
	if err := store.Bookings().Create(context.Background(), b); err != nil {
		t.Fatalf("insert booking: %v", err)
	}
	return b
}

// InsertPayment writes a payment row directly. Collected payments get a processed timestamp.
func InsertPayment(t *testing.T, store *repository.Store, bookingID int64, amount string, status domain.PaymentStatus, method domain.PaymentMethod, at time.Time) *domain.Payment {
	t.Helper()
	p := &domain.Payment{
		BookingID:     bookingID,
		Amount:        Money(amount),
		PaymentMethod: method,
		Status:        status,
		TransactionID: "test-" + uuid.NewString(),
	}
	if status == domain.PaymentCompleted || status == domain.PaymentRefunded {
		ts := at.UTC()
		p.ProcessedAt = &ts
	}
	if err := store.Payments().Create(context.Background(), p); err != nil {
		t.Fatalf("insert payment: %v", err)
	}
	return p
}

func InsertRefund(t *testing.T, store *repository.Store, bookingID int64, paymentID *int64, amount string, status domain.RefundStatus, method domain.RefundMethod, at time.Time) *domain.Refund {
	t.Helper()
	r := &domain.Refund{
		BookingID:     bookingID,
		PaymentID:     paymentID,
		Amount:        Money(amount),
		RefundMethod:  method,
		Status:        status,
		TransactionID: "test-rf-" + uuid.NewString(),
	}
	if status == domain.RefundCompleted {
		ts := at.UTC()
		r.ProcessedAt = &ts
	}
	if err := store.Refunds().Create(context.Background(), r); err != nil {
		t.Fatalf("insert refund: %v", err)
	}
	return r
}

func Reload[T any](t *testing.T, store *repository.Store, id int64) *T {
	t.Helper()
	var out T
	if err := store.DB().First(&out, id).Error; err != nil {
		t.Fatalf("reload %T %d: %v", out, id, err)
	}
	return &out
}
