package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store hands out repositories bound either to the pool or to a single transaction.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *gorm.DB { return s.db }

func (s *Store) Rooms() *RoomRepository                 { return NewRoomRepository(s.db) }
func (s *Store) Bookings() *BookingRepository           { return NewBookingRepository(s.db) }
func (s *Store) Payments() *PaymentRepository           { return NewPaymentRepository(s.db) }
func (s *Store) Refunds() *RefundRepository             { return NewRefundRepository(s.db) }
func (s *Store) WebhookEvents() *WebhookEventRepository { return NewWebhookEventRepository(s.db) }

// Transaction runs fn inside one database transaction. Any error rolls everything back.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return fn(&Tx{db: db})
	})
}

// Tx exposes the same repositories as Store, scoped to an open transaction.
// Every read made while the transaction is open must go through Tx.
type Tx struct {
	db *gorm.DB
}

func (t *Tx) Rooms() *RoomRepository                 { return NewRoomRepository(t.db) }
func (t *Tx) Bookings() *BookingRepository           { return NewBookingRepository(t.db) }
func (t *Tx) Payments() *PaymentRepository           { return NewPaymentRepository(t.db) }
func (t *Tx) Refunds() *RefundRepository             { return NewRefundRepository(t.db) }
func (t *Tx) WebhookEvents() *WebhookEventRepository { return NewWebhookEventRepository(t.db) }
