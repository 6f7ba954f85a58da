package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingPending    BookingStatus = "PENDING"
	BookingConfirmed  BookingStatus = "CONFIRMED"
	BookingCheckedIn  BookingStatus = "CHECKED_IN"
	BookingCheckedOut BookingStatus = "CHECKED_OUT"
	BookingCompleted  BookingStatus = "COMPLETED"
	BookingCancelled  BookingStatus = "CANCELLED"
	BookingRefunded   BookingStatus = "REFUNDED"
)

// ParseBookingStatus accepts the legacy "PAID" spelling as CONFIRMED.
func ParseBookingStatus(s string) (BookingStatus, bool) {
	switch BookingStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case BookingPending:
		return BookingPending, true
	case BookingConfirmed, "PAID":
		return BookingConfirmed, true
	case BookingCheckedIn:
		return BookingCheckedIn, true
	case BookingCheckedOut:
		return BookingCheckedOut, true
	case BookingCompleted:
		return BookingCompleted, true
	case BookingCancelled:
		return BookingCancelled, true
	case BookingRefunded:
		return BookingRefunded, true
	}
	return "", false
}

// HoldingStatuses keep a room claimed for their date range.
var HoldingStatuses = []BookingStatus{BookingPending, BookingConfirmed, BookingCheckedIn}

func (s BookingStatus) Holding() bool {
	for _, h := range HoldingStatuses {
		if s == h {
			return true
		}
	}
	return false
}

func (s BookingStatus) Terminal() bool {
	return s == BookingCancelled || s == BookingCompleted || s == BookingRefunded
}

var lifecycleTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:    {BookingConfirmed, BookingCancelled},
	BookingConfirmed:  {BookingCheckedIn, BookingCancelled, BookingRefunded},
	BookingCheckedIn:  {BookingCheckedOut},
	BookingCheckedOut: {BookingCompleted},
}

var overrideTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:   {BookingConfirmed, BookingCancelled},
	BookingConfirmed: {BookingCompleted, BookingCancelled},
}

func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	return contains(lifecycleTransitions[s], next)
}

// CanOverrideTo reports whether an administrative status update is allowed.
func (s BookingStatus) CanOverrideTo(next BookingStatus) bool {
	return contains(overrideTransitions[s], next)
}

func contains(list []BookingStatus, s BookingStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type Booking struct {
	ID             int64           `json:"id" gorm:"primaryKey"`
	RoomID         int64           `json:"room_id" gorm:"not null;index"`
	UserID         int64           `json:"user_id" gorm:"not null;index"`
	CheckIn        time.Time       `json:"check_in" gorm:"not null;index"`
	CheckOut       time.Time       `json:"check_out" gorm:"not null;index"`
	ActualCheckOut *time.Time      `json:"actual_check_out,omitempty"`
	GuestCount     int             `json:"guest_count" gorm:"not null"`
	TotalPrice     decimal.Decimal `json:"total_price" gorm:"type:decimal(12,2);not null"`
	Status         BookingStatus   `json:"status" gorm:"size:32;not null;index"`

	// PaidAmount is refreshed from the payment ledger after each mutation and is display-only.
	PaidAmount decimal.Decimal `json:"paid_amount" gorm:"type:decimal(12,2);not null;default:0"`
	// Deprecated: RefundAmount is kept for old rows only. The refund ledger is authoritative.
	RefundAmount decimal.Decimal `json:"refund_amount" gorm:"type:decimal(12,2);not null;default:0"`

	Notes     string    `json:"notes,omitempty" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Nights is the number of calendar days the reservation spans.
func (b *Booking) Nights() int {
	return CeilDays(b.CheckIn, b.CheckOut)
}

// Overlaps applies the half-open interval test [checkIn, checkOut).
func Overlaps(aIn, aOut, bIn, bOut time.Time) bool {
	return aIn.Before(bOut) && aOut.After(bIn)
}
