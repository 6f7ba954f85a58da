package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"hotelbooking/internal/domain"
	"hotelbooking/internal/events"
	"hotelbooking/internal/modules/refund"
	"hotelbooking/internal/pkg/logger"
	"hotelbooking/internal/repository"

	"github.com/shopspring/decimal"
)

const module = "booking"

type Service struct {
	store  *repository.Store
	events events.Publisher
	log    logger.ILogger
	now    func() time.Time
	loc    *time.Location
}

func NewService(store *repository.Store, pub events.Publisher, log logger.ILogger) *Service {
	return &Service{
		store:  store,
		events: pub,
		log:    log,
		now:    time.Now,
		loc:    time.UTC,
	}
}

// WithClock replaces the wall clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithLocation sets the hotel's time zone used to decide what "today" is.
func (s *Service) WithLocation(loc *time.Location) *Service {
	if loc != nil {
		s.loc = loc
	}
	return s
}

func (s *Service) today() time.Time {
	return domain.DateOf(s.now(), s.loc)
}

type CreateInput struct {
	RoomID     int64
	UserID     int64
	CheckIn    time.Time
	CheckOut   time.Time
	GuestCount int
	Notes      string
}

func (s *Service) CreateBooking(ctx context.Context, actor domain.ActorContext, in CreateInput) (*domain.Booking, error) {
	if in.UserID == 0 {
		in.UserID = actor.UserID
	}
	if err := actor.RequireOwnerOr(in.UserID, domain.PermBookingManage); err != nil {
		return nil, err
	}

	checkIn := domain.DateOf(in.CheckIn, in.CheckIn.Location())
	checkOut := domain.DateOf(in.CheckOut, in.CheckOut.Location())
	if checkIn.Before(s.today()) {
		return nil, domain.NewValidationError("check_in", "must not be in the past")
	}
	if !checkOut.After(checkIn) {
		return nil, domain.NewValidationError("check_out", "must be after check_in")
	}
	if in.GuestCount < 1 {
		return nil, domain.NewValidationError("guest_count", "must be at least 1")
	}

	var b *domain.Booking
	out := &events.Outbox{}
	err := s.store.Transaction(ctx, func(tx *repository.Tx) error {
		room, err := tx.Rooms().GetForUpdate(ctx, in.RoomID)
		if err != nil {
			return err
		}
		if in.GuestCount > room.Capacity {
			return domain.NewValidationError("guest_count", fmt.Sprintf("room holds at most %d guests", room.Capacity))
		}
		if room.Status != domain.RoomAvailable {
			return &domain.ConflictError{Reason: fmt.Sprintf("room %s is %s", room.Number, room.Status)}
		}
		overlap, err := tx.Bookings().HasOverlap(ctx, room.ID, checkIn, checkOut, 0)
		if err != nil {
			return err
		}
		if overlap {
			return &domain.ConflictError{Reason: "room is already booked for overlapping dates"}
		}

		nights := domain.CeilDays(checkIn, checkOut)
		b = &domain.Booking{
			RoomID:     room.ID,
			UserID:     in.UserID,
			CheckIn:    checkIn,
			CheckOut:   checkOut,
			GuestCount: in.GuestCount,
			TotalPrice: room.Price.Mul(decimal.NewFromInt(int64(nights))).Round(2),
			Status:     domain.BookingPending,
			Notes:      strings.TrimSpace(in.Notes),
		}
		if err := tx.Bookings().Create(ctx, b); err != nil {
			return err
		}
		out.Add(events.Event{Type: events.BookingCreated, BookingID: b.ID, RoomID: b.RoomID, UserID: b.UserID, Status: string(b.Status)})
		return s.setRoomStatus(ctx, tx, out, room.ID, domain.RoomReserved)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(module, "Booking created", map[string]interface{}{
		"booking_id":  b.ID,
		"room_id":     b.RoomID,
		"user_id":     b.UserID,
		"total_price": b.TotalPrice.StringFixed(2),
	})
	out.Flush(ctx, s.events)
	return b, nil
}

// RecordPaymentSuccess confirms a pending booking once its charge is captured.
// Replays against a booking that is already confirmed, or further along, are no-ops.
func (s *Service) RecordPaymentSuccess(ctx context.Context, bookingID int64, amount decimal.Decimal) (*domain.Booking, error) {
	var b *domain.Booking
	out := &events.Outbox{}
	err := s.store.Transaction(ctx, func(tx *repository.Tx) error {
		var err error
		b, _, err = s.RecordPaymentSuccessTx(ctx, tx, out, bookingID, amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	out.Flush(ctx, s.events)
	return b, nil
}

func (s *Service) RecordPaymentSuccessTx(ctx context.Context, tx *repository.Tx, out *events.Outbox, bookingID int64, amount decimal.Decimal) (*domain.Booking, bool, error) {
	b, err := tx.Bookings().GetForUpdate(ctx, bookingID)
	if err != nil {
		return nil, false, err
	}

	switch b.Status {
	case domain.BookingConfirmed, domain.BookingCheckedIn, domain.BookingCheckedOut, domain.BookingCompleted:
		return b, false, nil
	case domain.BookingCancelled, domain.BookingRefunded:
		return nil, false, &domain.InvalidTransitionError{From: b.Status, To: domain.BookingConfirmed}
	}

	if !domain.AmountsMatch(amount, b.TotalPrice) {
		return nil, false, domain.NewValidationError("amount",
			fmt.Sprintf("paid %s does not match total %s", amount.StringFixed(2), b.TotalPrice.StringFixed(2)))
	}

	if err := s.transition(ctx, tx, out, b, domain.BookingConfirmed, events.BookingConfirmed); err != nil {
		return nil, false, err
	}
	if err := s.setRoomStatus(ctx, tx, out, b.RoomID, domain.RoomOccupied); err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (s *Service) CheckIn(ctx context.Context, actor domain.ActorContext, bookingID int64) (*domain.Booking, error) {
	var b *domain.Booking
	out := &events.Outbox{}
	err := s.store.Transaction(ctx, func(tx *repository.Tx) error {
		var err error
		b, err = tx.Bookings().GetForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if err := actor.RequireOwnerOr(b.UserID, domain.PermBookingCheckIn); err != nil {
			return err
		}
		if b.Status != domain.BookingConfirmed {
			return &domain.InvalidTransitionError{From: b.Status, To: domain.BookingCheckedIn}
		}

		paid, err := tx.Payments().SumByStatus(ctx, b.ID, domain.PaymentCompleted)
		if err != nil {
			return err
		}
		if paid.Add(domain.AmountEpsilon).LessThan(b.TotalPrice) {
			return &domain.PaymentIncompleteError{
				Required:  b.TotalPrice,
				Paid:      paid,
				Shortfall: b.TotalPrice.Sub(paid),
			}
		}
		if b.CheckIn.After(s.today()) {
			return domain.NewValidationError("check_in", "check-in date has not been reached")
		}

		if err := s.transition(ctx, tx, out, b, domain.BookingCheckedIn, events.BookingCheckedIn); err != nil {
			return err
		}
		return s.setRoomStatus(ctx, tx, out, b.RoomID, domain.RoomOccupied)
	})
	if err != nil {
		return nil, err
	}
	out.Flush(ctx, s.events)
	return b, nil
}

type CheckOutInput struct {
	// ActualCheckOut defaults to today.
	ActualCheckOut *time.Time
	Reason         string
}

type CheckOutResult struct {
	Booking      *domain.Booking `json:"booking"`
	RefundAmount decimal.Decimal `json:"refund_amount"`
	Refund       *domain.Refund  `json:"refund,omitempty"`
}

// EarlyCheckoutRefund prices the nights a guest did not use. Leaving on the check-in date
// refunds the whole stay.
func EarlyCheckoutRefund(totalPrice decimal.Decimal, checkIn, checkOut, actual time.Time) decimal.Decimal {
	totalDays := domain.CeilDays(checkIn, checkOut)
	if totalDays <= 0 {
		return decimal.Zero
	}
	actualDays := domain.CeilDays(checkIn, actual)
	unused := totalDays - actualDays
	if unused <= 0 {
		return decimal.Zero
	}
	dailyRate := totalPrice.Div(decimal.NewFromInt(int64(totalDays)))
	return dailyRate.Mul(decimal.NewFromInt(int64(unused))).Round(2)
}

func (s *Service) CheckOut(ctx context.Context, actor domain.ActorContext, bookingID int64, in CheckOutInput) (*CheckOutResult, error) {
	actual := s.today()
	if in.ActualCheckOut != nil {
		actual = domain.DateOf(*in.ActualCheckOut, in.ActualCheckOut.Location())
	}

	res := &CheckOutResult{RefundAmount: decimal.Zero}
	out := &events.Outbox{}
	err := s.store.Transaction(ctx, func(tx *repository.Tx) error {
		b, err := tx.Bookings().GetForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if err := actor.RequireOwnerOr(b.UserID, domain.PermBookingCheckIn); err != nil {
			return err
		}
		if b.Status != domain.BookingCheckedIn {
			return &domain.InvalidTransitionError{From: b.Status, To: domain.BookingCheckedOut}
		}
		if actual.Before(b.CheckIn) || actual.After(b.CheckOut) {
			return domain.NewValidationError("actual_check_out", "must be between check-in and the booked check-out date")
		}

		refundAmount := EarlyCheckoutRefund(b.TotalPrice, b.CheckIn, b.CheckOut, actual)

		b.ActualCheckOut = &actual
		if reason := strings.TrimSpace(in.Reason); reason != "" {
			b.Notes = appendNote(b.Notes, "Checkout: "+reason)
		}
		if err := s.transition(ctx, tx, out, b, domain.BookingCheckedOut, events.BookingCheckedOut); err != nil {
			return err
		}
		if err := s.setRoomStatus(ctx, tx, out, b.RoomID, domain.RoomAvailable); err != nil {
			return err
		}
		res.Booking = b
		res.RefundAmount = refundAmount

		if !refundAmount.IsPositive() {
			return nil
		}
		rf, err := s.openEarlyCheckoutRefund(ctx, tx, actor, b, refundAmount, in.Reason)
		if err != nil {
			return err
		}
		if rf != nil {
			res.Refund = rf
			out.Add(events.Event{
				Type:      events.RefundRequested,
				BookingID: b.ID,
				Status:    string(rf.Status),
				Data:      map[string]interface{}{"refund_id": rf.ID, "amount": rf.Amount.StringFixed(2), "reason": "early_checkout"},
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out.Flush(ctx, s.events)
	return res, nil
}

// openEarlyCheckoutRefund creates the unused-nights refund against the latest completed payment,
// capped at what is still refundable.
func (s *Service) openEarlyCheckoutRefund(ctx context.Context, tx *repository.Tx, actor domain.ActorContext, b *domain.Booking, amount decimal.Decimal, reason string) (*domain.Refund, error) {
	p, err := tx.Payments().LatestWithStatus(ctx, b.ID, []domain.PaymentStatus{domain.PaymentCompleted})
	if err != nil || p == nil {
		return nil, err
	}
	sums, err := tx.LedgerSums(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	if available := sums.AvailableForRefund(); amount.GreaterThan(available) {
		s.log.Warn(module, "Early checkout refund capped", map[string]interface{}{
			"booking_id": b.ID,
			"computed":   amount.StringFixed(2),
			"available":  available.StringFixed(2),
		})
		amount = available
	}
	if !amount.IsPositive() {
		return nil, nil
	}

	notes := fmt.Sprintf("Early checkout on %s", b.ActualCheckOut.Format("2006-01-02"))
	if reason = strings.TrimSpace(reason); reason != "" {
		notes += ": " + reason
	}
	return refund.OpenTx(ctx, tx, refund.OpenInput{
		BookingID:   b.ID,
		PaymentID:   &p.ID,
		Amount:      amount,
		Method:      p.PaymentMethod.RefundMethod(),
		Notes:       notes,
		RequestedBy: actor.UserID,
	})
}

func (s *Service) Cancel(ctx context.Context, actor domain.ActorContext, bookingID int64, reason string) (*domain.Booking, error) {
	var b *domain.Booking
	out := &events.Outbox{}
	err := s.store.Transaction(ctx, func(tx *repository.Tx) error {
		var err error
		b, err = tx.Bookings().GetForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if err := actor.RequireOwnerOr(b.UserID, domain.PermBookingManage); err != nil {
			return err
		}
		if b.Status != domain.BookingPending && b.Status != domain.BookingConfirmed {
			return &domain.InvalidTransitionError{From: b.Status, To: domain.BookingCancelled}
		}
		if reason = strings.TrimSpace(reason); reason != "" {
			b.Notes = appendNote(b.Notes, "Cancelled: "+reason)
		}
		if err := s.transition(ctx, tx, out, b, domain.BookingCancelled, events.BookingCancelled); err != nil {
			return err
		}
		return s.setRoomStatus(ctx, tx, out, b.RoomID, domain.RoomAvailable)
	})
	if err != nil {
		return nil, err
	}
	out.Flush(ctx, s.events)
	return b, nil
}

func (s *Service) Complete(ctx context.Context, actor domain.ActorContext, bookingID int64) (*domain.Booking, error) {
	if err := actor.Require(domain.PermBookingManage); err != nil {
		return nil, err
	}
	var b *domain.Booking
	out := &events.Outbox{}
	err := s.store.Transaction(ctx, func(tx *repository.Tx) error {
		var err error
		b, err = tx.Bookings().GetForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if !b.Status.CanTransitionTo(domain.BookingCompleted) {
			return &domain.InvalidTransitionError{From: b.Status, To: domain.BookingCompleted}
		}
		return s.transition(ctx, tx, out, b, domain.BookingCompleted, events.BookingCompleted)
	})
	if err != nil {
		return nil, err
	}
	out.Flush(ctx, s.events)
	return b, nil
}

// UpdateStatus is the administrative override. It follows its own, narrower table.
func (s *Service) UpdateStatus(ctx context.Context, actor domain.ActorContext, bookingID int64, status string) (*domain.Booking, error) {
	if err := actor.Require(domain.PermBookingManage); err != nil {
		return nil, err
	}
	to, ok := domain.ParseBookingStatus(status)
	if !ok {
		return nil, domain.NewValidationError("status", fmt.Sprintf("unknown status %q", status))
	}

	var b *domain.Booking
	out := &events.Outbox{}
	err := s.store.Transaction(ctx, func(tx *repository.Tx) error {
		var err error
		b, err = tx.Bookings().GetForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		from := b.Status
		if !from.CanOverrideTo(to) {
			return &domain.InvalidTransitionError{From: from, To: to}
		}
		if err := s.transition(ctx, tx, out, b, to, eventFor(to)); err != nil {
			return err
		}

		switch {
		case to == domain.BookingCancelled || to == domain.BookingCompleted:
			return s.setRoomStatus(ctx, tx, out, b.RoomID, domain.RoomAvailable)
		case to == domain.BookingConfirmed && from == domain.BookingPending:
			return s.setRoomStatus(ctx, tx, out, b.RoomID, domain.RoomOccupied)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info(module, "Booking status overridden", map[string]interface{}{
		"booking_id": b.ID,
		"status":     b.Status,
		"actor_id":   actor.UserID,
	})
	out.Flush(ctx, s.events)
	return b, nil
}

// Delete removes a booking that never held money. Confirmed and later bookings are kept for audit.
func (s *Service) Delete(ctx context.Context, actor domain.ActorContext, bookingID int64) error {
	if err := actor.Require(domain.PermBookingManage); err != nil {
		return err
	}
	out := &events.Outbox{}
	err := s.store.Transaction(ctx, func(tx *repository.Tx) error {
		b, err := tx.Bookings().GetForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.Status != domain.BookingPending && b.Status != domain.BookingCancelled {
			return &domain.ConflictError{Reason: fmt.Sprintf("a %s booking cannot be deleted", b.Status)}
		}
		collected, err := tx.Payments().ExistsWithStatus(ctx, b.ID, domain.CollectedPaymentStatuses...)
		if err != nil {
			return err
		}
		if collected {
			return &domain.ConflictError{Reason: "booking has a completed payment"}
		}
		if b.Status == domain.BookingPending {
			if err := s.setRoomStatus(ctx, tx, out, b.RoomID, domain.RoomAvailable); err != nil {
				return err
			}
		}
		if err := tx.Payments().DeleteUncollected(ctx, b.ID); err != nil {
			return err
		}
		if err := tx.Bookings().Delete(ctx, b.ID); err != nil {
			return err
		}
		out.Add(events.Event{Type: events.BookingDeleted, BookingID: b.ID, RoomID: b.RoomID, UserID: b.UserID})
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info(module, "Booking deleted", map[string]interface{}{"booking_id": bookingID, "actor_id": actor.UserID})
	out.Flush(ctx, s.events)
	return nil
}

// MarkRefundedTx moves a CONFIRMED booking to REFUNDED. Any other state is left as is.
func (s *Service) MarkRefundedTx(ctx context.Context, tx *repository.Tx, out *events.Outbox, bookingID int64) (bool, error) {
	b, err := tx.Bookings().GetForUpdate(ctx, bookingID)
	if err != nil {
		return false, err
	}
	if !b.Status.CanTransitionTo(domain.BookingRefunded) {
		s.log.Info(module, "Booking fully refunded, status kept", map[string]interface{}{
			"booking_id": b.ID,
			"status":     b.Status,
		})
		return false, nil
	}
	if err := s.transition(ctx, tx, out, b, domain.BookingRefunded, events.BookingRefunded); err != nil {
		return false, err
	}
	return true, s.setRoomStatus(ctx, tx, out, b.RoomID, domain.RoomAvailable)
}

// AutoCheckOut closes a stay whose checkout date has passed without a formal checkout.
// It returns false when the booking no longer qualifies.
func (s *Service) AutoCheckOut(ctx context.Context, bookingID int64) (bool, error) {
	now := s.now()
	changed := false
	out := &events.Outbox{}
	err := s.store.Transaction(ctx, func(tx *repository.Tx) error {
		b, err := tx.Bookings().GetForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.Status != domain.BookingCheckedIn || !b.CheckOut.Before(now) {
			return nil
		}
		actual := b.CheckOut
		b.ActualCheckOut = &actual
		b.Notes = appendNote(b.Notes, fmt.Sprintf("[AUTO-CHECKOUT %s]", now.UTC().Format(time.RFC3339)))
		if err := s.transition(ctx, tx, out, b, domain.BookingCheckedOut, events.BookingCheckedOut); err != nil {
			return err
		}
		if err := s.setRoomStatus(ctx, tx, out, b.RoomID, domain.RoomAvailable); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	out.Flush(ctx, s.events)
	return changed, nil
}

func (s *Service) Get(ctx context.Context, actor domain.ActorContext, bookingID int64) (*domain.Booking, error) {
	b, err := s.store.Bookings().GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := actor.RequireOwnerOr(b.UserID, domain.PermBookingCheckIn); err != nil {
		return nil, err
	}
	return b, nil
}

// List narrows guests to their own bookings.
func (s *Service) List(ctx context.Context, actor domain.ActorContext, f repository.BookingFilter) ([]domain.Booking, error) {
	if !actor.Can(domain.PermBookingCheckIn) {
		f.UserID = actor.UserID
	}
	return s.store.Bookings().List(ctx, f)
}

// AvailableRooms lists rooms that could take a new booking for the stay.
func (s *Service) AvailableRooms(ctx context.Context, checkIn, checkOut time.Time, guests int, roomType domain.RoomType) ([]domain.Room, error) {
	checkIn = domain.DateOf(checkIn, checkIn.Location())
	checkOut = domain.DateOf(checkOut, checkOut.Location())
	if !checkOut.After(checkIn) {
		return nil, domain.NewValidationError("check_out", "must be after check_in")
	}
	if guests < 1 {
		guests = 1
	}

	rooms, err := s.store.Rooms().List(ctx, repository.RoomFilter{
		Status:      domain.RoomAvailable,
		Type:        roomType,
		MinCapacity: guests,
	})
	if err != nil {
		return nil, err
	}
	busy, err := s.store.Bookings().BusyRoomIDs(ctx, checkIn, checkOut)
	if err != nil {
		return nil, err
	}
	taken := make(map[int64]struct{}, len(busy))
	for _, id := range busy {
		taken[id] = struct{}{}
	}

	out := make([]domain.Room, 0, len(rooms))
	for _, r := range rooms {
		if _, ok := taken[r.ID]; !ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Service) transition(ctx context.Context, tx *repository.Tx, out *events.Outbox, b *domain.Booking, to domain.BookingStatus, ev events.Type) error {
	from := b.Status
	b.Status = to
	if err := tx.Bookings().Save(ctx, b); err != nil {
		return err
	}
	s.log.Info(module, "Booking status changed", map[string]interface{}{
		"booking_id": b.ID,
		"from":       from,
		"to":         to,
	})
	out.Add(events.Event{Type: ev, BookingID: b.ID, RoomID: b.RoomID, UserID: b.UserID, Status: string(to)})
	return nil
}

func (s *Service) setRoomStatus(ctx context.Context, tx *repository.Tx, out *events.Outbox, roomID int64, status domain.RoomStatus) error {
	if err := tx.Rooms().UpdateStatus(ctx, roomID, status); err != nil {
		return err
	}
	out.Add(events.Event{Type: events.RoomStatusChanged, RoomID: roomID, Status: string(status)})
	return nil
}

func eventFor(status domain.BookingStatus) events.Type {
	switch status {
	case domain.BookingConfirmed:
		return events.BookingConfirmed
	case domain.BookingCancelled:
		return events.BookingCancelled
	case domain.BookingCompleted:
		return events.BookingCompleted
	case domain.BookingCheckedIn:
		return events.BookingCheckedIn
	case domain.BookingCheckedOut:
		return events.BookingCheckedOut
	case domain.BookingRefunded:
		return events.BookingRefunded
	}
	return events.Type("booking." + strings.ToLower(string(status)))
}

func appendNote(notes, line string) string {
	if notes == "" {
		return line
	}
	return notes + "\n" + line
}
