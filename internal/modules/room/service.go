package room

import (
	"context"
	"fmt"
	"strings"
	"time"

	"hotelbooking/internal/domain"
	"hotelbooking/internal/events"
	"hotelbooking/internal/pkg/logger"
	"hotelbooking/internal/repository"

	"github.com/shopspring/decimal"
)

const module = "room"

type Service struct {
	store  *repository.Store
	events events.Publisher
	log    logger.ILogger
	now    func() time.Time
	loc    *time.Location
}

func NewService(store *repository.Store, pub events.Publisher, log logger.ILogger) *Service {
	return &Service{store: store, events: pub, log: log, now: time.Now, loc: time.UTC}
}

// WithClock replaces the wall clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) WithLocation(loc *time.Location) *Service {
	if loc != nil {
		s.loc = loc
	}
	return s
}

/* ---------- ROOMS ---------- */

type CreateInput struct {
	Number      string
	Type        domain.RoomType
	Capacity    int
	Price       decimal.Decimal
	Description string
}

func (s *Service) CreateRoom(ctx context.Context, actor domain.ActorContext, in CreateInput) (*domain.Room, error) {
	if err := actor.Require(domain.PermRoomManage); err != nil {
		return nil, err
	}
	room := &domain.Room{
		Number:      strings.TrimSpace(in.Number),
		Type:        in.Type,
		Capacity:    in.Capacity,
		Price:       in.Price.Round(2),
		Status:      domain.RoomAvailable,
		Description: in.Description,
	}
	if err := validateRoom(room); err != nil {
		return nil, err
	}
	if err := s.store.Rooms().Create(ctx, room); err != nil {
		return nil, err
	}
	s.log.Info(module, "Room created", map[string]interface{}{"room_id": room.ID, "number": room.Number})
	return room, nil
}

type UpdateInput struct {
	Number      *string
	Type        *domain.RoomType
	Capacity    *int
	Price       *decimal.Decimal
	Description *string
}

// UpdateRoom edits room attributes. Existing bookings keep the price they were made at.
func (s *Service) UpdateRoom(ctx context.Context, actor domain.ActorContext, roomID int64, in UpdateInput) (*domain.Room, error) {
	if err := actor.Require(domain.PermRoomManage); err != nil {
		return nil, err
	}
	var room *domain.Room
	err := s.store.Transaction(ctx, func(tx *repository.Tx) error {
		var err error
		room, err = tx.Rooms().GetForUpdate(ctx, roomID)
		if err != nil {
			return err
		}
		if in.Number != nil {
			room.Number = strings.TrimSpace(*in.Number)
		}
		if in.Type != nil {
			room.Type = *in.Type
		}
		if in.Capacity != nil {
			room.Capacity = *in.Capacity
		}
		if in.Price != nil {
			room.Price = in.Price.Round(2)
		}
		if in.Description != nil {
			room.Description = *in.Description
		}
		if err := validateRoom(room); err != nil {
			return err
		}
		return tx.Rooms().Save(ctx, room)
	})
	if err != nil {
		return nil, err
	}
	return room, nil
}

// SetMaintenance takes a room out of service, or returns it. A room with a guest
// booked for today cannot be taken out.
func (s *Service) SetMaintenance(ctx context.Context, actor domain.ActorContext, roomID int64, on bool) (*domain.Room, error) {
	if err := actor.Require(domain.PermRoomManage); err != nil {
		return nil, err
	}
	today := domain.DateOf(s.now(), s.loc)

	var room *domain.Room
	err := s.store.Transaction(ctx, func(tx *repository.Tx) error {
		var err error
		room, err = tx.Rooms().GetForUpdate(ctx, roomID)
		if err != nil {
			return err
		}
		if !on {
			if room.Status != domain.RoomMaintenance {
				return nil
			}
			if room.Status, err = heldStatus(ctx, tx, room.ID); err != nil {
				return err
			}
			return tx.Rooms().UpdateStatus(ctx, room.ID, room.Status)
		}

		if room.Status == domain.RoomMaintenance {
			return nil
		}
		busy, err := tx.Bookings().HasOverlap(ctx, room.ID, today, today.AddDate(0, 0, 1), 0)
		if err != nil {
			return err
		}
		if busy {
			return &domain.ConflictError{Reason: "room has an active booking today"}
		}
		room.Status = domain.RoomMaintenance
		return tx.Rooms().UpdateStatus(ctx, room.ID, room.Status)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info(module, "Room maintenance toggled", map[string]interface{}{"room_id": room.ID, "status": room.Status})
	s.events.Publish(ctx, events.Event{Type: events.RoomStatusChanged, RoomID: room.ID, Status: string(room.Status)})
	return room, nil
}

// heldStatus is the room status implied by bookings still holding the room.
// Maintenance overwrites it, so it is rebuilt when the room comes back.
func heldStatus(ctx context.Context, tx *repository.Tx, roomID int64) (domain.RoomStatus, error) {
	for _, st := range []domain.BookingStatus{domain.BookingCheckedIn, domain.BookingConfirmed} {
		held, err := tx.Bookings().ListByRoomAndStatus(ctx, roomID, st)
		if err != nil {
			return "", err
		}
		if len(held) > 0 {
			return domain.RoomOccupied, nil
		}
	}
	pending, err := tx.Bookings().ListByRoomAndStatus(ctx, roomID, domain.BookingPending)
	if err != nil {
		return "", err
	}
	if len(pending) > 0 {
		return domain.RoomReserved, nil
	}
	return domain.RoomAvailable, nil
}

// DeleteRoom removes a room no active booking refers to.
func (s *Service) DeleteRoom(ctx context.Context, actor domain.ActorContext, roomID int64) error {
	if err := actor.Require(domain.PermRoomManage); err != nil {
		return err
	}
	return s.store.Transaction(ctx, func(tx *repository.Tx) error {
		if _, err := tx.Rooms().GetForUpdate(ctx, roomID); err != nil {
			return err
		}
		active, err := tx.Bookings().CountHoldingForRoom(ctx, roomID)
		if err != nil {
			return err
		}
		if active > 0 {
			return &domain.ConflictError{Reason: fmt.Sprintf("room has %d active bookings", active)}
		}
		return tx.Rooms().Delete(ctx, roomID)
	})
}

func (s *Service) GetRoom(ctx context.Context, roomID int64) (*domain.Room, error) {
	return s.store.Rooms().GetByID(ctx, roomID)
}

func (s *Service) ListRooms(ctx context.Context, f repository.RoomFilter) ([]domain.Room, error) {
	return s.store.Rooms().List(ctx, f)
}

type RepriceResult struct {
	Updated []int64 `json:"updated"`
	Skipped []int64 `json:"skipped"`
}

// RepricePendingBookings recomputes PENDING bookings from the current room price.
// Bookings with a payment in progress or collected keep their total.
func (s *Service) RepricePendingBookings(ctx context.Context, actor domain.ActorContext, roomID int64) (*RepriceResult, error) {
	if err := actor.Require(domain.PermRoomManage); err != nil {
		return nil, err
	}
	res := &RepriceResult{Updated: []int64{}, Skipped: []int64{}}
	err := s.store.Transaction(ctx, func(tx *repository.Tx) error {
		room, err := tx.Rooms().GetForUpdate(ctx, roomID)
		if err != nil {
			return err
		}
		pending, err := tx.Bookings().ListByRoomAndStatus(ctx, room.ID, domain.BookingPending)
		if err != nil {
			return err
		}
		for i := range pending {
			b := &pending[i]
			locked, err := tx.Payments().ExistsWithStatus(ctx, b.ID,
				domain.PaymentPending, domain.PaymentCompleted, domain.PaymentRefunded)
			if err != nil {
				return err
			}
			if locked {
				res.Skipped = append(res.Skipped, b.ID)
				continue
			}
			total := room.Price.Mul(decimal.NewFromInt(int64(b.Nights()))).Round(2)
			if total.Equal(b.TotalPrice) {
				continue
			}
			s.log.Info(module, "Booking repriced", map[string]interface{}{
				"booking_id": b.ID,
				"from":       b.TotalPrice.StringFixed(2),
				"to":         total.StringFixed(2),
			})
			b.TotalPrice = total
			if err := tx.Bookings().Save(ctx, b); err != nil {
				return err
			}
			res.Updated = append(res.Updated, b.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func validateRoom(room *domain.Room) error {
	if room.Number == "" {
		return domain.NewValidationError("number", "is required")
	}
	if !room.Type.Valid() {
		return domain.NewValidationError("type", "unknown room type")
	}
	if room.Capacity < domain.MinRoomCapacity || room.Capacity > domain.MaxRoomCapacity {
		return domain.NewValidationError("capacity",
			fmt.Sprintf("must be between %d and %d", domain.MinRoomCapacity, domain.MaxRoomCapacity))
	}
	if !room.Price.IsPositive() {
		return domain.NewValidationError("price", "must be greater than zero")
	}
	return nil
}
