package sweeper

import (
	"context"
	"time"

	"hotelbooking/internal/domain"
	"hotelbooking/internal/pkg/logger"
	"hotelbooking/internal/repository"
)

const module = "sweeper"

// CheckOuter closes one overdue stay in its own transaction.
type CheckOuter interface {
	AutoCheckOut(ctx context.Context, bookingID int64) (bool, error)
}

type Service struct {
	store    *repository.Store
	bookings CheckOuter
	log      logger.ILogger
	now      func() time.Time
}

func NewService(store *repository.Store, bookings CheckOuter, log logger.ILogger) *Service {
	return &Service{store: store, bookings: bookings, log: log, now: time.Now}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type ItemError struct {
	BookingID int64  `json:"booking_id"`
	Error     string `json:"error"`
}

type Result struct {
	Processed int         `json:"processed"`
	Failed    int         `json:"failed"`
	Skipped   int         `json:"skipped"`
	Errors    []ItemError `json:"errors"`
}

// ListExpiring is the dry run: bookings still CHECKED_IN after their checkout date.
func (s *Service) ListExpiring(ctx context.Context, actor domain.ActorContext) ([]domain.Booking, error) {
	if err := actor.Require(domain.PermSweepRun); err != nil {
		return nil, err
	}
	return s.store.Bookings().ListExpiredCheckedIn(ctx, s.now())
}

// Process checks out every expired stay. A failing booking is reported and the sweep moves on.
func (s *Service) Process(ctx context.Context, actor domain.ActorContext) (*Result, error) {
	if err := actor.Require(domain.PermSweepRun); err != nil {
		return nil, err
	}
	expired, err := s.store.Bookings().ListExpiredCheckedIn(ctx, s.now())
	if err != nil {
		return nil, err
	}

	res := &Result{Errors: []ItemError{}}
	for _, b := range expired {
		if ctx.Err() != nil {
			break
		}
		changed, err := s.bookings.AutoCheckOut(ctx, b.ID)
		switch {
		case err != nil:
			res.Failed++
			res.Errors = append(res.Errors, ItemError{BookingID: b.ID, Error: err.Error()})
			s.log.Error(module, "Auto-checkout failed", map[string]interface{}{
				"booking_id": b.ID,
				"error":      err.Error(),
			})
		case changed:
			res.Processed++
		default:
			// Checked out by someone else between the listing and the lock.
			res.Skipped++
		}
	}

	s.log.Info(module, "Auto-checkout sweep finished", map[string]interface{}{
		"candidates": len(expired),
		"processed":  res.Processed,
		"failed":     res.Failed,
		"skipped":    res.Skipped,
	})
	return res, ctx.Err()
}
