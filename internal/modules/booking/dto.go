package booking

import (
	"time"

	"hotelbooking/internal/domain"
	"hotelbooking/internal/repository"
)

const dateLayout = "2006-01-02"

type CreateBookingRequest struct {
	RoomID     int64  `json:"room_id" binding:"required"`
	UserID     int64  `json:"user_id"`
	CheckIn    string `json:"check_in" binding:"required" validate:"datetime=2006-01-02"`
	CheckOut   string `json:"check_out" binding:"required" validate:"datetime=2006-01-02"`
	GuestCount int    `json:"guest_count" binding:"required" validate:"min=1,max=10"`
	Notes      string `json:"notes" validate:"max=1000"`
}

func (r CreateBookingRequest) toInput() (CreateInput, error) {
	checkIn, err := parseDate("check_in", r.CheckIn)
	if err != nil {
		return CreateInput{}, err
	}
	checkOut, err := parseDate("check_out", r.CheckOut)
	if err != nil {
		return CreateInput{}, err
	}
	return CreateInput{
		RoomID:     r.RoomID,
		UserID:     r.UserID,
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		GuestCount: r.GuestCount,
		Notes:      r.Notes,
	}, nil
}

type CheckOutRequest struct {
	ActualCheckOut string `json:"actual_check_out" validate:"omitempty,datetime=2006-01-02"`
	Reason         string `json:"reason" validate:"max=500"`
}

type CancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type ListQuery struct {
	Status string `form:"status"`
	RoomID int64  `form:"room_id"`
	UserID int64  `form:"user_id"`
	From   string `form:"from"`
	To     string `form:"to"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}

func (q ListQuery) toFilter() (repository.BookingFilter, error) {
	f := repository.BookingFilter{
		RoomID: q.RoomID,
		UserID: q.UserID,
		Limit:  q.Limit,
		Offset: q.Offset,
	}
	if q.Status != "" {
		status, ok := domain.ParseBookingStatus(q.Status)
		if !ok {
			return f, domain.NewValidationError("status", "unknown booking status")
		}
		f.Statuses = []domain.BookingStatus{status}
	}
	if q.From != "" {
		from, err := parseDate("from", q.From)
		if err != nil {
			return f, err
		}
		f.From = &from
	}
	if q.To != "" {
		to, err := parseDate("to", q.To)
		if err != nil {
			return f, err
		}
		f.To = &to
	}
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	return f, nil
}

type AvailabilityQuery struct {
	CheckIn  string `form:"check_in" binding:"required"`
	CheckOut string `form:"check_out" binding:"required"`
	Guests   int    `form:"guests"`
	Type     string `form:"type"`
}

func parseDate(field, value string) (time.Time, error) {
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, domain.NewValidationError(field, "expected YYYY-MM-DD")
	}
	return t, nil
}
